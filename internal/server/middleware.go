package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rewired-gh/marketstate/internal/logger"
)

// ErrorHandler recovers panics in handlers and answers with a JSON error body.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		message := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			message = s
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": message,
			},
		})
		c.Abort()
	})
}

// RequestLogger logs every request at debug level, server errors at warn.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			logger.Warn("%s %s -> %d in %v", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debug("%s %s -> %d in %v", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}
