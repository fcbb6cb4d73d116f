// Package server serves the dashboard page, per-region fragments, a JSON
// snapshot and a websocket that pushes region fragments as they change.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rewired-gh/marketstate/internal/logger"
	"github.com/rewired-gh/marketstate/internal/view"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Addr           string
	AllowedOrigins []string
	ReleaseMode    bool
}

type Server struct {
	store    *view.Store
	renderer *view.Renderer
	config   Config
	handler  http.Handler
}

func New(store *view.Store, renderer *view.Renderer, config Config) *Server {
	if config.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		store:    store,
		renderer: renderer,
		config:   config,
	}

	router := gin.New()
	router.Use(RequestLogger())
	router.Use(ErrorHandler())

	router.GET("/", s.page)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", s.stream)

	api := router.Group("/api")
	{
		api.GET("/view", s.snapshot)
		api.GET("/regions/:region", s.region)
	}

	s.handler = cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Dashboard listening on %s", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("Dashboard stopped")
	return nil
}

func (s *Server) page(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.renderer.RenderPage(&buf, s.store.Snapshot()); err != nil {
		logger.Error("Failed to render page: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "RENDER_FAILED", "message": err.Error()},
		})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) region(c *gin.Context) {
	region, ok := view.ParseRegion(c.Param("region"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "UNKNOWN_REGION",
				"message": fmt.Sprintf("unknown region %q", c.Param("region")),
			},
		})
		return
	}

	html, err := s.renderer.RegionHTML(s.store.Snapshot(), region)
	if err != nil {
		logger.Error("Failed to render %s: %v", region, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "RENDER_FAILED", "message": err.Error()},
		})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
