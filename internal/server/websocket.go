package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rewired-gh/marketstate/internal/logger"
	"github.com/rewired-gh/marketstate/internal/view"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = pongWait * 9 / 10
	updateBuffer  = 32
	maxReadLength = 512
)

// RegionMessage is pushed to browsers whenever a region changes.
type RegionMessage struct {
	Region view.Region `json:"region"`
	HTML   string      `json:"html"`
	Seq    uint64      `json:"seq"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.config.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, updates := s.store.Subscribe(updateBuffer)
	defer s.store.Unsubscribe(id)
	logger.Debug("Websocket client %s connected (%d subscribers)", id, s.store.Subscribers())

	closed := make(chan struct{})
	go readPump(conn, closed)

	vm := s.store.Snapshot()
	for _, region := range view.Regions {
		if err := s.push(conn, vm, region); err != nil {
			logger.Debug("Websocket client %s: %v", id, err)
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			logger.Debug("Websocket client %s disconnected", id)
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := s.push(conn, s.store.Snapshot(), u.Region); err != nil {
				logger.Debug("Websocket client %s: %v", id, err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) push(conn *websocket.Conn, vm view.ViewModel, region view.Region) error {
	html, err := s.renderer.RegionHTML(vm, region)
	if err != nil {
		logger.Error("Failed to render %s: %v", region, err)
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return conn.WriteJSON(RegionMessage{
		Region: region,
		HTML:   html,
		Seq:    vm.StatusOf(region).Seq,
	})
}

// readPump drains control frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxReadLength)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
