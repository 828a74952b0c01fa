package server

import (
	"time"

	"collective/internal/colony"
	"collective/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// handleStream upgrades to a WebSocket and forwards every published
// snapshot. Slow clients skip intermediate snapshots.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.ServerError("websocket upgrade failed: %v", err)
		return
	}

	snapshots, unsubscribe := s.kernel.Subscribe()
	closed := make(chan struct{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer close(closed)
		// Inbound frames are ignored; reading surfaces the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		defer conn.Close()
		defer unsubscribe()
		s.pump(conn, snapshots, closed)
	}()
}

func (s *Server) pump(conn *websocket.Conn, snapshots <-chan colony.Snapshot, closed <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	logging.Server("stream client %s connected", conn.RemoteAddr())
	defer logging.Server("stream client %s disconnected", conn.RemoteAddr())

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-closed:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(StreamMessage{Type: "snapshot", Data: &snap, Timestamp: time.Now()}); err != nil {
				logging.Get(logging.CategoryServer).Debug("stream write failed: %v", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
