// internal/realtime/session.go
package realtime

import (
	"time"

	"notification-hub/internal/models"

	"github.com/gorilla/websocket"
)

const (
	sessionWriteWait  = 10 * time.Second
	sessionPongWait   = 60 * time.Second
	sessionPingPeriod = (sessionPongWait * 9) / 10
	maxMessageSize    = 64 * 1024
)

// session is one connected agent socket on the hub side: a middleman between
// the websocket connection and the hub's broadcast loop.
type session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan models.EventEnvelope
}

func newSession(h *Hub, conn *websocket.Conn, userID string) *session {
	return &session{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan models.EventEnvelope, 256),
	}
}

func (s *session) start() {
	go s.writePump()
	go s.readPump()
}

// readPump drains the socket until it closes. Agents do not send application
// messages; the read side exists to detect disconnects and answer pings.
func (s *session) readPump() {
	defer func() {
		s.hub.unregister <- s
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(sessionPongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(sessionPongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump forwards queued envelopes to the socket and keeps the connection
// alive with periodic pings.
func (s *session) writePump() {
	ticker := time.NewTicker(sessionPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case env, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait)); err != nil {
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(sessionWriteWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
