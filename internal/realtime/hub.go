// internal/realtime/hub.go
package realtime

import (
	"context"
	"net/http"
	"sync"

	"notification-hub/internal/common/logger"
	"notification-hub/internal/common/metrics"
	"notification-hub/internal/models"

	"github.com/gorilla/websocket"
)

// Hub maintains the set of connected agent sessions and broadcasts event
// envelopes to them. Sessions register on upgrade and unregister when their
// socket closes.
type Hub struct {
	log logger.Logger

	register   chan *session
	unregister chan *session
	broadcast  chan models.EventEnvelope

	mu       sync.RWMutex
	sessions map[*session]bool

	upgrader websocket.Upgrader
}

// NewHub creates a hub. Run must be started before ServeWS accepts clients.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log:        log.WithFields(map[string]interface{}{"component": "realtime-hub"}),
		register:   make(chan *session),
		unregister: make(chan *session),
		broadcast:  make(chan models.EventEnvelope, 256),
		sessions:   make(map[*session]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run processes session lifecycle and broadcast messages until ctx is
// canceled, then closes every session.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()

		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = true
			count := len(h.sessions)
			h.mu.Unlock()
			metrics.ConnectedClients.Set(float64(count))
			h.log.Info("client connected", map[string]interface{}{"totalClients": count})

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				close(s.send)
			}
			count := len(h.sessions)
			h.mu.Unlock()
			metrics.ConnectedClients.Set(float64(count))
			h.log.Info("client disconnected", map[string]interface{}{"totalClients": count})

		case env := <-h.broadcast:
			h.broadcastToSessions(env)
		}
	}
}

// Broadcast queues an envelope for delivery to every connected session.
// When the queue is full the envelope is dropped; clients recover through
// fallback polling.
func (h *Hub) Broadcast(env models.EventEnvelope) {
	select {
	case h.broadcast <- env:
	default:
		metrics.EventsDropped.WithLabelValues(env.Event, "hub_queue_full").Inc()
		h.log.Warn("broadcast queue full, dropping event", map[string]interface{}{"event": env.Event})
	}
}

// BroadcastTo queues an envelope for the sessions of one user only.
func (h *Hub) BroadcastTo(userID string, env models.EventEnvelope) {
	h.mu.RLock()
	targets := make([]*session, 0, 4)
	for s := range h.sessions {
		if s.userID == userID {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.send <- env:
		default:
			metrics.EventsDropped.WithLabelValues(env.Event, "session_buffer_full").Inc()
		}
	}
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ServeWS upgrades an HTTP request to a websocket session. The user id comes
// from the authenticated request context or, for tooling, the user query
// parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	s := newSession(h, ws, userID)
	h.register <- s
	s.start()
}

func (h *Hub) broadcastToSessions(env models.EventEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		select {
		case s.send <- env:
		default:
			metrics.EventsDropped.WithLabelValues(env.Event, "session_buffer_full").Inc()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		close(s.send)
		delete(h.sessions, s)
	}
	metrics.ConnectedClients.Set(0)
	h.log.Info("hub shut down", map[string]interface{}{})
}
