package hub

import (
	"encoding/json"
	"sync"

	"luckygas-dispatch/internal/core/logger"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Conn is the subset of a WebSocket connection the hub needs. Satisfied by
// *websocket.Conn; tests substitute a recording fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub stores connected office-staff sessions and fans notification
// messages out to all of them. Delivery is best-effort: a failed write
// drops the session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]Conn
	log      *zap.Logger
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		sessions: make(map[string]Conn),
		log:      logger.Named("hub"),
	}
}

// Add registers a session under a unique ID, closing any previous
// connection with the same ID.
func (h *Hub) Add(id string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[id]; ok {
		_ = old.Close()
	}
	h.sessions[id] = conn
	h.log.Info("session registered", zap.String("session_id", id))
}

// Remove deletes and closes a session.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.sessions[id]; ok {
		_ = conn.Close()
		delete(h.sessions, id)
		h.log.Info("session removed", zap.String("session_id", id))
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// envelope is the wire form sent to office sessions.
type envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// BroadcastTopic sends a topic-wrapped payload to every connected session.
// Sessions whose write fails are dropped.
func (h *Hub) BroadcastTopic(topic string, payload []byte) {
	data, err := json.Marshal(envelope{Topic: topic, Data: payload})
	if err != nil {
		h.log.Warn("failed to marshal broadcast envelope", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make(map[string]Conn, len(h.sessions))
	for id, conn := range h.sessions {
		targets[id] = conn
	}
	h.mu.RUnlock()

	for id, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warn("dropping dead session",
				zap.String("session_id", id),
				zap.Error(err),
			)
			h.Remove(id)
		}
	}
}
