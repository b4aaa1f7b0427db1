// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/sirupsen/logrus"
)

// Connection is one live websocket client.
type Connection struct {
	ID      models.ConnID
	Remote  string
	Cancel  context.CancelFunc
	OutChan chan models.Notification
}

// write pushes a notification onto OutChan without blocking. Caller holds the hub read lock.
func (conn *Connection) write(n models.Notification, log *logrus.Entry) {
	select {
	case conn.OutChan <- n:
	default:
		log.WithFields(logrus.Fields{
			"conn": conn.ID,
			"type": n.Type,
		}).Warn("outbound buffer full, dropped notification")
	}
}

// Hub tracks live connections by id and delivers notifications to them.
// It is the transport side of session.Notifier.
type Hub struct {
	mu    sync.RWMutex
	conns map[models.ConnID]*Connection
	log   *logrus.Entry
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Entry) *Hub {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		conns: make(map[models.ConnID]*Connection),
		log:   logger,
	}
}

// Register adds conn, replacing nothing: ids are unique per connection.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// Unregister removes the connection and closes its OutChan.
func (h *Hub) Unregister(id models.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[id]
	if !ok {
		return
	}
	delete(h.conns, id)
	close(conn.OutChan)
}

// Notify implements session.Notifier.
func (h *Hub) Notify(to models.ConnID, n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[to]
	if !ok {
		h.log.WithFields(logrus.Fields{"conn": to, "type": n.Type}).Debug("notification for unknown connection dropped")
		return
	}
	conn.write(n, h.log)
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// IDs lists the live connection ids.
func (h *Hub) IDs() []models.ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]models.ConnID, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

// Drain cancels every live connection and waits until their handlers have
// unregistered or ctx is done. Idle sockets are blocked in Read and would
// otherwise only notice shutdown on their next packet.
func (h *Hub) Drain(ctx context.Context) error {
	h.mu.RLock()
	for _, conn := range h.conns {
		conn.Cancel()
	}
	h.mu.RUnlock()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for h.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
