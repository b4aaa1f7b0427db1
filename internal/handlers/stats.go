// internal/handlers/stats.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jason-s-yu/duel/internal/session"
	"github.com/sirupsen/logrus"
)

// StatsResponse is the body of GET /rooms.
type StatsResponse struct {
	Connections int                `json:"connections"`
	Waiting     int                `json:"waiting"`
	Pending     int                `json:"pending"`
	Rooms       []session.RoomView `json:"rooms"`
}

// StatsHandler reports live connections and a snapshot of the session store.
func StatsHandler(logger *logrus.Logger, hub *Hub, d *session.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snap, err := d.Snapshot(ctx)
		if err != nil {
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(StatsResponse{
			Connections: hub.Count(),
			Waiting:     snap.Waiting,
			Pending:     snap.Pending,
			Rooms:       snap.Rooms,
		})
		if err != nil {
			logger.WithField("remote", r.RemoteAddr).Warnf("failed to write stats response: %v", err)
		}
	}
}

// PingHandler answers liveness probes.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}
