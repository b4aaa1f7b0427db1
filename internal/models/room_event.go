// internal/models/room_event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Room history event kinds.
const (
	EventRoomCreated    = "room_created"
	EventRematchStarted = "rematch_started"
	EventRoomClosed     = "room_closed"

	// EventRoomActivity is a heartbeat sent on every action and loss. It keeps
	// the historian from treating a long game as idle and is not persisted.
	EventRoomActivity = "room_activity"
)

// RoomEvent is the record handed to the history pipeline whenever a room is
// created, played in, replaced by a rematch, or torn down.
type RoomEvent struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	RoomID     RoomID    `json:"room_id"`
	Generation int       `json:"generation"`
	Named      bool      `json:"named"`
	Players    []Player  `json:"players"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  int64     `json:"timestamp"` // epoch millis
}

// NewRoomEvent captures the current state of r.
func NewRoomEvent(kind string, r *Room, reason string) RoomEvent {
	return RoomEvent{
		ID:         uuid.New(),
		Kind:       kind,
		RoomID:     r.ID,
		Generation: r.Generation,
		Named:      r.Named,
		Players:    r.Seats(),
		Reason:     reason,
		Timestamp:  time.Now().UnixMilli(),
	}
}
