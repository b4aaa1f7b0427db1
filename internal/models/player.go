// internal/models/player.go
package models

// ConnID is the stable identifier the transport assigns to one connected client.
type ConnID string

// PlayerStatus is a player's life state within a single room generation.
type PlayerStatus string

const (
	StatusPlaying PlayerStatus = "playing"
	StatusLost    PlayerStatus = "lost"
)

// Player is one seat of a room as exposed by snapshots and history records.
type Player struct {
	ID       ConnID       `json:"id"`
	Score    int          `json:"score"`
	Status   PlayerStatus `json:"status"`
	Departed bool         `json:"departed,omitempty"`
}
