// internal/models/room.go
package models

import "time"

// RoomID identifies an active room. Random matches get a generated token,
// named matches use the name both clients submitted.
type RoomID string

// Room is the server-side record of one two-player session.
// Players is fixed for the lifetime of the room; a confirmed rematch replaces the whole record.
type Room struct {
	ID      RoomID
	Players [2]ConnID
	Score   map[ConnID]int
	Status  map[ConnID]PlayerStatus

	// RematchRequested is set by the first rematch request, RematchInitiator names who sent it.
	RematchRequested bool
	RematchInitiator ConnID

	// Departed marks players whose connection is gone while the room is kept for the opponent.
	Departed map[ConnID]bool

	Named      bool
	Generation int
	CreatedAt  time.Time
}

// NewRoom creates a fresh room with zero scores and both players playing.
func NewRoom(id RoomID, p1, p2 ConnID) *Room {
	return &Room{
		ID:      id,
		Players: [2]ConnID{p1, p2},
		Score: map[ConnID]int{
			p1: 0,
			p2: 0,
		},
		Status: map[ConnID]PlayerStatus{
			p1: StatusPlaying,
			p2: StatusPlaying,
		},
		Departed:  make(map[ConnID]bool),
		CreatedAt: time.Now(),
	}
}

// Has reports whether conn is one of the two players.
func (r *Room) Has(conn ConnID) bool {
	return r.Players[0] == conn || r.Players[1] == conn
}

// Opponent returns the other player. ok is false if conn is not in the room.
func (r *Room) Opponent(conn ConnID) (ConnID, bool) {
	switch conn {
	case r.Players[0]:
		return r.Players[1], true
	case r.Players[1]:
		return r.Players[0], true
	}
	return "", false
}

// Lost reports whether conn is marked lost.
func (r *Room) Lost(conn ConnID) bool {
	return r.Status[conn] == StatusLost
}

// BothLost reports whether the room is functionally concluded.
func (r *Room) BothLost() bool {
	return r.Lost(r.Players[0]) && r.Lost(r.Players[1])
}

// Seats returns a copy of the per-player state in seat order.
func (r *Room) Seats() []Player {
	seats := make([]Player, 0, len(r.Players))
	for _, id := range r.Players {
		seats = append(seats, Player{
			ID:       id,
			Score:    r.Score[id],
			Status:   r.Status[id],
			Departed: r.Departed[id],
		})
	}
	return seats
}
