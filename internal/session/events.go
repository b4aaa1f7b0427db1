// internal/session/events.go
package session

import (
	"encoding/json"

	"github.com/jason-s-yu/duel/internal/models"
)

// Event is an inbound request applied to the Store by the Dispatcher.
type Event interface {
	sessionEvent()
}

// JoinRandom asks for a random opponent.
type JoinRandom struct {
	Conn models.ConnID
	Attr string
}

func (JoinRandom) sessionEvent() {}

// JoinNamed asks to be paired with whoever submits the same room name.
type JoinNamed struct {
	Conn     models.ConnID
	RoomName string
	Attr     string
}

func (JoinNamed) sessionEvent() {}

// Action is an in-play move relayed to the opponent.
type Action struct {
	Conn    models.ConnID
	Payload json.RawMessage
}

func (Action) sessionEvent() {}

// Loss reports that the sender has lost.
type Loss struct {
	Conn    models.ConnID
	Payload json.RawMessage
}

func (Loss) sessionEvent() {}

// RematchRequest is one side of the rematch handshake.
type RematchRequest struct {
	Conn models.ConnID
}

func (RematchRequest) sessionEvent() {}

// FindNewOpponent abandons a finished room for a fresh random match.
type FindNewOpponent struct {
	Conn models.ConnID
	Attr string
}

func (FindNewOpponent) sessionEvent() {}

// Disconnect is submitted by the transport once a connection is gone.
type Disconnect struct {
	Conn models.ConnID
}

func (Disconnect) sessionEvent() {}

type snapshotQuery struct {
	reply chan Snapshot
}

func (snapshotQuery) sessionEvent() {}
