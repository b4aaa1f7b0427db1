// internal/models/notification.go
package models

import "encoding/json"

// Outbound notification types.
const (
	NoteRoomAssigned         = "room-assigned"
	NoteOpponentDisconnected = "opponent-disconnected"
	NoteAction               = "action"
	NoteLoss                 = "loss"
	NoteBothLost             = "both-lost"
	NoteRematchRequest       = "rematch-request"
	NoteRematchStarted       = "rematch-started"
	NoteRoomFull             = "room-full"
	NoteError                = "error"
)

// Notification is a message pushed from the server to a single connection.
// Payload carries relayed client data verbatim.
type Notification struct {
	Type         string          `json:"type"`
	RoomID       RoomID          `json:"roomId,omitempty"`
	OpponentAttr string          `json:"opponentColor,omitempty"`
	Payload      json.RawMessage `json:"data,omitempty"`
	Message      string          `json:"message,omitempty"`
}
