// internal/session/roomid.go
package session

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/duel/internal/models"
)

const (
	roomIDLength   = 8
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// bytes at or above this would favour the first characters of the alphabet
	maxUnbiasedByte = 256 - 256%len(roomIDAlphabet)
)

// NewRoomID returns a short lowercase alphanumeric token drawn from uuid v4 randomness.
func NewRoomID() models.RoomID {
	b := make([]byte, 0, roomIDLength)
	for len(b) < roomIDLength {
		u := uuid.New()
		for i, x := range u {
			// bytes 6 and 8 carry the version and variant bits
			if i == 6 || i == 8 || int(x) >= maxUnbiasedByte {
				continue
			}
			b = append(b, roomIDAlphabet[int(x)%len(roomIDAlphabet)])
			if len(b) == roomIDLength {
				break
			}
		}
	}
	return models.RoomID(b)
}

// longRoomID is the fallback when short ids keep colliding.
func longRoomID() models.RoomID {
	return models.RoomID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
