// internal/session/reconcile.go
package session

import "github.com/jason-s-yu/duel/internal/models"

// Disconnect removes every trace of conn. If it was playing, the opponent is
// told and conn counts as lost; the room goes away once both players are lost.
// Safe to call for connections that never joined anything.
func (s *Store) Disconnect(conn models.ConnID) {
	if room, ok := s.roomOf(conn); ok {
		reason := "disconnect"
		if room.BothLost() {
			// the game was already over; leaving only ends the rematch window
			reason = "both lost"
		}
		opp, _ := room.Opponent(conn)
		s.notifyPlayer(room, opp, models.Notification{Type: models.NoteOpponentDisconnected, RoomID: room.ID})

		room.Status[conn] = models.StatusLost
		room.Departed[conn] = true
		delete(s.connRoom, conn)

		if room.BothLost() {
			s.closeRoom(room, reason)
		}
	}

	s.waiting.Remove(conn)
	s.removePending(conn)
	delete(s.attrs, conn)
	s.log.WithField("conn", conn).Debug("connection reconciled")
}
