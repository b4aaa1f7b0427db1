// internal/session/coordinator.go
package session

import (
	"encoding/json"

	"github.com/jason-s-yu/duel/internal/models"
)

// RecordAction scores one point for conn and relays payload to the opponent.
func (s *Store) RecordAction(conn models.ConnID, payload json.RawMessage) {
	room, ok := s.roomOf(conn)
	if !ok {
		s.log.WithField("conn", conn).Debug("action without a room ignored")
		return
	}
	opp, _ := room.Opponent(conn)

	room.Score[conn]++
	s.recorder.Record(models.NewRoomEvent(models.EventRoomActivity, room, ""))
	s.notifyPlayer(room, opp, models.Notification{
		Type:    models.NoteAction,
		RoomID:  room.ID,
		Payload: payload,
	})
}

// ReportLoss marks conn lost and relays payload to the opponent. When both
// players have lost the room is told once. Repeated reports are ignored.
func (s *Store) ReportLoss(conn models.ConnID, payload json.RawMessage) {
	room, ok := s.roomOf(conn)
	if !ok {
		s.log.WithField("conn", conn).Debug("loss without a room ignored")
		return
	}
	if room.Lost(conn) {
		return
	}
	opp, _ := room.Opponent(conn)

	room.Status[conn] = models.StatusLost
	s.recorder.Record(models.NewRoomEvent(models.EventRoomActivity, room, ""))
	s.notifyPlayer(room, opp, models.Notification{
		Type:    models.NoteLoss,
		RoomID:  room.ID,
		Payload: payload,
	})

	if !room.Lost(opp) {
		return
	}
	s.broadcast(room, models.Notification{Type: models.NoteBothLost, RoomID: room.ID})

	// nobody is left to negotiate a rematch with
	if room.Departed[opp] {
		s.closeRoom(room, "both lost")
	}
}

// RequestRematch runs the two-sided rematch handshake. The first request from
// a lost player marks the room; the matching request from the other lost
// player replaces the room with a fresh one under the same id.
func (s *Store) RequestRematch(conn models.ConnID) {
	log := s.log.WithField("conn", conn)
	room, ok := s.roomOf(conn)
	if !ok || !room.Lost(conn) {
		log.Debug("rematch request ignored")
		return
	}
	opp, _ := room.Opponent(conn)
	if !room.Lost(opp) || room.Departed[opp] || room.RematchInitiator == conn {
		log.Debug("rematch request ignored")
		return
	}

	s.notifyPlayer(room, opp, models.Notification{Type: models.NoteRematchRequest, RoomID: room.ID})

	if !room.RematchRequested {
		room.RematchRequested = true
		room.RematchInitiator = conn
		return
	}
	if room.RematchInitiator == opp {
		s.startRematch(room)
	}
}

func (s *Store) startRematch(old *models.Room) {
	fresh := models.NewRoom(old.ID, old.Players[0], old.Players[1])
	fresh.Named = old.Named
	fresh.Generation = old.Generation + 1
	s.rooms[fresh.ID] = fresh

	s.recorder.Record(models.NewRoomEvent(models.EventRoomClosed, old, "rematch"))
	s.recorder.Record(models.NewRoomEvent(models.EventRematchStarted, fresh, ""))
	s.log.WithField("room", fresh.ID).Info("rematch started")

	s.broadcast(fresh, models.Notification{Type: models.NoteRematchStarted, RoomID: fresh.ID})
}

// FindNewOpponent abandons a concluded room and puts conn back in the random
// queue. It is ignored while the current room is still being played.
func (s *Store) FindNewOpponent(conn models.ConnID, attr string) {
	if room, ok := s.roomOf(conn); ok {
		if !room.BothLost() {
			s.log.WithField("conn", conn).Debug("find new opponent ignored, room still in play")
			return
		}
		opp, _ := room.Opponent(conn)
		s.notifyPlayer(room, opp, models.Notification{Type: models.NoteOpponentDisconnected, RoomID: room.ID})
		s.closeRoom(room, "abandoned")
	}
	s.RequestRandomMatch(conn, attr)
}
