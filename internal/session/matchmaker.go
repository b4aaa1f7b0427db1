// internal/session/matchmaker.go
package session

import (
	"strings"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/sirupsen/logrus"
)

// RequestRandomMatch queues conn for a random opponent and forms a room once
// PairThreshold connections are waiting. Requests from a connection that is
// already waiting or playing are ignored.
func (s *Store) RequestRandomMatch(conn models.ConnID, attr string) {
	log := s.log.WithField("conn", conn)
	if s.busy(conn) {
		log.Debug("join request ignored, already in the queue or a room")
		return
	}

	s.attrs[conn] = attr
	s.waiting.Enqueue(conn)
	log.Debug("queued for random match")

	if s.waiting.Len() >= PairThreshold {
		s.pairFromQueue()
	}
}

func (s *Store) pairFromQueue() {
	p1, _ := s.waiting.DequeueFront()
	p2, _ := s.waiting.DequeueFront()

	room := models.NewRoom(s.uniqueRoomID(), p1, p2)
	s.register(room)

	attr1, attr2 := s.attrs[p1], s.attrs[p2]
	delete(s.attrs, p1)
	delete(s.attrs, p2)

	s.notifier.Notify(p1, models.Notification{
		Type:         models.NoteRoomAssigned,
		RoomID:       room.ID,
		OpponentAttr: attr2,
	})
	s.notifier.Notify(p2, models.Notification{
		Type:         models.NoteRoomAssigned,
		RoomID:       room.ID,
		OpponentAttr: attr1,
	})
}

// RequestNamedMatch parks conn under name, or pairs it with the connection
// already parked there. The room takes the name as its id. A join against a
// name that is full or already used by an active room is answered with room-full.
func (s *Store) RequestNamedMatch(conn models.ConnID, name, attr string) {
	name = strings.TrimSpace(name)
	log := s.log.WithFields(logrus.Fields{"conn": conn, "name": name})
	if name == "" {
		log.Debug("named join without a room name ignored")
		return
	}
	if s.busy(conn) {
		log.Debug("named join ignored, already in the queue or a room")
		return
	}
	if _, active := s.rooms[models.RoomID(name)]; active {
		s.rejectFull(conn, name)
		return
	}

	entries := s.pending[name]
	switch {
	case len(entries) < namedCapacity:
		s.pending[name] = append(entries, pendingEntry{conn: conn, attr: attr})
		s.pendingName[conn] = name
		log.Debug("parked in named room")

	case len(entries) == namedCapacity:
		host := entries[0]
		delete(s.pending, name)
		delete(s.pendingName, host.conn)

		room := models.NewRoom(models.RoomID(name), conn, host.conn)
		room.Named = true
		s.register(room)

		s.notifier.Notify(conn, models.Notification{
			Type:         models.NoteRoomAssigned,
			RoomID:       room.ID,
			OpponentAttr: host.attr,
		})
		s.notifier.Notify(host.conn, models.Notification{
			Type:         models.NoteRoomAssigned,
			RoomID:       room.ID,
			OpponentAttr: attr,
		})

	default:
		s.rejectFull(conn, name)
	}
}

func (s *Store) rejectFull(conn models.ConnID, name string) {
	s.log.WithFields(logrus.Fields{"conn": conn, "name": name}).Info("named room full")
	s.notifier.Notify(conn, models.Notification{
		Type:    models.NoteRoomFull,
		RoomID:  models.RoomID(name),
		Message: "room is full",
	})
}

// removePending drops conn from whatever named room it is parked in.
func (s *Store) removePending(conn models.ConnID) {
	name, ok := s.pendingName[conn]
	if !ok {
		return
	}
	delete(s.pendingName, conn)

	kept := s.pending[name][:0]
	for _, e := range s.pending[name] {
		if e.conn != conn {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(s.pending, name)
		return
	}
	s.pending[name] = kept
}
