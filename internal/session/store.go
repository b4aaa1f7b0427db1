// internal/session/store.go

// Package session holds the matchmaking and room lifecycle state of the server.
// A Store is owned by a single Dispatcher goroutine; nothing in it is locked.
package session

import (
	"sort"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/jason-s-yu/duel/internal/queue"
	"github.com/sirupsen/logrus"
)

const (
	// PairThreshold is how many waiting connections form a room.
	PairThreshold = 2

	// namedCapacity is how many connections may park under one room name.
	namedCapacity = PairThreshold - 1

	maxRoomIDAttempts = 16
)

// Notifier delivers a notification to one connection. Implementations must not block.
type Notifier interface {
	Notify(to models.ConnID, n models.Notification)
}

// Recorder receives room history events. Implementations must not block.
type Recorder interface {
	Record(ev models.RoomEvent)
}

type nopRecorder struct{}

func (nopRecorder) Record(models.RoomEvent) {}

// pendingEntry is a connection parked under a room name, waiting for a partner.
type pendingEntry struct {
	conn models.ConnID
	attr string
}

// Options configures a Store. Notifier is required.
type Options struct {
	Notifier  Notifier
	Recorder  Recorder
	NewRoomID func() models.RoomID
	Logger    *logrus.Entry
}

// Store is the single authority over waiting connections and active rooms.
type Store struct {
	waiting     *queue.Dedup[models.ConnID]
	pending     map[string][]pendingEntry
	pendingName map[models.ConnID]string

	rooms    map[models.RoomID]*models.Room
	connRoom map[models.ConnID]models.RoomID

	// attrs holds the attribute of connections in the random queue until they are paired.
	attrs map[models.ConnID]string

	notifier  Notifier
	recorder  Recorder
	newRoomID func() models.RoomID
	log       *logrus.Entry
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	s := &Store{
		waiting:     queue.NewDedup[models.ConnID](),
		pending:     make(map[string][]pendingEntry),
		pendingName: make(map[models.ConnID]string),
		rooms:       make(map[models.RoomID]*models.Room),
		connRoom:    make(map[models.ConnID]models.RoomID),
		attrs:       make(map[models.ConnID]string),
		notifier:    opts.Notifier,
		recorder:    opts.Recorder,
		newRoomID:   opts.NewRoomID,
		log:         opts.Logger,
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.newRoomID == nil {
		s.newRoomID = NewRoomID
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return s
}

// roomOf returns the room conn currently plays in.
func (s *Store) roomOf(conn models.ConnID) (*models.Room, bool) {
	id, ok := s.connRoom[conn]
	if !ok {
		return nil, false
	}
	room, ok := s.rooms[id]
	return room, ok
}

func (s *Store) inRoom(conn models.ConnID) bool {
	_, ok := s.roomOf(conn)
	return ok
}

// busy reports whether conn is already waiting somewhere or playing.
func (s *Store) busy(conn models.ConnID) bool {
	if s.waiting.Contains(conn) || s.inRoom(conn) {
		return true
	}
	_, parked := s.pendingName[conn]
	return parked
}

// uniqueRoomID draws ids until one is neither an active room nor a name
// someone is parked under.
func (s *Store) uniqueRoomID() models.RoomID {
	for i := 0; i < maxRoomIDAttempts; i++ {
		id := s.newRoomID()
		_, taken := s.rooms[id]
		_, parked := s.pending[string(id)]
		if !taken && !parked {
			return id
		}
		s.log.WithField("room", id).Warn("room id collision, retrying")
	}
	return longRoomID()
}

func (s *Store) register(room *models.Room) {
	s.rooms[room.ID] = room
	for _, p := range room.Players {
		s.connRoom[p] = room.ID
	}
	s.recorder.Record(models.NewRoomEvent(models.EventRoomCreated, room, ""))
	s.log.WithFields(logrus.Fields{
		"room":    room.ID,
		"players": room.Players,
		"named":   room.Named,
	}).Info("room created")
}

// closeRoom removes room from the registry and detaches both players from it.
func (s *Store) closeRoom(room *models.Room, reason string) {
	if current, ok := s.rooms[room.ID]; ok && current == room {
		delete(s.rooms, room.ID)
	}
	for _, p := range room.Players {
		if s.connRoom[p] == room.ID {
			delete(s.connRoom, p)
		}
	}
	s.recorder.Record(models.NewRoomEvent(models.EventRoomClosed, room, reason))
	s.log.WithFields(logrus.Fields{
		"room":   room.ID,
		"reason": reason,
	}).Info("room destroyed")
}

// notifyPlayer sends n to a player unless that player has already left.
func (s *Store) notifyPlayer(room *models.Room, to models.ConnID, n models.Notification) {
	if room.Departed[to] {
		return
	}
	s.notifier.Notify(to, n)
}

func (s *Store) broadcast(room *models.Room, n models.Notification) {
	for _, p := range room.Players {
		s.notifyPlayer(room, p, n)
	}
}

// RoomView is a read-only copy of a room for the stats endpoint.
type RoomView struct {
	ID               models.RoomID   `json:"id"`
	Named            bool            `json:"named"`
	Generation       int             `json:"generation"`
	Players          []models.Player `json:"players"`
	RematchRequested bool            `json:"rematchRequested"`
}

// Snapshot summarises the store at one point in time.
type Snapshot struct {
	Waiting int        `json:"waiting"`
	Pending int        `json:"pending"`
	Rooms   []RoomView `json:"rooms"`
}

// Snapshot copies the current state; rooms are ordered by id.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Waiting: s.waiting.Len(),
		Pending: len(s.pendingName),
		Rooms:   make([]RoomView, 0, len(s.rooms)),
	}
	for _, room := range s.rooms {
		snap.Rooms = append(snap.Rooms, RoomView{
			ID:               room.ID,
			Named:            room.Named,
			Generation:       room.Generation,
			Players:          room.Seats(),
			RematchRequested: room.RematchRequested,
		})
	}
	sort.Slice(snap.Rooms, func(i, j int) bool { return snap.Rooms[i].ID < snap.Rooms[j].ID })
	return snap
}
