// internal/session/helpers_test.go
package session

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// mockNotifier collects notifications instead of writing them to sockets.
type mockNotifier struct {
	mu    sync.Mutex
	sent  map[models.ConnID][]models.Notification
	count int
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(map[models.ConnID][]models.Notification)}
}

func (mn *mockNotifier) Notify(to models.ConnID, n models.Notification) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.sent[to] = append(mn.sent[to], n)
	mn.count++
}

func (mn *mockNotifier) of(conn models.ConnID) []models.Notification {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	return append([]models.Notification(nil), mn.sent[conn]...)
}

func (mn *mockNotifier) ofType(conn models.ConnID, typ string) []models.Notification {
	var out []models.Notification
	for _, n := range mn.of(conn) {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (mn *mockNotifier) total() int {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	return mn.count
}

func (mn *mockNotifier) clear() {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.sent = make(map[models.ConnID][]models.Notification)
	mn.count = 0
}

// mockRecorder keeps every history event.
type mockRecorder struct {
	events []models.RoomEvent
}

func (mr *mockRecorder) Record(ev models.RoomEvent) {
	mr.events = append(mr.events, ev)
}

// lifecycle drops the activity heartbeats.
func (mr *mockRecorder) lifecycle() []models.RoomEvent {
	var out []models.RoomEvent
	for _, ev := range mr.events {
		if ev.Kind != models.EventRoomActivity {
			out = append(out, ev)
		}
	}
	return out
}

func (mr *mockRecorder) kinds() []string {
	out := make([]string, 0, len(mr.events))
	for _, ev := range mr.lifecycle() {
		out = append(out, ev.Kind)
	}
	return out
}

func (mr *mockRecorder) count(kind string) int {
	n := 0
	for _, ev := range mr.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// sequentialIDs hands out room-1, room-2, ...
func sequentialIDs() func() models.RoomID {
	n := 0
	return func() models.RoomID {
		n++
		return models.RoomID(fmt.Sprintf("room-%d", n))
	}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func setupStore(t *testing.T) (*Store, *mockNotifier, *mockRecorder) {
	t.Helper()
	mn := newMockNotifier()
	mr := &mockRecorder{}
	s := NewStore(Options{
		Notifier:  mn,
		Recorder:  mr,
		NewRoomID: sequentialIDs(),
		Logger:    quietLogger(),
	})
	return s, mn, mr
}

// pairRandom puts a and b in a random room and returns it.
func pairRandom(t *testing.T, s *Store, a, b models.ConnID) *models.Room {
	t.Helper()
	s.RequestRandomMatch(a, "red")
	s.RequestRandomMatch(b, "blue")
	room, ok := s.roomOf(a)
	require.True(t, ok, "expected %s to be in a room", a)
	require.True(t, room.Has(b))
	return room
}

// requireConsistent checks the cross-structure invariants of the store.
func requireConsistent(t *testing.T, s *Store) {
	t.Helper()
	for conn, id := range s.connRoom {
		room, ok := s.rooms[id]
		require.True(t, ok, "index points %s at missing room %s", conn, id)
		require.True(t, room.Has(conn))
		require.False(t, room.Departed[conn], "departed %s still indexed", conn)
		require.False(t, s.waiting.Contains(conn), "%s both waiting and playing", conn)
		_, parked := s.pendingName[conn]
		require.False(t, parked, "%s both parked and playing", conn)
	}
	for _, conn := range s.waiting.Items() {
		_, parked := s.pendingName[conn]
		require.False(t, parked, "%s both queued and parked", conn)
		_, hasAttr := s.attrs[conn]
		require.True(t, hasAttr, "queued %s has no attribute", conn)
	}
	for conn := range s.attrs {
		require.True(t, s.waiting.Contains(conn), "stale attribute for %s", conn)
	}
	for name, entries := range s.pending {
		require.NotEmpty(t, entries, "empty pending entry for %q", name)
		require.LessOrEqual(t, len(entries), namedCapacity)
		for _, e := range entries {
			require.Equal(t, name, s.pendingName[e.conn])
		}
	}
}
