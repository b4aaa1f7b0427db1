package handlers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(id models.ConnID, buffer int) *Connection {
	return &Connection{
		ID:      id,
		Cancel:  func() {},
		OutChan: make(chan models.Notification, buffer),
	}
}

func TestHubNotifyDelivers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(logrus.NewEntry(logger))
	a := newTestConn("a", 4)
	hub.Register(a)

	hub.Notify("a", models.Notification{Type: models.NoteAction, RoomID: "r"})
	require.Len(t, a.OutChan, 1)
	got := <-a.OutChan
	assert.Equal(t, models.NoteAction, got.Type)
	assert.Equal(t, models.RoomID("r"), got.RoomID)
}

func TestHubNotifyDropsWhenFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	hub := NewHub(logrus.NewEntry(logger))
	a := newTestConn("a", 1)
	hub.Register(a)

	hub.Notify("a", models.Notification{Type: models.NoteAction})
	hub.Notify("a", models.Notification{Type: models.NoteLoss})

	assert.Len(t, a.OutChan, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, models.NoteLoss, hook.LastEntry().Data["type"])
}

func TestHubUnregisterClosesAndForgets(t *testing.T) {
	hub := NewHub(nil)
	a := newTestConn("a", 1)
	hub.Register(a)
	hub.Register(newTestConn("b", 1))
	assert.Equal(t, 2, hub.Count())
	assert.ElementsMatch(t, []models.ConnID{"a", "b"}, hub.IDs())

	hub.Unregister("a")
	_, open := <-a.OutChan
	assert.False(t, open)
	assert.Equal(t, 1, hub.Count())

	// later notifications and repeated unregisters are harmless
	hub.Notify("a", models.Notification{Type: models.NoteAction})
	hub.Unregister("a")
	assert.Equal(t, []models.ConnID{"b"}, hub.IDs())
}

func TestHubDrainCancelsAndWaits(t *testing.T) {
	hub := NewHub(nil)
	var cancelled atomic.Int32
	for _, id := range []models.ConnID{"a", "b"} {
		id := id // per-iteration copy; go 1.21 shares loop variables across iterations
		conn := newTestConn(id, 1)
		conn.Cancel = func() {
			cancelled.Add(1)
			// the handler unregisters once its read loop has exited
			go hub.Unregister(id)
		}
		hub.Register(conn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, hub.Drain(ctx))
	assert.Equal(t, int32(2), cancelled.Load())
	assert.Equal(t, 0, hub.Count())
}

func TestHubDrainGivesUpAtDeadline(t *testing.T) {
	hub := NewHub(nil)
	hub.Register(newTestConn("stuck", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, hub.Drain(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, hub.Count())
}
