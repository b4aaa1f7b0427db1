// internal/session/dispatcher.go
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Submit after the dispatch loop has exited.
var ErrStopped = errors.New("session dispatcher stopped")

// Dispatcher serialises every event onto one goroutine that owns the Store,
// so each handler runs to completion before the next one starts.
type Dispatcher struct {
	store  *Store
	events chan Event
	done   chan struct{}
	log    *logrus.Entry
}

// NewDispatcher wraps store. buffer sizes the inbound event channel.
func NewDispatcher(store *Store, buffer int, logger *logrus.Entry) *Dispatcher {
	if buffer < 1 {
		buffer = 256
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		store:  store,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		log:    logger,
	}
}

// Run processes events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	d.log.Info("session dispatcher started")
	for {
		select {
		case ev := <-d.events:
			d.handle(ev)
		case <-ctx.Done():
			d.log.Info("session dispatcher stopped")
			return
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Submit queues ev, blocking until there is room, ctx is done or the loop has stopped.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	select {
	case d.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrStopped
	}
}

// Snapshot returns a consistent copy of the store taken between two events.
func (d *Dispatcher) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := d.Submit(ctx, snapshotQuery{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-d.done:
		return Snapshot{}, ErrStopped
	}
}

func (d *Dispatcher) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"event": fmt.Sprintf("%T", ev),
				"panic": r,
			}).Error("event handler panicked")
		}
	}()

	s := d.store
	switch e := ev.(type) {
	case JoinRandom:
		s.RequestRandomMatch(e.Conn, e.Attr)
	case JoinNamed:
		s.RequestNamedMatch(e.Conn, e.RoomName, e.Attr)
	case Action:
		s.RecordAction(e.Conn, e.Payload)
	case Loss:
		s.ReportLoss(e.Conn, e.Payload)
	case RematchRequest:
		s.RequestRematch(e.Conn)
	case FindNewOpponent:
		s.FindNewOpponent(e.Conn, e.Attr)
	case Disconnect:
		s.Disconnect(e.Conn)
	case snapshotQuery:
		e.reply <- s.Snapshot()
	default:
		d.log.Warnf("unknown session event %T", ev)
	}
}
