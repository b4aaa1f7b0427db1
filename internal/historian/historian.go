// internal/historian/historian.go

// Package historian pops room events off the Redis history queue and persists
// them to Postgres in batches. Matches left open for too long are abandoned.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/duel/internal/database"
	"github.com/jason-s-yu/duel/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const popTimeout = 3 * time.Second

// Sink is where flushed batches end up.
type Sink interface {
	WriteBatch(ctx context.Context, events []models.RoomEvent) error
	MarkStale(ctx context.Context, rooms []database.RoomGeneration) (int64, error)
}

// PostgresSink writes batches with the database package in one transaction.
type PostgresSink struct {
	Pool *pgxpool.Pool
}

// WriteBatch implements Sink.
func (s PostgresSink) WriteBatch(ctx context.Context, events []models.RoomEvent) error {
	return database.BeginTxFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		for _, ev := range events {
			if err := database.InsertRoomEventTx(ctx, tx, ev); err != nil {
				return fmt.Errorf("insert room event %s: %w", ev.ID, err)
			}
			if err := database.UpsertMatchTx(ctx, tx, ev); err != nil {
				return fmt.Errorf("upsert match %s/%d: %w", ev.RoomID, ev.Generation, err)
			}
		}
		return nil
	})
}

// MarkStale implements Sink.
func (s PostgresSink) MarkStale(ctx context.Context, rooms []database.RoomGeneration) (int64, error) {
	return database.MarkStaleMatches(ctx, s.Pool, rooms)
}

// Options tunes a Service.
type Options struct {
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration
	SweepInterval time.Duration
	Logger        *logrus.Entry
}

// Service batches room events from Redis into a Sink.
type Service struct {
	rdb  *redis.Client
	sink Sink
	opts Options
	log  *logrus.Entry

	mu           sync.Mutex
	batch        []models.RoomEvent
	lastActivity map[database.RoomGeneration]time.Time
}

// New builds a Service. Zero options fall back to defaults.
func New(rdb *redis.Client, sink Sink, opts Options) *Service {
	if opts.Queue == "" {
		opts.Queue = "duel_room_events"
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		rdb:          rdb,
		sink:         sink,
		opts:         opts,
		log:          opts.Logger.WithField("queue", opts.Queue),
		batch:        make([]models.RoomEvent, 0, opts.BatchSize),
		lastActivity: make(map[database.RoomGeneration]time.Time),
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("historian started")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.readLoop(ctx) }()
	go func() { defer wg.Done(); s.flushLoop(ctx) }()
	go func() { defer wg.Done(); s.inactivityLoop(ctx) }()
	wg.Wait()

	// the run context is gone; give the last flush its own deadline
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian shutting down")
}

// readLoop uses BLPop with a short timeout so cancellation is noticed.
func (s *Service) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := s.rdb.BLPop(ctx, popTimeout, s.opts.Queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.log.WithError(err).Error("BLPop failed")
			// back off so a dead Redis does not spin the loop
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if full := s.ingest(res[1], time.Now()); full {
			s.flush(ctx)
		}
	}
}

// ingest decodes one payload into the batch and reports whether the batch is full.
func (s *Service) ingest(payload string, now time.Time) bool {
	var ev models.RoomEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.log.WithError(err).Warn("invalid room event record")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := database.RoomGeneration{RoomID: ev.RoomID, Generation: ev.Generation}
	switch ev.Kind {
	case models.EventRoomCreated, models.EventRematchStarted:
		s.lastActivity[key] = now
	case models.EventRoomActivity:
		// heartbeats only move the inactivity clock
		s.lastActivity[key] = now
		return false
	case models.EventRoomClosed:
		delete(s.lastActivity, key)
	}

	s.batch = append(s.batch, ev)
	return len(s.batch) >= s.opts.BatchSize
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// flush writes the current batch in one transaction. A failed batch is put
// back in front of newer events so nothing is lost while Postgres is down.
func (s *Service) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return
	}
	pending := s.batch
	s.batch = make([]models.RoomEvent, 0, s.opts.BatchSize)
	s.mu.Unlock()

	if err := s.sink.WriteBatch(ctx, pending); err != nil {
		s.log.WithError(err).WithField("count", len(pending)).Error("failed to flush room events")
		s.mu.Lock()
		s.batch = append(pending, s.batch...)
		s.mu.Unlock()
		return
	}
	s.log.WithField("count", len(pending)).Debug("flushed room events")
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(ctx, now)
		}
	}
}

// sweep abandons matches whose last action, loss or lifecycle event is older
// than the inactivity threshold.
func (s *Service) sweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var stale []database.RoomGeneration
	for key, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			stale = append(stale, key)
		}
	}
	s.mu.Unlock()
	if len(stale) == 0 {
		return
	}

	// open rows must exist before they can be abandoned
	s.flush(ctx)

	n, err := s.sink.MarkStale(ctx, stale)
	if err != nil {
		s.log.WithError(err).Error("failed to abandon inactive matches")
		return
	}

	s.mu.Lock()
	for _, key := range stale {
		delete(s.lastActivity, key)
	}
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"rooms": len(stale), "rows": n}).Info("abandoned inactive matches")
}
