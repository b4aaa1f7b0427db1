// internal/cache/redis.go

// Package cache pushes room history onto a Redis list for the historian to persist.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the Redis list room events are pushed to.
const DefaultQueueName = "duel_room_events"

const pushTimeout = 2 * time.Second

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher implements session.Recorder. Record never blocks: events go onto a
// buffered channel and a background goroutine pushes them to Redis.
type Publisher struct {
	rdb     *redis.Client
	queue   string
	records chan models.RoomEvent
	done    chan struct{}
	log     *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewPublisher starts the push loop. buffer bounds how many events may wait for Redis.
func NewPublisher(rdb *redis.Client, queue string, buffer int, logger *logrus.Entry) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if buffer < 1 {
		buffer = 1024
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Publisher{
		rdb:     rdb,
		queue:   queue,
		records: make(chan models.RoomEvent, buffer),
		done:    make(chan struct{}),
		log:     logger.WithField("queue", queue),
	}
	go p.run()
	return p
}

// Record queues ev for publishing, dropping it if the buffer is full or the
// publisher is closed.
func (p *Publisher) Record(ev models.RoomEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.records <- ev:
	default:
		p.dropped.Add(1)
		p.log.WithFields(logrus.Fields{
			"room":  ev.RoomID,
			"event": ev.Kind,
		}).Warn("history buffer full, dropped room event")
	}
}

// Dropped reports how many events never made it onto the buffer.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Publish serializes ev and pushes it to the queue synchronously.
func (p *Publisher) Publish(ctx context.Context, ev models.RoomEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal RoomEvent: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.records {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := p.Publish(ctx, ev)
		cancel()
		if err != nil {
			p.log.WithFields(logrus.Fields{
				"room":  ev.RoomID,
				"event": ev.Kind,
			}).WithError(err).Error("failed to publish room event")
		}
	}
}

// Close stops accepting events and waits until the buffered ones are pushed.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.records)
	}
	p.mu.Unlock()
	<-p.done
}
