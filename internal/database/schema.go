// internal/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS room_events (
		id          UUID PRIMARY KEY,
		kind        TEXT NOT NULL,
		room_id     TEXT NOT NULL,
		generation  INTEGER NOT NULL,
		named       BOOLEAN NOT NULL DEFAULT FALSE,
		players     JSONB NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room_id, generation)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id         UUID PRIMARY KEY,
		room_id    TEXT NOT NULL,
		generation INTEGER NOT NULL,
		named      BOOLEAN NOT NULL DEFAULT FALSE,
		player_a   TEXT NOT NULL,
		player_b   TEXT NOT NULL,
		score_a    INTEGER NOT NULL DEFAULT 0,
		score_b    INTEGER NOT NULL DEFAULT 0,
		status     TEXT NOT NULL,
		end_reason TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS matches_open_idx ON matches (room_id, generation) WHERE status = 'in_progress'`,
}

// EnsureSchema creates the history tables if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
