// internal/database/history.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/duel/internal/models"
)

// Match statuses stored in the matches table.
const (
	MatchInProgress = "in_progress"
	MatchCompleted  = "completed"
	MatchAbandoned  = "abandoned"
)

// InsertRoomEventTx appends ev to room_events. Replays of the same event id are ignored.
func InsertRoomEventTx(ctx context.Context, tx pgx.Tx, ev models.RoomEvent) error {
	players, err := json.Marshal(ev.Players)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO room_events (id, kind, room_id, generation, named, players, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = tx.Exec(ctx, q,
		ev.ID, ev.Kind, string(ev.RoomID), ev.Generation, ev.Named, players, ev.Reason,
		time.UnixMilli(ev.Timestamp),
	)
	return err
}

// UpsertMatchTx folds ev into the matches table. Room creation and rematches
// open a match row; a close finalises the open row for that room generation,
// including one already abandoned for inactivity.
func UpsertMatchTx(ctx context.Context, tx pgx.Tx, ev models.RoomEvent) error {
	if len(ev.Players) != 2 {
		return fmt.Errorf("room event %s has %d players", ev.ID, len(ev.Players))
	}
	a, b := ev.Players[0], ev.Players[1]
	at := time.UnixMilli(ev.Timestamp)

	switch ev.Kind {
	case models.EventRoomCreated, models.EventRematchStarted:
		q := `
			INSERT INTO matches (id, room_id, generation, named, player_a, player_b, status, start_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`
		_, err := tx.Exec(ctx, q,
			ev.ID, string(ev.RoomID), ev.Generation, ev.Named, string(a.ID), string(b.ID), MatchInProgress, at,
		)
		return err

	case models.EventRoomClosed:
		q := `
			UPDATE matches
			SET status = $3, end_reason = $4, score_a = $5, score_b = $6, end_time = $7
			WHERE id = (
				SELECT id FROM matches
				WHERE room_id = $1 AND generation = $2
				  AND (status = 'in_progress' OR (status = 'abandoned' AND end_reason = 'inactive'))
				ORDER BY start_time DESC
				LIMIT 1
			)
		`
		_, err := tx.Exec(ctx, q,
			string(ev.RoomID), ev.Generation, closedStatus(ev.Reason), ev.Reason, a.Score, b.Score, at,
		)
		return err

	default:
		return fmt.Errorf("unknown room event kind %q", ev.Kind)
	}
}

// closedStatus maps a close reason onto a match status. Only a room both
// players walked out of counts as abandoned.
func closedStatus(reason string) string {
	if reason == "disconnect" {
		return MatchAbandoned
	}
	return MatchCompleted
}

// MarkStaleMatches abandons matches of the given room generations that are still open.
// It returns the number of rows changed.
func MarkStaleMatches(ctx context.Context, pool *pgxpool.Pool, rooms []RoomGeneration) (int64, error) {
	var total int64
	err := BeginTxFunc(ctx, pool, func(tx pgx.Tx) error {
		q := `
			UPDATE matches
			SET status = 'abandoned', end_reason = 'inactive', end_time = NOW()
			WHERE room_id = $1 AND generation = $2 AND status = 'in_progress'
		`
		for _, r := range rooms {
			tag, err := tx.Exec(ctx, q, string(r.RoomID), r.Generation)
			if err != nil {
				return err
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark stale matches: %w", err)
	}
	return total, nil
}

// RoomGeneration identifies one match: a room id is reused across rematches.
type RoomGeneration struct {
	RoomID     models.RoomID
	Generation int
}
