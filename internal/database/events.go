// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
)

// InsertLiveEvent stores a single event. Inserts are idempotent by ID:
// a duplicate is silently dropped via ON CONFLICT DO NOTHING. The session
// guard runs first so events for a vanished session fail fast with
// ErrSessionNotFound instead of leaving orphan rows.
func (db *DB) InsertLiveEvent(ctx context.Context, event *models.LiveEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	exists, err := db.SessionExists(ctx, event.SessionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	query := `INSERT INTO live_events (
		id, session_id, event_type, occurred_at, user_json, payload_json, location
	) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	_, err = db.conn.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Type, event.OccurredAt,
		rawJSONParam(event.User), rawJSONParam(event.Payload), event.Location,
	)
	if err != nil {
		return fmt.Errorf("failed to insert live event: %w", err)
	}

	return nil
}

// InsertLiveEventBatch stores a flush of buffered events for one session in
// a single transaction.
//
// The session-existence guard runs before the transaction: when the session
// row is gone the whole batch returns ErrSessionNotFound and the caller
// drops the buffer, never retries. Duplicate IDs inside the batch or against
// existing rows are absorbed by ON CONFLICT DO NOTHING and reported in the
// duplicates count.
func (db *DB) InsertLiveEventBatch(ctx context.Context, sessionID uuid.UUID, events []models.LiveEvent) (inserted int, duplicates int, err error) {
	if len(events) == 0 {
		return 0, 0, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("INSERT", "live_events", time.Since(start), err)
	}()

	exists, err := db.SessionExists(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	if !exists {
		return 0, 0, ErrSessionNotFound
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure transaction is finalized
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("Transaction rollback failed")
			}
		}
	}()

	query := `INSERT INTO live_events (
		id, session_id, event_type, occurred_at, user_json, payload_json, location
	) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close prepared statement")
		}
	}()

	now := time.Now()
	for i := range events {
		event := &events[i]
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		if event.SessionID == uuid.Nil {
			event.SessionID = sessionID
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = now
		}

		result, execErr := stmt.ExecContext(ctx,
			event.ID, event.SessionID, event.Type, event.OccurredAt,
			rawJSONParam(event.User), rawJSONParam(event.Payload), event.Location,
		)
		if execErr != nil {
			err = fmt.Errorf("failed to insert event %d (type=%s): %w", i, event.Type, execErr)
			return 0, 0, err
		}

		rowsAffected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			err = fmt.Errorf("failed to get rows affected for event %d: %w", i, rowsErr)
			return 0, 0, err
		}

		if rowsAffected > 0 {
			inserted++
		} else {
			duplicates++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Debug().
		Str("session_id", sessionID.String()).
		Int("inserted", inserted).
		Int("duplicates", duplicates).
		Msg("Event batch flushed")

	return inserted, duplicates, nil
}

// ListSessionEvents retrieves a session's events in arrival order.
func (db *DB) ListSessionEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.LiveEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT id, session_id, event_type, occurred_at, user_json, payload_json, location
	FROM live_events WHERE session_id = ? ORDER BY occurred_at, id LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer rows.Close()

	events := make([]models.LiveEvent, 0)
	for rows.Next() {
		var event models.LiveEvent
		var userJSON, payloadJSON, location sql.NullString

		err := rows.Scan(
			&event.ID, &event.SessionID, &event.Type, &event.OccurredAt,
			&userJSON, &payloadJSON, &location,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan live event: %w", err)
		}

		if userJSON.Valid {
			event.User = json.RawMessage(userJSON.String)
		}
		if payloadJSON.Valid {
			event.Payload = json.RawMessage(payloadJSON.String)
		}
		if location.Valid {
			loc := location.String
			event.Location = &loc
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating live events: %w", err)
	}

	return events, nil
}

// CountSessionEvents returns the number of stored events for a session.
func (db *DB) CountSessionEvents(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	query := `SELECT COUNT(*) FROM live_events WHERE session_id = ?`
	if err := db.conn.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count session events: %w", err)
	}
	return count, nil
}

// rawJSONParam converts a JSON blob into a bind parameter, mapping an empty
// blob to NULL.
func rawJSONParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
