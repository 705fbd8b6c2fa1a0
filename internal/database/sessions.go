// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
)

const sessionColumns = `id, handle, room_id, status, started_at, ended_at,
	total_likes, peak_viewers, total_gifts, total_messages, total_joins,
	total_follows, total_shares, total_reposts, total_leaves,
	total_subscribes, total_emotes`

// InsertLiveSession creates a session row for a newly confirmed broadcast.
func (db *DB) InsertLiveSession(ctx context.Context, session *models.LiveSession) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusLive
	}

	query := `INSERT INTO live_sessions (
		id, handle, room_id, status, started_at, ended_at,
		total_likes, peak_viewers, total_gifts, total_messages, total_joins,
		total_follows, total_shares, total_reposts, total_leaves,
		total_subscribes, total_emotes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	c := session.Counters
	_, err := db.conn.ExecContext(ctx, query,
		session.ID, session.Handle, session.RoomID, session.Status,
		session.StartedAt, session.EndedAt,
		c.TotalLikes, c.PeakViewers, c.TotalGifts, c.TotalMessages, c.TotalJoins,
		c.TotalFollows, c.TotalShares, c.TotalReposts, c.TotalLeaves,
		c.TotalSubscribes, c.TotalEmotes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert live session: %w", err)
	}

	return nil
}

// GetLiveSession retrieves a session by ID.
func (db *DB) GetLiveSession(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE id = ?`

	row := db.conn.QueryRowContext(ctx, query, id)
	return scanLiveSession(row)
}

// SessionExists reports whether a session row exists. The event flush path
// calls this before every batch insert so events buffered for a deleted
// session are discarded instead of failing the batch mid-transaction.
func (db *DB) SessionExists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM live_sessions WHERE id = ?)`
	if err := db.conn.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return exists, nil
}

// UpdateSessionCounters overwrites the counter columns with the caller's
// aggregate state. The session manager owns the authoritative in-memory
// counters; this write is a full replacement, not an increment, so replaying
// a flush after a partial failure converges instead of double counting.
func (db *DB) UpdateSessionCounters(ctx context.Context, id uuid.UUID, counters models.SessionCounters) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE live_sessions SET
		total_likes = ?, peak_viewers = ?, total_gifts = ?, total_messages = ?,
		total_joins = ?, total_follows = ?, total_shares = ?, total_reposts = ?,
		total_leaves = ?, total_subscribes = ?, total_emotes = ?
	WHERE id = ?`

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, query,
		counters.TotalLikes, counters.PeakViewers, counters.TotalGifts, counters.TotalMessages,
		counters.TotalJoins, counters.TotalFollows, counters.TotalShares, counters.TotalReposts,
		counters.TotalLeaves, counters.TotalSubscribes, counters.TotalEmotes,
		id,
	)
	metrics.RecordDBQuery("UPDATE", "live_sessions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update session counters: %w", err)
	}

	return requireRowAffected(result, ErrSessionNotFound)
}

// EndSession marks a session terminated with the given status and end time.
// Only the first call takes effect: a session whose ended_at is already set
// keeps its original end time and status, making stop paths idempotent.
func (db *DB) EndSession(ctx context.Context, id uuid.UUID, status string, endedAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE live_sessions SET status = ?, ended_at = ?
	WHERE id = ? AND ended_at IS NULL`

	result, err := db.conn.ExecContext(ctx, query, status, endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish "already ended" (fine) from "never existed" (error).
		exists, err := db.SessionExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrSessionNotFound
		}
	}

	return nil
}

// ListSessionsByStatus retrieves sessions in a given status, oldest first.
// Reconciliation uses this to find rows still marked live after a restart.
func (db *DB) ListSessionsByStatus(ctx context.Context, status string) ([]models.LiveSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + sessionColumns + ` FROM live_sessions
	WHERE status = ? ORDER BY started_at`

	rows, err := db.conn.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by status: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListSessionsByHandle retrieves an account's sessions, newest first.
func (db *DB) ListSessionsByHandle(ctx context.Context, handle string, limit int) ([]models.LiveSession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + sessionColumns + ` FROM live_sessions
	WHERE handle = ? ORDER BY started_at DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by handle: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]models.LiveSession, error) {
	sessions := make([]models.LiveSession, 0)
	for rows.Next() {
		session, err := scanLiveSessionRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// scanLiveSession scans a single session row.
func scanLiveSession(row *sql.Row) (*models.LiveSession, error) {
	var session models.LiveSession
	var roomID sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&session.ID, &session.Handle, &roomID, &session.Status,
		&session.StartedAt, &endedAt,
		&session.Counters.TotalLikes, &session.Counters.PeakViewers,
		&session.Counters.TotalGifts, &session.Counters.TotalMessages,
		&session.Counters.TotalJoins, &session.Counters.TotalFollows,
		&session.Counters.TotalShares, &session.Counters.TotalReposts,
		&session.Counters.TotalLeaves, &session.Counters.TotalSubscribes,
		&session.Counters.TotalEmotes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if roomID.Valid {
		session.RoomID = roomID.String
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}

	return &session, nil
}

// scanLiveSessionRows scans a session from a result set.
func scanLiveSessionRows(rows *sql.Rows) (*models.LiveSession, error) {
	var session models.LiveSession
	var roomID sql.NullString
	var endedAt sql.NullTime

	err := rows.Scan(
		&session.ID, &session.Handle, &roomID, &session.Status,
		&session.StartedAt, &endedAt,
		&session.Counters.TotalLikes, &session.Counters.PeakViewers,
		&session.Counters.TotalGifts, &session.Counters.TotalMessages,
		&session.Counters.TotalJoins, &session.Counters.TotalFollows,
		&session.Counters.TotalShares, &session.Counters.TotalReposts,
		&session.Counters.TotalLeaves, &session.Counters.TotalSubscribes,
		&session.Counters.TotalEmotes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if roomID.Valid {
		session.RoomID = roomID.String
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}

	return &session, nil
}
