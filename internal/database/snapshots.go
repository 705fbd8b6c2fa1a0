// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
)

// InsertSnapshot appends a point-in-time copy of session counters.
// Snapshots for a missing session fail with ErrSessionNotFound; the
// snapshot loop treats that as a signal the session was torn down.
func (db *DB) InsertSnapshot(ctx context.Context, snapshot *models.StatsSnapshot) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	exists, err := db.SessionExists(ctx, snapshot.SessionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}

	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = time.Now()
	}

	query := `INSERT INTO stats_snapshots (
		id, session_id, taken_at,
		total_likes, peak_viewers, total_gifts, total_messages, total_joins,
		total_follows, total_shares, total_reposts, total_leaves,
		total_subscribes, total_emotes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	c := snapshot.Counters
	_, err = db.conn.ExecContext(ctx, query,
		snapshot.ID, snapshot.SessionID, snapshot.TakenAt,
		c.TotalLikes, c.PeakViewers, c.TotalGifts, c.TotalMessages, c.TotalJoins,
		c.TotalFollows, c.TotalShares, c.TotalReposts, c.TotalLeaves,
		c.TotalSubscribes, c.TotalEmotes,
	)
	metrics.RecordDBQuery("INSERT", "stats_snapshots", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// ListSnapshots retrieves a session's snapshots in chronological order.
func (db *DB) ListSnapshots(ctx context.Context, sessionID uuid.UUID) ([]models.StatsSnapshot, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, session_id, taken_at,
		total_likes, peak_viewers, total_gifts, total_messages, total_joins,
		total_follows, total_shares, total_reposts, total_leaves,
		total_subscribes, total_emotes
	FROM stats_snapshots WHERE session_id = ? ORDER BY taken_at, id`

	rows, err := db.conn.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]models.StatsSnapshot, 0)
	for rows.Next() {
		var s models.StatsSnapshot
		err := rows.Scan(
			&s.ID, &s.SessionID, &s.TakenAt,
			&s.Counters.TotalLikes, &s.Counters.PeakViewers,
			&s.Counters.TotalGifts, &s.Counters.TotalMessages,
			&s.Counters.TotalJoins, &s.Counters.TotalFollows,
			&s.Counters.TotalShares, &s.Counters.TotalReposts,
			&s.Counters.TotalLeaves, &s.Counters.TotalSubscribes,
			&s.Counters.TotalEmotes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
