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

	"github.com/tomtom215/vigil/internal/models"
)

// InsertAlert persists a keyword hit from the alert engine.
func (db *DB) InsertAlert(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.TriggeredAt.IsZero() {
		alert.TriggeredAt = time.Now()
	}

	query := `INSERT INTO alerts (
		id, session_id, handle, keyword, message, triggered_at
	) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	_, err := db.conn.ExecContext(ctx, query,
		alert.ID, alert.SessionID, alert.Handle, alert.Keyword,
		alert.Message, alert.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// ListAlerts retrieves recent alerts, newest first, optionally filtered by
// handle.
func (db *DB) ListAlerts(ctx context.Context, handle string, limit int) ([]models.Alert, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, session_id, handle, keyword, message, triggered_at
	FROM alerts WHERE 1=1`

	args := []any{}
	if handle != "" {
		query += " AND handle = ?"
		args = append(args, handle)
	}
	query += " ORDER BY triggered_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		var alert models.Alert
		err := rows.Scan(
			&alert.ID, &alert.SessionID, &alert.Handle, &alert.Keyword,
			&alert.Message, &alert.TriggeredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}
