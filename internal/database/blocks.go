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

	"github.com/tomtom215/vigil/internal/models"
)

// UpsertBlockRecord persists block state for a handle. The block tracker
// computes count and cooldown; this method only stores them. On conflict the
// original first_blocked_at is preserved and everything else is overwritten.
func (db *DB) UpsertBlockRecord(ctx context.Context, record *models.BlockRecord) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now()
	if record.FirstBlockedAt.IsZero() {
		record.FirstBlockedAt = now
	}
	if record.LastBlockedAt.IsZero() {
		record.LastBlockedAt = now
	}

	query := `INSERT INTO block_records (
		handle, first_blocked_at, last_blocked_at, block_count,
		cooldown_until, cooldown_hours, dismissed, last_error, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (handle) DO UPDATE SET
		last_blocked_at = EXCLUDED.last_blocked_at,
		block_count = EXCLUDED.block_count,
		cooldown_until = EXCLUDED.cooldown_until,
		cooldown_hours = EXCLUDED.cooldown_hours,
		dismissed = EXCLUDED.dismissed,
		last_error = EXCLUDED.last_error,
		updated_at = EXCLUDED.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		record.Handle, record.FirstBlockedAt, record.LastBlockedAt, record.BlockCount,
		record.CooldownUntil, record.CooldownHours, record.Dismissed,
		nullableString(record.LastError), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert block record for %s: %w", record.Handle, err)
	}

	return nil
}

// GetBlockRecord retrieves the block record for a handle.
func (db *DB) GetBlockRecord(ctx context.Context, handle string) (*models.BlockRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT handle, first_blocked_at, last_blocked_at, block_count,
		cooldown_until, cooldown_hours, dismissed, last_error
	FROM block_records WHERE handle = ?`

	var record models.BlockRecord
	var lastError sql.NullString

	err := db.conn.QueryRowContext(ctx, query, handle).Scan(
		&record.Handle, &record.FirstBlockedAt, &record.LastBlockedAt, &record.BlockCount,
		&record.CooldownUntil, &record.CooldownHours, &record.Dismissed, &lastError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("failed to scan block record: %w", err)
	}

	if lastError.Valid {
		record.LastError = lastError.String
	}

	return &record, nil
}

// ListBlockRecords retrieves all block records. The block tracker loads
// these once at startup to rebuild its in-memory state.
func (db *DB) ListBlockRecords(ctx context.Context) ([]models.BlockRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT handle, first_blocked_at, last_blocked_at, block_count,
		cooldown_until, cooldown_hours, dismissed, last_error
	FROM block_records ORDER BY handle`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list block records: %w", err)
	}
	defer rows.Close()

	return collectBlockRecords(rows)
}

// ListActiveBlocks retrieves records whose cooldown window is still open at
// the given instant.
func (db *DB) ListActiveBlocks(ctx context.Context, now time.Time) ([]models.BlockRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT handle, first_blocked_at, last_blocked_at, block_count,
		cooldown_until, cooldown_hours, dismissed, last_error
	FROM block_records WHERE cooldown_until > ? ORDER BY cooldown_until`

	rows, err := db.conn.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active blocks: %w", err)
	}
	defer rows.Close()

	return collectBlockRecords(rows)
}

// DismissBlock marks a block warning acknowledged without touching the
// cooldown window.
func (db *DB) DismissBlock(ctx context.Context, handle string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE block_records SET dismissed = true, updated_at = ? WHERE handle = ?`
	result, err := db.conn.ExecContext(ctx, query, time.Now(), handle)
	if err != nil {
		return fmt.Errorf("failed to dismiss block: %w", err)
	}

	return requireRowAffected(result, ErrBlockNotFound)
}

// DeleteBlockRecord removes block state for a handle. A successful
// connection clears any block unconditionally, so deleting an absent record
// is not an error.
func (db *DB) DeleteBlockRecord(ctx context.Context, handle string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `DELETE FROM block_records WHERE handle = ?`
	if _, err := db.conn.ExecContext(ctx, query, handle); err != nil {
		return fmt.Errorf("failed to delete block record: %w", err)
	}

	return nil
}

func collectBlockRecords(rows *sql.Rows) ([]models.BlockRecord, error) {
	records := make([]models.BlockRecord, 0)
	for rows.Next() {
		var record models.BlockRecord
		var lastError sql.NullString

		err := rows.Scan(
			&record.Handle, &record.FirstBlockedAt, &record.LastBlockedAt, &record.BlockCount,
			&record.CooldownUntil, &record.CooldownHours, &record.Dismissed, &lastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block record: %w", err)
		}

		if lastError.Valid {
			record.LastError = lastError.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating block records: %w", err)
	}

	return records, nil
}

// nullableString maps an empty string to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
