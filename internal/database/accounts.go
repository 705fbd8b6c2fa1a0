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

	"github.com/tomtom215/vigil/internal/models"
)

// UpsertAccount inserts an account or, when the handle already exists,
// updates its monitoring flag. Runtime fields (session pointer, timestamps)
// are never touched by the upsert - they belong to the dedicated mutators
// below, so a config re-sync cannot clobber live monitoring state.
func (db *DB) UpsertAccount(ctx context.Context, account *models.Account) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	query := `INSERT INTO accounts (
		handle, monitoring_enabled, current_live_session_id,
		last_checked_at, last_live_at, last_session_end_at,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (handle) DO UPDATE SET
		monitoring_enabled = EXCLUDED.monitoring_enabled,
		updated_at = EXCLUDED.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		account.Handle, account.MonitoringEnabled, account.CurrentLiveSessionID,
		account.LastCheckedAt, account.LastLiveAt, account.LastSessionEndAt,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.Handle, err)
	}

	return nil
}

// GetAccount retrieves an account by handle.
func (db *DB) GetAccount(ctx context.Context, handle string) (*models.Account, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		handle, monitoring_enabled, current_live_session_id,
		last_checked_at, last_live_at, last_session_end_at,
		created_at, updated_at
	FROM accounts WHERE handle = ?`

	row := db.conn.QueryRowContext(ctx, query, handle)
	return scanAccount(row)
}

// ListAccounts retrieves all accounts ordered by handle.
func (db *DB) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return db.listAccounts(ctx, false)
}

// ListMonitoredAccounts retrieves the accounts with monitoring enabled.
// This is the poller's working set at startup.
func (db *DB) ListMonitoredAccounts(ctx context.Context) ([]models.Account, error) {
	return db.listAccounts(ctx, true)
}

func (db *DB) listAccounts(ctx context.Context, monitoredOnly bool) ([]models.Account, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT
		handle, monitoring_enabled, current_live_session_id,
		last_checked_at, last_live_at, last_session_end_at,
		created_at, updated_at
	FROM accounts`
	if monitoredOnly {
		query += " WHERE monitoring_enabled = true"
	}
	query += " ORDER BY handle"

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		var account models.Account
		var sessionID uuid.NullUUID
		var lastChecked, lastLive, lastSessionEnd sql.NullTime

		err := rows.Scan(
			&account.Handle, &account.MonitoringEnabled, &sessionID,
			&lastChecked, &lastLive, &lastSessionEnd,
			&account.CreatedAt, &account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		applyNullableAccountFields(&account, sessionID, lastChecked, lastLive, lastSessionEnd)
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// SetMonitoringEnabled flips the monitoring flag for an account.
func (db *DB) SetMonitoringEnabled(ctx context.Context, handle string, enabled bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE accounts SET monitoring_enabled = ?, updated_at = ? WHERE handle = ?`
	result, err := db.conn.ExecContext(ctx, query, enabled, time.Now(), handle)
	if err != nil {
		return fmt.Errorf("failed to update monitoring flag: %w", err)
	}

	return requireRowAffected(result, ErrAccountNotFound)
}

// SetCurrentLiveSession attributes an active session to an account and stamps
// last_live_at. Called exactly when a monitoring session starts.
func (db *DB) SetCurrentLiveSession(ctx context.Context, handle string, sessionID uuid.UUID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now()
	query := `UPDATE accounts SET
		current_live_session_id = ?, last_live_at = ?, updated_at = ?
	WHERE handle = ?`

	result, err := db.conn.ExecContext(ctx, query, sessionID, now, now, handle)
	if err != nil {
		return fmt.Errorf("failed to set current live session: %w", err)
	}

	return requireRowAffected(result, ErrAccountNotFound)
}

// ClearCurrentLiveSession detaches the active session pointer and stamps
// last_session_end_at, which anchors the post-session probe cooldown.
// Clearing an already-clear pointer is a no-op, so session stop stays
// idempotent end to end.
func (db *DB) ClearCurrentLiveSession(ctx context.Context, handle string, endedAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE accounts SET
		current_live_session_id = NULL, last_session_end_at = ?, updated_at = ?
	WHERE handle = ?`

	result, err := db.conn.ExecContext(ctx, query, endedAt, time.Now(), handle)
	if err != nil {
		return fmt.Errorf("failed to clear current live session: %w", err)
	}

	return requireRowAffected(result, ErrAccountNotFound)
}

// TouchLastChecked records when the poller last probed the account.
func (db *DB) TouchLastChecked(ctx context.Context, handle string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE accounts SET last_checked_at = ?, updated_at = ? WHERE handle = ?`
	result, err := db.conn.ExecContext(ctx, query, at, time.Now(), handle)
	if err != nil {
		return fmt.Errorf("failed to touch last_checked_at: %w", err)
	}

	return requireRowAffected(result, ErrAccountNotFound)
}

// TouchLastLive records a check that confirmed the account live without
// touching the session pointer. The poller's connected branch uses this so a
// healthy supervisor refreshes liveness timestamps without a probe.
func (db *DB) TouchLastLive(ctx context.Context, handle string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE accounts SET last_checked_at = ?, last_live_at = ?, updated_at = ? WHERE handle = ?`
	result, err := db.conn.ExecContext(ctx, query, at, at, time.Now(), handle)
	if err != nil {
		return fmt.Errorf("failed to touch last_live_at: %w", err)
	}

	return requireRowAffected(result, ErrAccountNotFound)
}

// ClearStaleSessionPointers nulls every current_live_session_id and stamps
// last_session_end_at on the affected accounts. Startup reconciliation calls
// this after a restart: no supervisor survives the process, so any surviving
// pointer is stale by definition. Returns the number of accounts cleared.
func (db *DB) ClearStaleSessionPointers(ctx context.Context, endedAt time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE accounts SET
		current_live_session_id = NULL, last_session_end_at = ?, updated_at = ?
	WHERE current_live_session_id IS NOT NULL`

	result, err := db.conn.ExecContext(ctx, query, endedAt, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale session pointers: %w", err)
	}

	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return cleared, nil
}

// scanAccount scans a single account row.
func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	var sessionID uuid.NullUUID
	var lastChecked, lastLive, lastSessionEnd sql.NullTime

	err := row.Scan(
		&account.Handle, &account.MonitoringEnabled, &sessionID,
		&lastChecked, &lastLive, &lastSessionEnd,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	applyNullableAccountFields(&account, sessionID, lastChecked, lastLive, lastSessionEnd)
	return &account, nil
}

func applyNullableAccountFields(account *models.Account, sessionID uuid.NullUUID, lastChecked, lastLive, lastSessionEnd sql.NullTime) {
	if sessionID.Valid {
		id := sessionID.UUID
		account.CurrentLiveSessionID = &id
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		account.LastCheckedAt = &t
	}
	if lastLive.Valid {
		t := lastLive.Time
		account.LastLiveAt = &t
	}
	if lastSessionEnd.Valid {
		t := lastSessionEnd.Time
		account.LastSessionEndAt = &t
	}
}

// requireRowAffected converts a zero-row UPDATE into the given sentinel.
func requireRowAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
