// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context for schema operations. Schema creation can
// be slow on cold storage, so it gets a longer deadline than regular queries.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates all monitoring tables if they do not exist
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := db.getTableCreationQueries()

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the DDL for the monitoring schema.
//
// Counter columns on live_sessions and stats_snapshots are kept flat rather
// than packed into JSON: the dashboard aggregates them with plain SQL, and
// DuckDB's columnar layout makes wide BIGINT rows cheap.
func (db *DB) getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			handle VARCHAR PRIMARY KEY,
			monitoring_enabled BOOLEAN NOT NULL DEFAULT true,
			current_live_session_id UUID,
			last_checked_at TIMESTAMP,
			last_live_at TIMESTAMP,
			last_session_end_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS live_sessions (
			id UUID PRIMARY KEY,
			handle VARCHAR NOT NULL,
			room_id VARCHAR,
			status VARCHAR NOT NULL DEFAULT 'live',
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			total_likes BIGINT NOT NULL DEFAULT 0,
			peak_viewers BIGINT NOT NULL DEFAULT 0,
			total_gifts BIGINT NOT NULL DEFAULT 0,
			total_messages BIGINT NOT NULL DEFAULT 0,
			total_joins BIGINT NOT NULL DEFAULT 0,
			total_follows BIGINT NOT NULL DEFAULT 0,
			total_shares BIGINT NOT NULL DEFAULT 0,
			total_reposts BIGINT NOT NULL DEFAULT 0,
			total_leaves BIGINT NOT NULL DEFAULT 0,
			total_subscribes BIGINT NOT NULL DEFAULT 0,
			total_emotes BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS live_events (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			event_type VARCHAR NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			user_json VARCHAR,
			payload_json VARCHAR,
			location VARCHAR,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS stats_snapshots (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			taken_at TIMESTAMP NOT NULL,
			total_likes BIGINT NOT NULL DEFAULT 0,
			peak_viewers BIGINT NOT NULL DEFAULT 0,
			total_gifts BIGINT NOT NULL DEFAULT 0,
			total_messages BIGINT NOT NULL DEFAULT 0,
			total_joins BIGINT NOT NULL DEFAULT 0,
			total_follows BIGINT NOT NULL DEFAULT 0,
			total_shares BIGINT NOT NULL DEFAULT 0,
			total_reposts BIGINT NOT NULL DEFAULT 0,
			total_leaves BIGINT NOT NULL DEFAULT 0,
			total_subscribes BIGINT NOT NULL DEFAULT 0,
			total_emotes BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS block_records (
			handle VARCHAR PRIMARY KEY,
			first_blocked_at TIMESTAMP NOT NULL,
			last_blocked_at TIMESTAMP NOT NULL,
			block_count INTEGER NOT NULL DEFAULT 1,
			cooldown_until TIMESTAMP NOT NULL,
			cooldown_hours DOUBLE NOT NULL DEFAULT 0,
			dismissed BOOLEAN NOT NULL DEFAULT false,
			last_error VARCHAR,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR PRIMARY KEY,
			value VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			handle VARCHAR NOT NULL,
			keyword VARCHAR NOT NULL,
			message VARCHAR,
			triggered_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

// createIndexes creates indexes unless the configuration skips them.
func (db *DB) createIndexes() error {
	// Skip index creation for tests to avoid CGO resource exhaustion
	// Tests that specifically need indexes can call CreateIndexes() explicitly
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}

	return db.doCreateIndexes()
}

// CreateIndexes creates all indexes regardless of the SkipIndexes setting.
func (db *DB) CreateIndexes() error {
	return db.doCreateIndexes()
}

func (db *DB) doCreateIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := db.getIndexQueries()

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}

	return nil
}

func (db *DB) getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_accounts_monitoring ON accounts(monitoring_enabled)`,
		`CREATE INDEX IF NOT EXISTS idx_live_sessions_handle ON live_sessions(handle)`,
		`CREATE INDEX IF NOT EXISTS idx_live_sessions_status ON live_sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_live_sessions_started_at ON live_sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_live_events_session_id ON live_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_live_events_event_type ON live_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_live_events_occurred_at ON live_events(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_stats_snapshots_session_id ON stats_snapshots(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_block_records_cooldown ON block_records(cooldown_until)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_handle ON alerts(handle)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts(triggered_at)`,
	}
}
