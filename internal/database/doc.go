// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package database provides the DuckDB-backed durable store for the
// monitoring core.
//
// The store holds seven tables:
//
//   - accounts: tracked accounts and their monitoring state, keyed by handle
//   - live_sessions: one row per broadcast, with aggregate counter columns
//   - live_events: append-only event stream, attributed to a session
//   - stats_snapshots: periodic point-in-time copies of session counters
//   - block_records: platform block state and cooldown windows per handle
//   - settings: runtime-tunable key/value overrides
//   - alerts: keyword hits persisted for the dashboard
//
// Write semantics follow three rules the monitoring pipeline depends on:
//
//   - Account and block upserts are idempotent (INSERT ... ON CONFLICT DO
//     UPDATE), so retried writes converge instead of erroring.
//   - Event inserts are idempotent by ID (ON CONFLICT DO NOTHING) and
//     guarded by session existence: a batch for a session that no longer
//     exists fails with ErrSessionNotFound and is discarded by the caller,
//     never retried.
//   - Session termination only fires once: EndSession is a no-op when the
//     session has already been ended.
//
// All exported methods take a context.Context; callers without a deadline
// get a 30-second default via ensureContext. The connection is checkpointed
// on Close to flush the DuckDB WAL.
package database
