// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package models defines data structures shared across the Vigil application.

This package contains the persistent domain models (tracked accounts, live
sessions, live-stream events, stats snapshots, block records, keyword alerts)
and the in-memory account state enum used by the poller's decision table.

Models are plain data carriers. Behavior - counter accumulation, state
transitions, persistence - lives with the owning subsystem, primarily
internal/monitor and internal/database.
*/
package models
