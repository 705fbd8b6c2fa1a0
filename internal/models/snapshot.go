// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package models

import (
	"time"

	"github.com/google/uuid"
)

// StatsSnapshot is a point-in-time copy of a live session's counters.
// Snapshots form an append-only time series: one row per snapshot interval
// while the session is live, plus one final row at session end.
type StatsSnapshot struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	TakenAt   time.Time       `json:"taken_at"`
	Counters  SessionCounters `json:"counters"`
}
