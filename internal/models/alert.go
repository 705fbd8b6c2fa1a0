// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a keyword hit on a chat event, produced by the alert engine and
// persisted for the dashboard. Alerts are downstream artifacts of the event
// stream; the monitoring core only feeds the engine.
type Alert struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Handle      string    `json:"handle"`
	Keyword     string    `json:"keyword"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}
