// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// LiveEvent represents a single event from a live-stream feed, attributed to
// the session that was active when it arrived.
//
// Events are append-only and idempotent by ID: inserting the same event twice
// yields exactly one stored row. The session reference is a hard foreign key;
// inserts for a session that no longer exists are discarded, not retried.
//
// User and Payload are kept as raw JSON blobs. The transport delivers typed
// events (internal/transport); the blobs preserve the full platform payload
// for downstream consumers (alerts, exports) without schema churn here.
type LiveEvent struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`

	// Type is the transport event type: chat, gift, like, member, social,
	// roomUser, liveIntro, ...
	Type string `json:"type"`

	OccurredAt time.Time `json:"occurred_at"`

	// User is the platform user-context sub-object (id, unique id, nickname).
	User json.RawMessage `json:"user,omitempty"`

	// Payload is the type-specific event body.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Location is an optional free-form location hint from the user profile.
	Location *string `json:"location,omitempty"`
}
