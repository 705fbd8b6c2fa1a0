// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package models

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a tracked live-streaming account.
//
// Accounts are created by the (external) account-management layer and mutated
// by the monitoring subsystem only through the fields below.
//
// Key fields:
//   - Handle: unique account identifier on the platform (natural key)
//   - MonitoringEnabled: whether the poller schedules liveness checks
//   - CurrentLiveSessionID: weak reference to the active LiveSession; non-nil
//     only while a connection supervisor is attributed to this account.
//     Startup reconciliation clears it unconditionally.
//   - LastSessionEndAt: anchor for the post-session cooldown window
type Account struct {
	Handle               string     `json:"handle"`
	MonitoringEnabled    bool       `json:"monitoring_enabled"`
	CurrentLiveSessionID *uuid.UUID `json:"current_live_session_id,omitempty"`
	LastCheckedAt        *time.Time `json:"last_checked_at,omitempty"`
	LastLiveAt           *time.Time `json:"last_live_at,omitempty"`
	LastSessionEndAt     *time.Time `json:"last_session_end_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// AccountState is the discriminated monitoring state of an account, derived
// from persisted fields plus in-memory supervisor presence. It exists so the
// poller's decision table is exhaustive rather than implied by flag
// combinations.
type AccountState int

const (
	// StateDisabled means monitoring is switched off for the account.
	StateDisabled AccountState = iota

	// StateIdle means the account is enabled and will be probed on schedule.
	StateIdle

	// StateCooldown means the account is inside a block cooldown window.
	StateCooldown

	// StatePostSessionCooldown means a session ended recently and probes are
	// suppressed to avoid reconnecting into a lingering ghost room.
	StatePostSessionCooldown

	// StateLive means a connection supervisor is active for the account.
	StateLive

	// StateBlocked means the platform refused connections and no cooldown
	// window has been computed yet.
	StateBlocked
)

// String returns the lowercase state name used in logs and API payloads.
func (s AccountState) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateCooldown:
		return "cooldown"
	case StatePostSessionCooldown:
		return "post_session_cooldown"
	case StateLive:
		return "live"
	case StateBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}
