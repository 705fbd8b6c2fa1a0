// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package models

import "time"

// BlockRecord tracks a platform-imposed connectivity block for one account.
//
// One active record exists per handle. Each detected block increments
// BlockCount and extends the cooldown along an exponential curve
// (min(maxHours, baseHours * 2^(count-1))); a later successful connection
// clears the record entirely.
type BlockRecord struct {
	Handle         string    `json:"handle"`
	FirstBlockedAt time.Time `json:"first_blocked_at"`
	LastBlockedAt  time.Time `json:"last_blocked_at"`
	BlockCount     int       `json:"block_count"`
	CooldownUntil  time.Time `json:"cooldown_until"`
	CooldownHours  float64   `json:"cooldown_hours"`

	// Dismissed marks the block warning acknowledged by an operator.
	// The cooldown timer itself is unaffected.
	Dismissed bool `json:"dismissed"`

	// LastError is the transport error signature that triggered the block.
	LastError string `json:"last_error,omitempty"`
}

// CooldownRemaining returns the time left in the cooldown window at now,
// or zero when the window has passed.
func (b *BlockRecord) CooldownRemaining(now time.Time) time.Duration {
	if b == nil || !now.Before(b.CooldownUntil) {
		return 0
	}
	return b.CooldownUntil.Sub(now)
}
