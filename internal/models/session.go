// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package models

import (
	"time"

	"github.com/google/uuid"
)

// Session status values. A session is "live" only while a connection
// supervisor owns it; reconciliation forcibly ends anything left "live"
// from a prior process.
const (
	SessionStatusLive             = "live"
	SessionStatusEnded            = "ended"
	SessionStatusConnectionFailed = "connection_failed"
)

// LiveSession represents one broadcast of a tracked account.
//
// Created when liveness is confirmed and monitoring starts; counter columns
// are updated by the coalesced counter flush; terminated (status ended,
// EndedAt set) on stream end, explicit stop, supervisor failure, or startup
// reconciliation.
type LiveSession struct {
	ID     uuid.UUID `json:"id"`
	Handle string    `json:"handle"`

	// RoomID is the platform's room identifier for this broadcast. Room-id
	// reuse across probes is a ghost-room indicator.
	RoomID string `json:"room_id"`

	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Counters SessionCounters `json:"counters"`
}

// SessionCounters holds the aggregate stats of a live session.
//
// PeakViewers is a max watermark over viewer-count samples; every other
// field is a monotonic sum. StatsSnapshot embeds a full copy of this struct,
// so snapshot rows are point-in-time copies rather than deltas.
type SessionCounters struct {
	TotalLikes      int64 `json:"total_likes"`
	PeakViewers     int64 `json:"peak_viewers"`
	TotalGifts      int64 `json:"total_gifts"`
	TotalMessages   int64 `json:"total_messages"`
	TotalJoins      int64 `json:"total_joins"`
	TotalFollows    int64 `json:"total_follows"`
	TotalShares     int64 `json:"total_shares"`
	TotalReposts    int64 `json:"total_reposts"`
	TotalLeaves     int64 `json:"total_leaves"`
	TotalSubscribes int64 `json:"total_subscribes"`
	TotalEmotes     int64 `json:"total_emotes"`
}

// Merge folds src into c: sums for additive counters, max for PeakViewers.
func (c *SessionCounters) Merge(src SessionCounters) {
	c.TotalLikes += src.TotalLikes
	c.TotalGifts += src.TotalGifts
	c.TotalMessages += src.TotalMessages
	c.TotalJoins += src.TotalJoins
	c.TotalFollows += src.TotalFollows
	c.TotalShares += src.TotalShares
	c.TotalReposts += src.TotalReposts
	c.TotalLeaves += src.TotalLeaves
	c.TotalSubscribes += src.TotalSubscribes
	c.TotalEmotes += src.TotalEmotes
	if src.PeakViewers > c.PeakViewers {
		c.PeakViewers = src.PeakViewers
	}
}

// IsZero reports whether no counter has been touched since the zero value.
func (c SessionCounters) IsZero() bool {
	return c == SessionCounters{}
}
