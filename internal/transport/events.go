// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package transport

import (
	"time"

	"github.com/goccy/go-json"
)

// EventType discriminates the typed events a live connection delivers.
type EventType string

// Event types emitted by the platform transport. The gateway normalizes the
// platform's social interaction variants into distinct types (follow, share,
// repost, leave); an unrecognized variant stays a generic social event.
const (
	EventChat      EventType = "chat"
	EventGift      EventType = "gift"
	EventLike      EventType = "like"
	EventMember    EventType = "member"
	EventSocial    EventType = "social"
	EventFollow    EventType = "follow"
	EventShare     EventType = "share"
	EventRepost    EventType = "repost"
	EventLeave     EventType = "leave"
	EventSubscribe EventType = "subscribe"
	EventEmote     EventType = "emote"
	EventRoomUser  EventType = "roomUser"
	EventLiveIntro EventType = "liveIntro"
	EventStreamEnd EventType = "streamEnd"
	EventError     EventType = "error"
)

// IsStrongSignal reports whether the event type reliably indicates an
// active broadcast. Viewer-count updates (roomUser) also appear on dormant
// ghost rooms, so they are deliberately excluded; leave events are derived
// by the gateway from presence tracking and carry the same caveat.
func (t EventType) IsStrongSignal() bool {
	switch t {
	case EventChat, EventGift, EventLike, EventMember, EventSocial,
		EventFollow, EventShare, EventRepost, EventSubscribe, EventEmote,
		EventLiveIntro:
		return true
	default:
		return false
	}
}

// IsWeakSignal reports whether the event type indicates room activity
// without proving a live broadcast.
func (t EventType) IsWeakSignal() bool {
	return t == EventRoomUser
}

// IsControl reports whether the event is a connection-control event rather
// than stream content.
func (t EventType) IsControl() bool {
	return t == EventStreamEnd || t == EventError
}

// User is the platform user-context sub-object attached to most events.
type User struct {
	UserID     string `json:"user_id"`
	UniqueID   string `json:"unique_id"`
	Nickname   string `json:"nickname"`
	ProfileURL string `json:"profile_url,omitempty"`
	Location   string `json:"location,omitempty"`
}

// ChatPayload carries a chat message.
type ChatPayload struct {
	Comment string `json:"comment"`
}

// GiftPayload describes a gift event. Streakable gifts arrive as a series
// of updates with a running Count; RepeatEnd marks the final update of the
// streak. Non-streak gifts arrive once with RepeatEnd true and Count 1.
// Aggregation must only count updates where RepeatEnd is true.
type GiftPayload struct {
	Name         string `json:"gift_name"`
	Count        int64  `json:"gift_count"`
	DiamondValue int64  `json:"diamond_value,omitempty"`
	RepeatEnd    bool   `json:"repeat_end,omitempty"`
}

// LikePayload carries a batch of likes. Total is the room's lifetime like
// count when the platform reports one.
type LikePayload struct {
	Count int64 `json:"like_count"`
	Total int64 `json:"total_like_count,omitempty"`
}

// SocialPayload qualifies generic social events the gateway could not
// normalize into follow/share/repost. Label is the platform display text.
type SocialPayload struct {
	Action string `json:"action,omitempty"`
	Label  string `json:"label,omitempty"`
}

// SubscribePayload describes a channel subscription.
type SubscribePayload struct {
	Months int `json:"months,omitempty"`
}

// EmotePayload identifies a sent emote.
type EmotePayload struct {
	EmoteID string `json:"emote_id,omitempty"`
}

// RoomUserPayload carries the current viewer total.
type RoomUserPayload struct {
	ViewerCount int64 `json:"viewer_count"`
}

// LiveIntroPayload carries the broadcaster's room introduction.
type LiveIntroPayload struct {
	Description string `json:"description,omitempty"`
}

// StreamEndPayload explains why the broadcast ended, when known.
type StreamEndPayload struct {
	Reason string `json:"reason,omitempty"`
}

// Event is the tagged union delivered by a Conn. Type selects which payload
// pointer is populated; member, follow, share, repost and leave events carry
// only the acting User. RawUser and RawPayload preserve the undecoded
// gateway sub-objects so persistence keeps fields this package does not
// model.
type Event struct {
	Type       EventType
	OccurredAt time.Time
	RoomID     string
	User       *User

	Chat      *ChatPayload
	Gift      *GiftPayload
	Like      *LikePayload
	Social    *SocialPayload
	Subscribe *SubscribePayload
	Emote     *EmotePayload
	RoomUser  *RoomUserPayload
	LiveIntro *LiveIntroPayload
	StreamEnd *StreamEndPayload

	// Err carries the failure on error events; IsBlocked(Err) detects
	// platform blocks.
	Err error

	RawUser    json.RawMessage
	RawPayload json.RawMessage
}
