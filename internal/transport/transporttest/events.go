// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package transporttest

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/transport"
)

// Event constructors for tests. Each stamps OccurredAt and fills the raw
// blobs the same way the gateway does, so persistence paths see realistic
// events.

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func eventUser(uniqueID string) (*transport.User, json.RawMessage) {
	if uniqueID == "" {
		return nil, nil
	}
	u := &transport.User{
		UserID:   "id-" + uniqueID,
		UniqueID: uniqueID,
		Nickname: uniqueID,
	}
	return u, mustRaw(u)
}

func baseEvent(t transport.EventType, uniqueID string) transport.Event {
	user, rawUser := eventUser(uniqueID)
	return transport.Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		User:       user,
		RawUser:    rawUser,
	}
}

// Chat builds a chat event from uniqueID saying comment.
func Chat(uniqueID, comment string) transport.Event {
	ev := baseEvent(transport.EventChat, uniqueID)
	ev.Chat = &transport.ChatPayload{Comment: comment}
	ev.RawPayload = mustRaw(ev.Chat)
	return ev
}

// Gift builds a completed gift event.
func Gift(uniqueID, name string, count, diamondValue int64) transport.Event {
	ev := baseEvent(transport.EventGift, uniqueID)
	ev.Gift = &transport.GiftPayload{
		Name:         name,
		Count:        count,
		DiamondValue: diamondValue,
		RepeatEnd:    true,
	}
	ev.RawPayload = mustRaw(ev.Gift)
	return ev
}

// GiftStreak builds a mid-streak gift update that must not be aggregated.
func GiftStreak(uniqueID, name string, count int64) transport.Event {
	ev := baseEvent(transport.EventGift, uniqueID)
	ev.Gift = &transport.GiftPayload{Name: name, Count: count}
	ev.RawPayload = mustRaw(ev.Gift)
	return ev
}

// Like builds a like batch event.
func Like(uniqueID string, count int64) transport.Event {
	ev := baseEvent(transport.EventLike, uniqueID)
	ev.Like = &transport.LikePayload{Count: count}
	ev.RawPayload = mustRaw(ev.Like)
	return ev
}

// Member builds a room join event.
func Member(uniqueID string) transport.Event {
	return baseEvent(transport.EventMember, uniqueID)
}

// Follow builds a follow event.
func Follow(uniqueID string) transport.Event {
	return baseEvent(transport.EventFollow, uniqueID)
}

// Share builds a share event.
func Share(uniqueID string) transport.Event {
	return baseEvent(transport.EventShare, uniqueID)
}

// Repost builds a repost event.
func Repost(uniqueID string) transport.Event {
	return baseEvent(transport.EventRepost, uniqueID)
}

// Leave builds a room leave event.
func Leave(uniqueID string) transport.Event {
	return baseEvent(transport.EventLeave, uniqueID)
}

// Subscribe builds a subscription event.
func Subscribe(uniqueID string, months int) transport.Event {
	ev := baseEvent(transport.EventSubscribe, uniqueID)
	ev.Subscribe = &transport.SubscribePayload{Months: months}
	ev.RawPayload = mustRaw(ev.Subscribe)
	return ev
}

// Emote builds an emote event.
func Emote(uniqueID, emoteID string) transport.Event {
	ev := baseEvent(transport.EventEmote, uniqueID)
	ev.Emote = &transport.EmotePayload{EmoteID: emoteID}
	ev.RawPayload = mustRaw(ev.Emote)
	return ev
}

// RoomUser builds a viewer-count update.
func RoomUser(viewers int64) transport.Event {
	ev := baseEvent(transport.EventRoomUser, "")
	ev.RoomUser = &transport.RoomUserPayload{ViewerCount: viewers}
	ev.RawPayload = mustRaw(ev.RoomUser)
	return ev
}

// LiveIntro builds a room introduction event.
func LiveIntro(description string) transport.Event {
	ev := baseEvent(transport.EventLiveIntro, "")
	ev.LiveIntro = &transport.LiveIntroPayload{Description: description}
	ev.RawPayload = mustRaw(ev.LiveIntro)
	return ev
}

// StreamEnd builds a clean end-of-broadcast event. Emitting it through a
// fake conn closes the stream.
func StreamEnd() transport.Event {
	return baseEvent(transport.EventStreamEnd, "")
}

// ErrorEvent builds an error event carrying err. Pass a
// *transport.BlockedError to simulate a mid-stream platform block.
func ErrorEvent(err error) transport.Event {
	ev := baseEvent(transport.EventError, "")
	ev.Err = err
	return ev
}
