// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package monitor

import (
	"github.com/tomtom215/vigil/internal/models"
	"github.com/tomtom215/vigil/internal/transport"
)

// applyEvent folds one transport event into the session counters and reports
// whether anything changed. Counter semantics:
//
//   - chat, member, follow, share, repost, leave, subscribe, emote: one
//     event, one increment
//   - like: increments by the batched like count the platform reports
//   - gift: only the closing update of a streak counts; mid-streak updates
//     repeat the running total and would double-count
//   - roomUser: peak viewers is a max watermark, never an increment
//   - liveIntro and control events leave the counters untouched
func applyEvent(c *models.SessionCounters, ev transport.Event) bool {
	switch ev.Type {
	case transport.EventChat:
		c.TotalMessages++
	case transport.EventGift:
		if ev.Gift == nil || !ev.Gift.RepeatEnd {
			return false
		}
		n := ev.Gift.Count
		if n <= 0 {
			n = 1
		}
		c.TotalGifts += n
	case transport.EventLike:
		n := int64(1)
		if ev.Like != nil && ev.Like.Count > 0 {
			n = ev.Like.Count
		}
		c.TotalLikes += n
	case transport.EventMember:
		c.TotalJoins++
	case transport.EventFollow:
		c.TotalFollows++
	case transport.EventShare:
		c.TotalShares++
	case transport.EventRepost:
		c.TotalReposts++
	case transport.EventLeave:
		c.TotalLeaves++
	case transport.EventSubscribe:
		c.TotalSubscribes++
	case transport.EventEmote:
		c.TotalEmotes++
	case transport.EventSocial:
		return applySocial(c, ev.Social)
	case transport.EventRoomUser:
		if ev.RoomUser == nil || ev.RoomUser.ViewerCount <= c.PeakViewers {
			return false
		}
		c.PeakViewers = ev.RoomUser.ViewerCount
	default:
		return false
	}
	return true
}

// applySocial maps a generic social event the gateway could not normalize
// onto the matching counter by its action string. Unrecognized actions still
// count as engagement for liveness, just not toward any counter.
func applySocial(c *models.SessionCounters, p *transport.SocialPayload) bool {
	if p == nil {
		return false
	}
	switch p.Action {
	case "follow":
		c.TotalFollows++
	case "share":
		c.TotalShares++
	case "repost":
		c.TotalReposts++
	case "leave":
		c.TotalLeaves++
	default:
		return false
	}
	return true
}
