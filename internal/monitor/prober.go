// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package monitor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/settings"
	"github.com/tomtom215/vigil/internal/transport"
)

// ProbeResult is the verdict of one liveness probe.
type ProbeResult struct {
	// IsLive is true when at least one strong engagement signal was
	// observed. Weak signals alone never make an account live.
	IsLive bool

	// RoomID is the broadcast room the probe connected to, empty when the
	// dial failed.
	RoomID string

	// Blocked is true when the platform refused the connection or pushed a
	// block signature mid-observation.
	Blocked bool

	// Reason explains the verdict for logs and block records.
	Reason string

	// StrongSignals and WeakSignals count what the observation window saw.
	StrongSignals int
	WeakSignals   int
}

// Prober answers "is this account live right now" with a two-phase check:
// dial the transport, then watch the event stream for strong engagement
// signals inside a bounded window.
//
// Viewer-count updates alone never produce a live verdict: ended broadcasts
// linger as ghost rooms that keep reporting stale viewer totals, and a
// reused room ID from a previous session is the classic tell. Chat, gifts,
// likes and joins only flow while someone is actually broadcasting.
type Prober struct {
	dialer   transport.Dialer
	settings *settings.Provider
	limiter  *rate.Limiter
}

// NewProber builds a prober. The limiter is shared across every account and
// bounds global probe frequency against the platform; passing nil installs a
// conservative default of one probe per two seconds with a burst of five.
func NewProber(dialer transport.Dialer, settingsProvider *settings.Provider, limiter *rate.Limiter) *Prober {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(2*time.Second), 5)
	}
	return &Prober{
		dialer:   dialer,
		settings: settingsProvider,
		limiter:  limiter,
	}
}

// Probe checks whether the handle is live. previousRoomID is the room seen
// by an earlier session or probe; reconnecting into the same room is treated
// as a possible ghost room and noted in the reason.
//
// The returned error is non-nil only for interruption (context cancellation
// while rate-limited or observing). A refused dial is a verdict, not an
// error: blocked dials set Blocked, anything else means not live.
func (p *Prober) Probe(ctx context.Context, handle, previousRoomID string) (ProbeResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return ProbeResult{}, fmt.Errorf("probe rate limit wait: %w", err)
	}

	s := p.settings.Current(ctx)
	start := time.Now()

	conn, err := p.dialer.Dial(ctx, handle, transport.Options{})
	if err != nil {
		if transport.IsBlocked(err) {
			metrics.RecordProbe("blocked", time.Since(start))
			logging.Warn().
				Str("component", "prober").
				Str("handle", handle).
				Err(err).
				Msg("Probe dial blocked by platform")
			return ProbeResult{Blocked: true, Reason: err.Error()}, nil
		}
		// Optimistic offline bias: an account that cannot be dialed is
		// simply not live.
		metrics.RecordProbe("offline", time.Since(start))
		logging.Debug().
			Str("component", "prober").
			Str("handle", handle).
			Err(err).
			Msg("Probe dial failed, treating as offline")
		return ProbeResult{Reason: fmt.Sprintf("dial failed: %v", err)}, nil
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logging.Debug().Str("handle", handle).Err(cerr).Msg("Probe connection close failed")
		}
	}()

	res := ProbeResult{RoomID: conn.RoomID()}
	reused := previousRoomID != "" && res.RoomID == previousRoomID
	if reused {
		metrics.RecordRoomIDReuse()
	}

	obs := observeConn(ctx, conn, s.ProbeWindow, s.ProbeDwell)
	res.StrongSignals = obs.strong
	res.WeakSignals = obs.weak
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		metrics.RecordProbe("error", elapsed)
		return res, fmt.Errorf("probe interrupted: %w", ctx.Err())
	}

	switch {
	case obs.blockErr != nil:
		res.Blocked = true
		res.Reason = obs.blockErr.Error()
		metrics.RecordProbe("blocked", elapsed)
	case obs.streamEnded:
		res.Reason = "stream ended during probe"
		metrics.RecordProbe("offline", elapsed)
	case obs.strong > 0:
		res.IsLive = true
		res.Reason = "strong engagement observed"
		metrics.RecordProbe("live", elapsed)
	case obs.weak > 0 && reused:
		res.Reason = "room reused, weak signals only"
		metrics.RecordProbe("offline", elapsed)
	case obs.weak > 0:
		res.Reason = "weak signals only"
		metrics.RecordProbe("offline", elapsed)
	default:
		res.Reason = "no signals observed"
		metrics.RecordProbe("offline", elapsed)
	}

	if res.IsLive {
		logging.Info().
			Str("component", "prober").
			Str("handle", handle).
			Str("room_id", res.RoomID).
			Int("strong", res.StrongSignals).
			Int("weak", res.WeakSignals).
			Dur("took", elapsed).
			Msg("Probe verdict: live")
	} else {
		logging.Debug().
			Str("component", "prober").
			Str("handle", handle).
			Str("room_id", res.RoomID).
			Bool("room_reused", reused).
			Str("reason", res.Reason).
			Dur("took", elapsed).
			Msg("Probe verdict: not live")
	}
	return res, nil
}

// observation is what a probe window saw before it closed.
type observation struct {
	strong      int
	weak        int
	streamEnded bool
	blockErr    error
}

// observeConn consumes the connection's events for up to window, holding at
// least dwell before an early live verdict. A streamEnd or a block signature
// ends the window immediately; an ordinary error event is noted by the
// transport closing the stream, which also ends the window.
func observeConn(ctx context.Context, conn transport.Conn, window, dwell time.Duration) observation {
	var obs observation

	windowTimer := time.NewTimer(window)
	defer windowTimer.Stop()
	dwellTimer := time.NewTimer(dwell)
	defer dwellTimer.Stop()
	dwellElapsed := false

	for {
		select {
		case <-ctx.Done():
			return obs
		case <-windowTimer.C:
			return obs
		case <-dwellTimer.C:
			dwellElapsed = true
			if obs.strong > 0 {
				return obs
			}
		case ev, ok := <-conn.Events():
			if !ok {
				return obs
			}
			switch {
			case ev.Type == transport.EventStreamEnd:
				obs.streamEnded = true
				return obs
			case ev.Type == transport.EventError:
				if transport.IsBlocked(ev.Err) {
					obs.blockErr = ev.Err
					return obs
				}
			case ev.Type.IsStrongSignal():
				obs.strong++
				if dwellElapsed {
					return obs
				}
			case ev.Type.IsWeakSignal():
				obs.weak++
			}
		}
	}
}
