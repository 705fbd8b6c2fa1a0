// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/transport"
)

// ConnState is the connection supervisor's lifecycle state.
type ConnState int

const (
	// ConnIdle means the supervisor was created but not started.
	ConnIdle ConnState = iota

	// ConnConnecting means the first dial is in flight.
	ConnConnecting

	// ConnConnected means a transport connection is live.
	ConnConnected

	// ConnDisconnected means the connection dropped and a reconnect is
	// pending the backoff wait.
	ConnDisconnected

	// ConnReconnecting means a redial is in flight.
	ConnReconnecting

	// ConnTerminated is terminal: stream end, block, exhausted reconnects,
	// or an explicit Disconnect.
	ConnTerminated
)

// String returns the lowercase state name used in logs and status payloads.
func (s ConnState) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnReconnecting:
		return "reconnecting"
	case ConnTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ConnEventKind discriminates supervisor channel events.
type ConnEventKind int

const (
	// ConnEventConnected reports a (re)established connection and its room.
	ConnEventConnected ConnEventKind = iota

	// ConnEventDisconnected reports terminal reconnect exhaustion. Transient
	// drops are handled inside the supervisor and only logged.
	ConnEventDisconnected

	// ConnEventBlocked reports a platform block; always terminal.
	ConnEventBlocked

	// ConnEventStreamEnd reports a clean broadcast end; always terminal.
	ConnEventStreamEnd

	// ConnEventStream passes a transport data event through.
	ConnEventStream
)

// ConnEvent is the tagged union the supervisor emits. Kind selects which of
// the remaining fields is meaningful.
type ConnEvent struct {
	Kind    ConnEventKind
	RoomID  string
	Reason  string
	Blocked *transport.BlockedError
	Event   transport.Event
}

// SupervisorConfig bounds the reconnect policy.
type SupervisorConfig struct {
	// MaxReconnectAttempts is how many consecutive failed dials or drops are
	// tolerated before the supervisor terminates. Reset on every successful
	// connect.
	MaxReconnectAttempts int

	// BackoffBase is the first reconnect delay; doubles per attempt.
	BackoffBase time.Duration

	// BackoffMax caps the reconnect delay.
	BackoffMax time.Duration

	// EventBuffer sizes the outbound event channel.
	EventBuffer int
}

func (c *SupervisorConfig) applyDefaults() {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
}

// Supervisor owns one long-lived transport connection for one account. It
// redials transient drops with exponential backoff and terminates on stream
// end, platform block, exhausted attempts, or Disconnect. Termination always
// closes the event channel; that close is the signal the session consumer
// keys on.
type Supervisor struct {
	handle string
	dialer transport.Dialer
	base   transport.Options
	cfg    SupervisorConfig

	events chan ConnEvent

	mu      sync.RWMutex
	state   ConnState
	conn    transport.Conn
	roomID  string
	started bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSupervisor builds a supervisor for one handle. opts.RoomID, when set,
// pins the first dial to a known broadcast; later reconnects always pin to
// the room the supervisor last connected to.
func NewSupervisor(handle string, dialer transport.Dialer, opts transport.Options, cfg SupervisorConfig) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		handle:   handle,
		dialer:   dialer,
		base:     opts,
		cfg:      cfg,
		events:   make(chan ConnEvent, cfg.EventBuffer),
		state:    ConnIdle,
		roomID:   opts.RoomID,
		stopChan: make(chan struct{}),
	}
}

// Events returns the supervisor's event channel. Closed exactly once, on
// termination.
func (s *Supervisor) Events() <-chan ConnEvent {
	return s.events
}

// State returns the current lifecycle state.
func (s *Supervisor) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected reports whether a transport connection is currently live.
func (s *Supervisor) IsConnected() bool {
	return s.State() == ConnConnected
}

// RoomID returns the room the supervisor is pinned to.
func (s *Supervisor) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// Start launches the supervisor loop. The first dial happens asynchronously;
// its outcome arrives on the event channel.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor for %s already started", s.handle)
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Disconnect stops the supervisor and closes the transport connection before
// returning. Idempotent and safe to call concurrently; callers observing the
// event channel see it close shortly after.
func (s *Supervisor) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopChan) })

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		if err := conn.Close(); err != nil {
			logging.Debug().Str("handle", s.handle).Err(err).Msg("Supervisor connection close failed")
		}
	}

	s.wg.Wait()

	s.mu.Lock()
	if !s.started {
		// Never ran, so nobody else will mark the terminal state or close
		// the channel.
		s.state = ConnTerminated
		s.started = true
		close(s.events)
	}
	s.mu.Unlock()
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)
	defer s.setState(ConnTerminated)

	attempts := 0
	backoff := s.cfg.BackoffBase

	// retryOrGiveUp burns one reconnect attempt and sleeps the backoff.
	// False means stop the loop: budget spent (terminal disconnect emitted)
	// or the supervisor was stopped mid-wait.
	retryOrGiveUp := func(reason string) bool {
		attempts++
		if attempts > s.cfg.MaxReconnectAttempts {
			logging.Warn().
				Str("component", "supervisor").
				Str("handle", s.handle).
				Int("attempts", s.cfg.MaxReconnectAttempts).
				Str("reason", reason).
				Msg("Reconnect attempts exhausted")
			s.emit(ConnEvent{
				Kind:   ConnEventDisconnected,
				Reason: fmt.Sprintf("gave up after %d reconnect attempts: %s", s.cfg.MaxReconnectAttempts, reason),
			})
			return false
		}
		s.setState(ConnDisconnected)
		logging.Debug().
			Str("component", "supervisor").
			Str("handle", s.handle).
			Int("attempt", attempts).
			Dur("backoff", backoff).
			Str("reason", reason).
			Msg("Connection lost, backing off before redial")
		metrics.RecordReconnect()
		if !s.wait(ctx, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, s.cfg.BackoffMax)
		return true
	}

	for {
		if s.stopRequested() || ctx.Err() != nil {
			return
		}
		if attempts == 0 {
			s.setState(ConnConnecting)
		} else {
			s.setState(ConnReconnecting)
		}

		conn, err := s.dialer.Dial(ctx, s.handle, s.options())
		if err != nil {
			if transport.IsBlocked(err) {
				metrics.RecordConnectionAttempt("blocked")
				logging.Warn().
					Str("component", "supervisor").
					Str("handle", s.handle).
					Err(err).
					Msg("Dial blocked by platform, terminating")
				s.emit(ConnEvent{Kind: ConnEventBlocked, Blocked: s.blockedInfo(err)})
				return
			}
			metrics.RecordConnectionAttempt("failure")
			if !retryOrGiveUp(err.Error()) {
				return
			}
			continue
		}

		metrics.RecordConnectionAttempt("success")
		metrics.TrackConnection(true)
		s.attach(conn)
		s.emit(ConnEvent{Kind: ConnEventConnected, RoomID: conn.RoomID()})
		attempts = 0
		backoff = s.cfg.BackoffBase
		logging.Info().
			Str("component", "supervisor").
			Str("handle", s.handle).
			Str("room_id", conn.RoomID()).
			Msg("Connected to live stream")

		outcome, cause := s.consume(ctx, conn)
		s.detach()
		if cerr := conn.Close(); cerr != nil {
			logging.Debug().Str("handle", s.handle).Err(cerr).Msg("Connection close after consume failed")
		}
		metrics.TrackConnection(false)

		switch outcome {
		case outcomeStreamEnd:
			logging.Info().
				Str("component", "supervisor").
				Str("handle", s.handle).
				Msg("Stream ended")
			s.emit(ConnEvent{Kind: ConnEventStreamEnd})
			return
		case outcomeBlocked:
			logging.Warn().
				Str("component", "supervisor").
				Str("handle", s.handle).
				Err(cause).
				Msg("Platform block mid-session, terminating")
			s.emit(ConnEvent{Kind: ConnEventBlocked, Blocked: s.blockedInfo(cause)})
			return
		case outcomeStopped:
			return
		case outcomeDropped:
			reason := "stream dropped"
			if cause != nil {
				reason = cause.Error()
			}
			if !retryOrGiveUp(reason) {
				return
			}
		}
	}
}

// consumeOutcome says why consume stopped reading a connection.
type consumeOutcome int

const (
	outcomeDropped consumeOutcome = iota
	outcomeStreamEnd
	outcomeBlocked
	outcomeStopped
)

// consume relays data events until the connection's channel closes or a
// terminal condition shows up. The returned error carries the last transport
// error for drop diagnostics, or the block cause.
func (s *Supervisor) consume(ctx context.Context, conn transport.Conn) (consumeOutcome, error) {
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return outcomeStopped, nil
		case <-s.stopChan:
			return outcomeStopped, nil
		case ev, ok := <-conn.Events():
			if !ok {
				return outcomeDropped, lastErr
			}
			switch ev.Type {
			case transport.EventStreamEnd:
				return outcomeStreamEnd, nil
			case transport.EventError:
				if transport.IsBlocked(ev.Err) {
					return outcomeBlocked, ev.Err
				}
				// The transport closes the stream after an error event;
				// remember the cause for the drop report.
				lastErr = ev.Err
			default:
				s.emit(ConnEvent{Kind: ConnEventStream, Event: ev})
			}
		}
	}
}

// emit delivers an event, preferring delivery while buffer space remains and
// falling back to a blocking send that a stop can interrupt.
func (s *Supervisor) emit(ev ConnEvent) {
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-s.stopChan:
	}
}

func (s *Supervisor) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}

func (s *Supervisor) stopRequested() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

func (s *Supervisor) setState(state ConnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// attach records the live connection and pins its room for reconnects.
func (s *Supervisor) attach(conn transport.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.state = ConnConnected
	if room := conn.RoomID(); room != "" {
		s.roomID = room
	}
	s.mu.Unlock()
}

func (s *Supervisor) detach() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// options composes the dial options with the currently pinned room.
func (s *Supervisor) options() transport.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transport.Options{
		SessionToken: s.base.SessionToken,
		RoomID:       s.roomID,
	}
}

func (s *Supervisor) blockedInfo(err error) *transport.BlockedError {
	var be *transport.BlockedError
	if errors.As(err, &be) {
		return be
	}
	msg := "blocked"
	if err != nil {
		msg = err.Error()
	}
	return &transport.BlockedError{Handle: s.handle, Message: msg}
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}
