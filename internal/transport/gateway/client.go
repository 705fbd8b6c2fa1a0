// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
client.go - Live Gateway WebSocket Client

This file implements the production transport.Dialer: a WebSocket client
against a decode gateway that resolves an account's current room and
delivers platform events as JSON frames.

Gateway endpoint: wss://{gateway}/v1/live?handle={handle}[&room_id={room}]
*/

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/transport"
)

// Config holds gateway connection settings.
type Config struct {
	// URL is the gateway websocket endpoint, e.g. wss://gateway.local/v1/live.
	URL string

	// SessionToken is the default platform credential applied when the
	// per-dial options carry none.
	SessionToken string

	// HandshakeTimeout bounds the websocket upgrade. Default 10s.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds each frame read; the gateway keeps the stream warm
	// with viewer updates, so a silent connection is a dead one. Default 60s.
	ReadTimeout time.Duration

	// PingInterval is the keep-alive cadence. Default 30s.
	PingInterval time.Duration

	// EventBuffer is the capacity of each connection's event channel.
	// Default 256.
	EventBuffer int
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
}

// Client implements transport.Dialer against the decode gateway.
type Client struct {
	cfg Config
}

// NewClient creates a gateway dialer.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{cfg: cfg}
}

// Dial opens a live connection for handle. A 403 upgrade rejection is
// reported as *transport.BlockedError; a 404 means the account has no
// active broadcast and wraps transport.ErrNotLive; every other failure is
// an ordinary connection error.
func (c *Client) Dial(ctx context.Context, handle string, opts transport.Options) (transport.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}

	q := u.Query()
	q.Set("handle", handle)
	if opts.RoomID != "" {
		q.Set("room_id", opts.RoomID)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	token := opts.SessionToken
	if token == "" {
		token = c.cfg.SessionToken
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  c.cfg.HandshakeTimeout,
		EnableCompression: true,
	}

	wsConn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusForbidden:
				return nil, &transport.BlockedError{
					Handle:  handle,
					Code:    resp.StatusCode,
					Message: "gateway refused websocket upgrade",
				}
			case http.StatusNotFound:
				return nil, fmt.Errorf("dial %s: %w", handle, transport.ErrNotLive)
			}
			return nil, fmt.Errorf("gateway dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("gateway dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close upgrade response body")
		}
	}

	conn := &Conn{
		handle:   handle,
		cfg:      c.cfg,
		ws:       wsConn,
		events:   make(chan transport.Event, c.cfg.EventBuffer),
		stopChan: make(chan struct{}),
	}

	conn.wg.Add(2)
	go conn.readLoop()
	go conn.pingLoop()

	return conn, nil
}

// Conn is one established gateway connection implementing transport.Conn.
// It does not reconnect on its own; the connection supervisor owns retry
// policy. The events channel closes when the read loop terminates.
type Conn struct {
	handle string
	cfg    Config

	ws     *websocket.Conn
	connMu sync.RWMutex // guards ws writes and the connected flag

	roomMu sync.RWMutex
	roomID string

	events chan transport.Event

	stopChan  chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
	closed    bool
}

// gatewayFrame is the JSON envelope the gateway emits for every event.
type gatewayFrame struct {
	Type   string          `json:"type"`
	RoomID string          `json:"room_id,omitempty"`
	Ts     int64           `json:"ts,omitempty"` // unix milliseconds
	Code   int             `json:"code,omitempty"`
	Error  string          `json:"error,omitempty"`
	User   json.RawMessage `json:"user,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// decodePayload unmarshals the frame data blob into the typed payload for
// the event's type. Member, follow, share, repost and leave events carry no
// modeled payload; unknown types pass through with only the raw blob.
func decodePayload(ev *transport.Event, data json.RawMessage) error {
	switch ev.Type {
	case transport.EventChat:
		p := &transport.ChatPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.Chat = p
	case transport.EventGift:
		p := &transport.GiftPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.Gift = p
	case transport.EventLike:
		p := &transport.LikePayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.Like = p
	case transport.EventSocial:
		p := &transport.SocialPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.Social = p
	case transport.EventSubscribe:
		p := &transport.SubscribePayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.Subscribe = p
	case transport.EventEmote:
		p := &transport.EmotePayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.Emote = p
	case transport.EventRoomUser:
		p := &transport.RoomUserPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.RoomUser = p
	case transport.EventLiveIntro:
		p := &transport.LiveIntroPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.LiveIntro = p
	case transport.EventStreamEnd:
		p := &transport.StreamEndPayload{}
		if err := json.Unmarshal(data, p); err != nil {
			return err
		}
		ev.StreamEnd = p
	}
	return nil
}

// Events returns the typed event stream. Closed on termination.
func (c *Conn) Events() <-chan transport.Event {
	return c.events
}

// RoomID returns the room identifier announced by the gateway, or empty
// before the first frame carrying one.
func (c *Conn) RoomID() string {
	c.roomMu.RLock()
	defer c.roomMu.RUnlock()
	return c.roomID
}

// IsConnected reports whether the websocket is still open.
func (c *Conn) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return !c.closed
}

// Close tears the connection down. Idempotent; the underlying websocket is
// closed before Close returns.
func (c *Conn) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.closeWebsocket()
	c.wg.Wait()
	return nil
}

// readLoop consumes frames until the connection dies or Close is called.
func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer func() {
		c.closeOnce.Do(func() { close(c.events) })
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if err := c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout)); err != nil {
			logging.Debug().Err(err).Str("handle", c.handle).Msg("Failed to set read deadline")
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWebsocket()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Str("handle", c.handle).Msg("Gateway connection closed normally")
				return
			}
			select {
			case <-c.stopChan:
				// Local close; not an error worth reporting.
			default:
				c.deliver(transport.Event{
					Type:       transport.EventError,
					OccurredAt: time.Now().UTC(),
					RoomID:     c.RoomID(),
					Err:        fmt.Errorf("gateway read: %w", err),
				})
			}
			return
		}

		ev, ok := c.decodeFrame(message)
		if !ok {
			continue
		}

		c.deliver(ev)

		if ev.Type == transport.EventStreamEnd {
			c.closeWebsocket()
			return
		}
	}
}

// decodeFrame converts a gateway JSON frame into a transport event.
func (c *Conn) decodeFrame(message []byte) (transport.Event, bool) {
	var frame gatewayFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		logging.Warn().Err(err).Str("handle", c.handle).Msg("Failed to parse gateway frame")
		return transport.Event{}, false
	}
	if frame.Type == "" {
		logging.Warn().Str("handle", c.handle).Msg("Dropping gateway frame without type")
		return transport.Event{}, false
	}

	if frame.RoomID != "" {
		c.roomMu.Lock()
		c.roomID = frame.RoomID
		c.roomMu.Unlock()
	}

	occurred := time.Now().UTC()
	if frame.Ts > 0 {
		occurred = time.UnixMilli(frame.Ts).UTC()
	}

	ev := transport.Event{
		Type:       transport.EventType(frame.Type),
		OccurredAt: occurred,
		RoomID:     c.RoomID(),
		RawUser:    append(json.RawMessage(nil), frame.User...),
		RawPayload: append(json.RawMessage(nil), frame.Data...),
	}

	if len(frame.User) > 0 {
		var user transport.User
		if err := json.Unmarshal(frame.User, &user); err != nil {
			logging.Debug().Err(err).Str("handle", c.handle).Msg("Failed to parse user sub-object")
		} else {
			ev.User = &user
		}
	}

	if len(frame.Data) > 0 {
		// A malformed payload still delivers the event: the type alone is a
		// liveness signal and the raw blob is preserved.
		if err := decodePayload(&ev, frame.Data); err != nil {
			logging.Debug().Err(err).
				Str("handle", c.handle).
				Str("type", frame.Type).
				Msg("Failed to parse frame payload")
		}
	}

	if ev.Type == transport.EventError {
		if frame.Code == http.StatusForbidden || transport.MatchesBlockSignature(frame.Error) {
			ev.Err = &transport.BlockedError{Handle: c.handle, Code: frame.Code, Message: frame.Error}
		} else {
			ev.Err = fmt.Errorf("gateway error (code %d): %s", frame.Code, frame.Error)
		}
	}

	return ev, true
}

// deliver pushes an event without blocking forever on a stalled consumer.
func (c *Conn) deliver(ev transport.Event) {
	select {
	case c.events <- ev:
	case <-c.stopChan:
	}
}

// pingLoop keeps the connection alive.
func (c *Conn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.closed {
				c.connMu.Unlock()
				return
			}
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.connMu.Unlock()

			if err != nil {
				logging.Debug().Err(err).Str("handle", c.handle).Msg("Gateway ping failed")
				c.closeWebsocket()
				return
			}
		}
	}
}

// closeWebsocket closes the underlying websocket exactly once.
func (c *Conn) closeWebsocket() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(1*time.Second),
	); err != nil {
		logging.Debug().Err(err).Str("handle", c.handle).Msg("Failed to send close frame")
	}

	if err := c.ws.Close(); err != nil {
		logging.Debug().Err(err).Str("handle", c.handle).Msg("Failed to close gateway connection")
	}
}
