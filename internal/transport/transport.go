// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package transport

import "context"

// Options carries per-dial parameters for a platform connection.
type Options struct {
	// SessionToken is the platform session credential, when configured.
	// Anonymous connections work for public streams but see reduced event
	// detail on some rooms.
	SessionToken string

	// RoomID pins the dial to a known room instead of resolving the
	// account's current room. Used by reconnects to re-enter the same
	// broadcast.
	RoomID string
}

// Dialer opens live-stream connections for tracked accounts.
//
// Dial resolves the account's current room and joins its event feed. A
// platform denial (device or IP block) is reported as *BlockedError; any
// other failure means the account is simply not reachable or not live.
type Dialer interface {
	Dial(ctx context.Context, handle string, opts Options) (Conn, error)
}

// Conn is one established live-stream connection.
//
// Events delivers the typed event stream in arrival order. The channel is
// closed when the connection terminates, after a final streamEnd or error
// event when the cause is known. Close is idempotent and releases the
// underlying connection before returning.
type Conn interface {
	Events() <-chan Event
	RoomID() string
	IsConnected() bool
	Close() error
}
