// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package transporttest provides scriptable fakes for the transport
// contract, used across the monitor tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/tomtom215/vigil/internal/transport"
)

// Dialer is a scriptable transport.Dialer. Tests queue dial outcomes per
// handle; each successful dial hands out a fresh Conn whose events the test
// drives explicitly.
type Dialer struct {
	mu sync.Mutex

	// dialErrs maps handle to a queue of errors returned by upcoming dials.
	// A nil entry means the dial succeeds.
	dialErrs map[string][]error

	// roomIDs maps handle to the room id assigned to new conns.
	roomIDs map[string]string

	// scripts maps handle to events replayed into each new conn.
	scripts map[string][]transport.Event

	conns     []*Conn
	dialCount map[string]int
}

// NewDialer creates an empty scriptable dialer.
func NewDialer() *Dialer {
	return &Dialer{
		dialErrs:  make(map[string][]error),
		roomIDs:   make(map[string]string),
		scripts:   make(map[string][]transport.Event),
		dialCount: make(map[string]int),
	}
}

// QueueDialError makes the next Dial for handle fail with err.
func (d *Dialer) QueueDialError(handle string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErrs[handle] = append(d.dialErrs[handle], err)
}

// SetRoomID assigns the room id handed to future conns for handle.
func (d *Dialer) SetRoomID(handle, roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roomIDs[handle] = roomID
}

// Script sets events replayed into every new conn for handle, in order.
func (d *Dialer) Script(handle string, events ...transport.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[handle] = events
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(_ context.Context, handle string, _ transport.Options) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dialCount[handle]++

	if errs := d.dialErrs[handle]; len(errs) > 0 {
		err := errs[0]
		d.dialErrs[handle] = errs[1:]
		if err != nil {
			return nil, err
		}
	}

	script := d.scripts[handle]
	capacity := 64
	if len(script) >= capacity {
		capacity = len(script) + 16
	}

	conn := newConn(handle, d.roomIDs[handle], capacity)
	for _, ev := range script {
		conn.Emit(ev)
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

// DialCount returns how many dials were attempted for handle.
func (d *Dialer) DialCount(handle string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialCount[handle]
}

// Conns returns every conn the dialer handed out, in dial order.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Conn, len(d.conns))
	copy(out, d.conns)
	return out
}

// LastConn returns the most recently dialed conn, or nil.
func (d *Dialer) LastConn() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// OpenCount returns how many handed-out conns are still connected. Teardown
// tests assert it reaches zero.
func (d *Dialer) OpenCount() int {
	d.mu.Lock()
	conns := make([]*Conn, len(d.conns))
	copy(conns, d.conns)
	d.mu.Unlock()

	open := 0
	for _, c := range conns {
		if c.IsConnected() {
			open++
		}
	}
	return open
}

// Conn is a fake transport.Conn driven by the test.
type Conn struct {
	mu         sync.Mutex
	handle     string
	roomID     string
	events     chan transport.Event
	closed     bool
	closeCalls int
}

// NewConn creates an open fake conn with the given room id.
func NewConn(roomID string) *Conn {
	return newConn("", roomID, 64)
}

func newConn(handle, roomID string, capacity int) *Conn {
	return &Conn{
		handle: handle,
		roomID: roomID,
		events: make(chan transport.Event, capacity),
	}
}

// Emit delivers an event to the consumer. Emitting streamEnd closes the
// stream afterwards, matching the production conn.
func (c *Conn) Emit(ev transport.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if ev.RoomID == "" {
		ev.RoomID = c.roomID
	}
	c.events <- ev
	if ev.Type == transport.EventStreamEnd {
		c.closed = true
		close(c.events)
	}
}

// End simulates the remote side dropping the stream without a streamEnd
// event: the events channel closes and the conn reads as disconnected.
// Close bookkeeping is untouched, so teardown assertions still see whether
// the consumer called Close afterwards.
func (c *Conn) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// Events implements transport.Conn.
func (c *Conn) Events() <-chan transport.Event { return c.events }

// Handle returns the account handle this conn was dialed for, or empty for
// conns built with NewConn.
func (c *Conn) Handle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// RoomID implements transport.Conn.
func (c *Conn) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// IsConnected implements transport.Conn.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close implements transport.Conn. Safe to call repeatedly.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// CloseCalls reports how many times Close was invoked.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}
