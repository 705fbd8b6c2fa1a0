// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package websocket

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
)

// Bridge feeds the hub from the event bus. It subscribes to both the live
// event and the notification topics and forwards everything it can decode;
// the hub decides delivery per client.
type Bridge struct {
	hub *Hub
	bus *eventbus.Bus

	// ready closes once both subscriptions are live, so callers can order
	// publishes after the bridge is listening.
	ready     chan struct{}
	readyOnce sync.Once
}

// NewBridge creates a bridge from the bus to the hub.
func NewBridge(hub *Hub, bus *eventbus.Bus) *Bridge {
	return &Bridge{
		hub:   hub,
		bus:   bus,
		ready: make(chan struct{}),
	}
}

// Run consumes both topics until ctx is canceled or the bus closes.
// Designed to run under the supervision tree alongside the hub itself.
func (b *Bridge) Run(ctx context.Context) error {
	events, err := b.bus.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribe live events: %w", err)
	}
	notifications, err := b.bus.SubscribeNotifications(ctx)
	if err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	b.readyOnce.Do(func() { close(b.ready) })

	logging.Info().
		Str("component", "websocket-bridge").
		Msg("Websocket bus bridge started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "websocket-bridge").
				Msg("Websocket bus bridge stopping")
			return ctx.Err()

		case msg, ok := <-events:
			if !ok {
				return b.stopped(ctx)
			}
			b.forwardEvent(msg)

		case msg, ok := <-notifications:
			if !ok {
				return b.stopped(ctx)
			}
			b.forwardNotification(msg)
		}
	}
}

// stopped reports why a subscriber channel closed. Both channels close on
// bus close and on context cancellation; the first one observed ends the
// bridge.
func (b *Bridge) stopped(ctx context.Context) error {
	logging.Info().
		Str("component", "websocket-bridge").
		Msg("Websocket bus bridge stopping")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (b *Bridge) forwardEvent(msg *message.Message) {
	defer msg.Ack()

	env, err := eventbus.DeserializeEnvelope(msg.Payload)
	if err != nil {
		logging.Warn().
			Str("component", "websocket-bridge").
			Err(err).
			Msg("Dropping undecodable live event")
		return
	}
	b.hub.BroadcastLiveEvent(env)
}

func (b *Bridge) forwardNotification(msg *message.Message) {
	defer msg.Ack()

	n, err := eventbus.DeserializeNotification(msg.Payload)
	if err != nil {
		logging.Warn().
			Str("component", "websocket-bridge").
			Err(err).
			Msg("Dropping undecodable notification")
		return
	}
	b.hub.BroadcastNotification(n)
}
