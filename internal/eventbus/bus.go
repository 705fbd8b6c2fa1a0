// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// ErrBusClosed is returned by publish and subscribe calls after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Bus is the in-process pub/sub hub connecting the session manager to the
// alert engine, the websocket hub, and the optional NATS forwarder.
//
// All methods are safe for concurrent use.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New creates an event bus with the given configuration.
func New(cfg BusConfig) *Bus {
	logger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.OutputChannelBuffer,
		Persistent:          cfg.Persistent,
	}, logger)

	logging.Debug().
		Int64("buffer", cfg.OutputChannelBuffer).
		Msg("Event bus started")

	return &Bus{
		pubSub: pubSub,
		logger: logger,
	}
}

// PublishEvent publishes a live event envelope on TopicLiveEvents.
// The message UUID is the event ID, so every downstream consumer can
// deduplicate on it.
func (b *Bus) PublishEvent(env *Envelope) error {
	data, err := SerializeEnvelope(env)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}

	msg := message.NewMessage(env.Event.ID.String(), data)
	msg.Metadata.Set(MetadataHandle, env.Handle)
	msg.Metadata.Set(MetadataEventType, env.Event.Type)
	msg.Metadata.Set(MetadataSessionID, env.SessionID.String())

	return b.publish(TopicLiveEvents, msg)
}

// PublishNotification publishes a state transition on TopicNotifications.
func (b *Bus) PublishNotification(n *Notification) error {
	data, err := SerializeNotification(n)
	if err != nil {
		return fmt.Errorf("serialize notification: %w", err)
	}

	msg := message.NewMessage(n.ID.String(), data)
	msg.Metadata.Set(MetadataHandle, n.Handle)
	msg.Metadata.Set(MetadataKind, string(n.Kind))
	if n.SessionID != uuid.Nil {
		msg.Metadata.Set(MetadataSessionID, n.SessionID.String())
	}

	return b.publish(TopicNotifications, msg)
}

func (b *Bus) publish(topic string, msg *message.Message) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	b.mu.RUnlock()

	if err := b.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	metrics.RecordBusPublish(topic)
	return nil
}

// SubscribeEvents returns a channel of live event messages. The channel
// closes when ctx is canceled or the bus is closed. Each message must be
// Acked or Nacked; delivery to this subscriber stalls until then.
func (b *Bus) SubscribeEvents(ctx context.Context) (<-chan *message.Message, error) {
	return b.subscribe(ctx, TopicLiveEvents)
}

// SubscribeNotifications returns a channel of notification messages with
// the same semantics as SubscribeEvents.
func (b *Bus) SubscribeNotifications(ctx context.Context) (<-chan *message.Message, error) {
	return b.subscribe(ctx, TopicNotifications)
}

func (b *Bus) subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBusClosed
	}
	b.mu.RUnlock()

	ch, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return ch, nil
}

// Subscriber exposes the raw Watermill subscriber for components that
// bridge the bus elsewhere, such as the NATS forwarder.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubSub
}

// Close shuts down the bus and closes all subscriber channels.
// Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	logging.Debug().Msg("Event bus closing")
	return b.pubSub.Close()
}
