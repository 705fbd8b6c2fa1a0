// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build nats

package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/vigil/internal/logging"
)

const serverShutdownTimeout = 30 * time.Second

// Forwarder mirrors the in-process bus to NATS JetStream. It subscribes to
// both bus topics and republishes every message under the same subject,
// giving external consumers a durable, replayable feed without touching
// the database.
//
// Messages are deduplicated server-side by message UUID (the event ID for
// live events), so redelivery after a failed publish cannot produce
// duplicates within the stream's duplicate window.
type Forwarder struct {
	bus       *Bus
	publisher *Publisher
	server    *EmbeddedServer
	config    ForwarderConfig
	logger    watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

// NewForwarder connects to NATS, provisions the mirror stream, and builds
// the resilient publisher. When opts.Forwarder.EmbeddedServer is set an
// in-process NATS server is started first and forwarding targets it.
//
// The returned forwarder does not consume the bus until Serve is called.
func NewForwarder(ctx context.Context, bus *Bus, opts ForwarderOptions) (*Forwarder, error) {
	if bus == nil {
		return nil, fmt.Errorf("bus required")
	}

	cfg := opts.Forwarder
	logger := watermill.NewStdLogger(false, false)

	var srv *EmbeddedServer
	if cfg.EmbeddedServer {
		s, err := NewEmbeddedServer(&opts.Server)
		if err != nil {
			return nil, fmt.Errorf("start embedded server: %w", err)
		}
		srv = s
		cfg.URL = s.ClientURL()
	}

	if err := ensureStream(ctx, cfg.URL, opts.Stream); err != nil {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
		}
		return nil, err
	}

	pub, err := NewPublisher(cfg, logger)
	if err != nil {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
		}
		return nil, err
	}
	pub.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("nats-forwarder")))

	logging.Info().
		Str("url", cfg.URL).
		Str("stream", opts.Stream.Name).
		Bool("embedded", cfg.EmbeddedServer).
		Msg("NATS forwarder ready")

	return &Forwarder{
		bus:       bus,
		publisher: pub,
		server:    srv,
		config:    cfg,
		logger:    logger,
	}, nil
}

// ensureStream provisions the mirror stream on a short-lived connection.
// The publisher runs with AutoProvision disabled and relies on this.
func ensureStream(ctx context.Context, url string, streamCfg StreamConfig) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect for stream provisioning: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	init, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		return err
	}
	if _, err := init.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}

// Serve consumes both bus topics and republishes to JetStream until ctx is
// canceled or the bus closes. Suitable as a suture service.
func (f *Forwarder) Serve(ctx context.Context) error {
	events, err := f.bus.Subscriber().Subscribe(ctx, TopicLiveEvents)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicLiveEvents, err)
	}
	notifications, err := f.bus.Subscriber().Subscribe(ctx, TopicNotifications)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicNotifications, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.forward(ctx, TopicLiveEvents, events)
	}()
	go func() {
		defer wg.Done()
		f.forward(ctx, TopicNotifications, notifications)
	}()
	wg.Wait()

	return ctx.Err()
}

// forward republishes messages from one bus topic until the channel closes.
// A failed publish is nacked after RetryDelay so an open circuit breaker
// does not spin on immediate redelivery.
func (f *Forwarder) forward(ctx context.Context, topic string, msgs <-chan *message.Message) {
	for msg := range msgs {
		if err := f.publisher.Publish(ctx, topic, msg); err != nil {
			f.logger.Error("Forward to JetStream failed", err, watermill.LogFields{
				"topic":        topic,
				"message_uuid": msg.UUID,
			})
			select {
			case <-time.After(f.config.RetryDelay):
			case <-ctx.Done():
			}
			msg.Nack()
			continue
		}
		msg.Ack()
	}
}

// Close shuts down the publisher and, if one was started, the embedded
// server. Idempotent.
func (f *Forwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	if err := f.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}

	if f.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		if err := f.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown embedded server: %w", err)
		}
	}
	return nil
}
