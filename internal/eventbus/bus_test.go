// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vigil/internal/models"
)

func testEnvelope() *Envelope {
	sessionID := uuid.New()
	return &Envelope{
		SessionID: sessionID,
		Handle:    "streamer_one",
		Event: models.LiveEvent{
			ID:         uuid.New(),
			SessionID:  sessionID,
			Type:       "chat",
			OccurredAt: time.Now().UTC(),
			Payload:    json.RawMessage(`{"text":"huge giveaway tonight"}`),
		},
	}
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed unexpectedly")
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

func TestBus_EventRoundTrip(t *testing.T) {
	bus := New(DefaultBusConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("SubscribeEvents() error = %v", err)
	}

	env := testEnvelope()
	if err := bus.PublishEvent(env); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	msg := receive(t, ch)
	defer msg.Ack()

	if msg.UUID != env.Event.ID.String() {
		t.Errorf("message UUID = %q, want event ID %q", msg.UUID, env.Event.ID)
	}
	if got := msg.Metadata.Get(MetadataHandle); got != "streamer_one" {
		t.Errorf("handle metadata = %q, want %q", got, "streamer_one")
	}
	if got := msg.Metadata.Get(MetadataEventType); got != "chat" {
		t.Errorf("event type metadata = %q, want %q", got, "chat")
	}
	if got := msg.Metadata.Get(MetadataSessionID); got != env.SessionID.String() {
		t.Errorf("session metadata = %q, want %q", got, env.SessionID)
	}

	decoded, err := DeserializeEnvelope(msg.Payload)
	if err != nil {
		t.Fatalf("DeserializeEnvelope() error = %v", err)
	}
	if decoded.Handle != env.Handle {
		t.Errorf("decoded handle = %q, want %q", decoded.Handle, env.Handle)
	}
	if decoded.Event.ID != env.Event.ID {
		t.Errorf("decoded event ID = %v, want %v", decoded.Event.ID, env.Event.ID)
	}
	if string(decoded.Event.Payload) != string(env.Event.Payload) {
		t.Errorf("decoded payload = %s, want %s", decoded.Event.Payload, env.Event.Payload)
	}
}

func TestBus_NotificationRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind NotificationKind
	}{
		{"session started", KindSessionStarted},
		{"session ended", KindSessionEnded},
		{"account blocked", KindAccountBlocked},
		{"account recovered", KindAccountRecovered},
		{"alert triggered", KindAlertTriggered},
	}

	bus := New(DefaultBusConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeNotifications(ctx)
	if err != nil {
		t.Fatalf("SubscribeNotifications() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotification(tt.kind, "streamer_one", uuid.New(), "state changed")
			if err := bus.PublishNotification(n); err != nil {
				t.Fatalf("PublishNotification() error = %v", err)
			}

			msg := receive(t, ch)
			msg.Ack()

			if msg.UUID != n.ID.String() {
				t.Errorf("message UUID = %q, want notification ID %q", msg.UUID, n.ID)
			}
			if got := msg.Metadata.Get(MetadataKind); got != string(tt.kind) {
				t.Errorf("kind metadata = %q, want %q", got, tt.kind)
			}

			decoded, err := DeserializeNotification(msg.Payload)
			if err != nil {
				t.Fatalf("DeserializeNotification() error = %v", err)
			}
			if decoded.Kind != tt.kind {
				t.Errorf("decoded kind = %q, want %q", decoded.Kind, tt.kind)
			}
			if decoded.Handle != "streamer_one" {
				t.Errorf("decoded handle = %q, want %q", decoded.Handle, "streamer_one")
			}
		})
	}
}

func TestBus_SessionlessNotificationOmitsMetadata(t *testing.T) {
	bus := New(DefaultBusConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeNotifications(ctx)
	if err != nil {
		t.Fatalf("SubscribeNotifications() error = %v", err)
	}

	n := NewNotification(KindAccountBlocked, "streamer_one", uuid.Nil, "blocked during probe")
	if err := bus.PublishNotification(n); err != nil {
		t.Fatalf("PublishNotification() error = %v", err)
	}

	msg := receive(t, ch)
	msg.Ack()

	if got := msg.Metadata.Get(MetadataSessionID); got != "" {
		t.Errorf("session metadata = %q, want empty for sessionless notification", got)
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := New(DefaultBusConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("SubscribeEvents() error = %v", err)
	}
	second, err := bus.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("SubscribeEvents() error = %v", err)
	}

	env := testEnvelope()
	if err := bus.PublishEvent(env); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	for i, ch := range []<-chan *message.Message{first, second} {
		msg := receive(t, ch)
		msg.Ack()
		if msg.UUID != env.Event.ID.String() {
			t.Errorf("subscriber %d: UUID = %q, want %q", i, msg.UUID, env.Event.ID)
		}
	}
}

func TestBus_PublishInvalidEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{"missing handle", func(e *Envelope) { e.Handle = "" }},
		{"missing session", func(e *Envelope) { e.SessionID = uuid.Nil }},
		{"missing event ID", func(e *Envelope) { e.Event.ID = uuid.Nil }},
	}

	bus := New(DefaultBusConfig())
	defer bus.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnvelope()
			tt.mutate(env)
			if err := bus.PublishEvent(env); err == nil {
				t.Error("PublishEvent() error = nil, want validation error")
			}
		})
	}
}

func TestBus_ClosedPublish(t *testing.T) {
	bus := New(DefaultBusConfig())
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := bus.PublishEvent(testEnvelope()); !errors.Is(err, ErrBusClosed) {
		t.Errorf("PublishEvent() after close error = %v, want ErrBusClosed", err)
	}

	n := NewNotification(KindSessionStarted, "streamer_one", uuid.New(), "")
	if err := bus.PublishNotification(n); !errors.Is(err, ErrBusClosed) {
		t.Errorf("PublishNotification() after close error = %v, want ErrBusClosed", err)
	}

	// Close is idempotent
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestBus_ClosedSubscribe(t *testing.T) {
	bus := New(DefaultBusConfig())
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := bus.SubscribeEvents(context.Background()); !errors.Is(err, ErrBusClosed) {
		t.Errorf("SubscribeEvents() after close error = %v, want ErrBusClosed", err)
	}
}

func TestBus_SubscriberChannelClosesOnCancel(t *testing.T) {
	bus := New(DefaultBusConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("SubscribeEvents() error = %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received message on canceled subscription")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber channel not closed after cancel")
	}
}

func TestSerializeEnvelope(t *testing.T) {
	env := testEnvelope()

	data, err := SerializeEnvelope(env)
	if err != nil {
		t.Fatalf("SerializeEnvelope() error = %v", err)
	}

	decoded, err := DeserializeEnvelope(data)
	if err != nil {
		t.Fatalf("DeserializeEnvelope() error = %v", err)
	}
	if decoded.SessionID != env.SessionID {
		t.Errorf("session ID = %v, want %v", decoded.SessionID, env.SessionID)
	}

	if _, err := SerializeEnvelope(nil); err == nil {
		t.Error("SerializeEnvelope(nil) error = nil, want error")
	}
	if _, err := DeserializeEnvelope([]byte("not json")); err == nil {
		t.Error("DeserializeEnvelope() error = nil for garbage input")
	}
	if _, err := DeserializeEnvelope([]byte("{}")); err == nil {
		t.Error("DeserializeEnvelope() error = nil for empty envelope")
	}
}

func TestNewNotification(t *testing.T) {
	sessionID := uuid.New()
	n := NewNotification(KindSessionEnded, "streamer_one", sessionID, "stream ended")

	if n.ID == uuid.Nil {
		t.Error("ID not stamped")
	}
	if n.At.IsZero() {
		t.Error("timestamp not stamped")
	}
	if n.Kind != KindSessionEnded || n.Handle != "streamer_one" || n.SessionID != sessionID {
		t.Errorf("unexpected notification: %+v", n)
	}
	if err := n.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestNotification_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Notification)
	}{
		{"missing ID", func(n *Notification) { n.ID = uuid.Nil }},
		{"missing kind", func(n *Notification) { n.Kind = "" }},
		{"missing handle", func(n *Notification) { n.Handle = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNotification(KindSessionStarted, "streamer_one", uuid.New(), "")
			tt.mutate(n)
			if err := n.Validate(); err == nil {
				t.Error("Validate() error = nil, want error")
			}
		})
	}
}

func TestNewCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
	})

	failing := func() (interface{}, error) {
		return nil, errors.New("publish failed")
	}

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("Execute() error = nil, want failure")
		}
	}

	if got := CircuitBreakerState(cb); got != "open" {
		t.Errorf("breaker state = %q, want %q", got, "open")
	}

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Execute() on open breaker error = %v, want ErrOpenState", err)
	}
}

func TestDefaultConfigs(t *testing.T) {
	if cfg := DefaultBusConfig(); cfg.OutputChannelBuffer <= 0 {
		t.Errorf("OutputChannelBuffer = %d, want > 0", cfg.OutputChannelBuffer)
	}

	fwd := DefaultForwarderConfig("nats://127.0.0.1:4222")
	if fwd.URL != "nats://127.0.0.1:4222" {
		t.Errorf("URL = %q", fwd.URL)
	}
	if !fwd.EnableTrackMsgID {
		t.Error("EnableTrackMsgID = false, want true")
	}
	if fwd.RetryDelay <= 0 {
		t.Errorf("RetryDelay = %v, want > 0", fwd.RetryDelay)
	}

	stream := DefaultStreamConfig()
	if stream.Name == "" || len(stream.Subjects) == 0 {
		t.Errorf("incomplete stream config: %+v", stream)
	}
	if stream.DuplicateWindow <= 0 {
		t.Errorf("DuplicateWindow = %v, want > 0", stream.DuplicateWindow)
	}
}
