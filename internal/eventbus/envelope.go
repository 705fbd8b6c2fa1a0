// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package eventbus

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/models"
)

// Bus topics. The names double as NATS subjects when the forwarder mirrors
// them, which is why they use dot notation.
const (
	// TopicLiveEvents carries every transport event from monitored streams.
	TopicLiveEvents = "live.events"

	// TopicNotifications carries monitoring state transitions.
	TopicNotifications = "monitor.notifications"
)

// Message metadata keys. Subscribers can route on metadata without
// unmarshaling the payload.
const (
	MetadataHandle    = "handle"
	MetadataEventType = "event_type"
	MetadataSessionID = "session_id"
	MetadataKind      = "kind"
)

// Envelope wraps a live event with the account context a subscriber needs
// without a database lookup. The event's own ID becomes the message UUID,
// so downstream deduplication (JetStream msg-id tracking) keys on it.
type Envelope struct {
	SessionID uuid.UUID        `json:"session_id"`
	Handle    string           `json:"handle"`
	Event     models.LiveEvent `json:"event"`
}

// Validate checks that the envelope carries enough context to route.
func (e *Envelope) Validate() error {
	if e.Handle == "" {
		return fmt.Errorf("envelope handle required")
	}
	if e.SessionID == uuid.Nil {
		return fmt.Errorf("envelope session ID required")
	}
	if e.Event.ID == uuid.Nil {
		return fmt.Errorf("envelope event ID required")
	}
	return nil
}

// SerializeEnvelope converts an envelope to JSON for transmission.
func SerializeEnvelope(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("envelope is nil")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// DeserializeEnvelope parses an envelope from JSON.
func DeserializeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// NotificationKind identifies a monitoring state transition.
type NotificationKind string

// Notification kinds published on TopicNotifications.
const (
	KindSessionStarted   NotificationKind = "session_started"
	KindSessionEnded     NotificationKind = "session_ended"
	KindAccountBlocked   NotificationKind = "account_blocked"
	KindAccountRecovered NotificationKind = "account_recovered"
	KindAlertTriggered   NotificationKind = "alert_triggered"
)

// Notification describes a monitoring state transition for an account.
// SessionID is uuid.Nil for transitions that happen outside a session,
// such as a block detected during an offline probe.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Handle    string           `json:"handle"`
	SessionID uuid.UUID        `json:"session_id"`
	Message   string           `json:"message,omitempty"`
	At        time.Time        `json:"at"`
}

// NewNotification builds a notification with a fresh ID and timestamp.
func NewNotification(kind NotificationKind, handle string, sessionID uuid.UUID, text string) *Notification {
	return &Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Handle:    handle,
		SessionID: sessionID,
		Message:   text,
		At:        time.Now().UTC(),
	}
}

// Validate checks required notification fields.
func (n *Notification) Validate() error {
	if n.ID == uuid.Nil {
		return fmt.Errorf("notification ID required")
	}
	if n.Kind == "" {
		return fmt.Errorf("notification kind required")
	}
	if n.Handle == "" {
		return fmt.Errorf("notification handle required")
	}
	return nil
}

// SerializeNotification converts a notification to JSON for transmission.
func SerializeNotification(n *Notification) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("notification is nil")
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// DeserializeNotification parses a notification from JSON.
func DeserializeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}
