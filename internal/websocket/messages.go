// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package websocket

import (
	"github.com/goccy/go-json"
)

// Message types pushed to dashboard clients.
const (
	// MessageTypeLiveEvent wraps a bus envelope: one captured transport
	// event with its session and handle context.
	MessageTypeLiveEvent = "live_event"

	// MessageTypeNotification wraps a monitoring state transition
	// (session started/ended, account blocked/recovered, alert triggered).
	MessageTypeNotification = "notification"

	// MessageTypePing and MessageTypePong implement application-level
	// liveness probes initiated by the client.
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the frame format for all WebSocket traffic.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
