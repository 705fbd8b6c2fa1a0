// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package eventbus

import "time"

// BusConfig holds in-process bus settings.
type BusConfig struct {
	// OutputChannelBuffer is the per-subscriber channel buffer size.
	// A slow subscriber only blocks publishers once its buffer is full.
	OutputChannelBuffer int64

	// Persistent replays all previously published messages to new
	// subscribers. Only useful in tests; production subscribers attach
	// before monitoring starts.
	Persistent bool
}

// DefaultBusConfig returns production defaults for the in-process bus.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		OutputChannelBuffer: 256,
		Persistent:          false,
	}
}

// ForwarderConfig holds NATS JetStream forwarder settings.
type ForwarderConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions

	// EmbeddedServer starts an in-process NATS server and forwards to it,
	// ignoring URL. When false an external server at URL is expected.
	EmbeddedServer bool

	// RetryDelay is how long the forward loop waits before redelivering a
	// message whose publish failed.
	RetryDelay time.Duration
}

// DefaultForwarderConfig returns production defaults for the forwarder.
func DefaultForwarderConfig(url string) ForwarderConfig {
	return ForwarderConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
		EmbeddedServer:   false,
		RetryDelay:       time.Second,
	}
}

// ForwarderOptions bundles the configuration needed to build a forwarder.
type ForwarderOptions struct {
	Forwarder ForwarderConfig
	Server    ServerConfig // used when Forwarder.EmbeddedServer is set
	Stream    StreamConfig
}

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns production defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// StreamConfig defines the mirrored event stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns production stream configuration.
// The subjects cover both bus topics so a single stream holds the full
// monitoring feed.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name: "VIGIL_EVENTS",
		Subjects: []string{
			"live.>",
			"monitor.>",
		},
		MaxAge:          7 * 24 * time.Hour,      // 7 days
		MaxBytes:        10 * 1024 * 1024 * 1024, // 10GB
		MaxMsgs:         -1,                      // Unlimited
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
