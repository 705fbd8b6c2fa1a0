// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build nats

package main

import (
	"context"
	"time"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
)

// forwarderOptions maps the NATS section of the application config onto the
// forwarder's option set, starting from production defaults. Zero-valued
// config fields keep the defaults.
func forwarderOptions(cfg *config.Config) eventbus.ForwarderOptions {
	opts := eventbus.ForwarderOptions{
		Forwarder: eventbus.DefaultForwarderConfig(cfg.NATS.URL),
		Server:    eventbus.DefaultServerConfig(),
		Stream:    eventbus.DefaultStreamConfig(),
	}

	opts.Forwarder.EmbeddedServer = cfg.NATS.EmbeddedServer
	if cfg.NATS.StoreDir != "" {
		opts.Server.StoreDir = cfg.NATS.StoreDir
	}
	if cfg.NATS.MaxMemory > 0 {
		opts.Server.JetStreamMaxMem = cfg.NATS.MaxMemory
	}
	if cfg.NATS.MaxStore > 0 {
		opts.Server.JetStreamMaxStore = cfg.NATS.MaxStore
	}
	if cfg.NATS.StreamRetentionDays > 0 {
		opts.Stream.MaxAge = time.Duration(cfg.NATS.StreamRetentionDays) * 24 * time.Hour
	}

	return opts
}

// InitForwarder builds the JetStream forwarder that mirrors bus messages to
// NATS for external consumers and replay.
//
// Returns nil when forwarding is disabled via config. The caller adds the
// forwarder to the supervisor tree with AddForwarderToSupervisor and closes
// it after the tree stops.
func InitForwarder(ctx context.Context, bus *eventbus.Bus, cfg *config.Config) (*eventbus.Forwarder, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS forwarding disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	fwd, err := eventbus.NewForwarder(ctx, bus, forwarderOptions(cfg))
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("url", cfg.NATS.URL).
		Bool("embedded", cfg.NATS.EmbeddedServer).
		Msg("NATS forwarder initialized")
	return fwd, nil
}
