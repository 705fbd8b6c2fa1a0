// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
)

// InitForwarder is a stub for builds without NATS support. It always
// returns nil; AddForwarderToSupervisor ignores a nil forwarder, so main
// can call both unconditionally without build tag conditionals.
func InitForwarder(_ context.Context, _ *eventbus.Bus, cfg *config.Config) (*eventbus.Forwarder, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but this build has no NATS support (rebuild with -tags nats)")
	}
	return nil, nil
}
