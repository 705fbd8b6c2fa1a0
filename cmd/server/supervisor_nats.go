// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build nats

// This file wires the JetStream forwarder into the supervisor tree. It is
// only compiled when the "nats" build tag is enabled.
//
// Build with NATS support:
//
//	go build -tags nats -o vigil ./cmd/server

package main

import (
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/supervisor/services"
)

// AddForwarderToSupervisor adds the JetStream forwarder to the messaging
// layer for automatic restart on failure.
//
// This function is a no-op if fwd is nil (forwarding disabled via config).
func AddForwarderToSupervisor(tree *supervisor.SupervisorTree, fwd *eventbus.Forwarder) {
	if fwd == nil {
		return
	}
	tree.AddMessagingService(services.NewNATSForwarderService(fwd))
	logging.Info().Msg("NATS forwarder added to supervisor tree (messaging layer)")
}
