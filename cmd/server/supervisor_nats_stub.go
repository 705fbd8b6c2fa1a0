// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build !nats

// This file provides a no-op stub for NATS supervisor integration. It is
// only compiled when the "nats" build tag is NOT enabled.
//
// Build without NATS support (default):
//
//	go build -o vigil ./cmd/server

package main

import (
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/supervisor"
)

// AddForwarderToSupervisor is a no-op stub for non-NATS builds. The
// forwarder is always nil here; InitForwarder in nats_init_stub.go never
// creates one.
func AddForwarderToSupervisor(_ *supervisor.SupervisorTree, _ *eventbus.Forwarder) {
	// No-op: NATS not compiled in
}
