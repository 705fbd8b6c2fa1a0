// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build !wal

// This file provides no-op stubs for spill log integration. It is only
// compiled when the "wal" build tag is NOT enabled.
//
// Build without spill log support (default):
//
//	go build -o vigil ./cmd/server

package main

import (
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/wal"
)

// InitSpillLog returns the no-op spill log for builds without -tags wal.
// The session manager still gets a non-nil log; it drops every batch with
// a warning instead of persisting it.
func InitSpillLog(_ *config.Config) (*wal.NoOpLog, error) {
	walCfg := wal.DefaultConfig()
	return wal.Open(&walCfg)
}

// AddWALMaintenanceToSupervisor is a no-op stub; the no-op spill log has
// nothing to garbage collect.
func AddWALMaintenanceToSupervisor(_ *supervisor.SupervisorTree, _ *wal.NoOpLog) {
	// No-op: spill log not compiled in
}

// closeSpillLog closes the no-op log; it never fails.
func closeSpillLog(spill *wal.NoOpLog) {
	if spill != nil {
		_ = spill.Close()
	}
}
