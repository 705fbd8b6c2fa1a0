// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build wal

// This file wires the BadgerDB spill log into the boot sequence. It is only
// compiled when the "wal" build tag is enabled.
//
// Build with spill log support:
//
//	go build -tags wal -o vigil ./cmd/server

package main

import (
	"time"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/supervisor/services"
	"github.com/tomtom215/vigil/internal/wal"
)

// walMaintenanceInterval is how often the spill log's value log GC runs.
const walMaintenanceInterval = 5 * time.Minute

// spillConfig maps the WAL section of the application config onto the spill
// log's config, starting from durability-first defaults. Only the enable
// flag and the path are operator-facing; the BadgerDB tuning keeps defaults.
func spillConfig(cfg *config.Config) wal.Config {
	walCfg := wal.DefaultConfig()
	walCfg.Enabled = cfg.WAL.Enabled
	if cfg.WAL.Path != "" {
		walCfg.Path = cfg.WAL.Path
	}
	return walCfg
}

// InitSpillLog opens the BadgerDB spill log for event batches the store
// refused.
//
// Returns nil when the spill log is disabled via config; the session
// manager treats a nil spill log as "drop failed flushes with a log line".
func InitSpillLog(cfg *config.Config) (*wal.BadgerLog, error) {
	walCfg := spillConfig(cfg)
	if !walCfg.Enabled {
		logging.Info().Msg("Spill log disabled (WAL_ENABLED=false); failed flushes are dropped")
		return nil, nil
	}
	return wal.Open(&walCfg)
}

// AddWALMaintenanceToSupervisor schedules periodic value log GC for the
// spill log on the monitor layer.
//
// This function is a no-op if spill is nil (spill log disabled via config).
func AddWALMaintenanceToSupervisor(tree *supervisor.SupervisorTree, spill *wal.BadgerLog) {
	if spill == nil {
		return
	}
	tree.AddMonitorService(services.NewWALMaintenanceService(spill, walMaintenanceInterval))
	logging.Info().Msg("Spill log maintenance added to supervisor tree (monitor layer)")
}

// closeSpillLog closes the spill log, logging any error.
func closeSpillLog(spill *wal.BadgerLog) {
	if spill == nil {
		return
	}
	if err := spill.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing spill log")
	}
}
