// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build wal

package services

import (
	"context"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
)

// GCRunner interface matches the spill log's garbage collection hook.
//
// This interface allows the WALMaintenanceService to work with the spill
// log without importing the wal package, avoiding circular dependencies.
//
// Satisfied by *wal.BadgerLog from internal/wal/wal.go.
type GCRunner interface {
	// RunGC reclaims BadgerDB value log space. It loops until no further
	// rewrite is possible and returns ErrClosed once the log is closed.
	RunGC() error
}

// WALMaintenanceService runs periodic garbage collection on the spill log.
//
// BadgerDB never reclaims value log space on its own; something has to call
// RunGC. Drained and confirmed batches otherwise accumulate until the TTL
// sweep, which for a healthy deployment is a week away.
//
// A failed GC pass is logged and retried on the next tick rather than
// crashing the service. GC is housekeeping; the spill log stays correct
// without it, just fatter.
//
// Example usage:
//
//	spill, _ := wal.Open(&cfg.WAL)
//	svc := services.NewWALMaintenanceService(spill, 5*time.Minute)
//	tree.AddMonitorService(svc)
type WALMaintenanceService struct {
	log      GCRunner
	interval time.Duration
	name     string
}

// NewWALMaintenanceService creates a new spill log maintenance service.
//
// The interval controls how often GC runs. Zero or negative values get the
// default of 5 minutes, which keeps value log growth bounded at spill rates
// without measurable CPU cost.
func NewWALMaintenanceService(log GCRunner, interval time.Duration) *WALMaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &WALMaintenanceService{
		log:      log,
		interval: interval,
		name:     "wal-maintenance",
	}
}

// Serve implements suture.Service.
//
// This method runs RunGC on every tick until the context is canceled.
// GC errors are logged at warn level and do not stop the loop.
func (s *WALMaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.log.RunGC(); err != nil {
				logging.Warn().
					Str("component", "wal-maintenance").
					Err(err).
					Msg("Spill log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *WALMaintenanceService) String() string {
	return s.name
}
