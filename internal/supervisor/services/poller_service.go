// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
	"fmt"
)

// AccountPoller interface matches the monitor.Poller lifecycle.
//
// This interface abstracts the poller's Start/Stop pattern, allowing the
// PollerService wrapper to adapt it to suture's Serve pattern without
// importing the monitor package.
//
// The interface is satisfied by *monitor.Poller from internal/monitor/poller.go:
//   - Start(ctx context.Context) error - seeds a check chain per account
//   - Stop() - cancels pending timers and waits for in-flight checks
type AccountPoller interface {
	Start(ctx context.Context) error
	Stop()
}

// PollerService wraps the account poller as a supervised service.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to schedule check chains for every monitored account
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown
//
// Start reads the monitored account list from the store, so a supervisor
// restart doubles as a resync: accounts enabled while the poller was down
// get picked up on the way back.
//
// Start the session manager before adding this service; till the manager
// is running, live probes have nowhere to hand confirmed sessions.
type PollerService struct {
	poller AccountPoller
	name   string
}

// NewPollerService creates a new poller service wrapper.
//
// Example usage:
//
//	poller := monitor.NewPoller(store, settings, prober, manager, blocks, registry, cfg)
//	svc := services.NewPollerService(poller)
//	tree.AddMonitorService(svc)
func NewPollerService(poller AccountPoller) *PollerService {
	return &PollerService{
		poller: poller,
		name:   "account-poller",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the poller (which schedules its timer chains)
//  2. Blocks until the context is canceled
//  3. Stops the poller (which waits for in-flight checks to finish)
//
// If Start() fails (typically a store error while listing accounts), the
// error is returned immediately, causing suture to restart the service
// according to its backoff policy.
func (s *PollerService) Serve(ctx context.Context) error {
	if err := s.poller.Start(ctx); err != nil {
		return fmt.Errorf("poller start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop blocks until in-flight checks complete. Active sessions are not
	// touched; closing those is the session manager's shutdown.
	s.poller.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *PollerService) String() string {
	return s.name
}
