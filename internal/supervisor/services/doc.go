// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package services provides suture.Service wrappers for Vigil components.

This package adapts application components to the suture v4 supervision
model, translating their lifecycle patterns (Start/Stop, Run, ListenAndServe)
into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

Account Poller (PollerService):
  - Wraps monitor.Poller with Start/Stop lifecycle
  - Drives the live-status check chains
  - A restart re-reads the monitored account list from the store

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub, which already runs under a context
  - Handles client connection cleanup on shutdown

Bus Bridge (BusBridgeService):
  - Wraps websocket.Bridge, which already runs under a context
  - Forwards bus traffic to the hub; a restart resubscribes

Alert Engine (AlertEngineService):
  - Wraps alerts.Engine, which already runs under a context
  - Keyword matching and notifier dispatch

Ops Server (OpsServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

Spill Log Maintenance (WALMaintenanceService):
  - Runs periodic BadgerDB value log garbage collection
  - Build tag: wal (disabled by default)

NATS Forwarder (NATSForwarderService):
  - Wraps eventbus.Forwarder, which already runs under a context
  - Republishes bus traffic to JetStream
  - Build tag: nats (disabled by default)

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/vigil/internal/supervisor"
	    "github.com/tomtom215/vigil/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub, poller *monitor.Poller) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // Ops server with 30s shutdown timeout
	    opsSvc := services.NewOpsServerService(server, 30*time.Second)
	    tree.AddAPIService(opsSvc)

	    // WebSocket hub
	    hubSvc := services.NewWebSocketHubService(hub)
	    tree.AddMessagingService(hubSvc)

	    // Account poller
	    pollerSvc := services.NewPollerService(poller)
	    tree.AddMonitorService(pollerSvc)

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles three lifecycle patterns:

Start/Stop Pattern:

	type StartStopper interface {
	    Start(ctx context.Context) error
	    Stop()
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    if err := s.component.Start(ctx); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    s.component.Stop()
	    return ctx.Err()
	}

Run Pattern:

	type ContextRunner interface {
	    Run(ctx context.Context) error  // Blocks until ctx is canceled
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    return s.component.Run(ctx)
	}

ListenAndServe Pattern:

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

All services implement fmt.Stringer for logging:

	func (s *OpsServerService) String() string {
	    return "ops-server"
	}

Suture uses this for log messages:

	INFO ops-server: starting
	INFO ops-server: stopped
	ERROR ops-server: restarting after failure

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
