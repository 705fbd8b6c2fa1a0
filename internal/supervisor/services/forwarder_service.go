// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build nats

package services

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// NATSForwarder interface matches the eventbus.Forwarder's Serve method.
//
// This interface allows the NATSForwarderService to work with the forwarder
// without importing the eventbus package, avoiding circular dependencies.
//
// Satisfied by *eventbus.Forwarder from internal/eventbus/forwarder.go.
type NATSForwarder interface {
	// Serve consumes both bus topics and republishes to JetStream.
	// It returns when the context is canceled or the bus closes.
	Serve(ctx context.Context) error
}

// NATSForwarderService wraps the JetStream forwarder as a supervised service.
//
// The forwarder's Serve method already implements the suture.Service
// pattern; this wrapper provides the log name and the restart decision.
// The forwarder's Close (publisher and embedded server teardown) stays
// with main, which calls it after the tree has drained.
//
// Example usage:
//
//	fwd, _ := eventbus.NewForwarder(ctx, bus, opts)
//	svc := services.NewNATSForwarderService(fwd)
//	tree.AddMessagingService(svc)
type NATSForwarderService struct {
	forwarder NATSForwarder
	name      string
}

// NewNATSForwarderService creates a new JetStream forwarder service wrapper.
func NewNATSForwarderService(forwarder NATSForwarder) *NATSForwarderService {
	return &NATSForwarderService{
		forwarder: forwarder,
		name:      "nats-forwarder",
	}
}

// Serve implements suture.Service.
//
// This method delegates to forwarder.Serve which:
//  1. Subscribes to the live event and notification topics
//  2. Republishes each message to JetStream, nacking failures for redelivery
//  3. Returns when the context is canceled or the bus closes
//
// Serve returns nil exactly when the bus has closed underneath the
// forwarder. Suture restarts services that return nil, and a restart
// against a closed bus would only fail to resubscribe, so that case is
// mapped to suture.ErrDoNotRestart.
func (s *NATSForwarderService) Serve(ctx context.Context) error {
	if err := s.forwarder.Serve(ctx); err != nil {
		return err
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *NATSForwarderService) String() string {
	return s.name
}
