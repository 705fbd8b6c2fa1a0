// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// ContextRunner matches components whose Run method blocks under a context.
//
// This interface allows the wrappers below to work with the websocket
// package's Hub and Bridge without importing it, avoiding circular
// dependencies.
//
// Satisfied by:
//   - *websocket.Hub from internal/websocket/hub.go
//   - *websocket.Bridge from internal/websocket/bridge.go
type ContextRunner interface {
	Run(ctx context.Context) error
}

// WebSocketHubService wraps the WebSocket hub as a supervised service.
//
// The hub's Run method already implements the suture.Service pattern,
// so this wrapper simply delegates to it and provides a name for logging.
//
// Example usage:
//
//	hub := websocket.NewHub()
//	svc := services.NewWebSocketHubService(hub)
//	tree.AddMessagingService(svc)
type WebSocketHubService struct {
	hub  ContextRunner
	name string
}

// NewWebSocketHubService creates a new WebSocket hub service wrapper.
func NewWebSocketHubService(hub ContextRunner) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
//
// This method delegates to hub.Run which:
//  1. Processes client registration/unregistration and broadcasts
//  2. Returns when the context is canceled
//  3. Gracefully closes all clients on shutdown
//
// The method returns ctx.Err() on normal shutdown.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	return w.hub.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (w *WebSocketHubService) String() string {
	return w.name
}

// BusBridgeService wraps the event bus bridge as a supervised service.
//
// The bridge subscribes to the live event and notification topics and
// forwards both to the hub. A supervisor restart resubscribes, so a
// bridge crash costs at most the messages published while it was down.
//
// Example usage:
//
//	bridge := websocket.NewBridge(hub, bus)
//	svc := services.NewBusBridgeService(bridge)
//	tree.AddMessagingService(svc)
type BusBridgeService struct {
	bridge ContextRunner
	name   string
}

// NewBusBridgeService creates a new bus bridge service wrapper.
func NewBusBridgeService(bridge ContextRunner) *BusBridgeService {
	return &BusBridgeService{
		bridge: bridge,
		name:   "websocket-bridge",
	}
}

// Serve implements suture.Service.
//
// This method delegates to bridge.Run which:
//  1. Subscribes to the live event and notification topics
//  2. Forwards decoded messages to the hub
//  3. Returns when the context is canceled or the bus closes
//
// Run returns nil exactly when the bus has closed underneath the bridge.
// Suture restarts services that return nil, and a restart against a closed
// bus would only fail to resubscribe, so that case is mapped to
// suture.ErrDoNotRestart.
func (b *BusBridgeService) Serve(ctx context.Context) error {
	if err := b.bridge.Run(ctx); err != nil {
		return err
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (b *BusBridgeService) String() string {
	return b.name
}
