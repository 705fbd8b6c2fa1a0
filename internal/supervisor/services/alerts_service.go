// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// AlertEngine interface matches the alerts.Engine's Run method.
//
// This interface allows the AlertEngineService to work with the alert engine
// without importing the alerts package, avoiding circular dependencies.
//
// Satisfied by *alerts.Engine from internal/alerts/engine.go.
type AlertEngine interface {
	// Run starts the engine's chat-matching loop.
	// It returns when the context is canceled or the bus closes.
	Run(ctx context.Context) error
}

// AlertEngineService wraps the keyword alert engine as a supervised service.
//
// The engine consumes chat events from the bus, matches them against the
// configured keywords, persists hits, and dispatches notifiers. A restart
// resubscribes and rebuilds the keyword matcher from settings; the dedup
// window starts empty, so a crash can at worst repeat one alert per
// session and keyword.
//
// Example usage:
//
//	engine := alerts.NewEngine(bus, store, keywords, cfg)
//	svc := services.NewAlertEngineService(engine)
//	tree.AddMessagingService(svc)
type AlertEngineService struct {
	engine AlertEngine
	name   string
}

// NewAlertEngineService creates a new alert engine service wrapper.
func NewAlertEngineService(engine AlertEngine) *AlertEngineService {
	return &AlertEngineService{
		engine: engine,
		name:   "alert-engine",
	}
}

// Serve implements suture.Service.
//
// This method delegates to engine.Run which:
//  1. Subscribes to the live event topic
//  2. Matches chat comments against alert keywords
//  3. Persists alerts and dispatches notifiers
//  4. Returns when the context is canceled
//
// Run returns nil exactly when the bus has closed underneath the engine.
// Suture restarts services that return nil, and a restart against a closed
// bus would only fail to resubscribe, so that case is mapped to
// suture.ErrDoNotRestart.
func (d *AlertEngineService) Serve(ctx context.Context) error {
	if err := d.engine.Run(ctx); err != nil {
		return err
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (d *AlertEngineService) String() string {
	return d.name
}
