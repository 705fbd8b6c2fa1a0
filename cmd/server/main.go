// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/vigil/internal/alerts"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/database"
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/monitor"
	"github.com/tomtom215/vigil/internal/ops"
	"github.com/tomtom215/vigil/internal/settings"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/supervisor/services"
	"github.com/tomtom215/vigil/internal/transport/gateway"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Msg("Starting Vigil with supervisor tree")

	// The gateway endpoint is the one setting with no usable default.
	if cfg.Gateway.URL == "" {
		logging.Fatal().Msg("GATEWAY_URL is required")
	}

	logging.Info().
		Str("gateway_url", cfg.Gateway.URL).
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Bool("alerts_enabled", cfg.Alerts.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// In-process pub/sub carrying live events and monitor notifications.
	// Everything downstream (bridge, alerts, forwarder) subscribes here.
	bus := eventbus.New(eventbus.DefaultBusConfig())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// Per-build spill log: BadgerDB with -tags wal, a dropping no-op without.
	spill, err := InitSpillLog(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open spill log")
	}
	defer closeSpillLog(spill)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Create the WebSocket hub early so the ops server can hand it clients.
	hub := ws.NewHub()

	provider := settings.NewProvider(db, cfg)
	registry := monitor.NewRegistry()
	blocks := monitor.NewBlockTracker(db, provider, bus)

	dialer := gateway.NewClient(gateway.Config{
		URL:              cfg.Gateway.URL,
		SessionToken:     cfg.Gateway.SessionToken,
		HandshakeTimeout: cfg.Gateway.HandshakeTimeout,
		ReadTimeout:      cfg.Gateway.ReadTimeout,
		PingInterval:     cfg.Gateway.PingInterval,
		EventBuffer:      cfg.Gateway.EventBuffer,
	})

	// The probe budget is configured per minute; the limiter wants per second.
	probeLimiter := rate.NewLimiter(
		rate.Limit(float64(cfg.Monitor.ProbeRatePerMinute)/60.0),
		cfg.Monitor.ProbeRateBurst,
	)
	prober := monitor.NewProber(dialer, provider, probeLimiter)

	// A nil interface (wal build with WAL_ENABLED=false) means failed
	// flushes are dropped; the manager checks for that itself.
	var spillLog monitor.SpillLog
	if spill != nil {
		spillLog = spill
	}

	manager := monitor.NewManager(db, registry, dialer, provider, blocks, bus, spillLog, monitor.ManagerConfig{
		EventFlushInterval:   cfg.Monitor.EventFlushInterval,
		CounterFlushInterval: cfg.Monitor.CounterFlushInterval,
		SnapshotInterval:     cfg.Monitor.SnapshotInterval,
		MaxBufferedEvents:    cfg.Monitor.MaxBufferedEvents,
		Supervisor: monitor.SupervisorConfig{
			MaxReconnectAttempts: cfg.Monitor.MaxReconnectAttempts,
			BackoffBase:          cfg.Monitor.ReconnectBackoffBase,
			BackoffMax:           cfg.Monitor.ReconnectBackoffMax,
			EventBuffer:          cfg.Gateway.EventBuffer,
		},
	})

	poller := monitor.NewPoller(db, provider, prober, manager, blocks, registry, monitor.PollerConfig{
		StartJitter: cfg.Monitor.PollStartJitter,
	})

	bridge := ws.NewBridge(hub, bus)

	engine := initAlerts(db, provider, bus, cfg)

	// Optional JetStream mirror of the bus (requires build with -tags nats)
	fwd, err := InitForwarder(ctx, bus, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS forwarder")
	}
	if fwd != nil {
		defer func() {
			if err := fwd.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing NATS forwarder")
			}
		}()
	}

	srv := ops.NewServer(cfg.Server, db, registry, hub)

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Monitor layer services
	tree.AddMonitorService(services.NewPollerService(poller))
	logging.Info().Msg("Account poller added to supervisor tree")
	AddWALMaintenanceToSupervisor(tree, spill)

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewBusBridgeService(bridge))
	logging.Info().Msg("WebSocket hub and bridge added to supervisor tree")
	if engine != nil {
		tree.AddMessagingService(services.NewAlertEngineService(engine))
		logging.Info().Msg("Alert engine added to supervisor tree")
	}
	AddForwarderToSupervisor(tree, fwd)

	// API layer services
	tree.AddAPIService(services.NewOpsServerService(srv.HTTPServer(), 10*time.Second))
	logging.Info().Str("addr", srv.Addr()).Msg("Ops server service added")

	// === RECONCILE AND START ===

	// Reconcile before anything probes or serves: drain the spill log and
	// close sessions the previous run left marked live.
	if err := manager.Reconcile(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to reconcile persistent state")
	}
	if err := manager.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start session manager")
	}

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// The poller has stopped scheduling; finish the active sessions while
	// the store, bus, and spill log are still open.
	manager.Stop()

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// initAlerts builds the keyword alert engine with its webhook notifier.
// Returns nil when alerting is disabled; the engine without a webhook still
// records triggered alerts to the store.
func initAlerts(db *database.DB, provider *settings.Provider, bus *eventbus.Bus, cfg *config.Config) *alerts.Engine {
	if !cfg.Alerts.Enabled {
		logging.Info().Msg("Keyword alerting disabled (ALERTS_ENABLED=false)")
		return nil
	}

	engine := alerts.NewEngine(db, provider, bus, alerts.DefaultEngineConfig())

	if cfg.Alerts.WebhookURL != "" {
		engine.RegisterNotifier(alerts.NewWebhookNotifier(alerts.WebhookConfig{
			URL:         cfg.Alerts.WebhookURL,
			Timeout:     cfg.Alerts.WebhookTimeout,
			MinInterval: cfg.Alerts.WebhookMinInterval,
			Enabled:     true,
		}))
	}

	return engine
}
