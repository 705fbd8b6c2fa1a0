// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package main is the entry point for the Vigil server.

Vigil is a self-hosted live stream monitor. It watches a set of platform
accounts through a decode gateway, detects when they go live, records every
session event into DuckDB, and streams the live feed to WebSocket clients.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("vigil")
	├── MonitorSupervisor ("monitor-layer")
	│   ├── Account Poller (per-account check chains)
	│   └── Spill Log Maintenance (optional, -tags wal)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket Hub (client fan-out)
	│   ├── Bus Bridge (event bus -> hub)
	│   ├── Alert Engine (optional, keyword matching)
	│   └── NATS Forwarder (optional, -tags nats)
	└── APISupervisor ("api-layer")
	    └── Ops HTTP Server (health, metrics, status, /ws)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB for accounts, sessions, events, and analytics
 4. Event Bus: In-process Watermill pub/sub for live events and notifications
 5. Spill Log: BadgerDB crash-spill for failed event flushes (-tags wal)
 6. Monitoring: Settings provider, registry, block tracker, prober,
    session manager, and poller
 7. Alerts: Chat keyword matching with webhook delivery (optional)
 8. NATS Forwarder: JetStream mirror of the event bus (-tags nats)
 9. Ops Server: Chi router with health, readiness, metrics, and WebSocket
 10. Reconcile: Drain the spill log and close sessions orphaned by the
    previous run, then start the session manager and the supervisor tree

The session manager's lifecycle is owned by main, not the tree: Reconcile
and Start run before the tree serves, and Stop runs after the tree has
drained so active sessions can finish while the store, bus, and spill log
are still open.

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest priority
wins):
  - Environment variables (see internal/config)
  - Config file (config.yaml)
  - Built-in defaults

The only required setting is the gateway endpoint:
  - GATEWAY_URL: Decode gateway WebSocket URL (e.g. wss://gateway.local/v1/live)

Optional platform credentials:
  - GATEWAY_SESSION_TOKEN: Plaintext session token
  - GATEWAY_SESSION_TOKEN_ENCRYPTED + GATEWAY_MASTER_KEY: Encrypted form;
    wins over the plaintext token when both are set

# Build Tags

Optional build tags enable additional functionality:

	go build -tags "nats" ./cmd/server      # Enable NATS JetStream forwarding
	go build -tags "wal" ./cmd/server       # Enable BadgerDB spill log
	go build -tags "nats,wal" ./cmd/server  # Enable both

Without the tags, stubs keep the same wiring: failed event flushes are
dropped with a log line instead of spilled, and bus messages stay
in-process instead of being mirrored to JetStream.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:
  - Stops scheduling new probes and checks
  - Finishes active sessions and flushes buffered events
  - Shuts down the ops server with a 10s drain timeout
  - Closes the forwarder, spill log, event bus, and database

# Example Usage

Minimal (monitor public accounts through a local gateway):

	export GATEWAY_URL=ws://localhost:8765/v1/live
	./vigil

With a platform session token for age-gated streams:

	export GATEWAY_URL=wss://gateway.internal/v1/live
	export GATEWAY_SESSION_TOKEN=sid_abc123
	./vigil

Production with keyword alerts and the spill log:

	export GATEWAY_URL=wss://gateway.internal/v1/live
	export GATEWAY_SESSION_TOKEN_ENCRYPTED=...   # from config.TokenCipher
	export GATEWAY_MASTER_KEY=...
	export ALERT_KEYWORDS=giveaway,promo
	export ALERT_WEBHOOK_URL=https://hooks.example.com/vigil
	export WAL_ENABLED=true
	export WAL_PATH=/data/vigil/spill
	./vigil   # built with -tags wal
*/
package main
