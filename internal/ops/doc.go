// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package ops serves Vigil's operational HTTP surface.

The surface is infrastructure only. Session control stays with the poller
and the session manager; nothing here mutates monitoring state.

	GET /healthz        liveness probe, 200 while the process is up
	GET /readyz         readiness probe, 503 until the store answers pings
	GET /metrics        Prometheus metrics
	GET /ws             WebSocket upgrade onto the broadcast hub
	GET /api/v1/status  read-only summary of active sessions

Routing is chi with the stock middleware stack (request ID, real IP,
recovery) plus go-chi/cors and per-group go-chi/httprate limiters. Health
probes get a permissive limiter so monitoring tools can poll aggressively;
the WebSocket limiter bounds upgrade attempts, not message throughput.

The server itself is plain net/http with the configured read and write
timeouts. It runs under the supervision tree via the ops-server service
wrapper, which translates context cancellation into a graceful Shutdown:

	srv := ops.NewServer(cfg.Server, db, registry, hub)
	tree.AddAPIService(services.NewOpsServerService(srv.HTTPServer(), 10*time.Second))
*/
package ops
