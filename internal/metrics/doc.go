// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the monitoring pipeline end to end using the
Prometheus client library, from liveness probes through event capture to
alert delivery.

# Overview

The package provides metrics for:
  - Liveness probe outcomes and latency
  - Connection supervisor attempts, reconnects, and active connections
  - Session lifecycle (starts, end reasons, durations)
  - Event pipeline throughput (buffered, flushed, dropped, spilled)
  - Snapshot and viewer-counter flushes
  - Block tracking and recovery probes
  - Poller scheduling decisions
  - Event bus and NATS forwarding
  - Alert engine and webhook delivery
  - WebSocket dashboard connections
  - Database query performance

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8085/metrics

# Naming

Metric names group by subsystem prefix (probe_, connection_, session_,
event_, block_, poller_, bus_, nats_, alert_, websocket_, db_). Counters
end in _total, durations in _seconds. The badger spill log registers its
own wal_ metrics in internal/wal to keep build-tag flavors self-contained.

# Usage

Record helpers hide label plumbing from call sites:

	start := time.Now()
	result, err := prober.Probe(ctx, handle, prevRoomID)
	metrics.RecordProbe(outcome(result, err), time.Since(start))

All metrics register on the default Prometheus registry via promauto, so
the ops server only needs promhttp.Handler().
*/
package metrics
