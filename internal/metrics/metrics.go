// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Liveness probes and poller scheduling
// - Connection supervision and session lifecycle
// - Event capture, flushing, and spill handling
// - Block tracking, alerting, and delivery surfaces

var (
	// Probe Metrics
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "probe_duration_seconds",
			Help:    "Duration of liveness probes in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s to 10s
		},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probes_total",
			Help: "Total number of liveness probes by outcome",
		},
		[]string{"outcome"}, // "live", "offline", "blocked", "error"
	)

	ProbeRoomIDReuse = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "probe_room_id_reuse_total",
			Help: "Total number of probes that saw the previous session's room ID again",
		},
	)

	// Connection Supervisor Metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connections_active",
			Help: "Current number of live stream connections",
		},
	)

	ConnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_attempts_total",
			Help: "Total number of connection attempts by result",
		},
		[]string{"result"}, // "connected", "failed", "blocked"
	)

	ConnectionReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_reconnects_total",
			Help: "Total number of reconnection attempts after a dropped connection",
		},
	)

	// Session Lifecycle Metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Current number of live sessions being recorded",
		},
	)

	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_started_total",
			Help: "Total number of live sessions started",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_ended_total",
			Help: "Total number of live sessions ended by reason",
		},
		[]string{"reason"}, // "stream_end", "connection_failed", "stopped", "blocked", "stale"
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_duration_seconds",
			Help:    "Duration of completed live sessions in seconds",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800}, // 1m to 8h
		},
	)

	// Event Pipeline Metrics
	EventsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_captured_total",
			Help: "Total number of live events captured by type",
		},
		[]string{"type"}, // "chat", "gift", "like", "member", "social", ...
	)

	EventsFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_flushed_total",
			Help: "Total number of events written to the database",
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events discarded before storage",
		},
		[]string{"reason"}, // "session_gone", "overflow", "spill_disabled"
	)

	EventsSpilled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_spilled_total",
			Help: "Total number of events handed to the spill log after flush failures",
		},
	)

	EventFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_flush_duration_seconds",
			Help:    "Duration of event buffer flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_flush_errors_total",
			Help: "Total number of failed event buffer flushes",
		},
	)

	EventBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_buffer_size",
			Help: "Current number of events buffered in memory across sessions",
		},
	)

	SnapshotsTaken = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_total",
			Help: "Total number of session snapshots written by kind",
		},
		[]string{"kind"}, // "interval", "final"
	)

	CounterFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "counter_flushes_total",
			Help: "Total number of viewer counter flushes",
		},
	)

	// Block Tracking Metrics
	BlocksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blocks_recorded_total",
			Help: "Total number of platform blocks recorded",
		},
	)

	BlockConsecutiveCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "block_consecutive_count",
			Help: "Current consecutive block count per account",
		},
		[]string{"handle"},
	)

	RecoveryProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recovery_probes_total",
			Help: "Total number of post-cooldown recovery probes by outcome",
		},
		[]string{"outcome"}, // "recovered", "still_blocked"
	)

	// Poller Metrics
	PollerChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poller_checks_total",
			Help: "Total number of poller checks by scheduling branch",
		},
		[]string{"branch"}, // "blocked_cooldown", "session_active", "post_session_cooldown", "quick_retry", "regular"
	)

	PollerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poller_errors_total",
			Help: "Total number of poller check errors treated as offline",
		},
	)

	AccountsMonitored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accounts_monitored",
			Help: "Current number of accounts with monitoring enabled",
		},
	)

	// Event Bus Metrics
	BusMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_published_total",
			Help: "Total number of messages published on the in-process bus",
		},
		[]string{"topic"},
	)

	NATSForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_forwarded_total",
			Help: "Total number of bus messages mirrored to NATS JetStream",
		},
	)

	NATSForwardErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_forward_errors_total",
			Help: "Total number of failed JetStream forwards",
		},
	)

	// Alert Metrics
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Total number of keyword alerts triggered",
		},
		[]string{"keyword"},
	)

	AlertsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_deduplicated_total",
			Help: "Total number of alerts suppressed by the dedup window",
		},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by result",
		},
		[]string{"result"}, // "delivered", "failed", "breaker_open", "rate_limited"
	)

	WebhookDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Duration of webhook deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordProbe records a liveness probe outcome and its duration.
func RecordProbe(outcome string, duration time.Duration) {
	ProbesTotal.WithLabelValues(outcome).Inc()
	ProbeDuration.Observe(duration.Seconds())
}

// RecordRoomIDReuse records a probe that saw a previously used room ID.
func RecordRoomIDReuse() {
	ProbeRoomIDReuse.Inc()
}

// RecordConnectionAttempt records a connection attempt result.
func RecordConnectionAttempt(result string) {
	ConnectionAttempts.WithLabelValues(result).Inc()
}

// RecordReconnect records a reconnection attempt.
func RecordReconnect() {
	ConnectionReconnects.Inc()
}

// TrackConnection adjusts the active connection gauge.
func TrackConnection(inc bool) {
	if inc {
		ConnectionsActive.Inc()
	} else {
		ConnectionsActive.Dec()
	}
}

// RecordSessionStart records a session start.
func RecordSessionStart() {
	SessionsStarted.Inc()
	SessionsActive.Inc()
}

// RecordSessionEnd records a session end with its reason and duration.
func RecordSessionEnd(reason string, duration time.Duration) {
	SessionsEnded.WithLabelValues(reason).Inc()
	SessionDuration.Observe(duration.Seconds())
	SessionsActive.Dec()
}

// RecordEventCaptured records an event appended to a session buffer.
func RecordEventCaptured(eventType string) {
	EventsCaptured.WithLabelValues(eventType).Inc()
}

// RecordEventFlush records an event buffer flush.
func RecordEventFlush(count int, duration time.Duration, err error) {
	EventFlushDuration.Observe(duration.Seconds())
	if err != nil {
		EventFlushErrors.Inc()
		return
	}
	EventsFlushed.Add(float64(count))
}

// RecordEventsDropped records events discarded before storage.
func RecordEventsDropped(reason string, count int) {
	EventsDropped.WithLabelValues(reason).Add(float64(count))
}

// RecordEventsSpilled records events handed to the spill log.
func RecordEventsSpilled(count int) {
	EventsSpilled.Add(float64(count))
}

// UpdateEventBufferSize updates the in-memory event buffer gauge.
func UpdateEventBufferSize(size int) {
	EventBufferSize.Set(float64(size))
}

// RecordSnapshot records a session snapshot write.
func RecordSnapshot(kind string) {
	SnapshotsTaken.WithLabelValues(kind).Inc()
}

// RecordCounterFlush records a viewer counter flush.
func RecordCounterFlush() {
	CounterFlushes.Inc()
}

// RecordBlock records a platform block and the account's consecutive count.
func RecordBlock(handle string, consecutiveCount int) {
	BlocksRecorded.Inc()
	BlockConsecutiveCount.WithLabelValues(handle).Set(float64(consecutiveCount))
}

// RecordBlockCleared removes the consecutive count gauge for a recovered
// account.
func RecordBlockCleared(handle string) {
	BlockConsecutiveCount.DeleteLabelValues(handle)
}

// RecordRecoveryProbe records the outcome of a post-cooldown recovery probe.
func RecordRecoveryProbe(recovered bool) {
	outcome := "still_blocked"
	if recovered {
		outcome = "recovered"
	}
	RecoveryProbes.WithLabelValues(outcome).Inc()
}

// RecordPollerCheck records which scheduling branch a poller check took.
func RecordPollerCheck(branch string) {
	PollerChecks.WithLabelValues(branch).Inc()
}

// RecordPollerError records a check error treated as offline.
func RecordPollerError() {
	PollerErrors.Inc()
}

// UpdateAccountsMonitored updates the monitored accounts gauge.
func UpdateAccountsMonitored(count int) {
	AccountsMonitored.Set(float64(count))
}

// RecordBusPublish records a message published on the in-process bus.
func RecordBusPublish(topic string) {
	BusMessagesPublished.WithLabelValues(topic).Inc()
}

// RecordNATSForward records a bus message mirrored to JetStream.
func RecordNATSForward() {
	NATSForwarded.Inc()
}

// RecordNATSForwardError records a failed JetStream forward.
func RecordNATSForwardError() {
	NATSForwardErrors.Inc()
}

// RecordAlert records a triggered keyword alert.
func RecordAlert(keyword string) {
	AlertsTriggered.WithLabelValues(keyword).Inc()
}

// RecordAlertDeduplicated records an alert suppressed by the dedup window.
func RecordAlertDeduplicated() {
	AlertsDeduplicated.Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(result string, duration time.Duration) {
	WebhookDeliveries.WithLabelValues(result).Inc()
	WebhookDeliveryDuration.Observe(duration.Seconds())
}

// TrackWSConnection adjusts the WebSocket connection gauge.
func TrackWSConnection(inc bool) {
	if inc {
		WSConnections.Inc()
	} else {
		WSConnections.Dec()
	}
}

// RecordWSMessageSent records a WebSocket message sent to a client.
func RecordWSMessageSent() {
	WSMessagesSent.Inc()
}

// RecordWSError records a WebSocket error.
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// SetAppInfo publishes version and build information.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// UpdateUptime updates the uptime gauge from the process start time.
func UpdateUptime(start time.Time) {
	AppUptime.Set(time.Since(start).Seconds())
}
