// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables
// and optional config files. Provides centralized configuration for every
// component: the gateway transport, the DuckDB store, the monitoring engine,
// chat alerting, event processing, and the operational HTTP surface.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Platform Access:
//     - Gateway: WebSocket decode-gateway connection (URL, session token)
//
//  2. Infrastructure:
//     - Database: DuckDB configuration (path, memory, threads)
//     - NATS: Optional event forwarding with Watermill/NATS JetStream
//     - WAL: Write-ahead spill log for event batches that outlive a crash
//     - Server: Operational HTTP server (port, host, timeout, CORS)
//
//  3. Monitoring:
//     - Monitor: Poll intervals, probe thresholds, cooldown policy, flush
//       cadence. These also serve as fallbacks for the settings table.
//     - Alerts: Chat keyword matching and webhook notification
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Gateway.URL, cfg.Database.Path, etc. are now populated
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Gateway  GatewayConfig  `koanf:"gateway"`
	Database DatabaseConfig `koanf:"database"`
	Monitor  MonitorConfig  `koanf:"monitor"`
	Alerts   AlertsConfig   `koanf:"alerts"`  // Optional: chat keyword alerting
	NATS     NATSConfig     `koanf:"nats"`    // Optional: event forwarding to JetStream (build tag "nats")
	WAL      WALConfig      `koanf:"wal"`     // Optional: crash-spill log (build tag "wal")
	Server   ServerConfig   `koanf:"server"`  // Operational HTTP surface
	Logging  LoggingConfig  `koanf:"logging"` // zerolog settings
}

// GatewayConfig holds the decode-gateway connection settings. The gateway is
// the upstream service that speaks the platform's wire protocol and delivers
// live events to Vigil as JSON frames over WebSocket.
//
// Environment Variables:
//   - GATEWAY_URL: Gateway WebSocket URL (e.g., wss://gateway.example.com/ws)
//   - GATEWAY_SESSION_TOKEN: Platform session token, plaintext
//   - GATEWAY_SESSION_TOKEN_ENCRYPTED: Session token encrypted with Encrypt()
//   - GATEWAY_MASTER_KEY: Key for decrypting the encrypted session token
//   - GATEWAY_HANDSHAKE_TIMEOUT: WebSocket dial timeout (default: 10s)
//   - GATEWAY_READ_TIMEOUT: Per-read deadline (default: 60s)
//   - GATEWAY_PING_INTERVAL: Keepalive ping cadence (default: 30s)
//   - GATEWAY_EVENT_BUFFER: Per-connection event channel capacity (default: 256)
//
// When both SessionToken and SessionTokenEncrypted are set, the encrypted
// form wins: Load decrypts it with MasterKey and overwrites SessionToken.
// The session token never needs to sit in plaintext in a config file.
type GatewayConfig struct {
	// URL is the gateway WebSocket endpoint. Scheme must be ws or wss.
	URL string `koanf:"url"`

	// SessionToken authenticates Vigil against the gateway. Optional for
	// public rooms; required for age-gated or regional streams.
	SessionToken string `koanf:"session_token"`

	// SessionTokenEncrypted is the AES-256-GCM encrypted session token,
	// base64-encoded, as produced by TokenCipher.Encrypt.
	SessionTokenEncrypted string `koanf:"session_token_encrypted"`

	// MasterKey derives the AES key (HKDF-SHA256) that unwraps
	// SessionTokenEncrypted. Supply via environment only.
	MasterKey string `koanf:"master_key"`

	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`

	// ReadTimeout is the per-read deadline; a silent gateway past this is a
	// dead connection.
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"gt=0"`

	// PingInterval is the keepalive ping cadence. Must be below ReadTimeout.
	PingInterval time.Duration `koanf:"ping_interval" validate:"gt=0"`

	// EventBuffer is the per-connection event channel capacity.
	EventBuffer int `koanf:"event_buffer" validate:"min=1"`
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // Number of DuckDB threads (0 = use NumCPU)
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // Whether to preserve insertion order (default true)
	SkipIndexes            bool   `koanf:"skip_indexes"`             // Skip index creation (for fast test setup)
}

// MonitorConfig holds the monitoring engine tunables. Every value here is a
// fallback: the settings provider overlays persisted overrides from the
// settings table, so operators can adjust these at runtime without a restart.
//
// Environment Variables:
//   - OFFLINE_CHECK_INTERVAL: Poll cadence while an account is offline (default: 60s)
//   - ONLINE_CHECK_INTERVAL: Poll cadence while an account is live (default: 5m)
//   - POST_SESSION_COOLDOWN: Probe-free window after a session ends (default: 90s)
//   - PROBE_WINDOW: Liveness probe observation window (default: 5s)
//   - PROBE_DWELL: Minimum probe observation time (default: 2s)
//   - PROBE_RATE_PER_MINUTE: Global probe budget across all accounts (default: 30)
//   - PROBE_RATE_BURST: Probe rate limiter burst (default: 5)
//   - COOLDOWN_BASE_HOURS: First block cooldown duration (default: 1)
//   - COOLDOWN_MAX_HOURS: Cooldown growth ceiling (default: 72)
//   - QUICK_RETRY_ENABLED: Re-probe shortly after a block signal (default: true)
//   - QUICK_RETRY_ATTEMPTS: Bounded quick-retry count (default: 3)
//   - QUICK_RETRY_INTERVAL: Delay between quick retries (default: 15s)
//   - RECOVERY_PROBE_DELAY: One-shot probe delay after cooldown expiry (default: 10m)
//   - STOP_ON_BLOCK: Terminate active monitoring on a block signal (default: true)
//   - AUTO_COOLDOWN: Record blocks into the cooldown tracker (default: true)
//   - AUTO_RECOVERY: Schedule recovery probes after cooldowns (default: true)
//   - MAX_RECONNECT_ATTEMPTS: Supervisor reconnects before giving up (default: 5)
//   - RECONNECT_BACKOFF_BASE: First reconnect delay (default: 1s)
//   - RECONNECT_BACKOFF_MAX: Reconnect delay ceiling (default: 30s)
//   - EVENT_FLUSH_INTERVAL: Buffered event write cadence (default: 1s)
//   - COUNTER_FLUSH_INTERVAL: Session counter write cadence (default: 5s)
//   - SNAPSHOT_INTERVAL: Stats snapshot cadence (default: 15s)
//   - MAX_BUFFERED_EVENTS: Per-session buffer cap before oldest-drop (default: 10000)
//   - POLL_START_JITTER: Max random delay when seeding poll timers (default: 10s)
//   - SETTINGS_CACHE_TTL: Settings provider cache lifetime (default: 10s)
type MonitorConfig struct {
	// OfflineCheckInterval is how often an offline account is probed.
	OfflineCheckInterval time.Duration `koanf:"offline_check_interval" validate:"gt=0"`

	// OnlineCheckInterval is how often a live account is re-checked. Checks
	// while a supervisor is connected never probe, so this can be generous.
	OnlineCheckInterval time.Duration `koanf:"online_check_interval" validate:"gt=0"`

	// PostSessionCooldown suppresses probes after a session ends; platform
	// room state lags the real stream end and would feed ghost rooms.
	PostSessionCooldown time.Duration `koanf:"post_session_cooldown" validate:"gte=0"`

	// ProbeWindow is the maximum time a probe observes events.
	ProbeWindow time.Duration `koanf:"probe_window" validate:"gt=0"`

	// ProbeDwell is the minimum time a probe observes events before an early
	// liveness verdict.
	ProbeDwell time.Duration `koanf:"probe_dwell" validate:"gt=0"`

	// ProbeRatePerMinute bounds probe dials across all accounts.
	ProbeRatePerMinute int `koanf:"probe_rate_per_minute" validate:"min=1"`

	// ProbeRateBurst is the probe rate limiter burst size.
	ProbeRateBurst int `koanf:"probe_rate_burst" validate:"min=1"`

	// CooldownBaseHours is the first block cooldown. Doubles per block.
	CooldownBaseHours int `koanf:"cooldown_base_hours" validate:"min=1"`

	// CooldownMaxHours caps the exponential cooldown growth.
	CooldownMaxHours int `koanf:"cooldown_max_hours" validate:"min=1"`

	// QuickRetryEnabled re-probes shortly after a block signal, which is
	// often transient rate limiting rather than a real device block.
	QuickRetryEnabled bool `koanf:"quick_retry_enabled"`

	// QuickRetryAttempts bounds the quick retries per block signal.
	QuickRetryAttempts int `koanf:"quick_retry_attempts" validate:"min=1"`

	// QuickRetryInterval is the delay between quick retries.
	QuickRetryInterval time.Duration `koanf:"quick_retry_interval" validate:"gt=0"`

	// RecoveryProbeDelay schedules the one-shot recovery probe after a
	// cooldown expires.
	RecoveryProbeDelay time.Duration `koanf:"recovery_probe_delay" validate:"gt=0"`

	// StopOnBlock terminates active monitoring when a block signature shows
	// up mid-session.
	StopOnBlock bool `koanf:"stop_on_block"`

	// AutoCooldown records block signals into the cooldown tracker.
	AutoCooldown bool `koanf:"auto_cooldown"`

	// AutoRecovery schedules recovery probes when cooldowns expire.
	AutoRecovery bool `koanf:"auto_recovery"`

	// MaxReconnectAttempts is how many times the connection supervisor
	// retries before declaring the session lost.
	MaxReconnectAttempts int `koanf:"max_reconnect_attempts" validate:"min=1"`

	// ReconnectBackoffBase is the first reconnect delay; doubles per attempt.
	ReconnectBackoffBase time.Duration `koanf:"reconnect_backoff_base" validate:"gt=0"`

	// ReconnectBackoffMax caps the reconnect delay.
	ReconnectBackoffMax time.Duration `koanf:"reconnect_backoff_max" validate:"gt=0"`

	// EventFlushInterval is the buffered event write cadence.
	EventFlushInterval time.Duration `koanf:"event_flush_interval" validate:"gt=0"`

	// CounterFlushInterval is the session counter write cadence.
	CounterFlushInterval time.Duration `koanf:"counter_flush_interval" validate:"gt=0"`

	// SnapshotInterval is the stats snapshot cadence while live.
	SnapshotInterval time.Duration `koanf:"snapshot_interval" validate:"gt=0"`

	// MaxBufferedEvents caps the per-session buffer; overflow drops oldest.
	MaxBufferedEvents int `koanf:"max_buffered_events" validate:"min=1"`

	// PollStartJitter spreads initial poll timers so a restart does not
	// probe every account in the same instant.
	PollStartJitter time.Duration `koanf:"poll_start_jitter" validate:"gte=0"`

	// SettingsCacheTTL is how long the settings provider caches the merged
	// settings view.
	SettingsCacheTTL time.Duration `koanf:"settings_cache_ttl" validate:"gt=0"`
}

// AlertsConfig holds chat keyword alerting settings.
//
// Environment Variables:
//   - ALERTS_ENABLED: Enable keyword alerting (default: true)
//   - ALERT_KEYWORDS: Comma-separated trigger words (default: empty)
//   - ALERT_WEBHOOK_URL: Webhook POST target for triggered alerts
//   - ALERT_WEBHOOK_TIMEOUT: Webhook HTTP timeout (default: 10s)
//   - ALERT_WEBHOOK_MIN_INTERVAL: Minimum spacing between webhook calls (default: 1s)
type AlertsConfig struct {
	Enabled            bool          `koanf:"enabled"`
	Keywords           []string      `koanf:"keywords"`
	WebhookURL         string        `koanf:"webhook_url"`
	WebhookTimeout     time.Duration `koanf:"webhook_timeout" validate:"gt=0"`
	WebhookMinInterval time.Duration `koanf:"webhook_min_interval" validate:"gte=0"`
}

// NATSConfig holds event forwarding settings for the optional NATS JetStream
// integration (build tag "nats"). When enabled, every live event and monitor
// notification published on the in-process bus is mirrored to JetStream for
// external consumers and replay.
//
// Environment Variables:
//   - NATS_ENABLED: Enable event forwarding (default: false)
//   - NATS_URL: NATS server connection URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Use embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory (default: /data/nats/jetstream)
//   - NATS_MAX_MEMORY: Max memory for JetStream in bytes (default: 1073741824 = 1GB)
//   - NATS_MAX_STORE: Max disk storage for JetStream in bytes (default: 10737418240 = 10GB)
//   - NATS_RETENTION_DAYS: Event retention period in days (default: 7)
//   - NATS_DURABLE_NAME: Consumer durable name (default: vigil-events)
//   - NATS_QUEUE_GROUP: Queue group for load balancing (default: monitors)
type NATSConfig struct {
	// Enabled controls whether event forwarding is active.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer enables the embedded NATS server.
	// If false, expects an external NATS server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the maximum memory for JetStream in bytes.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the maximum disk storage for JetStream in bytes.
	MaxStore int64 `koanf:"max_store"`

	// StreamRetentionDays is how long to keep forwarded events.
	StreamRetentionDays int `koanf:"stream_retention_days"`

	// DurableName is the consumer durable name for message tracking.
	DurableName string `koanf:"durable_name"`

	// QueueGroup is the queue group for load balancing.
	QueueGroup string `koanf:"queue_group"`
}

// WALConfig holds the badger-backed spill log settings (build tag "wal").
// Event batches that cannot be written to DuckDB are spilled here and
// reconciled on the next startup.
type WALConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// ServerConfig holds operational HTTP server settings
type ServerConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	Host              string        `koanf:"host"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	Environment       string        `koanf:"environment" validate:"oneof=development staging production"` // Environment mode
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for development.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	// Adds slight performance overhead.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load loads and validates the configuration. It is a thin alias for
// LoadWithKoanf, kept as the conventional entry point.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
