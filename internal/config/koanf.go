// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vigil/config.yaml",
	"/etc/vigil/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			URL:                   "", // Required at bootstrap; empty passes Validate for tooling and tests
			SessionToken:          "",
			SessionTokenEncrypted: "",
			MasterKey:             "",
			HandshakeTimeout:      10 * time.Second,
			ReadTimeout:           60 * time.Second,
			PingInterval:          30 * time.Second,
			EventBuffer:           256,
		},
		Database: DatabaseConfig{
			Path:                   "/data/vigil.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,    // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true, // DuckDB default
			SkipIndexes:            false,
		},
		Monitor: MonitorConfig{
			OfflineCheckInterval: time.Minute,
			OnlineCheckInterval:  5 * time.Minute,
			PostSessionCooldown:  90 * time.Second,
			ProbeWindow:          5 * time.Second,
			ProbeDwell:           2 * time.Second,
			ProbeRatePerMinute:   30,
			ProbeRateBurst:       5,
			CooldownBaseHours:    1,
			CooldownMaxHours:     72,
			QuickRetryEnabled:    true,
			QuickRetryAttempts:   3,
			QuickRetryInterval:   15 * time.Second,
			RecoveryProbeDelay:   10 * time.Minute,
			StopOnBlock:          true,
			AutoCooldown:         true,
			AutoRecovery:         true,
			MaxReconnectAttempts: 5,
			ReconnectBackoffBase: time.Second,
			ReconnectBackoffMax:  30 * time.Second,
			EventFlushInterval:   time.Second,
			CounterFlushInterval: 5 * time.Second,
			SnapshotInterval:     15 * time.Second,
			MaxBufferedEvents:    10_000,
			PollStartJitter:      10 * time.Second,
			SettingsCacheTTL:     10 * time.Second,
		},
		Alerts: AlertsConfig{
			Enabled:            true,
			Keywords:           []string{},
			WebhookURL:         "",
			WebhookTimeout:     10 * time.Second,
			WebhookMinInterval: time.Second,
		},
		NATS: NATSConfig{
			Enabled:             false, // Forwarding is opt-in; requires the "nats" build tag
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DurableName:         "vigil-events",
			QueueGroup:          "monitors",
		},
		WAL: WALConfig{
			Enabled: true,
			Path:    "/data/wal",
		},
		Server: ServerConfig{
			Port:              8090,
			Host:              "0.0.0.0",
			Timeout:           30 * time.Second,
			Environment:       "development", // Set ENVIRONMENT=production for production checks
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
//   - Session token decryption when an encrypted token and master key are set
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// GATEWAY_URL -> gateway.url
	// OFFLINE_CHECK_INTERVAL -> monitor.offline_check_interval
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Unwrap the encrypted session token before validation so downstream
	// components only ever see the plaintext field populated.
	if err := cfg.decryptSessionToken(); err != nil {
		return nil, fmt.Errorf("failed to decrypt gateway session token: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// decryptSessionToken resolves Gateway.SessionToken from the encrypted form
// when one is configured. Requires Gateway.MasterKey. The encrypted form wins
// over a plaintext token so stale plaintext cannot shadow a rotated secret.
func (c *Config) decryptSessionToken() error {
	if c.Gateway.SessionTokenEncrypted == "" {
		return nil
	}
	if c.Gateway.MasterKey == "" {
		return fmt.Errorf("GATEWAY_SESSION_TOKEN_ENCRYPTED is set but GATEWAY_MASTER_KEY is empty")
	}

	cipher, err := NewTokenCipher(c.Gateway.MasterKey)
	if err != nil {
		return err
	}

	token, err := cipher.Decrypt(c.Gateway.SessionTokenEncrypted)
	if err != nil {
		return err
	}

	c.Gateway.SessionToken = token
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"alerts.keywords",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - GATEWAY_URL -> gateway.url
//   - GATEWAY_SESSION_TOKEN -> gateway.session_token
//   - OFFLINE_CHECK_INTERVAL -> monitor.offline_check_interval
//   - COOLDOWN_MAX_HOURS -> monitor.cooldown_max_hours
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	// Map environment variable names to config sections
	envMappings := map[string]string{
		// Gateway mappings
		"gateway_url":                     "gateway.url",
		"gateway_session_token":           "gateway.session_token",
		"gateway_session_token_encrypted": "gateway.session_token_encrypted",
		"gateway_master_key":              "gateway.master_key",
		"gateway_handshake_timeout":       "gateway.handshake_timeout",
		"gateway_read_timeout":            "gateway.read_timeout",
		"gateway_ping_interval":           "gateway.ping_interval",
		"gateway_event_buffer":            "gateway.event_buffer",

		// Database mappings
		"duckdb_path":         "database.path",
		"duckdb_max_memory":   "database.max_memory",
		"duckdb_threads":      "database.threads",
		"duckdb_skip_indexes": "database.skip_indexes",

		// Monitor mappings
		"offline_check_interval": "monitor.offline_check_interval",
		"online_check_interval":  "monitor.online_check_interval",
		"post_session_cooldown":  "monitor.post_session_cooldown",
		"probe_window":           "monitor.probe_window",
		"probe_dwell":            "monitor.probe_dwell",
		"probe_rate_per_minute":  "monitor.probe_rate_per_minute",
		"probe_rate_burst":       "monitor.probe_rate_burst",
		"cooldown_base_hours":    "monitor.cooldown_base_hours",
		"cooldown_max_hours":     "monitor.cooldown_max_hours",
		"quick_retry_enabled":    "monitor.quick_retry_enabled",
		"quick_retry_attempts":   "monitor.quick_retry_attempts",
		"quick_retry_interval":   "monitor.quick_retry_interval",
		"recovery_probe_delay":   "monitor.recovery_probe_delay",
		"stop_on_block":          "monitor.stop_on_block",
		"auto_cooldown":          "monitor.auto_cooldown",
		"auto_recovery":          "monitor.auto_recovery",
		"max_reconnect_attempts": "monitor.max_reconnect_attempts",
		"reconnect_backoff_base": "monitor.reconnect_backoff_base",
		"reconnect_backoff_max":  "monitor.reconnect_backoff_max",
		"event_flush_interval":   "monitor.event_flush_interval",
		"counter_flush_interval": "monitor.counter_flush_interval",
		"snapshot_interval":      "monitor.snapshot_interval",
		"max_buffered_events":    "monitor.max_buffered_events",
		"poll_start_jitter":      "monitor.poll_start_jitter",
		"settings_cache_ttl":     "monitor.settings_cache_ttl",

		// Alerts mappings
		"alerts_enabled":             "alerts.enabled",
		"alert_keywords":             "alerts.keywords",
		"alert_webhook_url":          "alerts.webhook_url",
		"alert_webhook_timeout":      "alerts.webhook_timeout",
		"alert_webhook_min_interval": "alerts.webhook_min_interval",

		// NATS mappings
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",

		// WAL mappings
		"wal_enabled": "wal.enabled",
		"wal_path":    "wal.path",

		// Server mappings
		"http_port":           "server.port",
		"http_host":           "server.host",
		"http_timeout":        "server.timeout",
		"environment":         "server.environment",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",
		"disable_rate_limit":  "server.rate_limit_disabled",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
