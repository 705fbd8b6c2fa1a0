// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Gateway defaults (URL empty - required at bootstrap)
	if cfg.Gateway.URL != "" {
		t.Errorf("Gateway.URL should be empty by default, got %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.HandshakeTimeout != 10*time.Second {
		t.Errorf("Gateway.HandshakeTimeout = %v, want 10s", cfg.Gateway.HandshakeTimeout)
	}
	if cfg.Gateway.ReadTimeout != 60*time.Second {
		t.Errorf("Gateway.ReadTimeout = %v, want 60s", cfg.Gateway.ReadTimeout)
	}
	if cfg.Gateway.EventBuffer != 256 {
		t.Errorf("Gateway.EventBuffer = %d, want 256", cfg.Gateway.EventBuffer)
	}

	// Database defaults
	if cfg.Database.Path != "/data/vigil.duckdb" {
		t.Errorf("Database.Path = %q, want /data/vigil.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB", cfg.Database.MaxMemory)
	}
	if !cfg.Database.PreserveInsertionOrder {
		t.Error("Database.PreserveInsertionOrder should be true by default")
	}

	// Monitor defaults
	if cfg.Monitor.OfflineCheckInterval != time.Minute {
		t.Errorf("Monitor.OfflineCheckInterval = %v, want 1m", cfg.Monitor.OfflineCheckInterval)
	}
	if cfg.Monitor.OnlineCheckInterval != 5*time.Minute {
		t.Errorf("Monitor.OnlineCheckInterval = %v, want 5m", cfg.Monitor.OnlineCheckInterval)
	}
	if cfg.Monitor.PostSessionCooldown != 90*time.Second {
		t.Errorf("Monitor.PostSessionCooldown = %v, want 90s", cfg.Monitor.PostSessionCooldown)
	}
	if cfg.Monitor.ProbeWindow != 5*time.Second {
		t.Errorf("Monitor.ProbeWindow = %v, want 5s", cfg.Monitor.ProbeWindow)
	}
	if cfg.Monitor.ProbeDwell != 2*time.Second {
		t.Errorf("Monitor.ProbeDwell = %v, want 2s", cfg.Monitor.ProbeDwell)
	}
	if cfg.Monitor.CooldownBaseHours != 1 {
		t.Errorf("Monitor.CooldownBaseHours = %d, want 1", cfg.Monitor.CooldownBaseHours)
	}
	if cfg.Monitor.CooldownMaxHours != 72 {
		t.Errorf("Monitor.CooldownMaxHours = %d, want 72", cfg.Monitor.CooldownMaxHours)
	}
	if cfg.Monitor.MaxReconnectAttempts != 5 {
		t.Errorf("Monitor.MaxReconnectAttempts = %d, want 5", cfg.Monitor.MaxReconnectAttempts)
	}
	if cfg.Monitor.ReconnectBackoffBase != time.Second {
		t.Errorf("Monitor.ReconnectBackoffBase = %v, want 1s", cfg.Monitor.ReconnectBackoffBase)
	}
	if cfg.Monitor.EventFlushInterval != time.Second {
		t.Errorf("Monitor.EventFlushInterval = %v, want 1s", cfg.Monitor.EventFlushInterval)
	}
	if cfg.Monitor.CounterFlushInterval != 5*time.Second {
		t.Errorf("Monitor.CounterFlushInterval = %v, want 5s", cfg.Monitor.CounterFlushInterval)
	}
	if cfg.Monitor.SnapshotInterval != 15*time.Second {
		t.Errorf("Monitor.SnapshotInterval = %v, want 15s", cfg.Monitor.SnapshotInterval)
	}
	if cfg.Monitor.MaxBufferedEvents != 10_000 {
		t.Errorf("Monitor.MaxBufferedEvents = %d, want 10000", cfg.Monitor.MaxBufferedEvents)
	}
	if !cfg.Monitor.QuickRetryEnabled {
		t.Error("Monitor.QuickRetryEnabled should be true by default")
	}
	if !cfg.Monitor.StopOnBlock {
		t.Error("Monitor.StopOnBlock should be true by default")
	}
	if cfg.Monitor.SettingsCacheTTL != 10*time.Second {
		t.Errorf("Monitor.SettingsCacheTTL = %v, want 10s", cfg.Monitor.SettingsCacheTTL)
	}

	// NATS defaults (disabled - opt-in)
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL = %q, want nats://127.0.0.1:4222", cfg.NATS.URL)
	}
	if cfg.NATS.MaxMemory != 1<<30 {
		t.Errorf("NATS.MaxMemory = %d, want 1GB", cfg.NATS.MaxMemory)
	}

	// WAL defaults
	if !cfg.WAL.Enabled {
		t.Error("WAL.Enabled should be true by default")
	}
	if cfg.WAL.Path != "/data/wal" {
		t.Errorf("WAL.Path = %q, want /data/wal", cfg.WAL.Path)
	}

	// Server defaults
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

// TestDefaultConfigValidates verifies the shipped defaults pass validation
func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig() should validate cleanly, got: %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Gateway
		{"GATEWAY_URL", "gateway.url"},
		{"GATEWAY_SESSION_TOKEN", "gateway.session_token"},
		{"GATEWAY_MASTER_KEY", "gateway.master_key"},
		{"GATEWAY_PING_INTERVAL", "gateway.ping_interval"},

		// Database
		{"DUCKDB_PATH", "database.path"},
		{"DUCKDB_MAX_MEMORY", "database.max_memory"},
		{"DUCKDB_THREADS", "database.threads"},

		// Monitor
		{"OFFLINE_CHECK_INTERVAL", "monitor.offline_check_interval"},
		{"ONLINE_CHECK_INTERVAL", "monitor.online_check_interval"},
		{"POST_SESSION_COOLDOWN", "monitor.post_session_cooldown"},
		{"PROBE_WINDOW", "monitor.probe_window"},
		{"COOLDOWN_MAX_HOURS", "monitor.cooldown_max_hours"},
		{"QUICK_RETRY_ENABLED", "monitor.quick_retry_enabled"},
		{"MAX_RECONNECT_ATTEMPTS", "monitor.max_reconnect_attempts"},
		{"EVENT_FLUSH_INTERVAL", "monitor.event_flush_interval"},
		{"SETTINGS_CACHE_TTL", "monitor.settings_cache_ttl"},

		// Alerts
		{"ALERTS_ENABLED", "alerts.enabled"},
		{"ALERT_KEYWORDS", "alerts.keywords"},
		{"ALERT_WEBHOOK_URL", "alerts.webhook_url"},

		// NATS
		{"NATS_ENABLED", "nats.enabled"},
		{"NATS_URL", "nats.url"},
		{"NATS_EMBEDDED", "nats.embedded_server"},
		{"NATS_RETENTION_DAYS", "nats.stream_retention_days"},

		// WAL
		{"WAL_ENABLED", "wal.enabled"},
		{"WAL_PATH", "wal.path"},

		// Server
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"HTTP_TIMEOUT", "server.timeout"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"DISABLE_RATE_LIMIT", "server.rate_limit_disabled"},

		// Logging
		{"LOG_LEVEL", "logging.level"},
		{"LOG_FORMAT", "logging.format"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := envTransformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery
func TestFindConfigFile(t *testing.T) {
	// Create a temporary directory for test files
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Save original working directory
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Errorf("Failed to restore working directory: %v", err)
		}
	}()

	// Change to temp directory
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}

	t.Run("no config file exists", func(t *testing.T) {
		os.Unsetenv(ConfigPathEnvVar)
		result := findConfigFile()
		if result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("test: true"), 0644); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(configPath)

		os.Unsetenv(ConfigPathEnvVar)
		result := findConfigFile()
		if result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom_config.yaml")
		if err := os.WriteFile(customPath, []byte("test: true"), 0644); err != nil {
			t.Fatalf("Failed to create custom config file: %v", err)
		}
		defer os.Remove(customPath)

		os.Setenv(ConfigPathEnvVar, customPath)
		defer os.Unsetenv(ConfigPathEnvVar)

		result := findConfigFile()
		if result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})

	t.Run("CONFIG_PATH env var with non-existent file", func(t *testing.T) {
		os.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		defer os.Unsetenv(ConfigPathEnvVar)

		result := findConfigFile()
		// Should fall back to default paths (which don't exist in temp dir)
		if result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})
}

// TestLoadWithKoanfEnvVars tests loading configuration from environment variables
func TestLoadWithKoanfEnvVars(t *testing.T) {
	// Clear all environment variables
	os.Clearenv()

	// Set some custom values to override defaults
	os.Setenv("GATEWAY_URL", "wss://gateway.test.local/ws")
	os.Setenv("HTTP_PORT", "9000")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("OFFLINE_CHECK_INTERVAL", "30s")
	os.Setenv("COOLDOWN_MAX_HOURS", "48")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Verify custom overrides
	if cfg.Gateway.URL != "wss://gateway.test.local/ws" {
		t.Errorf("Gateway.URL = %q, want wss://gateway.test.local/ws", cfg.Gateway.URL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Monitor.OfflineCheckInterval != 30*time.Second {
		t.Errorf("Monitor.OfflineCheckInterval = %v, want 30s", cfg.Monitor.OfflineCheckInterval)
	}
	if cfg.Monitor.CooldownMaxHours != 48 {
		t.Errorf("Monitor.CooldownMaxHours = %d, want 48", cfg.Monitor.CooldownMaxHours)
	}

	// Verify defaults are still applied for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB (default)", cfg.Database.MaxMemory)
	}
}

// TestLoadWithKoanfConfigFile tests loading configuration from a YAML file
func TestLoadWithKoanfConfigFile(t *testing.T) {
	// Create a temporary directory
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create a test config file
	configContent := `
gateway:
  url: "wss://config-file.local/ws"
  session_token: "file_session_token"

server:
  port: 8888
  host: "127.0.0.1"

monitor:
  probe_window: 8s
  cooldown_base_hours: 2

logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	// Clear environment and set CONFIG_PATH
	os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Verify values from config file
	if cfg.Gateway.URL != "wss://config-file.local/ws" {
		t.Errorf("Gateway.URL = %q, want wss://config-file.local/ws", cfg.Gateway.URL)
	}
	if cfg.Gateway.SessionToken != "file_session_token" {
		t.Errorf("Gateway.SessionToken = %q, want file_session_token", cfg.Gateway.SessionToken)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Monitor.ProbeWindow != 8*time.Second {
		t.Errorf("Monitor.ProbeWindow = %v, want 8s", cfg.Monitor.ProbeWindow)
	}
	if cfg.Monitor.CooldownBaseHours != 2 {
		t.Errorf("Monitor.CooldownBaseHours = %d, want 2", cfg.Monitor.CooldownBaseHours)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}

	// Verify defaults are still applied for unset values
	if cfg.Database.Path != "/data/vigil.duckdb" {
		t.Errorf("Database.Path = %q, want /data/vigil.duckdb (default)", cfg.Database.Path)
	}
}

// TestLoadWithKoanfEnvOverridesFile tests that env vars override config file
func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `
gateway:
  url: "wss://config-file.local/ws"

server:
  port: 8888

logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	// Clear environment and set CONFIG_PATH + override values
	os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)
	os.Setenv("HTTP_PORT", "9999")                // Override port from config file
	os.Setenv("LOG_LEVEL", "error")               // Override log level from config file
	os.Setenv("DUCKDB_PATH", "/custom/db.duckdb") // Override a default value

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Verify values from config file (not overridden by env)
	if cfg.Gateway.URL != "wss://config-file.local/ws" {
		t.Errorf("Gateway.URL = %q, want wss://config-file.local/ws (from file)", cfg.Gateway.URL)
	}

	// Verify env vars override config file
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env override)", cfg.Logging.Level)
	}

	// Verify env vars override defaults
	if cfg.Database.Path != "/custom/db.duckdb" {
		t.Errorf("Database.Path = %q, want /custom/db.duckdb (env override)", cfg.Database.Path)
	}
}

// TestLoadWithKoanfSliceFields tests comma-separated env vars become slices
func TestLoadWithKoanfSliceFields(t *testing.T) {
	os.Clearenv()
	os.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	os.Setenv("ALERT_KEYWORDS", "giveaway,free money , crypto")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	wantOrigins := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.Server.CORSOrigins) != len(wantOrigins) {
		t.Fatalf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, wantOrigins)
	}
	for i, want := range wantOrigins {
		if cfg.Server.CORSOrigins[i] != want {
			t.Errorf("Server.CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want)
		}
	}

	wantKeywords := []string{"giveaway", "free money", "crypto"}
	if len(cfg.Alerts.Keywords) != len(wantKeywords) {
		t.Fatalf("Alerts.Keywords = %v, want %v", cfg.Alerts.Keywords, wantKeywords)
	}
	for i, want := range wantKeywords {
		if cfg.Alerts.Keywords[i] != want {
			t.Errorf("Alerts.Keywords[%d] = %q, want %q", i, cfg.Alerts.Keywords[i], want)
		}
	}
}

// TestLoadWithKoanfValidation tests that validation rejects bad configurations
func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		errMsg  string
	}{
		{
			name: "gateway URL with http scheme",
			envVars: map[string]string{
				"GATEWAY_URL": "http://gateway.local/ws",
			},
			wantErr: true,
			errMsg:  "GATEWAY_URL is invalid",
		},
		{
			name: "probe dwell above probe window",
			envVars: map[string]string{
				"PROBE_WINDOW": "2s",
				"PROBE_DWELL":  "5s",
			},
			wantErr: true,
			errMsg:  "PROBE_DWELL",
		},
		{
			name: "cooldown max below base",
			envVars: map[string]string{
				"COOLDOWN_BASE_HOURS": "10",
				"COOLDOWN_MAX_HOURS":  "5",
			},
			wantErr: true,
			errMsg:  "COOLDOWN_MAX_HOURS",
		},
		{
			name: "invalid log level",
			envVars: map[string]string{
				"LOG_LEVEL": "loud",
			},
			wantErr: true,
			errMsg:  "Level must be one of",
		},
		{
			name: "nats enabled with bad URL",
			envVars: map[string]string{
				"NATS_ENABLED": "true",
				"NATS_URL":     "http://localhost:4222",
			},
			wantErr: true,
			errMsg:  "NATS_URL is invalid",
		},
		{
			name: "encrypted token without master key",
			envVars: map[string]string{
				"GATEWAY_SESSION_TOKEN_ENCRYPTED": "AAAA",
			},
			wantErr: true,
			errMsg:  "GATEWAY_MASTER_KEY is empty",
		},
		{
			name:    "defaults only",
			envVars: map[string]string{},
			wantErr: false,
		},
		{
			name: "valid configuration",
			envVars: map[string]string{
				"GATEWAY_URL": "wss://gateway.local/ws",
				"LOG_LEVEL":   "debug",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := LoadWithKoanf()
			if tt.wantErr {
				if err == nil {
					t.Fatal("LoadWithKoanf() expected error, got nil")
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("LoadWithKoanf() error = %v, want containing %q", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadWithKoanf() unexpected error = %v", err)
			}
			if cfg == nil {
				t.Fatal("LoadWithKoanf() returned nil config")
			}
		})
	}
}

// TestLoadWithKoanfEncryptedToken tests the session token decryption path
func TestLoadWithKoanfEncryptedToken(t *testing.T) {
	cipher, err := NewTokenCipher("test-master-key")
	if err != nil {
		t.Fatalf("NewTokenCipher() error = %v", err)
	}

	encrypted, err := cipher.Encrypt("super-secret-session-token")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	os.Clearenv()
	os.Setenv("GATEWAY_URL", "wss://gateway.local/ws")
	os.Setenv("GATEWAY_SESSION_TOKEN", "stale-plaintext") // Encrypted form must win
	os.Setenv("GATEWAY_SESSION_TOKEN_ENCRYPTED", encrypted)
	os.Setenv("GATEWAY_MASTER_KEY", "test-master-key")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Gateway.SessionToken != "super-secret-session-token" {
		t.Errorf("Gateway.SessionToken = %q, want decrypted token", cfg.Gateway.SessionToken)
	}

	t.Run("wrong master key fails load", func(t *testing.T) {
		os.Setenv("GATEWAY_MASTER_KEY", "wrong-key")
		if _, err := LoadWithKoanf(); err == nil {
			t.Error("LoadWithKoanf() should fail with wrong master key")
		}
	})
}
