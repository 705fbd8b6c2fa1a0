// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"

	"github.com/tomtom215/vigil/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Field-level bounds are enforced through the validate struct tags; the
// per-section validators below cover conditional and cross-field rules the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration values: %w", err)
	}

	if err := c.validateGateway(); err != nil {
		return err
	}

	if err := c.validateMonitor(); err != nil {
		return err
	}

	if err := c.validateAlerts(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	return c.validateServer()
}

// validateGateway validates the decode-gateway settings. The URL is allowed
// to be empty here so offline tooling and tests can load a config without a
// gateway; cmd/server refuses to start monitoring without one.
func (c *Config) validateGateway() error {
	if c.Gateway.URL != "" {
		if err := validateWSURL(c.Gateway.URL, "GATEWAY_URL"); err != nil {
			return fmt.Errorf("GATEWAY_URL is invalid: %w", err)
		}
	}

	if c.Gateway.PingInterval >= c.Gateway.ReadTimeout {
		return fmt.Errorf("GATEWAY_PING_INTERVAL (%s) must be shorter than GATEWAY_READ_TIMEOUT (%s)",
			c.Gateway.PingInterval, c.Gateway.ReadTimeout)
	}

	return nil
}

// validateMonitor validates cross-field monitoring rules
func (c *Config) validateMonitor() error {
	if c.Monitor.ProbeDwell > c.Monitor.ProbeWindow {
		return fmt.Errorf("PROBE_DWELL (%s) must not exceed PROBE_WINDOW (%s)",
			c.Monitor.ProbeDwell, c.Monitor.ProbeWindow)
	}

	if c.Monitor.CooldownMaxHours < c.Monitor.CooldownBaseHours {
		return fmt.Errorf("COOLDOWN_MAX_HOURS (%d) must be at least COOLDOWN_BASE_HOURS (%d)",
			c.Monitor.CooldownMaxHours, c.Monitor.CooldownBaseHours)
	}

	if c.Monitor.ReconnectBackoffMax < c.Monitor.ReconnectBackoffBase {
		return fmt.Errorf("RECONNECT_BACKOFF_MAX (%s) must be at least RECONNECT_BACKOFF_BASE (%s)",
			c.Monitor.ReconnectBackoffMax, c.Monitor.ReconnectBackoffBase)
	}

	return nil
}

// validateAlerts validates alerting configuration (only if enabled)
func (c *Config) validateAlerts() error {
	if !c.Alerts.Enabled {
		return nil
	}

	if c.Alerts.WebhookURL != "" {
		if err := validateHTTPURL(c.Alerts.WebhookURL, "ALERT_WEBHOOK_URL"); err != nil {
			return fmt.Errorf("ALERT_WEBHOOK_URL is invalid: %w", err)
		}
	}

	return nil
}

// NATS limit constants
const (
	natsMinMemory    = 64 * 1024 * 1024  // 64MB
	natsMinStore     = 100 * 1024 * 1024 // 100MB
	natsMaxRetention = 365
	natsMinRetention = 1
)

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	if c.NATS.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least %d bytes (64MB)", natsMinMemory)
	}

	if c.NATS.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least %d bytes (100MB)", natsMinStore)
	}

	if c.NATS.StreamRetentionDays < natsMinRetention || c.NATS.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between %d and %d", natsMinRetention, natsMaxRetention)
	}

	return nil
}

// validateServer validates the operational HTTP server configuration
func (c *Config) validateServer() error {
	if len(c.Server.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must not be empty; use * to allow all origins")
	}

	return nil
}
