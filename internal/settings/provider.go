// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/validation"
)

// Settings table keys. They mirror the koanf paths of the fields they
// override so a value means the same thing in config file, environment,
// and database.
const (
	KeyOfflineCheckInterval = "monitor.offline_check_interval"
	KeyOnlineCheckInterval  = "monitor.online_check_interval"
	KeyPostSessionCooldown  = "monitor.post_session_cooldown"
	KeyProbeWindow          = "monitor.probe_window"
	KeyProbeDwell           = "monitor.probe_dwell"
	KeyCooldownBaseHours    = "monitor.cooldown_base_hours"
	KeyCooldownMaxHours     = "monitor.cooldown_max_hours"
	KeyQuickRetryEnabled    = "monitor.quick_retry_enabled"
	KeyQuickRetryAttempts   = "monitor.quick_retry_attempts"
	KeyQuickRetryInterval   = "monitor.quick_retry_interval"
	KeyRecoveryProbeDelay   = "monitor.recovery_probe_delay"
	KeyStopOnBlock          = "monitor.stop_on_block"
	KeyAutoCooldown         = "monitor.auto_cooldown"
	KeyAutoRecovery         = "monitor.auto_recovery"
	KeyAlertKeywords        = "alerts.keywords"
)

// Settings is the merged tunable view served to the monitoring core.
// Validation tags bound individual fields; cross-field rules live in
// validateCrossFields.
type Settings struct {
	OfflineCheckInterval time.Duration `validate:"gt=0"`
	OnlineCheckInterval  time.Duration `validate:"gt=0"`
	PostSessionCooldown  time.Duration `validate:"gte=0"`
	ProbeWindow          time.Duration `validate:"gt=0"`
	ProbeDwell           time.Duration `validate:"gt=0"`
	CooldownBaseHours    int           `validate:"min=1"`
	CooldownMaxHours     int           `validate:"min=1"`
	QuickRetryEnabled    bool
	QuickRetryAttempts   int           `validate:"min=1"`
	QuickRetryInterval   time.Duration `validate:"gt=0"`
	RecoveryProbeDelay   time.Duration `validate:"gt=0"`
	StopOnBlock          bool
	AutoCooldown         bool
	AutoRecovery         bool
	AlertKeywords        []string
}

// Store is the slice of the durable store the provider reads.
type Store interface {
	AllSettings(ctx context.Context) (map[string]string, error)
}

// Provider caches the merged settings view for a short TTL.
//
// Reads outside the TTL refresh under the write lock with a double-check,
// so concurrent expired readers trigger exactly one store query.
type Provider struct {
	store    Store
	defaults Settings
	ttl      time.Duration

	mu        sync.RWMutex
	cached    Settings
	fetchedAt time.Time
}

// NewProvider builds a provider over the store with defaults taken from the
// loaded configuration. Until the first successful refresh the provider
// serves the configuration defaults.
func NewProvider(store Store, cfg *config.Config) *Provider {
	defaults := defaultsFromConfig(cfg)
	ttl := cfg.Monitor.SettingsCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	return &Provider{
		store:    store,
		defaults: defaults,
		ttl:      ttl,
		cached:   defaults,
	}
}

// Current returns the merged settings view, refreshing from the store when
// the cache has expired.
func (p *Provider) Current(ctx context.Context) Settings {
	p.mu.RLock()
	if time.Since(p.fetchedAt) < p.ttl {
		s := p.cached
		p.mu.RUnlock()
		return s
	}
	p.mu.RUnlock()

	return p.refresh(ctx)
}

// Invalidate expires the cache so the next read hits the store. Called after
// a settings write so the author observes their own change.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.fetchedAt = time.Time{}
	p.mu.Unlock()
}

func (p *Provider) refresh(ctx context.Context) Settings {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Another reader may have refreshed while we waited for the lock.
	if time.Since(p.fetchedAt) < p.ttl {
		return p.cached
	}

	overrides, err := p.store.AllSettings(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Settings refresh failed, serving last known values")
		// Re-arm the TTL so a broken store is not hammered on every read.
		p.fetchedAt = time.Now()
		return p.cached
	}

	merged := p.defaults
	applyOverrides(&merged, overrides)

	if verr := validation.ValidateStruct(&merged); verr != nil {
		logging.Warn().Err(verr).Msg("Settings overrides failed validation, serving last known values")
		p.fetchedAt = time.Now()
		return p.cached
	}
	if err := validateCrossFields(merged); err != nil {
		logging.Warn().Err(err).Msg("Settings overrides failed validation, serving last known values")
		p.fetchedAt = time.Now()
		return p.cached
	}

	p.cached = merged
	p.fetchedAt = time.Now()
	return merged
}

// Accessors. Hot paths call these per decision; the TTL cache makes each
// call a map-free struct copy in the common case.

func (p *Provider) OfflineCheckInterval(ctx context.Context) time.Duration {
	return p.Current(ctx).OfflineCheckInterval
}

func (p *Provider) OnlineCheckInterval(ctx context.Context) time.Duration {
	return p.Current(ctx).OnlineCheckInterval
}

func (p *Provider) PostSessionCooldown(ctx context.Context) time.Duration {
	return p.Current(ctx).PostSessionCooldown
}

func (p *Provider) ProbeWindow(ctx context.Context) time.Duration {
	return p.Current(ctx).ProbeWindow
}

func (p *Provider) ProbeDwell(ctx context.Context) time.Duration {
	return p.Current(ctx).ProbeDwell
}

func (p *Provider) CooldownBaseHours(ctx context.Context) int {
	return p.Current(ctx).CooldownBaseHours
}

func (p *Provider) CooldownMaxHours(ctx context.Context) int {
	return p.Current(ctx).CooldownMaxHours
}

func (p *Provider) QuickRetryEnabled(ctx context.Context) bool {
	return p.Current(ctx).QuickRetryEnabled
}

func (p *Provider) QuickRetryAttempts(ctx context.Context) int {
	return p.Current(ctx).QuickRetryAttempts
}

func (p *Provider) QuickRetryInterval(ctx context.Context) time.Duration {
	return p.Current(ctx).QuickRetryInterval
}

func (p *Provider) RecoveryProbeDelay(ctx context.Context) time.Duration {
	return p.Current(ctx).RecoveryProbeDelay
}

func (p *Provider) StopOnBlock(ctx context.Context) bool {
	return p.Current(ctx).StopOnBlock
}

func (p *Provider) AutoCooldown(ctx context.Context) bool {
	return p.Current(ctx).AutoCooldown
}

func (p *Provider) AutoRecovery(ctx context.Context) bool {
	return p.Current(ctx).AutoRecovery
}

func (p *Provider) AlertKeywords(ctx context.Context) []string {
	return p.Current(ctx).AlertKeywords
}

func defaultsFromConfig(cfg *config.Config) Settings {
	return Settings{
		OfflineCheckInterval: cfg.Monitor.OfflineCheckInterval,
		OnlineCheckInterval:  cfg.Monitor.OnlineCheckInterval,
		PostSessionCooldown:  cfg.Monitor.PostSessionCooldown,
		ProbeWindow:          cfg.Monitor.ProbeWindow,
		ProbeDwell:           cfg.Monitor.ProbeDwell,
		CooldownBaseHours:    cfg.Monitor.CooldownBaseHours,
		CooldownMaxHours:     cfg.Monitor.CooldownMaxHours,
		QuickRetryEnabled:    cfg.Monitor.QuickRetryEnabled,
		QuickRetryAttempts:   cfg.Monitor.QuickRetryAttempts,
		QuickRetryInterval:   cfg.Monitor.QuickRetryInterval,
		RecoveryProbeDelay:   cfg.Monitor.RecoveryProbeDelay,
		StopOnBlock:          cfg.Monitor.StopOnBlock,
		AutoCooldown:         cfg.Monitor.AutoCooldown,
		AutoRecovery:         cfg.Monitor.AutoRecovery,
		AlertKeywords:        cfg.Alerts.Keywords,
	}
}

// applyOverrides folds parsed table rows into the merged view. A value that
// fails to parse is logged and skipped, keeping the default for that key:
// one bad row must not take down every other tunable.
func applyOverrides(s *Settings, overrides map[string]string) {
	for key, raw := range overrides {
		var perr error
		switch key {
		case KeyOfflineCheckInterval:
			perr = overrideDuration(&s.OfflineCheckInterval, raw)
		case KeyOnlineCheckInterval:
			perr = overrideDuration(&s.OnlineCheckInterval, raw)
		case KeyPostSessionCooldown:
			perr = overrideDuration(&s.PostSessionCooldown, raw)
		case KeyProbeWindow:
			perr = overrideDuration(&s.ProbeWindow, raw)
		case KeyProbeDwell:
			perr = overrideDuration(&s.ProbeDwell, raw)
		case KeyCooldownBaseHours:
			perr = overrideInt(&s.CooldownBaseHours, raw)
		case KeyCooldownMaxHours:
			perr = overrideInt(&s.CooldownMaxHours, raw)
		case KeyQuickRetryEnabled:
			perr = overrideBool(&s.QuickRetryEnabled, raw)
		case KeyQuickRetryAttempts:
			perr = overrideInt(&s.QuickRetryAttempts, raw)
		case KeyQuickRetryInterval:
			perr = overrideDuration(&s.QuickRetryInterval, raw)
		case KeyRecoveryProbeDelay:
			perr = overrideDuration(&s.RecoveryProbeDelay, raw)
		case KeyStopOnBlock:
			perr = overrideBool(&s.StopOnBlock, raw)
		case KeyAutoCooldown:
			perr = overrideBool(&s.AutoCooldown, raw)
		case KeyAutoRecovery:
			perr = overrideBool(&s.AutoRecovery, raw)
		case KeyAlertKeywords:
			s.AlertKeywords = splitKeywords(raw)
		default:
			// Unknown keys are tolerated; the table may carry settings for
			// surfaces outside the monitoring core.
		}
		if perr != nil {
			logging.Warn().Str("key", key).Str("value", raw).Err(perr).
				Msg("Ignoring unparseable settings override")
		}
	}
}

func overrideDuration(dst *time.Duration, raw string) error {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func overrideInt(dst *int, raw string) error {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func overrideBool(dst *bool, raw string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

// splitKeywords parses a comma-separated keyword list, trimming whitespace
// and dropping empties. An explicitly empty value clears the list.
func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}

func validateCrossFields(s Settings) error {
	if s.ProbeDwell > s.ProbeWindow {
		return &crossFieldError{field: "probe_dwell", reason: "must not exceed probe_window"}
	}
	if s.CooldownMaxHours < s.CooldownBaseHours {
		return &crossFieldError{field: "cooldown_max_hours", reason: "must be at least cooldown_base_hours"}
	}
	return nil
}

type crossFieldError struct {
	field  string
	reason string
}

func (e *crossFieldError) Error() string {
	return e.field + " " + e.reason
}
