// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/database"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
	"github.com/tomtom215/vigil/internal/settings"
)

const (
	// checkTimeout bounds one poll decision including its probe.
	checkTimeout = 30 * time.Second

	// cooldownBuffer pads the reschedule after a cooldown so the next check
	// lands strictly after expiry.
	cooldownBuffer = 5 * time.Second

	// probeDisagreeInterval is the short recheck used when a probe says
	// offline while a supervisor still holds a healthy connection. The
	// supervisor wins; a single probe is never allowed to end a session.
	probeDisagreeInterval = 30 * time.Second
)

// PollerConfig carries the scheduling knobs that are not operator settings.
type PollerConfig struct {
	// StartJitter spreads the first wave of checks after startup so one
	// process restart does not probe every account at once.
	StartJitter time.Duration
}

func (c *PollerConfig) applyDefaults() {
	if c.StartJitter <= 0 {
		c.StartJitter = 30 * time.Second
	}
}

// Poller drives the per-account check chains. Every monitored account has at
// most one self-rescheduling timer: each check decides what to do and when to
// look again, and arms the next timer with that delay. Chains never die on
// errors, only when the account is deleted or disabled.
type Poller struct {
	store    Store
	settings *settings.Provider
	prober   *Prober
	manager  *Manager
	blocks   *BlockTracker
	registry *Registry
	cfg      PollerConfig

	now func() time.Time

	mu           sync.Mutex
	running      bool
	timers       map[string]*time.Timer
	recovery     map[string]*time.Timer
	quickRetries map[string]int
	lastRoom     map[string]string
	wg           sync.WaitGroup
}

// NewPoller wires the check scheduler.
func NewPoller(store Store, settingsProvider *settings.Provider, prober *Prober, manager *Manager, blocks *BlockTracker, registry *Registry, cfg PollerConfig) *Poller {
	cfg.applyDefaults()
	return &Poller{
		store:        store,
		settings:     settingsProvider,
		prober:       prober,
		manager:      manager,
		blocks:       blocks,
		registry:     registry,
		cfg:          cfg,
		now:          time.Now,
		timers:       make(map[string]*time.Timer),
		recovery:     make(map[string]*time.Timer),
		quickRetries: make(map[string]int),
		lastRoom:     make(map[string]string),
	}
}

// Start seeds a check chain for every monitored account, spread evenly
// across the jitter window.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.running = true
	p.mu.Unlock()

	accounts, err := p.store.ListMonitoredAccounts(ctx)
	if err != nil {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return fmt.Errorf("list monitored accounts: %w", err)
	}

	for i := range accounts {
		p.schedule(accounts[i].Handle, p.startDelay(i, len(accounts)))
	}
	logging.Info().
		Str("component", "poller").
		Int("accounts", len(accounts)).
		Dur("jitter", p.cfg.StartJitter).
		Msg("Poller started")
	return nil
}

// Stop cancels every pending timer and waits for in-flight checks. Sessions
// stay up; stopping those is the session manager's shutdown.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	for handle, t := range p.timers {
		t.Stop()
		delete(p.timers, handle)
	}
	for handle, t := range p.recovery {
		t.Stop()
		delete(p.recovery, handle)
	}
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Str("component", "poller").Msg("Poller stopped")
}

// EnableAccount starts a check chain for the handle; the first check runs
// immediately. Call after flipping the account's monitoring flag on.
func (p *Poller) EnableAccount(handle string) {
	logging.Info().Str("component", "poller").Str("handle", handle).Msg("Account enabled, chain scheduled")
	p.schedule(handle, 0)
}

// DisableAccount cancels the handle's chain and pending recovery probe.
// Active monitoring is the session manager's to stop; this only silences
// future checks.
func (p *Poller) DisableAccount(handle string) {
	p.mu.Lock()
	if t, ok := p.timers[handle]; ok {
		t.Stop()
		delete(p.timers, handle)
	}
	if t, ok := p.recovery[handle]; ok {
		t.Stop()
		delete(p.recovery, handle)
	}
	delete(p.quickRetries, handle)
	metrics.UpdateAccountsMonitored(len(p.timers))
	p.mu.Unlock()
	logging.Info().Str("component", "poller").Str("handle", handle).Msg("Account disabled, chain canceled")
}

// startDelay spreads account i of n across the jitter window.
func (p *Poller) startDelay(i, n int) time.Duration {
	if n <= 1 || p.cfg.StartJitter <= 0 {
		return 0
	}
	return time.Duration(int64(p.cfg.StartJitter) * int64(i) / int64(n))
}

// schedule arms (or re-arms) the handle's chain timer.
func (p *Poller) schedule(handle string, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	if t, ok := p.timers[handle]; ok {
		t.Stop()
	}
	p.timers[handle] = time.AfterFunc(delay, func() { p.check(handle) })
	metrics.UpdateAccountsMonitored(len(p.timers))
}

// scheduleRecovery arms a one-shot early check for a blocked account. An
// already-pending recovery probe is left alone.
func (p *Poller) scheduleRecovery(handle string, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	if _, ok := p.recovery[handle]; ok {
		return
	}
	logging.Debug().Str("component", "poller").Str("handle", handle).Dur("delay", delay).Msg("Recovery probe scheduled")
	p.recovery[handle] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.recovery, handle)
		p.mu.Unlock()
		p.check(handle)
	})
}

// check runs one poll decision and arms the next timer. The chain's only
// exit is CheckAccount returning zero.
func (p *Poller) check(handle string) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	next := p.CheckAccount(ctx, handle)
	if next <= 0 {
		p.mu.Lock()
		if t, ok := p.timers[handle]; ok {
			t.Stop()
			delete(p.timers, handle)
		}
		metrics.UpdateAccountsMonitored(len(p.timers))
		p.mu.Unlock()
		logging.Info().Str("component", "poller").Str("handle", handle).Msg("Poll chain ended")
		return
	}
	p.schedule(handle, next)
}

// CheckAccount runs one poll decision for the handle and reports the delay
// before the next check; zero ends the chain. The branches are evaluated in
// strict priority order: block cooldown, disabled, post-session cooldown,
// already connected, probe. Store and probe errors never kill the chain;
// they reschedule at the offline cadence.
func (p *Poller) CheckAccount(ctx context.Context, handle string) time.Duration {
	s := p.settings.Current(ctx)

	// Branch 1: inside a block cooldown window nothing touches the platform.
	if p.blocks != nil && p.blocks.IsInCooldown(ctx, handle) {
		metrics.RecordPollerCheck("cooldown")
		remaining := p.blocks.RemainingCooldown(ctx, handle)
		if s.AutoRecovery {
			p.scheduleRecovery(handle, remaining+s.RecoveryProbeDelay)
		}
		logging.Debug().
			Str("component", "poller").
			Str("handle", handle).
			Dur("remaining", remaining).
			Msg("Account in block cooldown")
		return remaining + cooldownBuffer
	}

	acct, err := p.store.GetAccount(ctx, handle)
	if errors.Is(err, database.ErrAccountNotFound) {
		logging.Info().Str("component", "poller").Str("handle", handle).Msg("Account removed")
		return 0
	}
	if err != nil {
		metrics.RecordPollerError()
		logging.Warn().Str("component", "poller").Str("handle", handle).Err(err).Msg("Account lookup failed, treating as offline")
		return s.OfflineCheckInterval
	}

	// Branch 2: monitoring switched off.
	if !acct.MonitoringEnabled {
		metrics.RecordPollerCheck("disabled")
		if p.registry.get(handle) != nil {
			// A session is still winding down; keep the chain alive so the
			// next check observes the cleared state.
			return s.OfflineCheckInterval
		}
		if acct.CurrentLiveSessionID != nil {
			p.endStalePointer(ctx, handle, *acct.CurrentLiveSessionID)
		}
		return 0
	}

	now := p.now()

	// Branch 3: post-session cooldown keeps probes away from the ghost room
	// a just-ended broadcast leaves behind.
	if acct.LastSessionEndAt != nil && s.PostSessionCooldown > 0 {
		if until := acct.LastSessionEndAt.Add(s.PostSessionCooldown); now.Before(until) {
			metrics.RecordPollerCheck("post_session")
			logging.Debug().
				Str("component", "poller").
				Str("handle", handle).
				Dur("remaining", until.Sub(now)).
				Msg("Post-session cooldown active")
			return until.Sub(now)
		}
	}

	// Branch 4: a supervisor already owns this account; no probe needed.
	if a := p.registry.get(handle); a != nil {
		metrics.RecordPollerCheck("connected")
		if a.supervisor.IsConnected() {
			if err := p.store.TouchLastLive(ctx, handle, now); err != nil {
				logging.Debug().Str("handle", handle).Err(err).Msg("Liveness touch failed")
			}
		} else if err := p.store.TouchLastChecked(ctx, handle, now); err != nil {
			logging.Debug().Str("handle", handle).Err(err).Msg("Check touch failed")
		}
		return s.OnlineCheckInterval
	}

	// Branch 5: probe.
	metrics.RecordPollerCheck("probe")
	return p.probeAndAct(ctx, handle, acct, s)
}

// probeAndAct probes the handle and acts on the verdict: start monitoring,
// escalate a block, clear a recovered one, or just reschedule.
func (p *Poller) probeAndAct(ctx context.Context, handle string, acct *models.Account, s settings.Settings) time.Duration {
	res, err := p.prober.Probe(ctx, handle, p.previousRoom(handle))
	if err != nil {
		metrics.RecordPollerError()
		logging.Warn().Str("component", "poller").Str("handle", handle).Err(err).Msg("Probe interrupted, treating as offline")
		return s.OfflineCheckInterval
	}
	if res.RoomID != "" {
		p.rememberRoom(handle, res.RoomID)
	}

	wasTracked := p.blocks != nil && p.blocks.Tracked(ctx, handle)

	if res.Blocked {
		if wasTracked {
			// Post-cooldown probe of a known-blocked account came back
			// blocked again; the cooldown escalates.
			metrics.RecordRecoveryProbe(false)
			logging.Warn().Str("component", "poller").Str("handle", handle).Msg("Recovery probe still blocked")
		}
		return p.handleBlockedProbe(ctx, handle, res.Reason, wasTracked, s)
	}

	// Clean verdict; a tracked block is over.
	if wasTracked {
		cleared, err := p.blocks.ClearBlock(ctx, handle)
		if err != nil {
			logging.Warn().Str("handle", handle).Err(err).Msg("Block clear failed")
		} else if cleared {
			metrics.RecordRecoveryProbe(true)
			logging.Info().Str("component", "poller").Str("handle", handle).Msg("Account recovered from block")
		}
	}
	p.resetQuickRetries(handle)

	if res.IsLive {
		if acct.MonitoringEnabled && p.registry.get(handle) == nil {
			if err := p.manager.StartMonitoring(ctx, handle, res.RoomID); err != nil {
				metrics.RecordPollerError()
				logging.Warn().Str("component", "poller").Str("handle", handle).Err(err).Msg("Monitoring start failed")
				return s.OfflineCheckInterval
			}
		}
		if err := p.store.TouchLastLive(ctx, handle, p.now()); err != nil {
			logging.Debug().Str("handle", handle).Err(err).Msg("Liveness touch failed")
		}
		return s.OnlineCheckInterval
	}

	// Not live. If a supervisor appeared mid-probe, trust it over the probe.
	if p.registry.get(handle) != nil {
		return probeDisagreeInterval
	}

	// The account row claims a live session that nothing is monitoring.
	if acct.CurrentLiveSessionID != nil {
		p.endStalePointer(ctx, handle, *acct.CurrentLiveSessionID)
	}
	if err := p.store.TouchLastChecked(ctx, handle, p.now()); err != nil {
		logging.Debug().Str("handle", handle).Err(err).Msg("Check touch failed")
	}
	return s.OfflineCheckInterval
}

// handleBlockedProbe runs the quick-retry ladder for fresh blocks and the
// cooldown escalation for persistent ones. Already-tracked blocks skip quick
// retries; those were burned before the first cooldown.
func (p *Poller) handleBlockedProbe(ctx context.Context, handle, reason string, tracked bool, s settings.Settings) time.Duration {
	if !tracked && s.QuickRetryEnabled {
		n := p.bumpQuickRetry(handle)
		if n <= s.QuickRetryAttempts {
			logging.Info().
				Str("component", "poller").
				Str("handle", handle).
				Int("attempt", n).
				Int("max", s.QuickRetryAttempts).
				Msg("Probe blocked, quick retry scheduled")
			return s.QuickRetryInterval
		}
	}
	p.resetQuickRetries(handle)

	if !s.AutoCooldown || p.blocks == nil {
		logging.Warn().Str("component", "poller").Str("handle", handle).Msg("Probe blocked, auto cooldown disabled")
		return s.OfflineCheckInterval
	}

	if reason == "" {
		reason = "probe blocked"
	}
	rec, err := p.blocks.RecordBlock(ctx, handle, reason)
	if err != nil {
		metrics.RecordPollerError()
		logging.Error().Str("handle", handle).Err(err).Msg("Block record failed")
		return s.OfflineCheckInterval
	}
	remaining := rec.CooldownRemaining(p.now())
	if s.AutoRecovery {
		p.scheduleRecovery(handle, remaining+s.RecoveryProbeDelay)
	}
	return remaining + cooldownBuffer
}

// endStalePointer ends the pointed-at session row and clears the pointer.
// Both writes tolerate rows that are already gone.
func (p *Poller) endStalePointer(ctx context.Context, handle string, sessionID uuid.UUID) {
	now := p.now()
	if err := p.store.EndSession(ctx, sessionID, models.SessionStatusEnded, now); err != nil && !errors.Is(err, database.ErrSessionNotFound) {
		logging.Warn().Str("handle", handle).Err(err).Msg("Stale session end failed")
	}
	if err := p.store.ClearCurrentLiveSession(ctx, handle, now); err != nil && !errors.Is(err, database.ErrAccountNotFound) {
		logging.Warn().Str("handle", handle).Err(err).Msg("Stale pointer clear failed")
	}
	logging.Info().
		Str("component", "poller").
		Str("handle", handle).
		Str("session_id", sessionID.String()).
		Msg("Stale session pointer repaired")
}

func (p *Poller) previousRoom(handle string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRoom[handle]
}

func (p *Poller) rememberRoom(handle, roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRoom[handle] = roomID
}

func (p *Poller) bumpQuickRetry(handle string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quickRetries[handle]++
	return p.quickRetries[handle]
}

func (p *Poller) resetQuickRetries(handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.quickRetries, handle)
}
