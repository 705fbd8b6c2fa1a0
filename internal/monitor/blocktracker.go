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
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/models"
	"github.com/tomtom215/vigil/internal/settings"
)

// BlockTracker records platform blocks and answers cooldown queries. It is
// backed by the block_records table with a read-through in-memory cache, so
// the poller's per-check cooldown test is a map lookup in the steady state.
//
// Cached records are replaced, never mutated, which keeps concurrent readers
// safe without copying on every query.
type BlockTracker struct {
	store    Store
	settings *settings.Provider
	bus      *eventbus.Bus

	mu    sync.RWMutex
	cache map[string]*models.BlockRecord

	now func() time.Time
}

// NewBlockTracker builds a tracker over the store. The bus is optional; when
// present, block and recovery transitions are published as notifications.
func NewBlockTracker(store Store, settingsProvider *settings.Provider, bus *eventbus.Bus) *BlockTracker {
	return &BlockTracker{
		store:    store,
		settings: settingsProvider,
		bus:      bus,
		cache:    make(map[string]*models.BlockRecord),
		now:      time.Now,
	}
}

// Load warms the cache from the store. Called once at startup so cooldown
// state survives restarts without a per-handle query storm.
func (t *BlockTracker) Load(ctx context.Context) error {
	records, err := t.store.ListBlockRecords(ctx)
	if err != nil {
		return fmt.Errorf("load block records: %w", err)
	}

	t.mu.Lock()
	t.cache = make(map[string]*models.BlockRecord, len(records))
	for i := range records {
		rec := records[i]
		t.cache[rec.Handle] = &rec
	}
	t.mu.Unlock()

	if len(records) > 0 {
		logging.Info().Int("count", len(records)).Msg("Loaded block records")
	}
	return nil
}

// RecordBlock registers one more consecutive block for a handle. The cooldown
// doubles per block, starting at the configured base and capped at the
// configured ceiling, and any prior operator dismissal is cleared because a
// fresh block is fresh news.
func (t *BlockTracker) RecordBlock(ctx context.Context, handle, errInfo string) (*models.BlockRecord, error) {
	s := t.settings.Current(ctx)
	now := t.now()

	rec := models.BlockRecord{Handle: handle, FirstBlockedAt: now}
	if prev, ok := t.lookup(ctx, handle); ok {
		rec = prev
	}

	rec.BlockCount++
	rec.LastBlockedAt = now
	rec.CooldownHours = cooldownHours(s.CooldownBaseHours, s.CooldownMaxHours, rec.BlockCount)
	rec.CooldownUntil = now.Add(time.Duration(rec.CooldownHours * float64(time.Hour)))
	rec.Dismissed = false
	rec.LastError = errInfo

	if err := t.store.UpsertBlockRecord(ctx, &rec); err != nil {
		return nil, fmt.Errorf("record block for %s: %w", handle, err)
	}

	t.mu.Lock()
	t.cache[handle] = &rec
	t.mu.Unlock()

	metrics.RecordBlock(handle, rec.BlockCount)
	logging.Warn().
		Str("component", "blocktracker").
		Str("handle", handle).
		Int("block_count", rec.BlockCount).
		Float64("cooldown_hours", rec.CooldownHours).
		Time("cooldown_until", rec.CooldownUntil).
		Str("error", errInfo).
		Msg("Platform block recorded")

	t.notify(eventbus.KindAccountBlocked, handle,
		fmt.Sprintf("blocked %d consecutive time(s), cooling down %.0fh", rec.BlockCount, rec.CooldownHours))

	copied := rec
	return &copied, nil
}

// IsInCooldown reports whether the handle is inside an active block cooldown.
func (t *BlockTracker) IsInCooldown(ctx context.Context, handle string) bool {
	rec, ok := t.lookup(ctx, handle)
	return ok && rec.CooldownUntil.After(t.now())
}

// RemainingCooldown returns how long until the handle's cooldown lapses, or
// zero when no cooldown is active.
func (t *BlockTracker) RemainingCooldown(ctx context.Context, handle string) time.Duration {
	rec, ok := t.lookup(ctx, handle)
	if !ok {
		return 0
	}
	return rec.CooldownRemaining(t.now())
}

// Tracked reports whether a block record exists for the handle, active
// cooldown or not. The poller uses it to tell a recovery apart from a probe
// that was never blocked.
func (t *BlockTracker) Tracked(ctx context.Context, handle string) bool {
	_, ok := t.lookup(ctx, handle)
	return ok
}

// ClearBlock deletes the handle's block record after a confirmed recovery.
// Returns whether a record was actually cleared; clearing an untracked
// handle is a no-op.
func (t *BlockTracker) ClearBlock(ctx context.Context, handle string) (bool, error) {
	if _, ok := t.lookup(ctx, handle); !ok {
		return false, nil
	}

	if err := t.store.DeleteBlockRecord(ctx, handle); err != nil && !errors.Is(err, database.ErrBlockNotFound) {
		return false, fmt.Errorf("clear block for %s: %w", handle, err)
	}

	t.mu.Lock()
	delete(t.cache, handle)
	t.mu.Unlock()

	metrics.RecordBlockCleared(handle)
	logging.Info().
		Str("component", "blocktracker").
		Str("handle", handle).
		Msg("Block cleared after confirmed recovery")

	t.notify(eventbus.KindAccountRecovered, handle, "connection recovered, block cleared")
	return true, nil
}

// DismissWarning marks the handle's block acknowledged by an operator. The
// cooldown timer is untouched; dismissal only silences the warning surface.
func (t *BlockTracker) DismissWarning(ctx context.Context, handle string) error {
	if err := t.store.DismissBlock(ctx, handle); err != nil {
		return fmt.Errorf("dismiss block for %s: %w", handle, err)
	}

	t.mu.Lock()
	if rec, ok := t.cache[handle]; ok {
		updated := *rec
		updated.Dismissed = true
		t.cache[handle] = &updated
	}
	t.mu.Unlock()
	return nil
}

// lookup returns a copy of the handle's block record, consulting the store
// on a cache miss. Store errors other than not-found are logged and treated
// as no-record; cooldown checks must not take a timer chain down.
func (t *BlockTracker) lookup(ctx context.Context, handle string) (models.BlockRecord, bool) {
	t.mu.RLock()
	if rec, ok := t.cache[handle]; ok {
		copied := *rec
		t.mu.RUnlock()
		return copied, true
	}
	t.mu.RUnlock()

	rec, err := t.store.GetBlockRecord(ctx, handle)
	if err != nil {
		if !errors.Is(err, database.ErrBlockNotFound) {
			logging.Warn().Str("handle", handle).Err(err).Msg("Block record lookup failed")
		}
		return models.BlockRecord{}, false
	}

	t.mu.Lock()
	t.cache[handle] = rec
	t.mu.Unlock()
	return *rec, true
}

func (t *BlockTracker) notify(kind eventbus.NotificationKind, handle, text string) {
	if t.bus == nil {
		return
	}
	n := eventbus.NewNotification(kind, handle, uuid.Nil, text)
	if err := t.bus.PublishNotification(n); err != nil && !errors.Is(err, eventbus.ErrBusClosed) {
		logging.Warn().Str("handle", handle).Err(err).Msg("Block notification publish failed")
	}
}

// cooldownHours computes min(maxHours, baseHours * 2^(count-1)). The doubling
// loop exits as soon as the ceiling is reached, so absurd consecutive counts
// cannot overflow.
func cooldownHours(baseHours, maxHours, count int) float64 {
	ceiling := float64(maxHours)
	hours := float64(baseHours)
	for i := 1; i < count; i++ {
		hours *= 2
		if hours >= ceiling {
			return ceiling
		}
	}
	if hours > ceiling {
		return ceiling
	}
	return hours
}
