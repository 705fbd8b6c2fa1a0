// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/models"
)

// active is the in-memory state of one monitored session: the supervisor,
// the consumer lifecycle, and the buffers the flush loops drain. All mutable
// fields below mu are owned by it; identity fields are set once at creation.
type active struct {
	handle     string
	sessionID  uuid.UUID
	roomID     string
	startedAt  time.Time
	supervisor *Supervisor
	cancel     context.CancelFunc

	// done is closed by the consumer goroutine after the session is fully
	// finished (flushed, ended, detached). StopMonitoring waits on it.
	done chan struct{}

	mu            sync.Mutex
	buffer        []models.LiveEvent
	counters      models.SessionCounters
	countersDirty bool
	flushFailures int
}

// appendEvent adds an event to the buffer, dropping the oldest entries when
// the cap is exceeded. Returns how many events were dropped.
func (a *active) appendEvent(ev models.LiveEvent, maxBuffered int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, ev)
	if len(a.buffer) <= maxBuffered {
		return 0
	}
	dropped := len(a.buffer) - maxBuffered
	a.buffer = a.buffer[dropped:]
	return dropped
}

// takeBuffer detaches and returns the current buffer contents.
func (a *active) takeBuffer() []models.LiveEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	batch := a.buffer
	a.buffer = nil
	return batch
}

// restoreBuffer puts a failed flush batch back at the front of the buffer so
// arrival order survives the retry. The combined buffer is trimmed from the
// front when it exceeds the cap. Returns how many events were dropped.
func (a *active) restoreBuffer(batch []models.LiveEvent, maxBuffered int) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	combined := make([]models.LiveEvent, 0, len(batch)+len(a.buffer))
	combined = append(combined, batch...)
	combined = append(combined, a.buffer...)

	dropped := 0
	if len(combined) > maxBuffered {
		dropped = len(combined) - maxBuffered
		combined = combined[dropped:]
	}
	a.buffer = combined
	return dropped
}

// bufferLen returns the current buffer depth.
func (a *active) bufferLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// countersSnapshot returns a copy of the counters and whether they changed
// since the last flush, clearing the dirty flag when told to.
func (a *active) countersSnapshot(clearDirty bool) (models.SessionCounters, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dirty := a.countersDirty
	if clearDirty {
		a.countersDirty = false
	}
	return a.counters, dirty
}

// Registry is the process-scoped table of active sessions, keyed by handle.
// It is constructed once in main and shared by the poller and the session
// manager; there are no package-level globals behind it.
type Registry struct {
	mu       sync.Mutex
	accounts map[string]*active
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]*active),
	}
}

// get returns the active entry for a handle, or nil.
func (r *Registry) get(handle string) *active {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[handle]
}

// putIfAbsent installs an entry unless one already exists. Returns false when
// the handle is already active, which is how StartMonitoring stays
// idempotent without a manager-wide lock.
func (r *Registry) putIfAbsent(handle string, a *active) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[handle]; exists {
		return false
	}
	r.accounts[handle] = a
	return true
}

// remove detaches and returns the entry for a handle, or nil if none.
func (r *Registry) remove(handle string) *active {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.accounts[handle]
	delete(r.accounts, handle)
	return a
}

// handles returns the handles with active entries.
func (r *Registry) handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.accounts))
	for h := range r.accounts {
		out = append(out, h)
	}
	return out
}

// reset discards every entry. Startup reconciliation calls this
// unconditionally: no in-memory session state survives a restart.
func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = make(map[string]*active)
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

// ActiveInfo is a read-only view of one active session for status surfaces.
type ActiveInfo struct {
	Handle    string                 `json:"handle"`
	SessionID uuid.UUID              `json:"session_id"`
	RoomID    string                 `json:"room_id"`
	State     string                 `json:"state"`
	StartedAt time.Time              `json:"started_at"`
	Counters  models.SessionCounters `json:"counters"`
}

// Snapshot returns a point-in-time view of every active session. The ops
// status endpoint serves this directly.
func (r *Registry) Snapshot() []ActiveInfo {
	r.mu.Lock()
	entries := make([]*active, 0, len(r.accounts))
	for _, a := range r.accounts {
		entries = append(entries, a)
	}
	r.mu.Unlock()

	out := make([]ActiveInfo, 0, len(entries))
	for _, a := range entries {
		counters, _ := a.countersSnapshot(false)
		out = append(out, ActiveInfo{
			Handle:    a.handle,
			SessionID: a.sessionID,
			RoomID:    a.roomID,
			State:     a.supervisor.State().String(),
			StartedAt: a.startedAt,
			Counters:  counters,
		})
	}
	return out
}

// DeriveAccountState maps an account's persisted fields plus live process
// state onto the discriminated AccountState. Priority, highest first:
//
//  1. an active block cooldown wins over everything
//  2. a connected supervisor means live, even if monitoring was just disabled
//  3. disabled
//  4. a block record whose cooldown has lapsed but was never cleared
//  5. the post-session probe-suppression window
//  6. idle
func DeriveAccountState(acct *models.Account, block *models.BlockRecord, connected bool, postSessionWindow time.Duration, now time.Time) models.AccountState {
	if block != nil && block.CooldownUntil.After(now) {
		return models.StateCooldown
	}
	if connected {
		return models.StateLive
	}
	if !acct.MonitoringEnabled {
		return models.StateDisabled
	}
	if block != nil {
		return models.StateBlocked
	}
	if acct.LastSessionEndAt != nil {
		if since := now.Sub(*acct.LastSessionEndAt); since >= 0 && since < postSessionWindow {
			return models.StatePostSessionCooldown
		}
	}
	return models.StateIdle
}
