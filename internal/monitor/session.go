// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
session.go - Session Lifecycle Manager

Owns every live session from StartMonitoring to the final snapshot. One
consumer goroutine per session drains the supervisor's event channel and fans
each event out to the bus, the in-memory buffer, and the counter aggregates.
Three manager-level loops flush buffers, counters, and snapshots on their own
cadences; per-event writes never happen.

Lifecycle invariants:
  - StartMonitoring and StopMonitoring are idempotent per handle.
  - The consumer goroutine owns session completion: whoever terminates the
    supervisor (stream end, block, exhausted reconnects, operator stop), the
    finish path runs exactly once and closes active.done.
  - Final flushes run on a fresh bounded context so shutdown cancellation
    cannot lose buffered events.
  - Reconcile repairs crash leftovers before the poller starts: drain the
    spill log, discard memory, clear session pointers, force-end stale rows.
*/

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
	"github.com/tomtom215/vigil/internal/transport"
	"github.com/tomtom215/vigil/internal/wal"
)

// Store is the slice of the durable store the monitoring core uses.
// *database.DB satisfies it; tests substitute an in-memory fake.
type Store interface {
	// Accounts
	GetAccount(ctx context.Context, handle string) (*models.Account, error)
	ListMonitoredAccounts(ctx context.Context) ([]models.Account, error)
	SetCurrentLiveSession(ctx context.Context, handle string, sessionID uuid.UUID) error
	ClearCurrentLiveSession(ctx context.Context, handle string, endedAt time.Time) error
	TouchLastChecked(ctx context.Context, handle string, at time.Time) error
	TouchLastLive(ctx context.Context, handle string, at time.Time) error
	ClearStaleSessionPointers(ctx context.Context, endedAt time.Time) (int64, error)

	// Sessions
	InsertLiveSession(ctx context.Context, session *models.LiveSession) error
	GetLiveSession(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
	SessionExists(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateSessionCounters(ctx context.Context, id uuid.UUID, counters models.SessionCounters) error
	EndSession(ctx context.Context, id uuid.UUID, status string, endedAt time.Time) error
	ListSessionsByStatus(ctx context.Context, status string) ([]models.LiveSession, error)

	// Events and snapshots
	InsertLiveEventBatch(ctx context.Context, sessionID uuid.UUID, events []models.LiveEvent) (inserted int, duplicates int, err error)
	InsertSnapshot(ctx context.Context, snapshot *models.StatsSnapshot) error

	// Block records
	GetBlockRecord(ctx context.Context, handle string) (*models.BlockRecord, error)
	UpsertBlockRecord(ctx context.Context, record *models.BlockRecord) error
	DeleteBlockRecord(ctx context.Context, handle string) error
	DismissBlock(ctx context.Context, handle string) error
	ListBlockRecords(ctx context.Context) ([]models.BlockRecord, error)
}

// SpillLog is the slice of the write-ahead spill log the manager uses. Both
// the badger-backed log and the no-op stub satisfy it.
type SpillLog interface {
	Write(ctx context.Context, batch *wal.Batch) (string, error)
	Pending(ctx context.Context) ([]*wal.Entry, error)
	Confirm(ctx context.Context, entryID string) error
	RecordDrainFailure(ctx context.Context, entryID string, lastError string) error
	MaxDrainAttempts() int
}

const (
	// spillAfterFailures is how many consecutive flush failures a batch
	// survives in memory before it is handed to the spill log.
	spillAfterFailures = 2

	spillTimeout  = 5 * time.Second
	finishTimeout = 15 * time.Second
)

// ManagerConfig carries the session lifecycle cadences.
type ManagerConfig struct {
	// EventFlushInterval is how often buffered events are written.
	EventFlushInterval time.Duration

	// CounterFlushInterval is how often dirty counters are written.
	CounterFlushInterval time.Duration

	// SnapshotInterval is how often a stats snapshot row is taken while a
	// session is live.
	SnapshotInterval time.Duration

	// MaxBufferedEvents caps each session's in-memory buffer; overflow
	// drops the oldest events.
	MaxBufferedEvents int

	// Supervisor configures the per-session connection supervisors.
	Supervisor SupervisorConfig
}

func (c *ManagerConfig) applyDefaults() {
	if c.EventFlushInterval <= 0 {
		c.EventFlushInterval = time.Second
	}
	if c.CounterFlushInterval <= 0 {
		c.CounterFlushInterval = 5 * time.Second
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 15 * time.Second
	}
	if c.MaxBufferedEvents <= 0 {
		c.MaxBufferedEvents = 10_000
	}
	c.Supervisor.applyDefaults()
}

// Manager runs the session lifecycle for every monitored account.
type Manager struct {
	store    Store
	registry *Registry
	dialer   transport.Dialer
	settings *settings.Provider
	blocks   *BlockTracker
	bus      *eventbus.Bus
	spill    SpillLog
	cfg      ManagerConfig

	mu        sync.Mutex
	running   bool
	runCtx    context.Context
	runCancel context.CancelFunc

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager wires the session lifecycle manager. The bus and spill log are
// optional: a nil bus silences notifications, a nil spill log disables the
// last-resort batch spill.
func NewManager(store Store, registry *Registry, dialer transport.Dialer, settingsProvider *settings.Provider, blocks *BlockTracker, bus *eventbus.Bus, spill SpillLog, cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	return &Manager{
		store:    store,
		registry: registry,
		dialer:   dialer,
		settings: settingsProvider,
		blocks:   blocks,
		bus:      bus,
		spill:    spill,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches the flush loops. Sessions started before Start are refused,
// so the boot sequence is Reconcile, Start, then the poller.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("session manager already running")
	}
	m.running = true
	m.runCtx, m.runCancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(3)
	go m.eventFlushLoop()
	go m.counterFlushLoop()
	go m.snapshotLoop()

	logging.Info().
		Dur("event_flush", m.cfg.EventFlushInterval).
		Dur("counter_flush", m.cfg.CounterFlushInterval).
		Dur("snapshot", m.cfg.SnapshotInterval).
		Int("max_buffered", m.cfg.MaxBufferedEvents).
		Msg("Session manager started")
	return nil
}

// Stop finishes every active session, then stops the flush loops. Safe to
// call once; a manager is not restartable.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	runCancel := m.runCancel
	m.mu.Unlock()

	for _, handle := range m.registry.handles() {
		if err := m.StopMonitoring(context.Background(), handle); err != nil {
			logging.Warn().Str("handle", handle).Err(err).Msg("Session stop during shutdown failed")
		}
	}

	close(m.stopChan)
	if runCancel != nil {
		runCancel()
	}
	m.wg.Wait()
	logging.Info().Msg("Session manager stopped")
}

// StartMonitoring begins a monitored session for a handle that a probe just
// confirmed live. Idempotent: a handle with an active session is a no-op.
// roomID pins the supervisor to the broadcast the probe saw.
func (m *Manager) StartMonitoring(ctx context.Context, handle, roomID string) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("session manager not running")
	}
	runCtx := m.runCtx
	m.mu.Unlock()

	supervisor := NewSupervisor(handle, m.dialer, transport.Options{RoomID: roomID}, m.cfg.Supervisor)
	a := &active{
		handle:     handle,
		sessionID:  uuid.New(),
		roomID:     roomID,
		startedAt:  time.Now().UTC(),
		supervisor: supervisor,
		done:       make(chan struct{}),
	}

	if !m.registry.putIfAbsent(handle, a) {
		return nil
	}

	session := &models.LiveSession{
		ID:        a.sessionID,
		Handle:    handle,
		RoomID:    roomID,
		Status:    models.SessionStatusLive,
		StartedAt: a.startedAt,
	}
	if err := m.store.InsertLiveSession(ctx, session); err != nil {
		m.registry.remove(handle)
		close(a.done)
		return fmt.Errorf("insert live session for %s: %w", handle, err)
	}
	if err := m.store.SetCurrentLiveSession(ctx, handle, a.sessionID); err != nil {
		// The row exists but could not be attributed; end it rather than
		// leak a forever-live session.
		endedAt := time.Now().UTC()
		if endErr := m.store.EndSession(ctx, a.sessionID, models.SessionStatusConnectionFailed, endedAt); endErr != nil {
			logging.Warn().Str("handle", handle).Err(endErr).Msg("Orphaned session cleanup failed")
		}
		m.registry.remove(handle)
		close(a.done)
		return fmt.Errorf("attribute session to %s: %w", handle, err)
	}

	sessCtx, cancel := context.WithCancel(runCtx)
	a.cancel = cancel

	m.wg.Add(1)
	go m.consume(a)

	if err := supervisor.Start(sessCtx); err != nil {
		// Only reachable when a concurrent Disconnect won the race; the
		// closed event channel lets the consumer finish the session.
		logging.Debug().Str("handle", handle).Err(err).Msg("Supervisor refused start, stopped before it began")
	}

	metrics.RecordSessionStart()
	m.notify(eventbus.KindSessionStarted, handle, a.sessionID, "monitoring started")
	logging.Info().
		Str("component", "session").
		Str("handle", handle).
		Str("session_id", a.sessionID.String()).
		Str("room_id", roomID).
		Msg("Monitoring started")
	return nil
}

// StopMonitoring tears down the handle's session: disconnect, final flushes,
// final snapshot, row ended, pointer cleared. Idempotent, and safe to call
// concurrently with an in-flight probe or flush. Returns once the session is
// fully finished or ctx expires.
func (m *Manager) StopMonitoring(ctx context.Context, handle string) error {
	a := m.registry.get(handle)
	if a == nil {
		return nil
	}

	logging.Info().Str("component", "session").Str("handle", handle).Msg("Stopping monitoring")
	a.supervisor.Disconnect()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop monitoring %s: %w", handle, ctx.Err())
	}
}

// consume is the single consumer loop for one session. It runs until the
// supervisor closes its channel, then finishes the session according to the
// terminal cause it observed.
func (m *Manager) consume(a *active) {
	defer m.wg.Done()

	cause := endCauseStopped
	reason := ""
	var blocked *transport.BlockedError

	for ev := range a.supervisor.Events() {
		switch ev.Kind {
		case ConnEventConnected:
			if ev.RoomID != "" && ev.RoomID != a.roomID {
				logging.Info().
					Str("handle", a.handle).
					Str("session_room", a.roomID).
					Str("connected_room", ev.RoomID).
					Msg("Reconnected into a different room")
			}
		case ConnEventDisconnected:
			cause = endCauseFailed
			reason = ev.Reason
		case ConnEventBlocked:
			cause = endCauseBlocked
			blocked = ev.Blocked
		case ConnEventStreamEnd:
			cause = endCauseStreamEnd
		case ConnEventStream:
			m.handleEvent(a, ev.Event)
		}
	}

	if reason != "" {
		logging.Warn().Str("handle", a.handle).Str("reason", reason).Msg("Connection lost for good")
	}
	m.finish(a, cause, blocked)
}

// handleEvent fans one data event out to the bus, the buffer, and the
// counters, in that order.
func (m *Manager) handleEvent(a *active, ev transport.Event) {
	record := toLiveEvent(a.sessionID, ev)

	m.publishEvent(a, record)

	if dropped := a.appendEvent(record, m.cfg.MaxBufferedEvents); dropped > 0 {
		metrics.RecordEventsDropped("buffer_overflow", dropped)
		logging.Warn().Str("handle", a.handle).Int("dropped", dropped).Msg("Event buffer overflow, oldest events dropped")
	}

	a.mu.Lock()
	if applyEvent(&a.counters, ev) {
		a.countersDirty = true
	}
	a.mu.Unlock()

	metrics.RecordEventCaptured(string(ev.Type))
}

// finish completes a session exactly once (the consumer is its only caller)
// and closes active.done so StopMonitoring waiters return.
func (m *Manager) finish(a *active, cause endCause, blocked *transport.BlockedError) {
	defer close(a.done)

	// Shutdown may have canceled the lifecycle context already; the final
	// flush gets its own bounded context so buffered events survive.
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	if a.cancel != nil {
		a.cancel()
	}

	m.flushEvents(ctx, a)
	m.flushCounters(ctx, a)
	m.takeSnapshot(ctx, a, "final")

	endedAt := time.Now().UTC()
	status := cause.status()
	if err := m.store.EndSession(ctx, a.sessionID, status, endedAt); err != nil && !errors.Is(err, database.ErrSessionNotFound) {
		logging.Warn().Str("handle", a.handle).Err(err).Msg("Session end write failed")
	}
	if err := m.store.ClearCurrentLiveSession(ctx, a.handle, endedAt); err != nil && !errors.Is(err, database.ErrAccountNotFound) {
		logging.Warn().Str("handle", a.handle).Err(err).Msg("Session pointer clear failed")
	}

	m.registry.remove(a.handle)

	if cause == endCauseBlocked {
		m.recordSessionBlock(ctx, a.handle, blocked)
	}

	metrics.RecordSessionEnd(cause.reason(), endedAt.Sub(a.startedAt))
	m.notify(eventbus.KindSessionEnded, a.handle, a.sessionID, "session ended: "+cause.reason())
	logging.Info().
		Str("component", "session").
		Str("handle", a.handle).
		Str("session_id", a.sessionID.String()).
		Str("status", status).
		Str("reason", cause.reason()).
		Dur("duration", endedAt.Sub(a.startedAt)).
		Msg("Session finished")
}

// recordSessionBlock applies the mid-session block policy. With stop_on_block
// disabled the block is only logged here; the poller's probe path will meet
// the same block and run its quick-retry and cooldown machinery.
func (m *Manager) recordSessionBlock(ctx context.Context, handle string, blocked *transport.BlockedError) {
	s := m.settings.Current(ctx)
	if !s.StopOnBlock {
		logging.Warn().Str("handle", handle).Msg("Mid-session block observed, stop_on_block disabled, deferring to probe path")
		return
	}
	if !s.AutoCooldown || m.blocks == nil {
		return
	}
	info := "platform block"
	if blocked != nil {
		info = blocked.Error()
	}
	if _, err := m.blocks.RecordBlock(ctx, handle, info); err != nil {
		logging.Warn().Str("handle", handle).Err(err).Msg("Block record failed")
	}
}

// Reconcile repairs persistent state left behind by a previous incarnation.
// Called once at startup, before the poller schedules anything. Per-row
// problems are logged, never surfaced: a half-broken store should still boot.
func (m *Manager) Reconcile(ctx context.Context) error {
	logging.Info().Msg("Reconciling persistent state")

	if err := m.drainSpillLog(ctx); err != nil {
		logging.Warn().Err(err).Msg("Spill log drain incomplete")
	}

	// No in-memory session state survives a restart.
	m.registry.reset()

	now := time.Now().UTC()
	cleared, err := m.store.ClearStaleSessionPointers(ctx, now)
	if err != nil {
		return fmt.Errorf("clear stale session pointers: %w", err)
	}
	if cleared > 0 {
		logging.Info().Int64("accounts", cleared).Msg("Stale session pointers cleared")
	}

	stale, err := m.store.ListSessionsByStatus(ctx, models.SessionStatusLive)
	if err != nil {
		return fmt.Errorf("list stale live sessions: %w", err)
	}
	for i := range stale {
		sess := &stale[i]
		snap := &models.StatsSnapshot{
			ID:        uuid.New(),
			SessionID: sess.ID,
			TakenAt:   now,
			Counters:  sess.Counters,
		}
		if err := m.store.InsertSnapshot(ctx, snap); err != nil {
			logging.Warn().Str("session_id", sess.ID.String()).Err(err).Msg("Final snapshot for stale session failed")
		} else {
			metrics.RecordSnapshot("final")
		}
		if err := m.store.EndSession(ctx, sess.ID, models.SessionStatusEnded, now); err != nil {
			logging.Warn().Str("session_id", sess.ID.String()).Err(err).Msg("Force-end of stale session failed")
			continue
		}
		logging.Info().
			Str("handle", sess.Handle).
			Str("session_id", sess.ID.String()).
			Msg("Force-ended stale session from previous run")
	}
	return nil
}

// drainSpillLog re-inserts every recoverable spilled batch. Inserts are
// idempotent by event ID, so draining after a crash mid-drain is safe.
func (m *Manager) drainSpillLog(ctx context.Context) error {
	if m.spill == nil {
		return nil
	}
	entries, err := m.spill.Pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending spill entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	logging.Info().Int("entries", len(entries)).Msg("Draining spilled event batches")

	for _, entry := range entries {
		batch, err := entry.Batch()
		if err != nil {
			// Unparseable forever; drop it rather than poison the drain.
			logging.Error().Str("entry_id", entry.ID).Err(err).Msg("Discarding unreadable spill entry")
			m.confirmSpill(ctx, entry.ID)
			continue
		}

		exists, err := m.store.SessionExists(ctx, batch.SessionID)
		if err != nil {
			m.spillDrainFailed(ctx, entry, err)
			continue
		}
		if !exists {
			metrics.RecordEventsDropped("session_gone", len(batch.Events))
			logging.Warn().
				Str("entry_id", entry.ID).
				Str("session_id", batch.SessionID.String()).
				Int("events", len(batch.Events)).
				Msg("Spilled batch references a vanished session, discarding")
			m.confirmSpill(ctx, entry.ID)
			continue
		}

		inserted, duplicates, err := m.store.InsertLiveEventBatch(ctx, batch.SessionID, batch.Events)
		if err != nil {
			m.spillDrainFailed(ctx, entry, err)
			continue
		}
		logging.Info().
			Str("entry_id", entry.ID).
			Str("handle", batch.Handle).
			Int("inserted", inserted).
			Int("duplicates", duplicates).
			Msg("Spilled batch drained")
		m.confirmSpill(ctx, entry.ID)
	}
	return nil
}

func (m *Manager) confirmSpill(ctx context.Context, entryID string) {
	if err := m.spill.Confirm(ctx, entryID); err != nil {
		logging.Warn().Str("entry_id", entryID).Err(err).Msg("Spill entry confirm failed")
	}
}

func (m *Manager) spillDrainFailed(ctx context.Context, entry *wal.Entry, cause error) {
	if entry.Attempts+1 >= m.spill.MaxDrainAttempts() {
		logging.Error().
			Str("entry_id", entry.ID).
			Int("attempts", entry.Attempts+1).
			Err(cause).
			Msg("Spill entry exceeded drain attempts, discarding")
		m.confirmSpill(ctx, entry.ID)
		return
	}
	if err := m.spill.RecordDrainFailure(ctx, entry.ID, cause.Error()); err != nil {
		logging.Warn().Str("entry_id", entry.ID).Err(err).Msg("Spill drain failure record failed")
	}
	logging.Warn().
		Str("entry_id", entry.ID).
		Int("attempts", entry.Attempts+1).
		Err(cause).
		Msg("Spill entry drain failed, will retry next startup")
}

// Flush loops. Each runs on its own cadence; counter writes are serialized
// by the single counterFlushLoop goroutine.

func (m *Manager) eventFlushLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.EventFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.flushAllEvents()
		}
	}
}

func (m *Manager) flushAllEvents() {
	total := 0
	for _, handle := range m.registry.handles() {
		a := m.registry.get(handle)
		if a == nil {
			continue
		}
		m.flushEvents(context.Background(), a)
		total += a.bufferLen()
	}
	metrics.UpdateEventBufferSize(total)
}

func (m *Manager) counterFlushLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.CounterFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			for _, handle := range m.registry.handles() {
				if a := m.registry.get(handle); a != nil {
					m.flushCounters(context.Background(), a)
				}
			}
		}
	}
}

func (m *Manager) snapshotLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			for _, handle := range m.registry.handles() {
				if a := m.registry.get(handle); a != nil {
					m.takeSnapshot(context.Background(), a, "interval")
				}
			}
		}
	}
}

// flushEvents writes the session's buffered events. The session row is
// re-verified first: a vanished session discards the batch, a transient
// store failure re-buffers it, and persistent failure spills it.
func (m *Manager) flushEvents(ctx context.Context, a *active) {
	batch := a.takeBuffer()
	if len(batch) == 0 {
		return
	}

	exists, err := m.store.SessionExists(ctx, a.sessionID)
	if err != nil {
		m.rebuffer(a, batch, err)
		return
	}
	if !exists {
		metrics.RecordEventsDropped("session_gone", len(batch))
		logging.Warn().
			Str("handle", a.handle).
			Str("session_id", a.sessionID.String()).
			Int("events", len(batch)).
			Msg("Session row vanished, discarding buffered events")
		return
	}

	start := time.Now()
	inserted, duplicates, err := m.store.InsertLiveEventBatch(ctx, a.sessionID, batch)
	metrics.RecordEventFlush(inserted, time.Since(start), err)
	if err != nil {
		m.rebuffer(a, batch, err)
		return
	}

	a.mu.Lock()
	a.flushFailures = 0
	a.mu.Unlock()

	if duplicates > 0 {
		logging.Debug().Str("handle", a.handle).Int("duplicates", duplicates).Msg("Duplicate events skipped during flush")
	}
}

// rebuffer returns a failed batch to the buffer, or spills it to the
// write-ahead log once failures look persistent rather than transient.
func (m *Manager) rebuffer(a *active, batch []models.LiveEvent, cause error) {
	a.mu.Lock()
	a.flushFailures++
	failures := a.flushFailures
	a.mu.Unlock()

	if m.spill != nil && failures >= spillAfterFailures {
		spillCtx, cancel := context.WithTimeout(context.Background(), spillTimeout)
		defer cancel()
		entryID, err := m.spill.Write(spillCtx, &wal.Batch{
			SessionID: a.sessionID,
			Handle:    a.handle,
			Events:    batch,
			SpilledAt: time.Now().UTC(),
			Reason:    cause.Error(),
		})
		if err == nil {
			metrics.RecordEventsSpilled(len(batch))
			logging.Warn().
				Str("handle", a.handle).
				Str("entry_id", entryID).
				Int("events", len(batch)).
				Err(cause).
				Msg("Store flush keeps failing, batch spilled to write-ahead log")
			return
		}
		logging.Error().Str("handle", a.handle).Err(err).Msg("Spill log write failed, keeping batch in memory")
	}

	if dropped := a.restoreBuffer(batch, m.cfg.MaxBufferedEvents); dropped > 0 {
		metrics.RecordEventsDropped("buffer_overflow", dropped)
		logging.Warn().Str("handle", a.handle).Int("dropped", dropped).Msg("Event buffer overflow, oldest events dropped")
	}
	logging.Warn().
		Str("handle", a.handle).
		Int("events", len(batch)).
		Err(cause).
		Msg("Event flush failed, batch re-buffered")
}

// flushCounters writes the session counters when they changed since the last
// flush. Writes are absolute copies, not deltas, so a retried write is
// harmless.
func (m *Manager) flushCounters(ctx context.Context, a *active) {
	counters, dirty := a.countersSnapshot(true)
	if !dirty {
		return
	}
	if err := m.store.UpdateSessionCounters(ctx, a.sessionID, counters); err != nil {
		a.mu.Lock()
		a.countersDirty = true
		a.mu.Unlock()
		logging.Warn().Str("handle", a.handle).Err(err).Msg("Counter flush failed")
		return
	}
	metrics.RecordCounterFlush()
}

func (m *Manager) takeSnapshot(ctx context.Context, a *active, kind string) {
	counters, _ := a.countersSnapshot(false)
	snap := &models.StatsSnapshot{
		ID:        uuid.New(),
		SessionID: a.sessionID,
		TakenAt:   time.Now().UTC(),
		Counters:  counters,
	}
	if err := m.store.InsertSnapshot(ctx, snap); err != nil {
		logging.Warn().Str("handle", a.handle).Err(err).Msg("Snapshot write failed")
		return
	}
	metrics.RecordSnapshot(kind)
}

func (m *Manager) publishEvent(a *active, record models.LiveEvent) {
	if m.bus == nil {
		return
	}
	env := &eventbus.Envelope{SessionID: a.sessionID, Handle: a.handle, Event: record}
	if err := m.bus.PublishEvent(env); err != nil && !errors.Is(err, eventbus.ErrBusClosed) {
		logging.Debug().Str("handle", a.handle).Err(err).Msg("Event publish failed")
	}
}

func (m *Manager) notify(kind eventbus.NotificationKind, handle string, sessionID uuid.UUID, text string) {
	if m.bus == nil {
		return
	}
	n := eventbus.NewNotification(kind, handle, sessionID, text)
	if err := m.bus.PublishNotification(n); err != nil && !errors.Is(err, eventbus.ErrBusClosed) {
		logging.Warn().Str("handle", handle).Err(err).Msg("Notification publish failed")
	}
}

// endCause says why a session finished.
type endCause int

const (
	endCauseStopped endCause = iota
	endCauseStreamEnd
	endCauseBlocked
	endCauseFailed
)

// status maps the cause onto the persisted session status. Operator stops
// and clean stream ends both count as ended; blocks and reconnect
// exhaustion mean the connection failed under us.
func (c endCause) status() string {
	switch c {
	case endCauseBlocked, endCauseFailed:
		return models.SessionStatusConnectionFailed
	default:
		return models.SessionStatusEnded
	}
}

func (c endCause) reason() string {
	switch c {
	case endCauseStreamEnd:
		return "stream_end"
	case endCauseBlocked:
		return "blocked"
	case endCauseFailed:
		return "connection_failed"
	default:
		return "stopped"
	}
}

// toLiveEvent converts a transport event into its persisted form. The raw
// user and payload blobs are stored verbatim; typed fields only feed the
// counters.
func toLiveEvent(sessionID uuid.UUID, ev transport.Event) models.LiveEvent {
	record := models.LiveEvent{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Type:       string(ev.Type),
		OccurredAt: ev.OccurredAt,
		User:       ev.RawUser,
		Payload:    ev.RawPayload,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	if ev.User != nil && ev.User.Location != "" {
		loc := ev.User.Location
		record.Location = &loc
	}
	return record
}
