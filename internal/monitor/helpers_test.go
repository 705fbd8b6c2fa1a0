// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/database"
	"github.com/tomtom215/vigil/internal/eventbus"
	"github.com/tomtom215/vigil/internal/models"
	"github.com/tomtom215/vigil/internal/settings"
	"github.com/tomtom215/vigil/internal/transport/transporttest"
	"github.com/tomtom215/vigil/internal/wal"
)

// fakeStore is an in-memory Store with injectable failures. All methods copy
// on the way in and out so tests never share mutable state with the code
// under test.
type fakeStore struct {
	mu sync.Mutex

	accounts  map[string]*models.Account
	sessions  map[uuid.UUID]*models.LiveSession
	events    map[uuid.UUID]map[uuid.UUID]models.LiveEvent
	snapshots []models.StatsSnapshot
	blocks    map[string]*models.BlockRecord

	// insertBatchFailures fails the next n InsertLiveEventBatch calls.
	insertBatchFailures int
	sessionExistsErr    error
	getAccountErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*models.Account),
		sessions: make(map[uuid.UUID]*models.LiveSession),
		events:   make(map[uuid.UUID]map[uuid.UUID]models.LiveEvent),
		blocks:   make(map[string]*models.BlockRecord),
	}
}

func (f *fakeStore) addAccount(handle string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	f.accounts[handle] = &models.Account{
		Handle:            handle,
		MonitoringEnabled: enabled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (f *fakeStore) GetAccount(_ context.Context, handle string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getAccountErr != nil {
		return nil, f.getAccountErr
	}
	acct, ok := f.accounts[handle]
	if !ok {
		return nil, database.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (f *fakeStore) ListMonitoredAccounts(context.Context) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, acct := range f.accounts {
		if acct.MonitoringEnabled {
			out = append(out, *acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (f *fakeStore) SetCurrentLiveSession(_ context.Context, handle string, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[handle]
	if !ok {
		return database.ErrAccountNotFound
	}
	id := sessionID
	now := time.Now().UTC()
	acct.CurrentLiveSessionID = &id
	acct.LastLiveAt = &now
	return nil
}

func (f *fakeStore) ClearCurrentLiveSession(_ context.Context, handle string, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[handle]
	if !ok {
		return database.ErrAccountNotFound
	}
	acct.CurrentLiveSessionID = nil
	at := endedAt
	acct.LastSessionEndAt = &at
	return nil
}

func (f *fakeStore) TouchLastChecked(_ context.Context, handle string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[handle]
	if !ok {
		return database.ErrAccountNotFound
	}
	t := at
	acct.LastCheckedAt = &t
	return nil
}

func (f *fakeStore) TouchLastLive(_ context.Context, handle string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[handle]
	if !ok {
		return database.ErrAccountNotFound
	}
	t := at
	acct.LastCheckedAt = &t
	acct.LastLiveAt = &t
	return nil
}

func (f *fakeStore) ClearStaleSessionPointers(_ context.Context, endedAt time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cleared int64
	for _, acct := range f.accounts {
		if acct.CurrentLiveSessionID != nil {
			acct.CurrentLiveSessionID = nil
			at := endedAt
			acct.LastSessionEndAt = &at
			cleared++
		}
	}
	return cleared, nil
}

func (f *fakeStore) InsertLiveSession(_ context.Context, session *models.LiveSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeStore) GetLiveSession(_ context.Context, id uuid.UUID) (*models.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return nil, database.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (f *fakeStore) SessionExists(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionExistsErr != nil {
		return false, f.sessionExistsErr
	}
	_, ok := f.sessions[id]
	return ok, nil
}

func (f *fakeStore) UpdateSessionCounters(_ context.Context, id uuid.UUID, counters models.SessionCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return database.ErrSessionNotFound
	}
	sess.Counters = counters
	return nil
}

func (f *fakeStore) EndSession(_ context.Context, id uuid.UUID, status string, endedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return database.ErrSessionNotFound
	}
	sess.Status = status
	at := endedAt
	sess.EndedAt = &at
	return nil
}

func (f *fakeStore) ListSessionsByStatus(_ context.Context, status string) ([]models.LiveSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LiveSession
	for _, sess := range f.sessions {
		if sess.Status == status {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (f *fakeStore) InsertLiveEventBatch(_ context.Context, sessionID uuid.UUID, events []models.LiveEvent) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertBatchFailures > 0 {
		f.insertBatchFailures--
		return 0, 0, fmt.Errorf("store unavailable")
	}
	byID := f.events[sessionID]
	if byID == nil {
		byID = make(map[uuid.UUID]models.LiveEvent)
		f.events[sessionID] = byID
	}
	inserted, duplicates := 0, 0
	for _, ev := range events {
		if _, ok := byID[ev.ID]; ok {
			duplicates++
			continue
		}
		byID[ev.ID] = ev
		inserted++
	}
	return inserted, duplicates, nil
}

func (f *fakeStore) InsertSnapshot(_ context.Context, snapshot *models.StatsSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, *snapshot)
	return nil
}

func (f *fakeStore) GetBlockRecord(_ context.Context, handle string) (*models.BlockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.blocks[handle]
	if !ok {
		return nil, database.ErrBlockNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) UpsertBlockRecord(_ context.Context, record *models.BlockRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.blocks[record.Handle] = &cp
	return nil
}

func (f *fakeStore) DeleteBlockRecord(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocks[handle]; !ok {
		return database.ErrBlockNotFound
	}
	delete(f.blocks, handle)
	return nil
}

func (f *fakeStore) DismissBlock(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.blocks[handle]
	if !ok {
		return database.ErrBlockNotFound
	}
	rec.Dismissed = true
	return nil
}

func (f *fakeStore) ListBlockRecords(context.Context) ([]models.BlockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BlockRecord
	for _, rec := range f.blocks {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

// Assertion accessors.

func (f *fakeStore) account(t *testing.T, handle string) models.Account {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[handle]
	if !ok {
		t.Fatalf("account %q not in store", handle)
	}
	return *acct
}

func (f *fakeStore) session(t *testing.T, id uuid.UUID) models.LiveSession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		t.Fatalf("session %s not in store", id)
	}
	return *sess
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStore) onlySession(t *testing.T) models.LiveSession {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) != 1 {
		t.Fatalf("store holds %d sessions, want exactly 1", len(f.sessions))
	}
	for _, sess := range f.sessions {
		return *sess
	}
	panic("unreachable")
}

func (f *fakeStore) eventCount(sessionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events[sessionID])
}

func (f *fakeStore) snapshotCount(sessionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.snapshots {
		if f.snapshots[i].SessionID == sessionID {
			n++
		}
	}
	return n
}

func (f *fakeStore) setInsertBatchFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertBatchFailures = n
}

// fakeSpill is an in-memory SpillLog.
type fakeSpill struct {
	mu       sync.Mutex
	entries  map[string]*wal.Entry
	order    []string
	writes   int
	writeErr error
	maxDrain int
}

func newFakeSpill() *fakeSpill {
	return &fakeSpill{entries: make(map[string]*wal.Entry)}
}

func (f *fakeSpill) Write(_ context.Context, batch *wal.Batch) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return "", f.writeErr
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return "", err
	}
	f.writes++
	id := fmt.Sprintf("entry-%04d", f.writes)
	f.entries[id] = &wal.Entry{ID: id, Payload: payload, CreatedAt: time.Now().UTC()}
	f.order = append(f.order, id)
	return id, nil
}

// addRaw seeds an entry with an arbitrary payload, bypassing Batch encoding.
func (f *fakeSpill) addRaw(payload []byte, attempts int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	id := fmt.Sprintf("entry-%04d", f.writes)
	f.entries[id] = &wal.Entry{ID: id, Payload: payload, CreatedAt: time.Now().UTC(), Attempts: attempts}
	f.order = append(f.order, id)
	return id
}

func (f *fakeSpill) Pending(context.Context) ([]*wal.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wal.Entry
	for _, id := range f.order {
		if entry, ok := f.entries[id]; ok {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSpill) Confirm(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, entryID)
	return nil
}

func (f *fakeSpill) RecordDrainFailure(_ context.Context, entryID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[entryID]
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	entry.Attempts++
	entry.LastError = lastError
	entry.LastAttemptAt = time.Now().UTC()
	return nil
}

func (f *fakeSpill) MaxDrainAttempts() int {
	if f.maxDrain > 0 {
		return f.maxDrain
	}
	return 5
}

func (f *fakeSpill) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// noSettings backs a provider that never has database overrides.
type noSettings struct{}

func (noSettings) AllSettings(context.Context) (map[string]string, error) { return nil, nil }

// newTestSettings builds a provider over sane fast-test defaults; mutate
// tweaks individual knobs before the provider is built.
func newTestSettings(mutate func(*config.MonitorConfig)) *settings.Provider {
	mc := config.MonitorConfig{
		OfflineCheckInterval: time.Minute,
		OnlineCheckInterval:  30 * time.Second,
		PostSessionCooldown:  2 * time.Minute,
		ProbeWindow:          200 * time.Millisecond,
		ProbeDwell:           40 * time.Millisecond,
		CooldownBaseHours:    1,
		CooldownMaxHours:     72,
		QuickRetryEnabled:    true,
		QuickRetryAttempts:   3,
		QuickRetryInterval:   15 * time.Second,
		RecoveryProbeDelay:   time.Minute,
		StopOnBlock:          true,
		AutoCooldown:         true,
		AutoRecovery:         true,
		SettingsCacheTTL:     time.Hour,
	}
	if mutate != nil {
		mutate(&mc)
	}
	return settings.NewProvider(noSettings{}, &config.Config{Monitor: mc})
}

// testRig bundles a fully wired manager over fakes. The bus and spill log
// stay nil unless a test installs them before start.
type testRig struct {
	store    *fakeStore
	dialer   *transporttest.Dialer
	registry *Registry
	settings *settings.Provider
	blocks   *BlockTracker
	manager  *Manager
}

func newTestRig(mutate func(*config.MonitorConfig)) *testRig {
	return newTestRigFull(mutate, nil, nil)
}

func newTestRigFull(mutate func(*config.MonitorConfig), bus *eventbus.Bus, spill SpillLog) *testRig {
	store := newFakeStore()
	dialer := transporttest.NewDialer()
	registry := NewRegistry()
	provider := newTestSettings(mutate)
	blocks := NewBlockTracker(store, provider, bus)
	manager := NewManager(store, registry, dialer, provider, blocks, bus, spill, ManagerConfig{
		EventFlushInterval:   20 * time.Millisecond,
		CounterFlushInterval: 20 * time.Millisecond,
		SnapshotInterval:     60 * time.Millisecond,
		MaxBufferedEvents:    100,
		Supervisor: SupervisorConfig{
			MaxReconnectAttempts: 2,
			BackoffBase:          5 * time.Millisecond,
			BackoffMax:           20 * time.Millisecond,
			EventBuffer:          32,
		},
	})
	return &testRig{
		store:    store,
		dialer:   dialer,
		registry: registry,
		settings: provider,
		blocks:   blocks,
		manager:  manager,
	}
}

func (r *testRig) start(t *testing.T) {
	t.Helper()
	if err := r.manager.Start(context.Background()); err != nil {
		t.Fatalf("manager start: %v", err)
	}
	t.Cleanup(r.manager.Stop)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
