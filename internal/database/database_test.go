// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource
// exhaustion in CI. Too many concurrent DuckDB CGO calls can hang, so
// database access is fully serialized across tests.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes the New() call itself.
var testDBMutex sync.Mutex

// setupTestDB creates an in-memory test database with timeout protection.
//
// The semaphore is held for the ENTIRE test lifecycle (released via
// t.Cleanup), not just during creation: concurrent INSERT/SELECT from
// multiple tests can hang DuckDB under CI resource pressure even when
// creation is serialized.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
		// Index creation churns CGO resources; tests that need indexes
		// call CreateIndexes() explicitly.
		SkipIndexes: true,
	}

	type result struct {
		db  *DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s (DuckDB may be under resource pressure)")
		return nil
	}
}

// seedAccount inserts a minimal enabled account.
func seedAccount(t *testing.T, db *DB, handle string) *models.Account {
	t.Helper()

	account := &models.Account{
		Handle:            handle,
		MonitoringEnabled: true,
	}
	if err := db.UpsertAccount(context.Background(), account); err != nil {
		t.Fatalf("Failed to seed account %s: %v", handle, err)
	}
	return account
}

// seedSession inserts an account plus one live session for it.
func seedSession(t *testing.T, db *DB, handle string) *models.LiveSession {
	t.Helper()

	seedAccount(t, db, handle)
	session := &models.LiveSession{
		Handle: handle,
		RoomID: "room-" + handle,
	}
	if err := db.InsertLiveSession(context.Background(), session); err != nil {
		t.Fatalf("Failed to seed session for %s: %v", handle, err)
	}
	return session
}

// timesClose reports whether two timestamps agree within a second.
// DuckDB stores microsecond precision, so exact equality with time.Now()
// values is never guaranteed.
func timesClose(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= time.Second
}

func TestNew_InitializesSchema(t *testing.T) {
	db := setupTestDB(t)

	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	counts, err := db.GetRecordCounts(ctx)
	if err != nil {
		t.Fatalf("GetRecordCounts failed: %v", err)
	}

	expected := []string{
		"accounts", "live_sessions", "live_events",
		"stats_snapshots", "block_records", "settings", "alerts",
	}
	for _, table := range expected {
		count, ok := counts[table]
		if !ok {
			t.Errorf("Expected table %s in record counts", table)
			continue
		}
		if count != 0 {
			t.Errorf("Expected empty table %s, got %d rows", table, count)
		}
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	dbPath := filepath.Join(t.TempDir(), "nested", "data", "vigil.duckdb")
	cfg := &config.DatabaseConfig{
		Path:        dbPath,
		MaxMemory:   "1GB",
		SkipIndexes: true,
	}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("Expected parent directory to exist: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Expected Path() %s, got %s", dbPath, db.Path())
	}
}

func TestCheckpoint(t *testing.T) {
	db := setupTestDB(t)

	seedAccount(t, db, "checkpoint-user")

	if err := db.Checkpoint(context.Background()); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
}

func TestCreateIndexes_Explicit(t *testing.T) {
	db := setupTestDB(t)

	// setupTestDB skips indexes; explicit creation must still succeed.
	if err := db.CreateIndexes(); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	// Idempotent: IF NOT EXISTS makes a second pass a no-op.
	if err := db.CreateIndexes(); err != nil {
		t.Fatalf("Second CreateIndexes failed: %v", err)
	}
}

func TestGetRecordCounts_ReflectsWrites(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSession(t, db, "counted")
	if err := db.SetSetting(ctx, "monitor.offline_check_interval", "2m"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	counts, err := db.GetRecordCounts(ctx)
	if err != nil {
		t.Fatalf("GetRecordCounts failed: %v", err)
	}

	if counts["accounts"] != 1 {
		t.Errorf("Expected 1 account, got %d", counts["accounts"])
	}
	if counts["live_sessions"] != 1 {
		t.Errorf("Expected 1 session, got %d", counts["live_sessions"])
	}
	if counts["settings"] != 1 {
		t.Errorf("Expected 1 setting, got %d", counts["settings"])
	}
}

func TestEnsureContext_AddsDeadline(t *testing.T) {
	db := setupTestDB(t)

	ctx, cancel := db.ensureContext(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Error("Expected deadline on bare context")
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
	defer parentCancel()
	ctx2, cancel2 := db.ensureContext(parent)
	defer cancel2()
	deadline, ok := ctx2.Deadline()
	if !ok {
		t.Fatal("Expected deadline to be preserved")
	}
	parentDeadline, _ := parent.Deadline()
	if !deadline.Equal(parentDeadline) {
		t.Error("Expected existing deadline to pass through unchanged")
	}
}
