// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build wal

package wal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/models"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Enabled:          true,
		Path:             filepath.Join(t.TempDir(), "wal"),
		SyncWrites:       false, // Faster tests without fsync
		EntryTTL:         time.Hour,
		MaxDrainAttempts: 3,
		MemTableSize:     16 * 1024 * 1024, // BadgerDB minimum
		ValueLogFileSize: 16 * 1024 * 1024,
		NumCompactors:    2,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// setupLog opens a spill log with standard test config.
// The caller should defer log.Close().
func setupLog(t *testing.T) *BadgerLog {
	t.Helper()
	cfg := testConfig(t)
	l, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Failed to open spill log: %v", err)
	}
	return l
}

func testBatch(handle string, numEvents int) *Batch {
	sessionID := uuid.New()
	events := make([]models.LiveEvent, numEvents)
	for i := range events {
		events[i] = models.LiveEvent{
			ID:         uuid.New(),
			SessionID:  sessionID,
			Type:       "chat",
			OccurredAt: time.Now().UTC(),
			Payload:    []byte(fmt.Sprintf(`{"comment":"message %d"}`, i)),
		}
	}
	return &Batch{
		SessionID: sessionID,
		Handle:    handle,
		Events:    events,
		Reason:    "database is closed",
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Path = ""

	if _, err := Open(&cfg); err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestWriteAndPending_RoundTrip(t *testing.T) {
	l := setupLog(t)
	defer l.Close()
	ctx := context.Background()

	batch := testBatch("creator1", 3)
	entryID, err := l.Write(ctx, batch)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if entryID == "" {
		t.Fatal("Expected non-empty entry ID")
	}

	entries, err := l.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 pending entry, got %d", len(entries))
	}

	got, err := entries[0].Batch()
	if err != nil {
		t.Fatalf("Batch decode failed: %v", err)
	}
	if got.SessionID != batch.SessionID {
		t.Errorf("SessionID = %v, want %v", got.SessionID, batch.SessionID)
	}
	if got.Handle != "creator1" {
		t.Errorf("Handle = %q, want creator1", got.Handle)
	}
	if len(got.Events) != 3 {
		t.Errorf("Expected 3 events, got %d", len(got.Events))
	}
	if got.Events[0].ID != batch.Events[0].ID {
		t.Errorf("Event ID = %v, want %v", got.Events[0].ID, batch.Events[0].ID)
	}
	if got.Reason != "database is closed" {
		t.Errorf("Reason = %q, want 'database is closed'", got.Reason)
	}
	if got.SpilledAt.IsZero() {
		t.Error("Expected SpilledAt to be stamped")
	}
}

func TestWrite_NilBatch(t *testing.T) {
	l := setupLog(t)
	defer l.Close()

	if _, err := l.Write(context.Background(), nil); !errors.Is(err, ErrNilBatch) {
		t.Errorf("Expected ErrNilBatch, got %v", err)
	}
}

func TestWrite_EmptyBatch(t *testing.T) {
	l := setupLog(t)
	defer l.Close()

	batch := &Batch{SessionID: uuid.New(), Handle: "creator1"}
	if _, err := l.Write(context.Background(), batch); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}
}

func TestConfirm_RemovesEntry(t *testing.T) {
	l := setupLog(t)
	defer l.Close()
	ctx := context.Background()

	entryID, err := l.Write(ctx, testBatch("creator1", 2))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := l.Confirm(ctx, entryID); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	entries, err := l.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected 0 pending entries after confirm, got %d", len(entries))
	}

	// Second confirm finds nothing.
	if err := l.Confirm(ctx, entryID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound, got %v", err)
	}
}

func TestConfirm_EmptyID(t *testing.T) {
	l := setupLog(t)
	defer l.Close()

	if err := l.Confirm(context.Background(), ""); !errors.Is(err, ErrEmptyEntryID) {
		t.Errorf("Expected ErrEmptyEntryID, got %v", err)
	}
}

func TestRecordDrainFailure(t *testing.T) {
	l := setupLog(t)
	defer l.Close()
	ctx := context.Background()

	entryID, err := l.Write(ctx, testBatch("creator1", 1))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := l.RecordDrainFailure(ctx, entryID, "connection refused"); err != nil {
		t.Fatalf("RecordDrainFailure failed: %v", err)
	}
	if err := l.RecordDrainFailure(ctx, entryID, "connection refused"); err != nil {
		t.Fatalf("RecordDrainFailure failed: %v", err)
	}

	entries, err := l.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 pending entry, got %d", len(entries))
	}
	if entries[0].Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", entries[0].Attempts)
	}
	if entries[0].LastError != "connection refused" {
		t.Errorf("LastError = %q, want 'connection refused'", entries[0].LastError)
	}
	if entries[0].LastAttemptAt.IsZero() {
		t.Error("Expected LastAttemptAt to be stamped")
	}

	if err := l.RecordDrainFailure(ctx, "no-such-entry", "x"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound, got %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	l, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	batch := testBatch("creator1", 2)
	if _, err := l.Write(ctx, batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen the same path: the spilled batch must survive.
	l2, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer l2.Close()

	entries, err := l2.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 pending entry after reopen, got %d", len(entries))
	}

	got, err := entries[0].Batch()
	if err != nil {
		t.Fatalf("Batch decode failed: %v", err)
	}
	if got.SessionID != batch.SessionID {
		t.Errorf("SessionID = %v, want %v", got.SessionID, batch.SessionID)
	}
}

func TestStats(t *testing.T) {
	l := setupLog(t)
	defer l.Close()
	ctx := context.Background()

	id1, err := l.Write(ctx, testBatch("creator1", 1))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := l.Write(ctx, testBatch("creator2", 1)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := l.Confirm(ctx, id1); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	stats := l.Stats()
	if stats.TotalWrites != 2 {
		t.Errorf("TotalWrites = %d, want 2", stats.TotalWrites)
	}
	if stats.TotalConfirms != 1 {
		t.Errorf("TotalConfirms = %d, want 1", stats.TotalConfirms)
	}
	if stats.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1", stats.PendingCount)
	}
}

func TestClosedErrors(t *testing.T) {
	l := setupLog(t)
	ctx := context.Background()

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := l.Write(ctx, testBatch("creator1", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close: expected ErrClosed, got %v", err)
	}
	if _, err := l.Pending(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Pending after close: expected ErrClosed, got %v", err)
	}
	if err := l.Confirm(ctx, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Confirm after close: expected ErrClosed, got %v", err)
	}

	// Close is idempotent.
	if err := l.Close(); err != nil {
		t.Errorf("Second close: %v", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	l := setupLog(t)
	defer l.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 10
	writesPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < writesPerGoroutine; j++ {
				handle := fmt.Sprintf("creator-%d", id)
				if _, err := l.Write(ctx, testBatch(handle, 1)); err != nil {
					t.Errorf("Write failed: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()

	entries, err := l.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(entries) != numGoroutines*writesPerGoroutine {
		t.Errorf("Expected %d pending entries, got %d", numGoroutines*writesPerGoroutine, len(entries))
	}
}

func TestRunGC(t *testing.T) {
	l := setupLog(t)
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id, err := l.Write(ctx, testBatch("creator1", 5))
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := l.Confirm(ctx, id); err != nil {
			t.Fatalf("Confirm failed: %v", err)
		}
	}

	// GC on a tiny database typically has nothing to rewrite; it must
	// still return cleanly.
	if err := l.RunGC(); err != nil {
		t.Errorf("RunGC failed: %v", err)
	}
}
