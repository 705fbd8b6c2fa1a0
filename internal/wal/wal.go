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
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/models"
)

// Log is the spill log for event batches the primary store refused.
// Batches are persisted durably (ACID, fsync) and drained back into the
// store by startup reconciliation.
type Log interface {
	// Write persists a failed flush batch. Returns an entry ID for later
	// confirmation.
	Write(ctx context.Context, batch *Batch) (entryID string, err error)

	// Pending returns all undrained entries, oldest spill first is not
	// guaranteed; drain order does not matter because inserts are
	// idempotent by event ID.
	Pending(ctx context.Context) ([]*Entry, error)

	// Confirm removes a drained (or discarded) entry.
	Confirm(ctx context.Context, entryID string) error

	// Stats returns spill log metrics.
	Stats() Stats

	// Close gracefully shuts down the log.
	Close() error
}

// Batch is one spilled event flush: the events of a single session that
// could not be written to the store.
type Batch struct {
	// SessionID is the session the events belong to.
	SessionID uuid.UUID `json:"session_id"`

	// Handle is the account the session tracks, kept for logging.
	Handle string `json:"handle"`

	// Events are the buffered events that failed to flush.
	Events []models.LiveEvent `json:"events"`

	// SpilledAt is when the batch was written to the spill log.
	SpilledAt time.Time `json:"spilled_at"`

	// Reason is the store error that caused the spill.
	Reason string `json:"reason,omitempty"`
}

// Entry represents a single spill log entry containing a batch and
// drain-attempt metadata.
type Entry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`

	// Payload is the serialized Batch.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `json:"created_at"`

	// Attempts is the number of failed drain attempts.
	Attempts int `json:"attempts"`

	// LastAttemptAt is the time of the last drain attempt.
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`

	// LastError is the error message from the last failed drain.
	LastError string `json:"last_error,omitempty"`
}

// Batch deserializes the entry payload.
func (e *Entry) Batch() (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(e.Payload, &b); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}
	return &b, nil
}

// Stats contains spill log metrics for monitoring.
type Stats struct {
	// PendingCount is the number of undrained entries.
	PendingCount int64

	// TotalWrites is the total number of Write operations.
	TotalWrites int64

	// TotalConfirms is the total number of Confirm operations.
	TotalConfirms int64

	// TotalRetries is the total number of recorded failed drains.
	TotalRetries int64

	// DBSizeBytes is the estimated database size.
	DBSizeBytes int64
}

// BadgerLog implements Log using BadgerDB for durable storage.
type BadgerLog struct {
	db     *badger.DB
	config Config

	// Statistics
	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64

	mu     sync.RWMutex
	closed bool
}

const prefixPending = "pending:"

// Open creates a new BadgerLog with the given configuration.
// The BadgerDB database is opened (or created) at the configured path.
func Open(cfg *Config) (*BadgerLog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wal config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors

	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	l := &BadgerLog{
		db:     db,
		config: *cfg,
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Bool("compression", cfg.Compression).
		Msg("Spill log opened")
	return l, nil
}

// OpenForTesting creates a BadgerLog without configuration validation.
// This is intended for unit tests. WARNING: Do not use in production code.
func OpenForTesting(cfg *Config) (*BadgerLog, error) {
	// Ensure minimum BadgerDB requirements even for tests
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = 0.5
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	return &BadgerLog{db: db, config: *cfg}, nil
}

// Write persists a failed flush batch.
// This operation is ACID-compliant with fsync when SyncWrites is enabled.
func (l *BadgerLog) Write(ctx context.Context, batch *Batch) (string, error) {
	start := time.Now()
	defer func() {
		RecordWALWriteLatency(time.Since(start).Seconds())
	}()

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return "", ErrClosed
	}
	l.mu.RUnlock()

	if batch == nil {
		return "", ErrNilBatch
	}
	if len(batch.Events) == 0 {
		return "", ErrEmptyBatch
	}

	if batch.SpilledAt.IsZero() {
		batch.SpilledAt = time.Now().UTC()
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}

	entryID := uuid.New().String()
	entry := &Entry{
		ID:        entryID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	key := []byte(prefixPending + entryID)
	err = l.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if l.config.EntryTTL > 0 {
			e = e.WithTTL(l.config.EntryTTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	l.totalWrites.Add(1)
	RecordWALWrite()

	logging.Debug().
		Str("entry_id", entryID).
		Str("handle", batch.Handle).
		Int("events", len(batch.Events)).
		Msg("Spilled event batch")

	return entryID, nil
}

// Pending returns all undrained entries.
// Uses BadgerDB's View() transaction, so all entries come from a
// consistent point-in-time snapshot.
func (l *BadgerLog) Pending(ctx context.Context) ([]*Entry, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrClosed
	}
	l.mu.RUnlock()

	var entries []*Entry

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()

			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Spill log failed to unmarshal entry")
				continue
			}

			entries = append(entries, &entry)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return entries, nil
}

// Confirm removes a drained (or discarded) entry.
func (l *BadgerLog) Confirm(ctx context.Context, entryID string) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	l.mu.RUnlock()

	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := []byte(prefixPending + entryID)

	err := l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get pending entry: %w", err)
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	l.totalConfirms.Add(1)
	RecordWALConfirm()

	return nil
}

// RecordDrainFailure updates an entry's attempt count and last error.
// Called after a failed drain so the poison threshold can be enforced
// across restarts.
func (l *BadgerLog) RecordDrainFailure(ctx context.Context, entryID string, lastError string) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	l.mu.RUnlock()

	key := []byte(prefixPending + entryID)

	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}

		var entry Entry
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		if err != nil {
			return fmt.Errorf("unmarshal entry: %w", err)
		}

		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		entry.LastError = lastError

		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}

		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	l.totalRetries.Add(1)
	RecordWALRetry()

	return nil
}

// Stats returns current spill log statistics.
func (l *BadgerLog) Stats() Stats {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()

	if closed {
		return Stats{}
	}

	var pendingCount int64

	if err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			pendingCount++
		}

		return nil
	}); err != nil {
		logging.Warn().Err(err).Msg("Spill log stats failed to count entries")
		// Continue with zero counts
	}

	lsm, vlog := l.db.Size()
	dbSize := lsm + vlog

	stats := Stats{
		PendingCount:  pendingCount,
		TotalWrites:   l.totalWrites.Load(),
		TotalConfirms: l.totalConfirms.Load(),
		TotalRetries:  l.totalRetries.Load(),
		DBSizeBytes:   dbSize,
	}

	UpdateWALPendingEntries(pendingCount)
	UpdateWALDBSize(dbSize)

	return stats
}

// Close gracefully shuts down the spill log with a configurable timeout.
// If the database doesn't close within CloseTimeout, Close() returns an
// error instead of hanging shutdown.
func (l *BadgerLog) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	timeout := l.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	l.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- l.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Spill log closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// MaxDrainAttempts exposes the poison threshold for reconciliation.
func (l *BadgerLog) MaxDrainAttempts() int {
	return l.config.MaxDrainAttempts
}

// RunGC triggers BadgerDB garbage collection.
// Should be called periodically to reclaim value log space.
func (l *BadgerLog) RunGC() error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	l.mu.RUnlock()

	start := time.Now()
	defer func() {
		RecordWALGCLatency(time.Since(start).Seconds())
		RecordWALGCRun()
	}()

	// Run GC until no more cleanup is possible
	for {
		err := l.db.RunValueLogGC(l.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}

	return nil
}

// Errors
var (
	// ErrClosed is returned when the spill log is closed.
	ErrClosed = fmt.Errorf("spill log is closed")

	// ErrNilBatch is returned when a nil batch is passed to Write.
	ErrNilBatch = fmt.Errorf("batch cannot be nil")

	// ErrEmptyBatch is returned when a batch has no events.
	ErrEmptyBatch = fmt.Errorf("batch has no events")

	// ErrEmptyEntryID is returned when an empty entry ID is provided.
	ErrEmptyEntryID = fmt.Errorf("entry ID cannot be empty")

	// ErrEntryNotFound is returned when an entry doesn't exist.
	ErrEntryNotFound = fmt.Errorf("entry not found")
)
