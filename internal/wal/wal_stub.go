// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build !wal

package wal

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/models"
)

// Log is the spill log for event batches the primary store refused.
// This stub implementation does nothing when the log is disabled via
// build tags; failed flushes are logged and dropped.
type Log interface {
	Write(ctx context.Context, batch *Batch) (entryID string, err error)
	Pending(ctx context.Context) ([]*Entry, error)
	Confirm(ctx context.Context, entryID string) error
	Stats() Stats
	Close() error
}

// Batch is one spilled event flush (stub).
type Batch struct {
	SessionID uuid.UUID          `json:"session_id"`
	Handle    string             `json:"handle"`
	Events    []models.LiveEvent `json:"events"`
	SpilledAt time.Time          `json:"spilled_at"`
	Reason    string             `json:"reason,omitempty"`
}

// Entry represents a single spill log entry (stub).
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// Batch deserializes the entry payload.
func (e *Entry) Batch() (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(e.Payload, &b); err != nil {
		return nil, fmt.Errorf("unmarshal batch: %w", err)
	}
	return &b, nil
}

// Stats contains spill log metrics (stub).
type Stats struct {
	PendingCount  int64
	TotalWrites   int64
	TotalConfirms int64
	TotalRetries  int64
	DBSizeBytes   int64
}

// NoOpLog is a stub implementation that does nothing.
// Used when the application is built without the 'wal' build tag.
type NoOpLog struct{}

// Open returns a no-op spill log stub.
func Open(cfg *Config) (*NoOpLog, error) {
	logging.Info().Msg("Spill log disabled (build without -tags wal); failed flushes are dropped")
	return &NoOpLog{}, nil
}

// OpenForTesting returns a no-op spill log stub for testing.
func OpenForTesting(cfg *Config) (*NoOpLog, error) {
	return &NoOpLog{}, nil
}

// Write drops the batch and returns an empty entry ID.
func (l *NoOpLog) Write(ctx context.Context, batch *Batch) (string, error) {
	if batch != nil {
		logging.Warn().
			Str("handle", batch.Handle).
			Int("events", len(batch.Events)).
			Msg("Dropping event batch: spill log disabled")
	}
	return "", nil
}

// Pending returns an empty slice.
func (l *NoOpLog) Pending(ctx context.Context) ([]*Entry, error) {
	return nil, nil
}

// Confirm does nothing.
func (l *NoOpLog) Confirm(ctx context.Context, entryID string) error {
	return nil
}

// RecordDrainFailure does nothing.
func (l *NoOpLog) RecordDrainFailure(ctx context.Context, entryID string, lastError string) error {
	return nil
}

// Stats returns empty stats.
func (l *NoOpLog) Stats() Stats {
	return Stats{}
}

// Close does nothing.
func (l *NoOpLog) Close() error {
	return nil
}

// MaxDrainAttempts returns the configured poison threshold default.
func (l *NoOpLog) MaxDrainAttempts() int {
	return 0
}

// RunGC does nothing.
func (l *NoOpLog) RunGC() error {
	return nil
}

// Errors (stub)
var (
	ErrClosed        = stubError("spill log is closed")
	ErrNilBatch      = stubError("batch cannot be nil")
	ErrEmptyBatch    = stubError("batch has no events")
	ErrEmptyEntryID  = stubError("entry ID cannot be empty")
	ErrEntryNotFound = stubError("entry not found")
)

type stubError string

func (e stubError) Error() string { return string(e) }
