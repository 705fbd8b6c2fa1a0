// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package wal

import "time"

// Config holds spill log settings.
//
// The spill log provides durability for event batches the primary store
// refused. When enabled, batches are persisted to BadgerDB (ACID, fsync)
// and only removed once reconciliation has drained them back.
type Config struct {
	// Enabled controls whether the spill log is active.
	// When disabled, batches that fail to flush are dropped with a log line.
	Enabled bool

	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem (not tmpfs).
	Path string

	// SyncWrites forces fsync after every write for maximum durability.
	// Set to false for higher throughput but risk of data loss on power failure.
	SyncWrites bool

	// EntryTTL is the time-to-live for unconfirmed entries.
	// Entries older than this are cleaned up by BadgerDB regardless of
	// confirmation status; a batch that old has lost its session anyway.
	EntryTTL time.Duration

	// MaxDrainAttempts is how many failed drains a batch survives before
	// reconciliation gives up and confirms it away as poisoned.
	MaxDrainAttempts int

	// BadgerDB tuning options

	// MemTableSize is the size of each memtable in bytes.
	MemTableSize int64

	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// Compression enables Snappy compression for entries.
	// JSON batches compress well; the CPU cost is negligible at spill rates.
	Compression bool

	// GCRatio is the ratio for value log garbage collection.
	// Lower values reclaim more space but use more CPU.
	GCRatio float64

	// CloseTimeout is the maximum time to wait for graceful shutdown.
	// If the database doesn't close within this time, Close() returns an error.
	CloseTimeout time.Duration
}

// DefaultConfig returns a Config with defaults that prioritize durability.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Path:             "data/wal",
		SyncWrites:       true,
		EntryTTL:         168 * time.Hour, // 7 days
		MaxDrainAttempts: 5,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		Compression:      true,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // No validation needed if disabled
	}

	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "spill log path is required"}
	}

	if c.EntryTTL < time.Hour {
		return &ConfigError{Field: "EntryTTL", Message: "must be at least 1 hour"}
	}

	if c.MaxDrainAttempts < 1 {
		return &ConfigError{Field: "MaxDrainAttempts", Message: "must be at least 1"}
	}

	if c.MemTableSize < 1024*1024 { // 1MB minimum
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}

	if c.ValueLogFileSize < 1024*1024 { // 1MB minimum
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}

	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}

	if c.GCRatio <= 0 || c.GCRatio > 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be in (0, 1]"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "wal config error: " + e.Field + ": " + e.Message
}
