// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/tomtom215/vigil/internal/logging"
)

// Sentinel errors for the monitoring store. Callers branch on these with
// errors.Is; everything else is an infrastructure failure.
var (
	// ErrAccountNotFound is returned when no account row exists for a handle.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSessionNotFound is returned when no live session row exists for an
	// ID. Event and snapshot writes surface it when their session guard
	// fails, which tells the caller to discard the buffered data.
	ErrSessionNotFound = errors.New("live session not found")

	// ErrBlockNotFound is returned when no block record exists for a handle.
	ErrBlockNotFound = errors.New("block record not found")

	// ErrSettingNotFound is returned when a settings key has no row.
	ErrSettingNotFound = errors.New("setting not found")
)

// closeWithLog closes a resource and logs any error instead of returning it.
// Used in defer paths where the original error must not be shadowed.
func closeWithLog(closer io.Closer, logger *slog.Logger, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		if logger != nil {
			logger.Error("failed to close resource",
				"type", resourceType,
				"error", err)
		} else {
			// Fallback to logging if logger not available
			logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
		}
	}
}

// closeQuietly closes a resource ignoring any error. For cleanup paths where
// failure is acceptable and logging would be noise.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
