// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with user-friendly error messages. It validates
// the loaded configuration and the runtime settings documents merged by the
// settings provider.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - Built-in validator support (oneof, min, max, gt, url, etc.)
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type Snapshot struct {
//	    OfflineCheckInterval time.Duration `validate:"gt=0"`
//	    CooldownBaseHours    int           `validate:"min=1"`
//	    CooldownMaxHours     int           `validate:"min=1"`
//	}
//
//	if verr := validation.ValidateStruct(&snap); verr != nil {
//	    log.Warn().Err(verr).Msg("Rejecting settings override")
//	    return defaults
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - url: Valid URL format
//
// Numeric validations (time.Duration validates as nanoseconds):
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "Level is required"
//	min=1      -> "CooldownBaseHours must be at least 1"
//	max=72     -> "CooldownMaxHours must be at most 72"
//	gt=0       -> "ProbeWindow must be greater than 0"
//	oneof=a b  -> "Format must be one of: a b"
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()   // Thread-safe
//	err := validation.ValidateStruct(&snap) // Thread-safe
//
// # Performance
//
// The validator caches struct reflection information:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//   - Memory: ~500 bytes per cached struct type
//
// # See Also
//
//   - internal/config: Startup configuration validation
//   - internal/settings: Runtime settings document validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
