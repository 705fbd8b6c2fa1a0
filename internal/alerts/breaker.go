// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package alerts

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vigil/internal/logging"
)

// BreakerConfig holds circuit breaker settings for a notifier.
//
// The breaker trips on failure rate rather than consecutive failures: a
// webhook endpoint that drops every other request is just as dead as one
// that drops them all, and a rate threshold catches both.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // Allowed through in half-open state
	Interval     time.Duration // Closed-state count reset interval
	Timeout      time.Duration // Time to stay open before probing
	MinRequests  uint32        // Minimum requests before the ratio applies
	FailureRatio float64       // Failure rate that trips the breaker
}

// DefaultBreakerConfig returns production defaults: open at a 60% failure
// rate over at least 10 requests, probe again after two minutes.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:         name,
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig(c.Name)
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = d.FailureRatio
	}
	return c
}

// newBreaker builds a gobreaker v2 circuit breaker from the config.
func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	cfg = cfg.withDefaults()

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio < cfg.FailureRatio {
				return false
			}

			logging.Warn().
				Str("breaker", cfg.Name).
				Uint32("failures", counts.TotalFailures).
				Uint32("requests", counts.Requests).
				Msg("Circuit breaker tripping")
			return true
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
}

// isBreakerRejection reports whether an error means the breaker refused the
// call without executing it, as opposed to the call itself failing.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
