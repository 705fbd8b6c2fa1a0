// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package settings provides the runtime-tunable view the monitoring core
// reads its knobs through.
//
// Values resolve in two layers: the koanf configuration supplies defaults,
// and rows in the settings table override them. The merged view is cached
// for a short TTL so the poller and trackers can read through it on every
// scheduling decision without hitting the database; an edit to the table
// takes effect on the next cycle after the cache expires, no restart.
//
// A value that does not parse, or a merged view that fails validation,
// never reaches callers: the provider logs the problem and keeps serving
// the last known-good snapshot.
package settings
