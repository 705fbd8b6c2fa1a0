// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package alerts raises keyword alerts from the live chat stream.

The Engine subscribes to the event bus, scans every chat message against
the configured trigger words with an Aho-Corasick automaton, and on a hit
persists an Alert row, publishes an alert_triggered notification for the
websocket hub, and fans the alert out to registered notifiers.

Trigger words come from the settings provider, so a keyword edit takes
effect within the settings cache TTL without a restart; the automaton is
rebuilt only when the list actually changes. A per-session LRU window
deduplicates repeat hits so a spammy chat cannot fire the same alert
hundreds of times a minute.

Notifiers deliver alerts to external systems. The built-in WebhookNotifier
POSTs JSON to a configured endpoint behind a minimum-interval rate limit
and a circuit breaker, so a dead or slow endpoint cannot back-pressure the
engine's consume loop.
*/
package alerts
