// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package monitor drives the live-session lifecycle for every tracked account.

This package owns the decision-making core: when to probe an account for
liveness, when to attach a long-lived connection, how to aggregate the event
stream into session statistics, and how to back off when the platform pushes
back. It persists through internal/database and communicates outward through
internal/eventbus.

Key Components:

  - Poller: per-account self-rescheduling check timers with a priority
    decision table (cooldown, disabled, post-session, connected, probe)
  - Prober: two-phase liveness probe (connect, then observe for strong
    engagement signals) behind a global rate limiter
  - Supervisor: one long-lived transport connection per account with an
    explicit state machine and bounded exponential reconnects
  - Manager: session lifecycle (start/stop, buffered event flushes, counter
    flushes, periodic snapshots, startup reconciliation)
  - BlockTracker: exponential block cooldowns backed by block_records
  - Registry: process-scoped handle -> active session table shared by the
    poller and the manager

Data Flow:

 1. Poller fires a check for a handle and walks the decision table.
 2. Prober dials the transport and watches the event stream for strong
    signals (chat, gifts, likes, joins) inside a bounded window.
 3. On a live verdict the Manager inserts a LiveSession row, attributes it to
    the account, and starts a Supervisor.
 4. One consumer goroutine per session fans each event out to the event bus,
    the in-memory buffer (flushed in batches), and the counter aggregates.
 5. Stream end, block, reconnect exhaustion, or an operator stop finishes the
    session: final flush, final snapshot, row marked ended, pointer cleared.

Failure Containment:

  - Probe and check errors never kill a timer chain; they reschedule at the
    offline cadence.
  - Flushes survive store outages by re-buffering (bounded) and spilling to
    the write-ahead log as a last resort.
  - Platform blocks feed the BlockTracker, which doubles the cooldown per
    consecutive block up to a ceiling.
  - Startup reconciliation repairs whatever a crash left behind before the
    first timer fires.

Thread Safety:

Every account is independent: one supervisor, one timer chain, one consumer
goroutine, all keyed by handle in the Registry. The only cross-account locks
are the registry map mutex and the poller timer map mutex. Counter writes are
serialized by a single flusher goroutine per Manager.

See Also:

  - internal/transport: the connection capability this package consumes
  - internal/database: the durable store behind the Store interface
  - internal/settings: runtime-tunable thresholds read on every decision
  - internal/wal: spill log for event batches the store refused
*/
package monitor
