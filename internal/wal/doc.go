// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package wal provides a BadgerDB-backed spill log for event batches that
could not be written to the primary store.

When a session's event flush fails persistently (the database is gone,
the disk is full), the session manager spills the batch here instead of
dropping it. The spill is ACID and fsynced, so the batch survives a
process crash. On the next startup, reconciliation drains every pending
batch back into the store and confirms each one, which removes it. Event
inserts are idempotent by ID and guarded by session existence, so a drain
after a partial flush converges instead of double-counting.

# Lifecycle

	log, err := wal.Open(&cfg)
	// on flush failure:
	entryID, err := log.Write(ctx, &wal.Batch{...})
	// at startup:
	entries, err := log.Pending(ctx)
	for _, e := range entries {
	    batch, err := e.Batch()
	    // drain into the store, then:
	    log.Confirm(ctx, e.ID)
	}

# Build Tags

The package is compiled in two flavors:

  - Default build: a no-op stub. Write returns immediately, Pending is
    always empty. Failed flushes are logged and dropped.
  - `-tags wal`: the real BadgerDB implementation.

The stub keeps BadgerDB out of deployments that do not want the extra
on-disk state, at the cost of losing batches across a crash.
*/
package wal
