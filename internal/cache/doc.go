// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package cache provides thread-safe in-memory data structures for pattern
matching and deduplication.

# Overview

Two structures back the hot paths of the monitor:

  - AhoCorasick: multi-pattern string matching in O(n + m + z) time,
    used to scan chat messages for configured alert keywords and to
    classify transport errors against known block signatures.
  - LRUCache: a bounded dedup window with TTL, used to suppress repeat
    keyword alerts for the same session within a configurable interval.

# Pattern Matching

The automaton is built once from the configured patterns and then shared
read-only across goroutines:

	ac := cache.NewAhoCorasick()
	ac.AddPatterns(keywords, nil)
	ac.Build()

	if match, ok := ac.SearchFirst(chatMessage); ok {
	    // match.Pattern triggered, match.Position locates it
	}

Rebuilding after a keyword change is cheap: add the new patterns and call
Build again, or Clear and start over.

# Deduplication

The LRU records when a key was last seen and answers "have I seen this
recently" in O(1):

	window := cache.NewLRUCache(4096, 5*time.Minute)

	if window.IsDuplicate(sessionID + ":" + keyword) {
	    return // already alerted for this keyword in this session
	}

Expired entries are dropped lazily on access; CleanupExpired sweeps the
rest when a caller wants the memory back.
*/
package cache
