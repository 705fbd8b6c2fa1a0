// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/models"
)

func TestInsertLiveSession_DefaultsAndRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedAccount(t, db, "host")
	session := &models.LiveSession{
		Handle: "host",
		RoomID: "7421337",
	}
	if err := db.InsertLiveSession(ctx, session); err != nil {
		t.Fatalf("InsertLiveSession failed: %v", err)
	}

	if session.ID == uuid.Nil {
		t.Fatal("Expected generated session ID")
	}
	if session.StartedAt.IsZero() {
		t.Fatal("Expected StartedAt default")
	}
	if session.Status != models.SessionStatusLive {
		t.Fatalf("Expected default status live, got %s", session.Status)
	}

	got, err := db.GetLiveSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetLiveSession failed: %v", err)
	}
	if got.Handle != "host" || got.RoomID != "7421337" {
		t.Errorf("Unexpected roundtrip: handle=%s room=%s", got.Handle, got.RoomID)
	}
	if got.Status != models.SessionStatusLive {
		t.Errorf("Expected status live, got %s", got.Status)
	}
	if got.EndedAt != nil {
		t.Error("Expected nil EndedAt on live session")
	}
	if !got.Counters.IsZero() {
		t.Errorf("Expected zero counters, got %+v", got.Counters)
	}
}

func TestGetLiveSession_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetLiveSession(context.Background(), uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	session := seedSession(t, db, "exists-host")

	exists, err := db.SessionExists(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected session to exist")
	}

	exists, err = db.SessionExists(ctx, uuid.New())
	if err != nil {
		t.Fatalf("SessionExists failed: %v", err)
	}
	if exists {
		t.Error("Expected random ID to not exist")
	}
}

func TestUpdateSessionCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	session := seedSession(t, db, "counter-host")

	counters := models.SessionCounters{
		TotalLikes:      1500,
		PeakViewers:     320,
		TotalGifts:      12,
		TotalMessages:   890,
		TotalJoins:      410,
		TotalFollows:    33,
		TotalShares:     7,
		TotalReposts:    2,
		TotalLeaves:     380,
		TotalSubscribes: 1,
		TotalEmotes:     54,
	}
	if err := db.UpdateSessionCounters(ctx, session.ID, counters); err != nil {
		t.Fatalf("UpdateSessionCounters failed: %v", err)
	}

	got, err := db.GetLiveSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetLiveSession failed: %v", err)
	}
	if got.Counters != counters {
		t.Errorf("Counter mismatch: expected %+v, got %+v", counters, got.Counters)
	}

	// A later flush with the full aggregate overwrites, never increments.
	counters.TotalLikes = 1600
	if err := db.UpdateSessionCounters(ctx, session.ID, counters); err != nil {
		t.Fatalf("Second UpdateSessionCounters failed: %v", err)
	}
	got, err = db.GetLiveSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetLiveSession failed: %v", err)
	}
	if got.Counters.TotalLikes != 1600 {
		t.Errorf("Expected overwrite to 1600 likes, got %d", got.Counters.TotalLikes)
	}

	if err := db.UpdateSessionCounters(ctx, uuid.New(), counters); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestEndSession_FirstWriteWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	session := seedSession(t, db, "end-host")

	firstEnd := time.Now()
	if err := db.EndSession(ctx, session.ID, models.SessionStatusEnded, firstEnd); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	// A second termination an hour later must not move the end time or
	// change the status.
	if err := db.EndSession(ctx, session.ID, models.SessionStatusConnectionFailed, firstEnd.Add(time.Hour)); err != nil {
		t.Fatalf("Second EndSession failed: %v", err)
	}

	got, err := db.GetLiveSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetLiveSession failed: %v", err)
	}
	if got.Status != models.SessionStatusEnded {
		t.Errorf("Expected status ended, got %s", got.Status)
	}
	if got.EndedAt == nil {
		t.Fatal("Expected EndedAt set")
	}
	if !timesClose(*got.EndedAt, firstEnd) {
		t.Errorf("Expected original end time %v preserved, got %v", firstEnd, *got.EndedAt)
	}
}

func TestEndSession_NotFound(t *testing.T) {
	db := setupTestDB(t)

	err := db.EndSession(context.Background(), uuid.New(), models.SessionStatusEnded, time.Now())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestListSessionsByStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	older := seedSession(t, db, "stale-a")
	newer := seedSession(t, db, "stale-b")
	finished := seedSession(t, db, "done")
	if err := db.EndSession(ctx, finished.ID, models.SessionStatusEnded, time.Now()); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	live, err := db.ListSessionsByStatus(ctx, models.SessionStatusLive)
	if err != nil {
		t.Fatalf("ListSessionsByStatus failed: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("Expected 2 live sessions, got %d", len(live))
	}

	found := map[uuid.UUID]bool{live[0].ID: true, live[1].ID: true}
	if !found[older.ID] || !found[newer.ID] {
		t.Errorf("Expected sessions %s and %s, got %v", older.ID, newer.ID, found)
	}

	ended, err := db.ListSessionsByStatus(ctx, models.SessionStatusEnded)
	if err != nil {
		t.Fatalf("ListSessionsByStatus failed: %v", err)
	}
	if len(ended) != 1 || ended[0].ID != finished.ID {
		t.Errorf("Expected only the finished session, got %d rows", len(ended))
	}
}

func TestListSessionsByHandle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedAccount(t, db, "serial-host")
	base := time.Now().Add(-3 * time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		session := &models.LiveSession{
			Handle:    "serial-host",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.InsertLiveSession(ctx, session); err != nil {
			t.Fatalf("InsertLiveSession %d failed: %v", i, err)
		}
		ids = append(ids, session.ID)
	}

	sessions, err := db.ListSessionsByHandle(ctx, "serial-host", 2)
	if err != nil {
		t.Fatalf("ListSessionsByHandle failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected limit of 2 sessions, got %d", len(sessions))
	}
	// Newest first.
	if sessions[0].ID != ids[2] || sessions[1].ID != ids[1] {
		t.Errorf("Expected newest-first ordering, got %s then %s", sessions[0].ID, sessions[1].ID)
	}
}
