// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/models"
	"github.com/tomtom215/vigil/internal/monitor"
)

// mockPinger implements Pinger with a controllable result.
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error {
	return m.err
}

// mockSessionSource returns a fixed snapshot.
type mockSessionSource struct {
	sessions []monitor.ActiveInfo
}

func (m *mockSessionSource) Snapshot() []monitor.ActiveInfo {
	return m.sessions
}

func decodeResponse(t *testing.T, body []byte) apiResponse {
	t.Helper()

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	h.Healthz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	resp := decodeResponse(t, w.Body.Bytes())
	if resp.Status != "success" {
		t.Errorf("Expected status success, got %q", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected map data, got %T", resp.Data)
	}
	if data["alive"] != true {
		t.Error("Expected alive to be true")
	}
	if _, ok := data["uptime_seconds"]; !ok {
		t.Error("Expected uptime_seconds in response")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	t.Run("ready when store answers", func(t *testing.T) {
		h := NewHandler(&mockPinger{}, nil, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()

		h.Readyz(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		resp := decodeResponse(t, w.Body.Bytes())
		if resp.Status != "ready" {
			t.Errorf("Expected status ready, got %q", resp.Status)
		}
		data := resp.Data.(map[string]interface{})
		if data["database_connected"] != true || data["ready"] != true {
			t.Errorf("Expected connected and ready, got %v", data)
		}
	})

	t.Run("not ready when ping fails", func(t *testing.T) {
		h := NewHandler(&mockPinger{err: errors.New("connection refused")}, nil, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()

		h.Readyz(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("Expected 503, got %d", w.Code)
		}
		resp := decodeResponse(t, w.Body.Bytes())
		if resp.Status != "not_ready" {
			t.Errorf("Expected status not_ready, got %q", resp.Status)
		}
		data := resp.Data.(map[string]interface{})
		if data["database_connected"] != false {
			t.Errorf("Expected database_connected false, got %v", data)
		}
	})

	t.Run("not ready without a store", func(t *testing.T) {
		h := NewHandler(nil, nil, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		w := httptest.NewRecorder()

		h.Readyz(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("Expected 503, got %d", w.Code)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("reports active sessions", func(t *testing.T) {
		started := time.Now().Add(-10 * time.Minute)
		source := &mockSessionSource{
			sessions: []monitor.ActiveInfo{
				{
					Handle:    "alice_live",
					SessionID: uuid.New(),
					RoomID:    "7431886014975faa21",
					State:     "connected",
					StartedAt: started,
					Counters:  models.SessionCounters{TotalMessages: 42, PeakViewers: 310},
				},
				{
					Handle:    "bob_streams",
					SessionID: uuid.New(),
					RoomID:    "7431886014975fbb42",
					State:     "connecting",
					StartedAt: started,
				},
			},
		}
		h := NewHandler(&mockPinger{}, source, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		h.Status(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		resp := decodeResponse(t, w.Body.Bytes())
		if resp.Status != "success" {
			t.Errorf("Expected status success, got %q", resp.Status)
		}

		raw, err := json.Marshal(resp.Data)
		if err != nil {
			t.Fatalf("Failed to re-marshal data: %v", err)
		}
		var summary StatusSummary
		if err := json.Unmarshal(raw, &summary); err != nil {
			t.Fatalf("Failed to decode summary: %v", err)
		}

		if summary.Version != version {
			t.Errorf("Expected version %q, got %q", version, summary.Version)
		}
		if summary.ActiveSessions != 2 || len(summary.Sessions) != 2 {
			t.Errorf("Expected 2 sessions, got count=%d len=%d", summary.ActiveSessions, len(summary.Sessions))
		}
		if summary.Sessions[0].Handle != "alice_live" {
			t.Errorf("Expected alice_live first, got %q", summary.Sessions[0].Handle)
		}
		if summary.Sessions[0].Counters.TotalMessages != 42 {
			t.Errorf("Expected 42 messages, got %d", summary.Sessions[0].Counters.TotalMessages)
		}
		if summary.WebSocketClients != 0 {
			t.Errorf("Expected 0 websocket clients without a hub, got %d", summary.WebSocketClients)
		}
	})

	t.Run("empty sessions serialize as an array", func(t *testing.T) {
		h := NewHandler(nil, nil, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		h.Status(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"sessions":[]`) {
			t.Errorf("Expected empty sessions array, got %s", w.Body.String())
		}
	})
}

func TestWebSocketWithoutHub(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()

	h.WebSocket(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
	resp := decodeResponse(t, w.Body.Bytes())
	if resp.Error == nil || resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("Expected SERVICE_UNAVAILABLE error, got %+v", resp.Error)
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"empty origin rejected", []string{"*"}, "", false},
		{"wildcard allows any origin", []string{"*"}, "http://example.com", true},
		{"exact match allowed", []string{"http://localhost:8090"}, "http://localhost:8090", true},
		{"mismatch rejected", []string{"http://localhost:8090"}, "http://evil.example", false},
		{"no origins configured rejects all", nil, "http://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(nil, nil, nil, tt.origins)
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			if got := h.checkWebSocketOrigin(req); got != tt.want {
				t.Errorf("Expected %v for origin %q with origins %v", tt.want, tt.origin, tt.origins)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	resp := decodeResponse(t, w.Body.Bytes())
	if resp.Status != "error" {
		t.Errorf("Expected status error, got %q", resp.Status)
	}
	if resp.Error == nil || resp.Error.Code != "BAD_REQUEST" || resp.Error.Message != "malformed request" {
		t.Errorf("Unexpected error payload: %+v", resp.Error)
	}
	if resp.Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}
}
