// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ops

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/monitor"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

// version is reported by the status endpoint and pinned at release time.
const version = "1.0.0"

// Handler carries the dependencies behind the ops endpoints. Any of them
// may be nil; the affected endpoint then degrades instead of panicking.
type Handler struct {
	db          Pinger
	sessions    SessionSource
	hub         *ws.Hub
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates the ops endpoint handler.
func NewHandler(db Pinger, sessions SessionSource, hub *ws.Hub, corsOrigins []string) *Handler {
	return &Handler{
		db:          db,
		sessions:    sessions,
		hub:         hub,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
}

// apiResponse is the envelope for every JSON endpoint on this surface.
type apiResponse struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Error     *apiError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// apiError carries a machine-readable code and a human-readable message.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, resp *apiResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &apiResponse{
		Status:    "error",
		Error:     &apiError{Code: code, Message: message},
		Timestamp: time.Now(),
	})
}

// Healthz is the liveness probe. It answers 200 whenever the process is
// up, regardless of dependency state.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &apiResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":          true,
			"uptime_seconds": time.Since(h.startTime).Seconds(),
		},
		Timestamp: time.Now(),
	})
}

// Readyz is the readiness probe. Ready means the store answers a ping.
// While the store is down the process keeps running and session writes
// spill to the WAL, but traffic should not be routed here, so the probe
// answers 503.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	statusCode := http.StatusOK
	status := "ready"
	if !dbConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &apiResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"ready":              dbConnected,
			"uptime_seconds":     time.Since(h.startTime).Seconds(),
		},
		Timestamp: time.Now(),
	})
}

// StatusSummary is the payload of the status endpoint.
type StatusSummary struct {
	Version          string               `json:"version"`
	UptimeSeconds    float64              `json:"uptime_seconds"`
	ActiveSessions   int                  `json:"active_sessions"`
	WebSocketClients int                  `json:"websocket_clients"`
	Sessions         []monitor.ActiveInfo `json:"sessions"`
}

// Status reports a read-only process summary: the active sessions from
// the registry, connected dashboard clients, version, and uptime.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	summary := StatusSummary{
		Version:       version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Sessions:      []monitor.ActiveInfo{},
	}

	if h.sessions != nil {
		summary.Sessions = h.sessions.Snapshot()
		summary.ActiveSessions = len(summary.Sessions)
	}
	if h.hub != nil {
		summary.WebSocketClients = h.hub.GetClientCount()
	}

	respondJSON(w, http.StatusOK, &apiResponse{
		Status:    "success",
		Data:      summary,
		Timestamp: time.Now(),
	})
}

// WebSocket upgrades a dashboard connection and hands it to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout as protection against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header against the configured
// CORS origins. Browser WebSockets always send Origin; an empty header is
// rejected because accepting it would bypass the origin check entirely.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
