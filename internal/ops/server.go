// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/monitor"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

// Pinger reports storage connectivity for the readiness probe.
// Satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionSource provides a point-in-time view of active sessions.
// Satisfied by *monitor.Registry.
type SessionSource interface {
	Snapshot() []monitor.ActiveInfo
}

// Server is the operational HTTP server. It owns the router and the
// underlying http.Server; lifecycle (listen, graceful shutdown) is driven
// by the ops-server supervision wrapper.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	httpSrv *http.Server
}

// NewServer builds the ops server from config. The db and hub may be nil
// in degraded setups; the affected endpoints then answer 503.
func NewServer(cfg config.ServerConfig, db Pinger, sessions SessionSource, hub *ws.Hub) *Server {
	s := &Server{
		cfg:     cfg,
		handler: NewHandler(db, sessions, hub, cfg.CORSOrigins),
	}

	// WriteTimeout does not apply to upgraded websocket connections; the
	// upgrader clears the conn deadlines after hijacking.
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// HTTPServer exposes the underlying http.Server for the supervision
// wrapper, which needs ListenAndServe and Shutdown.
func (s *Server) HTTPServer() *http.Server {
	return s.httpSrv
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}
