// Vigil - Live Stream Monitoring and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package ops

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// rateLimitTier bundles a request budget with its window.
type rateLimitTier struct {
	requests int
	window   time.Duration
}

// Endpoint-tier limits. Health probes are polled by load balancers and
// monitoring tools, so they get a permissive limiter independent of the
// configured API limit. The WebSocket tier bounds upgrade attempts only;
// message throughput is governed by the hub.
var (
	rateLimitHealth    = rateLimitTier{requests: 1000, window: time.Minute}
	rateLimitWebSocket = rateLimitTier{requests: 30, window: time.Minute}
)

// routes assembles the chi router for the ops surface.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit(rateLimitHealth))
		r.Get("/healthz", s.handler.Healthz)
		r.Get("/readyz", s.handler.Readyz)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit(rateLimitWebSocket))
		r.Get("/ws", s.handler.WebSocket)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit(rateLimitTier{requests: s.cfg.RateLimitReqs, window: s.cfg.RateLimitWindow}))
		r.Use(promMetrics)
		r.Get("/status", s.handler.Status)
	})

	return r
}

// rateLimit returns an IP-keyed limiter for the tier, or a pass-through
// when rate limiting is disabled in config.
func (s *Server) rateLimit(tier rateLimitTier) func(http.Handler) http.Handler {
	if s.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(tier.requests, tier.window)
}

// requestLogger logs completed requests at debug level with the chi
// request ID. Debug keeps the probe endpoints from flooding production
// logs while still leaving a trace when needed.
//
// chi's WrapResponseWriter preserves http.Hijacker, which the /ws
// upgrade depends on.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("component", "ops").
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("Request completed")
	})
}

// promMetrics records request count, latency, and the in-flight gauge for
// the API group.
func promMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
