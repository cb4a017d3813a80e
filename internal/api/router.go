// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkellerio/turbistat/internal/config"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/metrics"
)

// Router assembles the HTTP surface around a Handler.
type Router struct {
	handler *Handler
	cfg     *config.APIConfig
}

// NewRouter creates a router for the query service.
func NewRouter(handler *Handler, cfg *config.APIConfig) *Router {
	return &Router{
		handler: handler,
		cfg:     cfg,
	}
}

// Setup configures all HTTP routes using Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)    // Extract real IP from X-Forwarded-For
	r.Use(requestLogger)           // Structured access log
	r.Use(chimiddleware.Recoverer) // Recover from panics
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
		MaxAge:         300,
	}))

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting so monitoring can poll frequently.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Query Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(router.cfg.RateLimitReqs, router.cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/users/{userID}/stats", router.handler.UserStats)
		r.Get("/turbines/{turbineID}/series", router.handler.TurbineSeries)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// prometheusMetrics records request counts and latency per route
// pattern, not per raw path, to keep label cardinality bounded.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordAPIRequest(pattern, r.Method, ww.Status(), start)
	})
}

// requestLogger emits one structured log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Info().
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
