// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package metrics provides Prometheus instrumentation for:
//   - Document store operations (find/insertMany latency, errors)
//   - Upstream HTTP fetches (collector) and their circuit breaker
//   - Ingestion runs (documents ingested per collection)
//   - API endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store Metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of document store operation errors",
		},
		[]string{"operation", "collection", "error_type"},
	)

	// Collector Metrics
	CollectorFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_fetch_duration_seconds",
			Help:    "Duration of upstream HTTP fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	CollectorFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_fetch_errors_total",
			Help: "Total number of upstream fetch errors",
		},
		[]string{"resource"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Ingestion Metrics
	IngestedDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingested_documents_total",
			Help: "Total number of documents ingested per collection",
		},
		[]string{"collection"},
	)

	IngestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_runs_total",
			Help: "Total number of ingestion runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	IngestionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestion_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)

// ObserveStoreOp records the duration of a store operation.
func ObserveStoreOp(operation, collection string, start time.Time) {
	StoreOpDuration.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
}

// RecordStoreError increments the store error counter.
func RecordStoreError(operation, collection, errorType string) {
	StoreOpErrors.WithLabelValues(operation, collection, errorType).Inc()
}

// RecordAPIRequest records an API request with its status code and duration.
func RecordAPIRequest(endpoint, method string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
}
