// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pkellerio/turbistat/internal/config"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/metrics"
	"github.com/pkellerio/turbistat/internal/models"
)

// CircuitBreakerSource wraps Client with the circuit breaker pattern so
// a down or degraded engagement API fails fast instead of stalling
// ingestion on repeated timeouts.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via
// sony/gobreaker) for its interval and timeout calculations. Tests
// should mock the underlying client, not the breaker.
type CircuitBreakerSource struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerSource creates an engagement API client guarded by a
// circuit breaker.
//
// Circuit breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerSource(src *config.SourceConfig, ing *config.IngestConfig) *CircuitBreakerSource {
	client := NewClient(src, ing)
	cbName := "engagement-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerSource{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps an upstream call with circuit breaker protection.
func (cbs *CircuitBreakerSource) execute(fn func() (any, error)) (any, error) {
	result, err := cbs.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbs.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbs.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbs.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping verifies engagement API connectivity with circuit breaker protection.
func (cbs *CircuitBreakerSource) Ping(ctx context.Context) error {
	_, err := cbs.execute(func() (any, error) {
		return nil, cbs.client.Ping(ctx)
	})
	return err
}

// FetchPosts retrieves posts with embedded comments, with circuit breaker protection.
func (cbs *CircuitBreakerSource) FetchPosts(ctx context.Context) ([]models.Post, error) {
	return castResult[[]models.Post](cbs.execute(func() (any, error) {
		return cbs.client.FetchPosts(ctx)
	}))
}

// FetchUsers retrieves users with circuit breaker protection.
func (cbs *CircuitBreakerSource) FetchUsers(ctx context.Context) ([]models.User, error) {
	return castResult[[]models.User](cbs.execute(func() (any, error) {
		return cbs.client.FetchUsers(ctx)
	}))
}
