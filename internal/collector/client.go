// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

/*
client.go - Engagement API Client

This file provides the HTTP client for the upstream engagement API
(posts, comments, users) and the comment fan-out that embeds each
post's comments before storage.

Client Features:
  - HTTP client with configurable timeout
  - Automatic HTTP 429 rate limit handling with exponential backoff
  - Client-side request rate limiting (token bucket)
  - Bounded-concurrency comment fan-out preserving upstream post order
  - JSON response parsing with generic type support
  - Context support for cancellation and timeouts

Resilience Mechanisms:
  - Rate Limiting: Exponential backoff (1s, 2s, 4s, 8s, 16s) on HTTP 429
  - Retries: Max 5 attempts for rate-limited requests
  - Context: All methods accept context for cancellation
*/
package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pkellerio/turbistat/internal/config"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/metrics"
	"github.com/pkellerio/turbistat/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read
// for diagnostics, preventing unbounded allocation on large responses.
const maxErrorBodySize = 64 * 1024 // 64KB

// Source defines the upstream operations the ingestion pipeline needs.
//
// Implemented by Client for production use and by mocks in tests. All
// methods accept a context for cancellation and are safe for concurrent
// use.
type Source interface {
	Ping(ctx context.Context) error
	FetchPosts(ctx context.Context) ([]models.Post, error)
	FetchUsers(ctx context.Context) ([]models.User, error)
}

// Client fetches posts, comments and users from the engagement API.
//
// Features:
//   - Configurable request timeout (default 30s)
//   - Automatic retry on rate limiting (up to 5 retries)
//   - Exponential backoff (1s, 2s, 4s, 8s, 16s delays)
//   - Client-side token bucket so comment fan-out cannot flood upstream
//
// Thread Safety: Safe for concurrent use. Each request creates its own
// HTTP request.
type Client struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	concurrency    int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates an engagement API client from the source and ingest
// configuration sections.
func NewClient(src *config.SourceConfig, ing *config.IngestConfig) *Client {
	limit := rate.Inf
	if ing.CommentRate > 0 {
		limit = rate.Limit(ing.CommentRate)
	}
	return &Client{
		baseURL: src.PlaceholderURL,
		client: &http.Client{
			Timeout: ing.HTTPTimeout,
		},
		limiter:        rate.NewLimiter(limit, ing.CommentConcurrency),
		concurrency:    ing.CommentConcurrency,
		maxRetries:     5,
		retryBaseDelay: 1 * time.Second,
	}
}

// readBodyForError reads up to maxErrorBodySize of a response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// doRequestWithRateLimit performs a GET with automatic HTTP 429
// handling. Backoff doubles each attempt (1s, 2s, 4s, 8s, 16s) unless
// upstream sends a Retry-After header, which takes precedence. The
// context cancels both requests and backoff waits.
func (c *Client) doRequestWithRateLimit(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close() // Explicitly ignore error - will retry anyway

		if attempt == c.maxRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			delay = d
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// parseRetryAfter interprets a Retry-After header value, which is
// either delta-seconds or an HTTP-date (RFC 9110 §10.2.3). A date in
// the past yields no delay and the caller keeps its backoff.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// getJSON fetches baseURL+path and decodes the JSON body into T. The
// token bucket is consulted before every request so aggregate request
// rate stays within the configured ceiling.
func getJSON[T any](ctx context.Context, c *Client, path, resource string) (T, error) {
	var result T

	if err := c.limiter.Wait(ctx); err != nil {
		return result, fmt.Errorf("rate limiter wait for %s: %w", resource, err)
	}

	start := time.Now()
	resp, err := c.doRequestWithRateLimit(ctx, c.baseURL+path)
	if err != nil {
		metrics.CollectorFetchErrors.WithLabelValues(resource).Inc()
		return result, fmt.Errorf("failed to fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.CollectorFetchErrors.WithLabelValues(resource).Inc()
		body := readBodyForError(resp.Body)
		return result, fmt.Errorf("%s request failed with status %d: %s", resource, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.CollectorFetchErrors.WithLabelValues(resource).Inc()
		return result, fmt.Errorf("failed to decode %s response: %w", resource, err)
	}

	metrics.CollectorFetchDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	return result, nil
}

// Ping verifies connectivity to the engagement API.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequestWithRateLimit(ctx, c.baseURL+"/posts/1")
	if err != nil {
		return fmt.Errorf("engagement API unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engagement API ping failed with status %d", resp.StatusCode)
	}
	return nil
}

// FetchPosts retrieves all posts and embeds each post's comments.
//
// Comments are fetched per post with a bounded worker pool; the first
// failure cancels the remaining fetches and fails the whole call, so a
// partial post set is never returned. Upstream post order is preserved
// regardless of comment fetch completion order.
func (c *Client) FetchPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := getJSON[[]models.Post](ctx, c, "/posts", "posts")
	if err != nil {
		return nil, err
	}

	logging.Info().Int("posts", len(posts)).Int("concurrency", c.concurrency).Msg("Fetching comments for posts")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	var done atomic.Int64
	for i := range posts {
		g.Go(func() error {
			comments, err := getJSON[[]models.Comment](gctx, c, fmt.Sprintf("/comments?postId=%d", posts[i].ID), "comments")
			if err != nil {
				return fmt.Errorf("comments for post %d: %w", posts[i].ID, err)
			}
			posts[i].Comments = comments
			if n := done.Add(1); n%10 == 0 {
				logging.Debug().Int64("fetched", n).Int("total", len(posts)).Msg("Comment fan-out progress")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return posts, nil
}

// FetchUsers retrieves all users.
func (c *Client) FetchUsers(ctx context.Context) ([]models.User, error) {
	return getJSON[[]models.User](ctx, c, "/users", "users")
}
