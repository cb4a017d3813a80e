// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pkellerio/turbistat/internal/config"
)

func newTestBreakerSource(serverURL string) *CircuitBreakerSource {
	return NewCircuitBreakerSource(
		&config.SourceConfig{PlaceholderURL: serverURL},
		&config.IngestConfig{CommentConcurrency: 4, HTTPTimeout: 5 * time.Second},
	)
}

func TestCircuitBreakerSource_PassesThroughResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts":
			fmt.Fprint(w, `[{"userId":1,"id":1,"title":"t","body":"b"}]`)
		case "/comments":
			fmt.Fprint(w, `[{"postId":1,"id":1,"name":"n","email":"e@x.io","body":"c"}]`)
		case "/users":
			fmt.Fprint(w, `[{"id":1,"name":"Leanne Graham","username":"Bret","email":"Sincere@april.biz"}]`)
		case "/posts/1":
			fmt.Fprint(w, `{"userId":1,"id":1,"title":"t","body":"b"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := newTestBreakerSource(srv.URL)
	ctx := context.Background()

	if err := src.Ping(ctx); err != nil {
		t.Fatalf("Ping() unexpected error: %v", err)
	}

	posts, err := src.FetchPosts(ctx)
	if err != nil {
		t.Fatalf("FetchPosts() unexpected error: %v", err)
	}
	if len(posts) != 1 || len(posts[0].Comments) != 1 {
		t.Errorf("FetchPosts() = %d posts with %d comments, want 1 post with 1 comment", len(posts), len(posts[0].Comments))
	}

	users, err := src.FetchUsers(ctx)
	if err != nil {
		t.Fatalf("FetchUsers() unexpected error: %v", err)
	}
	if len(users) != 1 || users[0].Username != "Bret" {
		t.Errorf("FetchUsers() = %v, want single user Bret", users)
	}
}

func TestCastResult(t *testing.T) {
	got, err := castResult[int](42, nil)
	if err != nil || got != 42 {
		t.Errorf("castResult[int](42) = %d, %v; want 42, nil", got, err)
	}

	if _, err := castResult[string](42, nil); err == nil {
		t.Error("castResult[string](42) expected type mismatch error")
	}

	if _, err := castResult[int](nil, gobreaker.ErrOpenState); err != gobreaker.ErrOpenState {
		t.Errorf("castResult must propagate the original error, got %v", err)
	}
}
