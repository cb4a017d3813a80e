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
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkellerio/turbistat/internal/config"
)

// newTestClient builds a client against the given server with fast
// retry timings so rate-limit tests do not sleep for real seconds.
func newTestClient(t *testing.T, serverURL string, concurrency int) *Client {
	t.Helper()
	c := NewClient(
		&config.SourceConfig{PlaceholderURL: serverURL},
		&config.IngestConfig{CommentConcurrency: concurrency, HTTPTimeout: 5 * time.Second},
	)
	c.retryBaseDelay = 5 * time.Millisecond
	return c
}

func TestFetchPosts_EmbedsCommentsInOrder(t *testing.T) {
	const postCount = 25

	var commentCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts":
			fmt.Fprint(w, `[`)
			for i := 1; i <= postCount; i++ {
				if i > 1 {
					fmt.Fprint(w, `,`)
				}
				fmt.Fprintf(w, `{"userId":%d,"id":%d,"title":"post %d","body":"b"}`, (i%10)+1, i, i)
			}
			fmt.Fprint(w, `]`)
		case "/comments":
			commentCalls.Add(1)
			postID, err := strconv.Atoi(r.URL.Query().Get("postId"))
			if err != nil {
				t.Errorf("comments request without numeric postId: %q", r.URL.RawQuery)
				http.Error(w, "bad postId", http.StatusBadRequest)
				return
			}
			// Two comments per post, ids derived from the post id.
			fmt.Fprintf(w, `[{"postId":%d,"id":%d,"name":"n","email":"e@x.io","body":"c"},{"postId":%d,"id":%d,"name":"n","email":"e@x.io","body":"c"}]`,
				postID, postID*10, postID, postID*10+1)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 8)
	posts, err := client.FetchPosts(context.Background())
	if err != nil {
		t.Fatalf("FetchPosts() unexpected error: %v", err)
	}

	if len(posts) != postCount {
		t.Fatalf("FetchPosts() returned %d posts, want %d", len(posts), postCount)
	}
	if got := commentCalls.Load(); got != postCount {
		t.Errorf("comment endpoint hit %d times, want %d", got, postCount)
	}

	for i, p := range posts {
		if p.ID != i+1 {
			t.Fatalf("posts[%d].ID = %d, upstream order not preserved", i, p.ID)
		}
		if len(p.Comments) != 2 {
			t.Fatalf("posts[%d] has %d comments, want 2", i, len(p.Comments))
		}
		for _, c := range p.Comments {
			if c.PostID != p.ID {
				t.Errorf("post %d carries comment for post %d", p.ID, c.PostID)
			}
		}
	}
}

func TestFetchPosts_ConcurrencyBounded(t *testing.T) {
	const limit = 3

	var mu sync.Mutex
	inflight, maxInflight := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts":
			fmt.Fprint(w, `[`)
			for i := 1; i <= 20; i++ {
				if i > 1 {
					fmt.Fprint(w, `,`)
				}
				fmt.Fprintf(w, `{"userId":1,"id":%d,"title":"t","body":"b"}`, i)
			}
			fmt.Fprint(w, `]`)
		case "/comments":
			mu.Lock()
			inflight++
			if inflight > maxInflight {
				maxInflight = inflight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inflight--
			mu.Unlock()
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, limit)
	if _, err := client.FetchPosts(context.Background()); err != nil {
		t.Fatalf("FetchPosts() unexpected error: %v", err)
	}

	if maxInflight > limit {
		t.Errorf("observed %d concurrent comment fetches, limit is %d", maxInflight, limit)
	}
}

func TestFetchPosts_CommentFailureFailsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts":
			fmt.Fprint(w, `[{"userId":1,"id":1,"title":"t","body":"b"},{"userId":1,"id":2,"title":"t","body":"b"}]`)
		case "/comments":
			if r.URL.Query().Get("postId") == "2" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `[]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4)
	posts, err := client.FetchPosts(context.Background())
	if err == nil {
		t.Fatal("FetchPosts() expected error when a comment fetch fails")
	}
	if posts != nil {
		t.Error("FetchPosts() must not return a partial post set")
	}
}

func TestFetchUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[{"id":1,"name":"Leanne Graham","username":"Bret","email":"Sincere@april.biz",
			"address":{"street":"Kulas Light","city":"Gwenborough","zipcode":"92998-3874","geo":{"lat":"-37.3159","lng":"81.1496"}},
			"company":{"name":"Romaguera-Crona"}}]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4)
	users, err := client.FetchUsers(context.Background())
	if err != nil {
		t.Fatalf("FetchUsers() unexpected error: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("FetchUsers() returned %d users, want 1", len(users))
	}
	u := users[0]
	if u.ID != 1 || u.Username != "Bret" {
		t.Errorf("user = id %d username %q, want id 1 username Bret", u.ID, u.Username)
	}
	if u.Address.Geo.Lat != "-37.3159" {
		t.Errorf("nested geo lat = %q, want -37.3159", u.Address.Geo.Lat)
	}
}

func TestDoRequestWithRateLimit_RetriesOn429(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4)
	users, err := client.FetchUsers(context.Background())
	if err != nil {
		t.Fatalf("FetchUsers() unexpected error after 429 retries: %v", err)
	}
	if users == nil {
		t.Fatal("FetchUsers() returned nil users after recovery")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream hit %d times, want 3 (two 429s then success)", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantOK  bool
		wantMin time.Duration
		wantMax time.Duration
	}{
		{name: "delta seconds", value: "7", want: 7 * time.Second, wantOK: true},
		{name: "zero seconds", value: "0", want: 0, wantOK: true},
		{name: "empty", value: "", wantOK: false},
		{name: "garbage", value: "soon", wantOK: false},
		{name: "negative seconds", value: "-3", wantOK: false},
		{
			name:    "http date in the future",
			value:   time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat),
			wantOK:  true,
			wantMin: 25 * time.Second,
			wantMax: 31 * time.Second,
		},
		{
			name:   "http date in the past",
			value:  time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRetryAfter(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("parseRetryAfter(%q) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if tt.wantMax > 0 {
				if got < tt.wantMin || got > tt.wantMax {
					t.Errorf("parseRetryAfter(%q) = %v, want within [%v, %v]", tt.value, got, tt.wantMin, tt.wantMax)
				}
				return
			}
			if got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDoRequestWithRateLimit_HonorsRetryAfterDate(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// The HTTP-date form truncates to seconds, so the margin
			// must exceed one second to stay in the future.
			w.Header().Set("Retry-After", time.Now().Add(1500*time.Millisecond).UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4)
	if _, err := client.FetchUsers(context.Background()); err != nil {
		t.Fatalf("FetchUsers() unexpected error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream hit %d times, want 2 (one 429 then success)", got)
	}
}

func TestDoRequestWithRateLimit_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 4)
	if _, err := client.FetchUsers(context.Background()); err == nil {
		t.Fatal("FetchUsers() expected error when upstream keeps returning 429")
	}
	if got := calls.Load(); got != int64(client.maxRetries)+1 {
		t.Errorf("upstream hit %d times, want %d", got, client.maxRetries+1)
	}
}

func TestPing(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "reachable", status: http.StatusOK},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "not found", status: http.StatusNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, 4)
			err := client.Ping(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Ping() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchPosts_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL, 4)
	if _, err := client.FetchPosts(ctx); err == nil {
		t.Fatal("FetchPosts() expected error with cancelled context")
	}
}
