// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkellerio/turbistat/internal/models"
	"github.com/pkellerio/turbistat/internal/store"
)

type mockSource struct {
	posts    []models.Post
	users    []models.User
	postsErr error
	usersErr error
}

func (m *mockSource) Ping(ctx context.Context) error { return nil }

func (m *mockSource) FetchPosts(ctx context.Context) ([]models.Post, error) {
	return m.posts, m.postsErr
}

func (m *mockSource) FetchUsers(ctx context.Context) ([]models.User, error) {
	return m.users, m.usersErr
}

type mockTransformer struct {
	readings map[string][]models.TurbineReading
	errOn    string
}

func (m *mockTransformer) Transform(ctx context.Context, source string) ([]models.TurbineReading, error) {
	if source == m.errOn {
		return nil, errors.New("malformed source")
	}
	return m.readings[source], nil
}

type insertCall struct {
	collection string
	count      int
}

type mockInserter struct {
	calls   []insertCall
	failOn  string
	failErr error
}

func (m *mockInserter) InsertMany(ctx context.Context, database, collection string, docs []any) (int, error) {
	if collection == m.failOn {
		return 0, m.failErr
	}
	m.calls = append(m.calls, insertCall{collection: collection, count: len(docs)})
	return len(docs), nil
}

func samplePosts() []models.Post {
	return []models.Post{
		{UserID: 1, ID: 1, Title: "first", Comments: []models.Comment{{PostID: 1, ID: 1}}},
		{UserID: 2, ID: 2, Title: "second"},
	}
}

func sampleUsers() []models.User {
	return []models.User{{ID: 1, Username: "Bret"}, {ID: 2, Username: "Antonette"}}
}

func TestRunRemoteIngestion(t *testing.T) {
	src := &mockSource{posts: samplePosts(), users: sampleUsers()}
	ins := &mockInserter{}
	p := New(src, nil, ins, "turbit")

	report, err := p.RunRemoteIngestion(context.Background())
	if err != nil {
		t.Fatalf("RunRemoteIngestion() unexpected error: %v", err)
	}

	if report.PostsInserted != 2 || report.UsersInserted != 2 {
		t.Errorf("report = %d posts / %d users, want 2 / 2", report.PostsInserted, report.UsersInserted)
	}
	if report.RunID == "" {
		t.Error("report carries no run id")
	}

	if len(ins.calls) != 2 {
		t.Fatalf("store received %d inserts, want 2", len(ins.calls))
	}
	if ins.calls[0].collection != store.PostsCollection {
		t.Errorf("first insert went to %q, want %q", ins.calls[0].collection, store.PostsCollection)
	}
	if ins.calls[1].collection != store.UsersCollection {
		t.Errorf("second insert went to %q, want %q", ins.calls[1].collection, store.UsersCollection)
	}
}

func TestRunRemoteIngestion_PostsFetchFailure(t *testing.T) {
	src := &mockSource{postsErr: errors.New("upstream down")}
	ins := &mockInserter{}
	p := New(src, nil, ins, "turbit")

	if _, err := p.RunRemoteIngestion(context.Background()); err == nil {
		t.Fatal("RunRemoteIngestion() expected error when post fetch fails")
	}
	if len(ins.calls) != 0 {
		t.Errorf("store received %d inserts, want 0 when fetch fails", len(ins.calls))
	}
}

func TestRunRemoteIngestion_UsersFetchFailureWritesNothing(t *testing.T) {
	src := &mockSource{posts: samplePosts(), usersErr: errors.New("upstream down")}
	ins := &mockInserter{}
	p := New(src, nil, ins, "turbit")

	if _, err := p.RunRemoteIngestion(context.Background()); err == nil {
		t.Fatal("RunRemoteIngestion() expected error when user fetch fails")
	}

	// Both collections are fetched before the first write, so a fetch
	// failure leaves the store untouched.
	if len(ins.calls) != 0 {
		t.Errorf("store calls = %+v, want none when a fetch fails", ins.calls)
	}
}

func TestRunRemoteIngestion_UserInsertFailureKeepsPosts(t *testing.T) {
	src := &mockSource{posts: samplePosts(), users: sampleUsers()}
	ins := &mockInserter{failOn: store.UsersCollection, failErr: store.ErrConnection}
	p := New(src, nil, ins, "turbit")

	_, err := p.RunRemoteIngestion(context.Background())
	if !errors.Is(err, store.ErrConnection) {
		t.Fatalf("RunRemoteIngestion() error = %v, want wrapped ErrConnection", err)
	}

	// The posts batch stays committed; the two collections are
	// inconsistent until the next run.
	if len(ins.calls) != 1 || ins.calls[0].collection != store.PostsCollection {
		t.Errorf("store calls = %+v, want exactly the posts insert", ins.calls)
	}
}

func TestRunCSVIngestion(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tr := &mockTransformer{readings: map[string][]models.TurbineReading{
		"/data/TurbineA7.csv": {
			{TurbineID: "A7", Timestamp: ts},
			{TurbineID: "A7", Timestamp: ts.Add(10 * time.Minute)},
		},
		"/data/Turbine9.csv": {
			{TurbineID: "9", Timestamp: ts},
		},
	}}
	ins := &mockInserter{}
	p := New(nil, tr, ins, "turbit")

	report, err := p.RunCSVIngestion(context.Background(), []string{"/data/TurbineA7.csv", "/data/Turbine9.csv"})
	if err != nil {
		t.Fatalf("RunCSVIngestion() unexpected error: %v", err)
	}

	if report.SourcesParsed != 2 || report.ReadingsInserted != 3 {
		t.Errorf("report = %d sources / %d readings, want 2 / 3", report.SourcesParsed, report.ReadingsInserted)
	}

	// All sources land in one batch against the turbine collection.
	if len(ins.calls) != 1 {
		t.Fatalf("store received %d inserts, want 1", len(ins.calls))
	}
	if ins.calls[0].collection != store.TurbineCollection || ins.calls[0].count != 3 {
		t.Errorf("insert = %+v, want 3 docs into %q", ins.calls[0], store.TurbineCollection)
	}
}

func TestRunCSVIngestion_MalformedSourceAbortsRun(t *testing.T) {
	tr := &mockTransformer{
		readings: map[string][]models.TurbineReading{
			"/data/Turbine1.csv": {{TurbineID: "1"}},
		},
		errOn: "/data/Turbine2.csv",
	}
	ins := &mockInserter{}
	p := New(nil, tr, ins, "turbit")

	_, err := p.RunCSVIngestion(context.Background(), []string{"/data/Turbine1.csv", "/data/Turbine2.csv"})
	if err == nil {
		t.Fatal("RunCSVIngestion() expected error for malformed source")
	}

	// All-or-nothing: nothing is written when any source fails to parse.
	if len(ins.calls) != 0 {
		t.Errorf("store received %d inserts, want 0 when a source is malformed", len(ins.calls))
	}
}

func TestRunCSVIngestion_InsertFailure(t *testing.T) {
	tr := &mockTransformer{readings: map[string][]models.TurbineReading{
		"/data/Turbine1.csv": {{TurbineID: "1"}},
	}}
	ins := &mockInserter{failOn: store.TurbineCollection, failErr: store.ErrConnection}
	p := New(nil, tr, ins, "turbit")

	_, err := p.RunCSVIngestion(context.Background(), []string{"/data/Turbine1.csv"})
	if !errors.Is(err, store.ErrConnection) {
		t.Fatalf("RunCSVIngestion() error = %v, want wrapped ErrConnection", err)
	}
}
