// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package pipeline orchestrates ingestion runs: engagement data (posts
// with embedded comments, users) fetched from the remote API, and
// turbine telemetry parsed from delimited source files. Each run gets
// a unique id that tags every log line it emits.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkellerio/turbistat/internal/collector"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/metrics"
	"github.com/pkellerio/turbistat/internal/models"
	"github.com/pkellerio/turbistat/internal/store"
)

// Inserter is the slice of the document store the pipeline writes through.
type Inserter interface {
	InsertMany(ctx context.Context, database, collection string, docs []any) (int, error)
}

// Transformer parses one turbine source into canonical readings.
type Transformer interface {
	Transform(ctx context.Context, source string) ([]models.TurbineReading, error)
}

// Pipeline runs ingestion against a document store.
type Pipeline struct {
	source      collector.Source
	transformer Transformer
	store       Inserter
	database    string
}

// New creates a pipeline writing into the named database.
func New(source collector.Source, transformer Transformer, inserter Inserter, database string) *Pipeline {
	return &Pipeline{
		source:      source,
		transformer: transformer,
		store:       inserter,
		database:    database,
	}
}

// RemoteReport summarizes one engagement ingestion run.
type RemoteReport struct {
	RunID         string
	PostsInserted int
	UsersInserted int
	Duration      time.Duration
}

// CSVReport summarizes one turbine ingestion run.
type CSVReport struct {
	RunID            string
	SourcesParsed    int
	ReadingsInserted int
	Duration         time.Duration
}

// RunRemoteIngestion fetches posts (with embedded comments) and users
// from the engagement API and appends them to their collections.
//
// Both collections are fetched before anything is written, so a fetch
// failure aborts the run with zero inserts. The two inserts themselves
// are independent: a users insert failure after the posts batch
// committed leaves readers observing posts without the matching user
// snapshot until the next successful run.
func (p *Pipeline) RunRemoteIngestion(ctx context.Context) (*RemoteReport, error) {
	runID := uuid.NewString()
	start := time.Now()

	logging.Info().Str("run_id", runID).Msg("Starting engagement ingestion run")

	posts, err := p.source.FetchPosts(ctx)
	if err != nil {
		p.failRun("remote", runID, err)
		return nil, fmt.Errorf("fetch posts: %w", err)
	}

	users, err := p.source.FetchUsers(ctx)
	if err != nil {
		p.failRun("remote", runID, err)
		return nil, fmt.Errorf("fetch users: %w", err)
	}

	postDocs := make([]any, len(posts))
	for i := range posts {
		postDocs[i] = posts[i]
	}
	postsInserted, err := p.store.InsertMany(ctx, p.database, store.PostsCollection, postDocs)
	if err != nil {
		p.failRun("remote", runID, err)
		return nil, fmt.Errorf("insert posts: %w", err)
	}
	metrics.IngestedDocuments.WithLabelValues(store.PostsCollection).Add(float64(postsInserted))

	userDocs := make([]any, len(users))
	for i := range users {
		userDocs[i] = users[i]
	}
	usersInserted, err := p.store.InsertMany(ctx, p.database, store.UsersCollection, userDocs)
	if err != nil {
		p.failRun("remote", runID, err)
		logging.Warn().Str("run_id", runID).Int("posts_inserted", postsInserted).Msg("Posts committed but user insert failed; collections inconsistent until next run")
		return nil, fmt.Errorf("insert users: %w", err)
	}
	metrics.IngestedDocuments.WithLabelValues(store.UsersCollection).Add(float64(usersInserted))

	report := &RemoteReport{
		RunID:         runID,
		PostsInserted: postsInserted,
		UsersInserted: usersInserted,
		Duration:      time.Since(start),
	}

	metrics.IngestionRuns.WithLabelValues("remote", "success").Inc()
	metrics.IngestionDuration.WithLabelValues("remote").Observe(report.Duration.Seconds())
	logging.Info().
		Str("run_id", runID).
		Int("posts", report.PostsInserted).
		Int("users", report.UsersInserted).
		Dur("duration", report.Duration).
		Msg("Engagement ingestion run complete")

	return report, nil
}

// RunCSVIngestion parses every configured turbine source and appends
// all readings to the turbine collection in one batch.
//
// The run is all-or-nothing across sources: every file is parsed
// before anything is written, so a malformed file anywhere aborts the
// run with zero documents inserted.
func (p *Pipeline) RunCSVIngestion(ctx context.Context, sources []string) (*CSVReport, error) {
	runID := uuid.NewString()
	start := time.Now()

	logging.Info().Str("run_id", runID).Int("sources", len(sources)).Msg("Starting turbine ingestion run")

	var docs []any
	for _, source := range sources {
		readings, err := p.transformer.Transform(ctx, source)
		if err != nil {
			p.failRun("csv", runID, err)
			return nil, fmt.Errorf("transform %s: %w", source, err)
		}
		for i := range readings {
			docs = append(docs, readings[i])
		}
	}

	inserted, err := p.store.InsertMany(ctx, p.database, store.TurbineCollection, docs)
	if err != nil {
		p.failRun("csv", runID, err)
		return nil, fmt.Errorf("insert turbine readings: %w", err)
	}
	metrics.IngestedDocuments.WithLabelValues(store.TurbineCollection).Add(float64(inserted))

	report := &CSVReport{
		RunID:            runID,
		SourcesParsed:    len(sources),
		ReadingsInserted: inserted,
		Duration:         time.Since(start),
	}

	metrics.IngestionRuns.WithLabelValues("csv", "success").Inc()
	metrics.IngestionDuration.WithLabelValues("csv").Observe(report.Duration.Seconds())
	logging.Info().
		Str("run_id", runID).
		Int("sources", report.SourcesParsed).
		Int("readings", report.ReadingsInserted).
		Dur("duration", report.Duration).
		Msg("Turbine ingestion run complete")

	return report, nil
}

func (p *Pipeline) failRun(mode, runID string, err error) {
	metrics.IngestionRuns.WithLabelValues(mode, "failure").Inc()
	logging.Error().Str("run_id", runID).Str("mode", mode).Err(err).Msg("Ingestion run failed")
}
