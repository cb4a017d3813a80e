// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package main is the Turbistat ingestion command.
//
// It runs one ingestion pass and exits, making it suitable for cron or
// one-shot container jobs:
//
//	turbistat-ingest -mode remote   # posts (with comments) and users
//	turbistat-ingest -mode csv      # turbine telemetry from configured CSV sources
//	turbistat-ingest -mode all      # both, remote first
//
// Configuration follows the same Koanf layering as the query server.
// CSV sources come from TURBINE_CSV_URLS (comma-separated URLs or
// paths, each following the /Turbine{id}.csv naming convention).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkellerio/turbistat/internal/collector"
	"github.com/pkellerio/turbistat/internal/config"
	"github.com/pkellerio/turbistat/internal/csvsource"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/pipeline"
	"github.com/pkellerio/turbistat/internal/store"
)

func main() {
	os.Exit(run())
}

// run holds the real logic so deferred cleanup still fires before the
// process exits with a status code.
func run() int {
	mode := flag.String("mode", "all", "ingestion mode: remote, csv, or all")
	flag.Parse()

	if *mode != "remote" && *mode != "csv" && *mode != "all" {
		logging.Fatal().Str("mode", *mode).Msg("Invalid mode, expected remote, csv, or all")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if *mode != "remote" {
		if err := cfg.ValidateCSVSources(); err != nil {
			logging.Fatal().Err(err).Msg("Invalid CSV source configuration")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := store.Connect(ctx, &cfg.Mongo)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to document store")
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("Error closing document store connection")
		}
	}()

	source := collector.NewCircuitBreakerSource(&cfg.Source, &cfg.Ingest)
	transformer := csvsource.NewTransformer(cfg.Ingest.HTTPTimeout)
	p := pipeline.New(source, transformer, conn, cfg.Mongo.Database)

	exitCode := 0

	if *mode == "remote" || *mode == "all" {
		if _, err := p.RunRemoteIngestion(ctx); err != nil {
			logging.Error().Err(err).Msg("Engagement ingestion failed")
			exitCode = 1
		}
	}

	if *mode == "csv" || *mode == "all" {
		if _, err := p.RunCSVIngestion(ctx, cfg.Source.TurbineCSVURLs); err != nil {
			logging.Error().Err(err).Msg("Turbine ingestion failed")
			exitCode = 1
		}
	}

	return exitCode
}
