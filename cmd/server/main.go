// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package main is the entry point for the Turbistat query server.
//
// Turbistat ingests engagement data (posts, comments, users) and
// turbine telemetry into a document store and serves read-only
// aggregation queries over HTTP.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Logging: Structured zerolog output (json or console)
//  3. Document store: Connect and verify with a ping
//  4. HTTP Server: Chi router with health, stats and series endpoints
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (MONGO_HOST, SERVER_PORT, ...)
//   - Config file (config.yaml, path via CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes the document store connection
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkellerio/turbistat/internal/api"
	"github.com/pkellerio/turbistat/internal/config"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Mongo.Database).
		Msg("Starting Turbistat query server")

	ctx, cancel := context.WithCancel(context.Background())
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

	handler := api.NewHandler(conn, cfg.Mongo.Database)
	router := api.NewRouter(handler, &cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Serve until a shutdown signal arrives.
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}
