// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package config provides centralized configuration for all Turbistat
// components: the document store connection, the upstream data sources,
// ingestion tuning, the HTTP server and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	conn, err := store.Connect(ctx, &cfg.Mongo)
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables and config files.
type Config struct {
	Mongo   MongoConfig   `koanf:"mongo"`
	Source  SourceConfig  `koanf:"source"`
	Ingest  IngestConfig  `koanf:"ingest"`
	Server  ServerConfig  `koanf:"server"`
	API     APIConfig     `koanf:"api"`
	Logging LoggingConfig `koanf:"logging"`
}

// MongoConfig holds document store connection settings.
//
// Environment Variables:
//   - MONGO_HOST: Store host (default: localhost)
//   - MONGO_PORT: Store port (default: 27017)
//   - MONGO_USERNAME / MONGO_INITDB_ROOT_USERNAME: Store user
//   - MONGO_PASSWORD / MONGO_INITDB_ROOT_PASSWORD: Store password
//   - MONGO_DATABASE: Logical database name (default: turbit)
type MongoConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port" validate:"min=1,max=65535"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	Database       string        `koanf:"database"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// URI renders the store connection string. Credentials are passed
// separately via SCRAM options, not embedded in the URI.
func (m *MongoConfig) URI() string {
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

// SourceConfig holds the upstream data source locations.
//
// Environment Variables:
//   - PLACEHOLDER_URL: Base URL of the posts/comments/users API
//     (default: https://jsonplaceholder.typicode.com)
//   - TURBINE_CSV_URLS: Comma-separated turbine CSV locations, each a
//     http(s) URL or filesystem path following the /Turbine{id}.csv
//     naming convention
type SourceConfig struct {
	PlaceholderURL string   `koanf:"placeholder_url"`
	TurbineCSVURLs []string `koanf:"turbine_csv_urls"`
}

// IngestConfig tunes ingestion behavior.
//
// Environment Variables:
//   - INGEST_COMMENT_CONCURRENCY: Parallel comment fetches per run (default: 8)
//   - INGEST_COMMENT_RATE: Max comment requests per second, 0 = unlimited (default: 20)
//   - INGEST_HTTP_TIMEOUT: Upstream HTTP client timeout (default: 30s)
type IngestConfig struct {
	CommentConcurrency int           `koanf:"comment_concurrency" validate:"min=1,max=64"`
	CommentRate        float64       `koanf:"comment_rate"`
	HTTPTimeout        time.Duration `koanf:"http_timeout"`
}

// ServerConfig holds HTTP server settings for the query service.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds request handling limits for the query service.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for structural problems. It is called
// by Load(); fields supplied only at ingestion time (CSV URLs) are checked
// by ValidateCSVSources when an ingestion run actually needs them.
func (c *Config) Validate() error {
	if c.Mongo.Host == "" {
		return fmt.Errorf("mongo.host must not be empty")
	}
	if c.Mongo.Port < 1 || c.Mongo.Port > 65535 {
		return fmt.Errorf("mongo.port %d out of range", c.Mongo.Port)
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Ingest.CommentConcurrency < 1 {
		return fmt.Errorf("ingest.comment_concurrency must be at least 1")
	}
	if c.Source.PlaceholderURL != "" {
		u, err := url.Parse(c.Source.PlaceholderURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("source.placeholder_url %q is not a valid URL", c.Source.PlaceholderURL)
		}
	}
	return nil
}

// ValidateCSVSources checks that every configured CSV source follows the
// /Turbine{id}.csv naming convention the transformer derives ids from.
func (c *Config) ValidateCSVSources() error {
	if len(c.Source.TurbineCSVURLs) == 0 {
		return fmt.Errorf("source.turbine_csv_urls must not be empty for a CSV ingestion run")
	}
	for _, src := range c.Source.TurbineCSVURLs {
		if !strings.Contains(src, "/Turbine") || !strings.HasSuffix(src, ".csv") {
			return fmt.Errorf("csv source %q does not match the /Turbine{id}.csv naming convention", src)
		}
	}
	return nil
}
