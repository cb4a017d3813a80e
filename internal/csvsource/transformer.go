// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package csvsource parses delimited turbine telemetry exports into
// canonical turbine-reading documents.
//
// Source file schema: a header row, one units/metadata row immediately
// after the header (discarded), then data rows with `;` field separators
// and `,` as the decimal separator. The turbine identifier is not in the
// data; it is derived from the source's /Turbine{id}.csv naming
// convention and injected as the leading field of every reading.
//
// A structural mismatch anywhere (header, row skip, timestamp format)
// fails the whole source with a ParseError; a malformed file is never
// partially ingested.
package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/models"
)

// timestampLayout is the raw Dat/Zeit column format: day.month.year, hour:minute.
const timestampLayout = "02.01.2006, 15:04"

// markerToken and csvSuffix delimit the turbine id inside a source identifier.
const (
	markerToken = "/Turbine"
	csvSuffix   = ".csv"
)

// ParseError describes a structural mismatch in one CSV source. It is
// fatal for that source; no documents are emitted for a file that fails
// to parse.
type ParseError struct {
	Source string
	Line   int
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("parse %s: %s", e.Source, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Transformer parses delimited turbine source files, fetched over HTTP
// or read from the local filesystem.
type Transformer struct {
	client *http.Client
}

// NewTransformer creates a transformer whose HTTP fetches use the given timeout.
func NewTransformer(timeout time.Duration) *Transformer {
	return &Transformer{
		client: &http.Client{Timeout: timeout},
	}
}

// TurbineID derives the entity identifier from a source identifier by
// extracting the substring between the /Turbine marker token and the
// .csv suffix, e.g. ".../exports/TurbineA7.csv" -> "A7".
func TurbineID(source string) (string, error) {
	suffix := strings.Index(source, csvSuffix)
	if suffix < 0 {
		return "", &ParseError{Source: source, Msg: "source does not carry a .csv suffix"}
	}
	prefix := source[:suffix]

	marker := strings.LastIndex(prefix, markerToken)
	if marker < 0 {
		return "", &ParseError{Source: source, Msg: "source does not carry the /Turbine marker token"}
	}

	id := prefix[marker+len(markerToken):]
	if id == "" {
		return "", &ParseError{Source: source, Msg: "derived turbine id is empty"}
	}
	return id, nil
}

// Transform parses one source file into an ordered sequence of canonical
// turbine readings, one per data row.
func (t *Transformer) Transform(ctx context.Context, source string) ([]models.TurbineReading, error) {
	turbineID, err := TurbineID(source)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("source", source).Str("turbine_id", turbineID).Msg("Loading turbine data")

	body, err := t.open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := body.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Str("source", source).Msg("Error closing csv source")
		}
	}()

	readings, err := parse(source, turbineID, body)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("source", source).Int("readings", len(readings)).Msg("Parsed turbine data")
	return readings, nil
}

// open resolves a source identifier into a readable stream. http(s)
// sources are fetched; anything else is treated as a filesystem path.
func (t *Transformer) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("build csv request for %s: %w", source, err)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch csv source %s: %w", source, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch csv source %s: unexpected status %d", source, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open csv source %s: %w", source, err)
	}
	return f, nil
}

// parse reads the header, discards the units row, and converts every
// remaining row into a reading carrying the injected turbine id.
func parse(source, turbineID string, r io.Reader) ([]models.TurbineReading, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'

	header, err := reader.Read()
	if err != nil {
		return nil, &ParseError{Source: source, Line: 1, Msg: "cannot read header row", Err: err}
	}

	columns := make([]string, len(header))
	timestampIdx := -1
	for i, col := range header {
		columns[i] = normalizeColumn(col)
		if columns[i] == models.TimestampField {
			timestampIdx = i
		}
	}
	if timestampIdx < 0 {
		return nil, &ParseError{Source: source, Line: 1, Msg: fmt.Sprintf("header has no %q column", models.TimestampField)}
	}

	// The row immediately after the header carries units, not data.
	if _, err := reader.Read(); err != nil {
		return nil, &ParseError{Source: source, Line: 2, Msg: "cannot read units row", Err: err}
	}

	readings := []models.TurbineReading{}
	line := 2
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ParseError{Source: source, Line: line, Msg: "malformed data row", Err: err}
		}

		ts, err := time.Parse(timestampLayout, strings.TrimSpace(row[timestampIdx]))
		if err != nil {
			return nil, &ParseError{Source: source, Line: line, Msg: fmt.Sprintf("timestamp %q does not match %q", row[timestampIdx], timestampLayout), Err: err}
		}

		values := make(map[string]any, len(row)-1)
		for i, cell := range row {
			if i == timestampIdx {
				continue
			}
			values[columns[i]] = parseCell(cell)
		}

		readings = append(readings, models.TurbineReading{
			TurbineID: turbineID,
			Timestamp: ts,
			Values:    values,
		})
	}

	return readings, nil
}

// normalizeColumn trims whitespace, replaces internal spaces with
// underscores and lowercases: "Wind  " -> "wind", "Rotor RPM" -> "rotor_rpm".
func normalizeColumn(col string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(col), " ", "_"))
}

// parseCell converts a decimal-comma numeric cell to float64; anything
// that does not parse as a number is kept as a trimmed string.
func parseCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
		return f
	}
	return trimmed
}
