// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package store owns the single authenticated handle to the document
// database and exposes the find/insertMany primitives plus the pure
// query builders used by the read endpoints.
//
// errors.go - Sentinel errors for the store error taxonomy.
//
// All store failures wrap one of these sentinels so callers can classify
// them with errors.Is without string matching. No retries happen at this
// layer; every failure propagates to the calling orchestrator.
package store

import "errors"

var (
	// ErrConnection indicates the store is unreachable or authentication
	// failed. Fatal, surfaced to the caller, never retried here.
	ErrConnection = errors.New("store connection failed")

	// ErrQuery indicates a malformed filter or a store-side query failure.
	ErrQuery = errors.New("store query failed")

	// ErrIntegrity indicates an insertMany stored fewer documents than the
	// batch length. A silent partial insert would corrupt downstream
	// aggregation, so this is fatal and must abort the ingestion run.
	ErrIntegrity = errors.New("inserted count does not match batch length")

	// ErrValidation indicates caller-supplied input was malformed, such as
	// an empty insert batch.
	ErrValidation = errors.New("invalid store request")
)
