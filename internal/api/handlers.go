// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package api provides the read-only HTTP query surface: per-user
// engagement stats and half-open turbine telemetry ranges, served from
// the document store populated by the ingestion pipeline.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pkellerio/turbistat/internal/models"
	"github.com/pkellerio/turbistat/internal/store"
	"github.com/pkellerio/turbistat/internal/validation"
)

// Finder is the slice of the document store the API reads through.
type Finder interface {
	Find(ctx context.Context, database, collection string, filter, projection bson.M) ([]bson.M, error)
	Ping(ctx context.Context) error
}

// Handler serves the query endpoints against the document store.
type Handler struct {
	store    Finder
	database string
}

// NewHandler creates a handler reading from the named database.
func NewHandler(finder Finder, database string) *Handler {
	return &Handler{
		store:    finder,
		database: database,
	}
}

// statsRequest carries the stats endpoint's path parameter.
type statsRequest struct {
	UserID string `validate:"required,numeric"`
}

// seriesRequest carries the series endpoint's parameters.
type seriesRequest struct {
	TurbineID string `validate:"required"`
	Start     string `validate:"required,isotime"`
	End       string `validate:"required,isotime"`
}

// UserStats handles GET /api/v1/users/{userID}/stats.
//
// It counts the user's posts and the comments embedded in them. A user
// with no posts gets a zero-valued result, not a 404: absence of
// activity is a valid answer.
func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := statsRequest{UserID: chi.URLParam(r, "userID")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	userID, err := strconv.Atoi(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user id must be an integer", nil)
		return
	}

	docs, err := h.store.Find(r.Context(), h.database, store.PostsCollection, store.ByUserID(userID), store.ExcludeInternalID())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to retrieve user statistics", err)
		return
	}

	stats := models.UserStats{Posts: len(docs)}
	for _, doc := range docs {
		stats.Comments += embeddedCommentCount(doc)
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   stats,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// embeddedCommentCount returns the length of a post document's comments
// array. Store cursors decode arrays as primitive.A; mocks may use
// plain slices.
func embeddedCommentCount(doc bson.M) int {
	switch comments := doc["comments"].(type) {
	case primitive.A:
		return len(comments)
	case []interface{}:
		return len(comments)
	case []bson.M:
		return len(comments)
	default:
		return 0
	}
}

// TurbineSeries handles GET /api/v1/turbines/{turbineID}/series.
//
// start and end are seconds-precision ISO timestamps. The window is
// half-open: readings at start are included, readings at end are not.
// An inverted or empty window is rejected with VALIDATION_ERROR before
// the store is queried.
func (h *Handler) TurbineSeries(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()

	req := seriesRequest{
		TurbineID: chi.URLParam(r, "turbineID"),
		Start:     r.URL.Query().Get("start"),
		End:       r.URL.Query().Get("end"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	// Both parse after isotime validation.
	start, _ := time.Parse(validation.ISOTimeLayout, req.Start)
	end, _ := time.Parse(validation.ISOTimeLayout, req.End)

	if !start.Before(end) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "start must be before end", nil)
		return
	}

	docs, err := h.store.Find(r.Context(), h.database, store.TurbineCollection, store.ByTurbineRange(req.TurbineID, start, end), store.ExcludeInternalID())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to retrieve turbine series", err)
		return
	}

	// An unknown turbine or an empty window yields an empty array,
	// never null.
	if docs == nil {
		docs = []bson.M{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   docs,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(startedAt).Milliseconds(),
		},
	})
}

// HealthLive handles GET /api/v1/health/live. It answers as long as the
// process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"state": "alive"},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles GET /api/v1/health/ready. Readiness requires a
// reachable document store.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Document store not available", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"state": "ready"},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
