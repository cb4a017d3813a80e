// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// Package models defines the canonical document types persisted to the
// document store and the response envelope used by the HTTP API.
//
// Documents are typed at the ingestion boundary (collector and CSV
// transformer) rather than passed through as untyped maps, so malformed
// upstream data is rejected before it reaches the store. Once constructed
// a document is never mutated; ownership passes to the store on insert.
package models

import (
	"time"
)

// Comment is a single comment attached to a post, as returned by the
// upstream placeholder API.
type Comment struct {
	PostID int    `bson:"postId" json:"postId"`
	ID     int    `bson:"id" json:"id"`
	Name   string `bson:"name" json:"name"`
	Email  string `bson:"email" json:"email"`
	Body   string `bson:"body" json:"body"`
}

// Post is the canonical post document stored in the "posts" collection.
// Comments are embedded as a nested sequence; the embedding is performed
// by the collector so that one stored document carries the full
// post-plus-comments shape the stats aggregation depends on.
type Post struct {
	UserID   int       `bson:"userId" json:"userId"`
	ID       int       `bson:"id" json:"id"`
	Title    string    `bson:"title" json:"title"`
	Body     string    `bson:"body" json:"body"`
	Comments []Comment `bson:"comments" json:"comments"`
}

// Geo holds the latitude/longitude pair nested inside a user address.
// The upstream API serializes coordinates as strings.
type Geo struct {
	Lat string `bson:"lat" json:"lat"`
	Lng string `bson:"lng" json:"lng"`
}

// Address is the nested address object on a user document.
type Address struct {
	Street  string `bson:"street" json:"street"`
	Suite   string `bson:"suite" json:"suite"`
	City    string `bson:"city" json:"city"`
	Zipcode string `bson:"zipcode" json:"zipcode"`
	Geo     Geo    `bson:"geo" json:"geo"`
}

// Company is the nested company object on a user document.
type Company struct {
	Name        string `bson:"name" json:"name"`
	CatchPhrase string `bson:"catchPhrase" json:"catchPhrase"`
	BS          string `bson:"bs" json:"bs"`
}

// User is the canonical user document stored in the "users" collection.
// Users arrive in canonical shape already; no transformation beyond
// decoding is applied.
type User struct {
	ID       int     `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Username string  `bson:"username" json:"username"`
	Email    string  `bson:"email" json:"email"`
	Address  Address `bson:"address" json:"address"`
	Phone    string  `bson:"phone" json:"phone"`
	Website  string  `bson:"website" json:"website"`
	Company  Company `bson:"company" json:"company"`
}

// TimestampField is the normalized name of the turbine reading timestamp
// column after header normalization ("Dat/Zeit" -> "dat/zeit"). Range
// queries filter on this field.
const TimestampField = "dat/zeit"

// TurbineReading is the canonical time-series document stored in the
// "turbine" collection. TurbineID is derived from the source file name
// and injected as the leading field; Timestamp is the parsed Dat/Zeit
// column. The remaining CSV columns vary per turbine model, so they are
// carried in Values and flattened into the document on insert.
type TurbineReading struct {
	TurbineID string         `bson:"turbine_id" json:"turbine_id"`
	Timestamp time.Time      `bson:"dat/zeit" json:"dat/zeit"`
	Values    map[string]any `bson:",inline" json:"values,omitempty"`
}

// UserStats is the aggregation result served by the user stats endpoint:
// the number of posts a user authored and the total number of comments
// embedded across those posts.
type UserStats struct {
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
}
