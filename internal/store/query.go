// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

// query.go - Pure query and projection builders, no I/O.
package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/pkellerio/turbistat/internal/models"
)

// Collection names used by this layer.
const (
	PostsCollection   = "posts"
	UsersCollection   = "users"
	TurbineCollection = "turbine"
)

// ByUserID builds an equality filter on the canonical user identifier
// field of the posts collection.
func ByUserID(userID int) bson.M {
	return bson.M{"userId": userID}
}

// ByTurbineID builds an equality filter on the canonical turbine
// identifier field of the turbine collection.
func ByTurbineID(turbineID string) bson.M {
	return bson.M{"turbine_id": turbineID}
}

// ByTurbineRange combines equality on the turbine identifier with a
// half-open time range over the reading timestamp: start inclusive, end
// exclusive. The asymmetry is deliberate; it lets adjacent range scans
// tile the timeline without double counting at the boundaries, and
// callers must preserve it.
//
// The builder does not enforce start < end; that is a caller obligation.
// An inverted range simply matches nothing. The HTTP layer rejects
// inverted ranges before they reach the store.
func ByTurbineRange(turbineID string, start, end time.Time) bson.M {
	return bson.M{
		"turbine_id": turbineID,
		models.TimestampField: bson.M{
			"$gte": start,
			"$lt":  end,
		},
	}
}

// ExcludeInternalID builds a projection hiding the store-assigned
// internal identifier from results.
func ExcludeInternalID() bson.M {
	return bson.M{"_id": 0}
}
