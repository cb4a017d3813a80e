// Turbistat - Turbine Telemetry and Engagement Analytics
// Copyright 2026 Paul K. (pkellerio)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pkellerio/turbistat

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pkellerio/turbistat/internal/config"
	"github.com/pkellerio/turbistat/internal/logging"
	"github.com/pkellerio/turbistat/internal/metrics"
)

// Connection wraps a single authenticated *mongo.Client. One Connection
// is created per process lifetime segment and must never be shared
// across mismatched credentials; the owning service constructs it at
// startup and closes it at shutdown.
//
// Thread Safety: the underlying client is safe for concurrent use, so
// concurrent read requests may share one Connection. This layer performs
// no client-side locking; the store's own isolation guarantees are
// relied upon, not reimplemented.
type Connection struct {
	client *mongo.Client
	cfg    *config.MongoConfig
}

// Connect establishes an authenticated handle to the document store and
// verifies it with a ping before returning. Failures wrap ErrConnection.
func Connect(ctx context.Context, cfg *config.MongoConfig) (*Connection, error) {
	opts := options.Client().
		ApplyURI(cfg.URI()).
		SetConnectTimeout(cfg.ConnectTimeout)

	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrConnection, cfg.URI(), err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		// Best effort teardown of the half-open client.
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnection, cfg.URI(), err)
	}

	logging.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to document store")

	return &Connection{client: client, cfg: cfg}, nil
}

// Close tears down the client handle. The Connection must not be used
// afterwards.
func (c *Connection) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%w: disconnect: %w", ErrConnection, err)
	}
	return nil
}

// Ping checks whether the store is still reachable.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrConnection, err)
	}
	return nil
}

// Database returns the configured default database name.
func (c *Connection) Database() string {
	return c.cfg.Database
}

// Find executes filter against collection in database, applying
// projection (nil = all fields) and materializing the full cursor into
// a finite slice. Result ordering is store-defined. Failures wrap
// ErrQuery.
func (c *Connection) Find(ctx context.Context, database, collection string, filter bson.M, projection bson.M) ([]bson.M, error) {
	start := time.Now()

	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if projection != nil {
		opts.SetProjection(projection)
	}

	coll := c.client.Database(database).Collection(collection)
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		metrics.RecordStoreError("find", collection, "query")
		return nil, fmt.Errorf("%w: find on %s.%s: %w", ErrQuery, database, collection, err)
	}

	// cursor.All closes the cursor in every path.
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		metrics.RecordStoreError("find", collection, "decode")
		return nil, fmt.Errorf("%w: decode results from %s.%s: %w", ErrQuery, database, collection, err)
	}

	metrics.ObserveStoreOp("find", collection, start)
	logging.Debug().
		Str("database", database).
		Str("collection", collection).
		Int("results", len(docs)).
		Dur("elapsed", time.Since(start)).
		Msg("Find executed")

	return docs, nil
}

// FindAs is a typed variant of Connection.Find that decodes the matching
// documents into a slice of T.
func FindAs[T any](ctx context.Context, c *Connection, database, collection string, filter bson.M, projection bson.M) ([]T, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if projection != nil {
		opts.SetProjection(projection)
	}

	coll := c.client.Database(database).Collection(collection)
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		metrics.RecordStoreError("find", collection, "query")
		return nil, fmt.Errorf("%w: find on %s.%s: %w", ErrQuery, database, collection, err)
	}

	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		metrics.RecordStoreError("find", collection, "decode")
		return nil, fmt.Errorf("%w: decode results from %s.%s: %w", ErrQuery, database, collection, err)
	}

	return docs, nil
}

// InsertMany inserts the batch into the target collection using ordered
// inserts. The batch must be non-empty (ErrValidation otherwise).
// Postcondition: the returned count equals len(docs); any shortfall is
// an ErrIntegrity, fatal for the run, since a silent partial insert
// would corrupt downstream aggregation.
func (c *Connection) InsertMany(ctx context.Context, database, collection string, docs []any) (int, error) {
	if len(docs) == 0 {
		return 0, fmt.Errorf("%w: insert batch for %s.%s is empty", ErrValidation, database, collection)
	}

	start := time.Now()
	logging.Info().
		Int("count", len(docs)).
		Str("database", database).
		Str("collection", collection).
		Msg("Inserting documents")

	coll := c.client.Database(database).Collection(collection)
	res, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		metrics.RecordStoreError("insert_many", collection, "insert")
		// Partial writes can surface as a BulkWriteException with some
		// inserted ids attached; report the shortfall as an integrity
		// fault rather than a plain query error.
		if res != nil && len(res.InsertedIDs) > 0 && len(res.InsertedIDs) < len(docs) {
			return len(res.InsertedIDs), fmt.Errorf("%w: inserted %d of %d documents into %s.%s: %w",
				ErrIntegrity, len(res.InsertedIDs), len(docs), database, collection, err)
		}
		return 0, fmt.Errorf("%w: insertMany into %s.%s: %w", ErrQuery, database, collection, err)
	}

	inserted := len(res.InsertedIDs)
	if inserted != len(docs) {
		metrics.RecordStoreError("insert_many", collection, "integrity")
		return inserted, fmt.Errorf("%w: inserted %d of %d documents into %s.%s",
			ErrIntegrity, inserted, len(docs), database, collection)
	}

	metrics.ObserveStoreOp("insert_many", collection, start)
	logging.Info().
		Int("inserted", inserted).
		Str("database", database).
		Str("collection", collection).
		Dur("elapsed", time.Since(start)).
		Msg("Successfully inserted documents")

	return inserted, nil
}
