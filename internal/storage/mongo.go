// Package storage holds the optional durable result archive. The
// coordination store keeps only a bounded window of recent results; when
// a document database is configured, every result also lands there.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// MongoArchive persists results to a MongoDB collection.
type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoArchive connects and pings within a 10s budget. Returns an
// error rather than a half-connected archive; callers treat a failed
// archive as "run without one".
func NewMongoArchive(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*MongoArchive, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("no mongo uri configured")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger = logger.With("component", "mongo_archive")
	logger.Info("result archive connected",
		"database", cfg.MongoDatabase, "collection", cfg.MongoCollection)

	return &MongoArchive{
		client:     client,
		collection: client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection),
		logger:     logger,
	}, nil
}

// Save inserts one result document. Bounded at 30s; the caller logs and
// moves on when this fails.
func (a *MongoArchive) Save(ctx context.Context, result *types.Result) error {
	insertCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := a.collection.InsertOne(insertCtx, result); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Close disconnects from the database.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
