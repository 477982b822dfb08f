// Package store wraps the shared coordination store behind a single
// capability set: queue, set, hash, counter, TTL, and key-scan operations.
// All cross-process state in the pipeline lives here.
package store

import (
	"context"
	"time"
)

// Well-known keys in the coordination store.
const (
	KeyQueue              = "warc_queue"
	KeyProcessedURLs      = "processed_urls"
	KeyProducerPosition   = "producer_position"
	KeyProducerLogs       = "producer_logs"
	KeyThroughputHistory  = "throughput_history"
	KeyScalabilityChanges = "scalability_changes"
	KeyLastWorkerCount    = "last_worker_count"
	KeyTotalProcessed     = "total_processed"
	KeyTotalErrors        = "total_errors"
	KeyTotalSkipped       = "total_skipped"
	KeyNewsCounter        = "colcap_news_counter"
	KeyResults            = "resultados_dashboard"
	KeyCorrelations       = "correlaciones_history"
	KeyMetricsHistory     = "metrics_history"
	KeyStartTime          = "processing_start_time"
	KeyLastProcessedTime  = "last_processed_time"

	WorkerStatsPrefix   = "worker_stats:"
	WorkerHistoryPrefix = "worker_history:"
)

// Bounded list lengths.
const (
	MaxProducerLogs  = 200
	MaxThroughput    = 400
	MaxCorrelations  = 1000
	MaxMetricsEvents = 500
)

// Store is the capability set every component receives. It is the only
// shared mutable resource in the system; implementations must make each
// operation atomic.
type Store interface {
	// Queue operations. PushHead/PopHead work on the head of the list, so
	// ordering is LIFO-ish by design; consumers must not rely on FIFO.
	PushHead(ctx context.Context, list, value string) error
	PopHead(ctx context.Context, list string) (string, error)
	PopHeadBlocking(ctx context.Context, list string, timeout time.Duration) (string, error)
	QueueLen(ctx context.Context, list string) (int64, error)

	// TrimmedPush pushes to the head and trims the list to maxLen entries.
	TrimmedPush(ctx context.Context, list, value string, maxLen int64) error
	Range(ctx context.Context, list string, start, stop int64) ([]string, error)

	// Set operations (URL dedup).
	SetAdd(ctx context.Context, set, member string) error
	SetContains(ctx context.Context, set, member string) (bool, error)
	SetSize(ctx context.Context, set string) (int64, error)

	// Hash operations (worker heartbeats).
	HashSet(ctx context.Context, key, field, value string) error
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Counter and plain key operations.
	Incr(ctx context.Context, key string) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
	SetInt(ctx context.Context, key string, value int64) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	// Keys enumerates keys matching a wildcard pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
