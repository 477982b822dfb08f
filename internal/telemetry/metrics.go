// Package telemetry publishes pipeline health into the coordination
// store: worker heartbeats, result streams, throughput snapshots, and
// scalability events. Everything here is best effort; a telemetry write
// must never fail a processing path, so errors are logged and swallowed.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// WorkerMetrics publishes one worker's live state.
type WorkerMetrics struct {
	workerID   string
	st         store.Store
	ttl        time.Duration
	maxResults int64
	logger     *slog.Logger
}

// NewWorkerMetrics creates the publisher for one worker process.
func NewWorkerMetrics(workerID string, st store.Store, ttl time.Duration, maxResults int, logger *slog.Logger) *WorkerMetrics {
	if maxResults <= 0 {
		maxResults = 500
	}
	return &WorkerMetrics{
		workerID:   workerID,
		st:         st,
		ttl:        ttl,
		maxResults: int64(maxResults),
		logger:     logger.With("component", "telemetry"),
	}
}

// InitGlobal stamps the processing start time once per deployment.
func (m *WorkerMetrics) InitGlobal(ctx context.Context) {
	if existing, err := m.st.Get(ctx, store.KeyStartTime); err == nil && existing != "" {
		return
	}
	m.swallow("init start time",
		m.st.Set(ctx, store.KeyStartTime, strconv.FormatInt(time.Now().Unix(), 10)))
}

// Heartbeat refreshes the worker's stats hash. The TTL makes the hash
// self-expiring: a worker that stops heartbeating simply vanishes from
// the dashboard's fleet view.
func (m *WorkerMetrics) Heartbeat(ctx context.Context, rate float64, processed, errors int64) {
	key := store.WorkerStatsPrefix + m.workerID
	fields := map[string]string{
		"rate":        fmt.Sprintf("%.3f", rate),
		"processed":   strconv.FormatInt(processed, 10),
		"errors":      strconv.FormatInt(errors, 10),
		"last_active": strconv.FormatInt(time.Now().Unix(), 10),
	}
	for field, value := range fields {
		m.swallow("heartbeat", m.st.HashSet(ctx, key, field, value))
	}
	m.swallow("heartbeat ttl", m.st.Expire(ctx, key, m.ttl))
}

// RecordCompletion bumps total_processed. Every task the pool finishes
// counts, whether it produced a result, a skip, or an error.
func (m *WorkerMetrics) RecordCompletion(ctx context.Context) {
	if _, err := m.st.Incr(ctx, store.KeyTotalProcessed); err != nil {
		m.swallow("total processed", err)
	}
}

// RecordResult publishes a finished article: the dashboard result list,
// the per-worker counter, and the correlation history.
func (m *WorkerMetrics) RecordResult(ctx context.Context, result *types.Result) {
	payload, err := result.Encode()
	if err != nil {
		m.logger.Warn("result encode failed", "url", result.URL, "error", err)
		return
	}
	m.swallow("result push",
		m.st.TrimmedPush(ctx, store.KeyResults, payload, m.maxResults))

	if _, err := m.st.Incr(ctx, store.WorkerHistoryPrefix+m.workerID); err != nil {
		m.swallow("worker history", err)
	}
	m.swallow("last processed time",
		m.st.Set(ctx, store.KeyLastProcessedTime, strconv.FormatInt(time.Now().Unix(), 10)))

	corr := map[string]any{
		"fecha":        result.Date,
		"colcap_value": result.ColcapValue,
		"url":          result.URL,
		"worker_id":    result.WorkerID,
		"ts":           time.Now().Unix(),
	}
	if b, err := json.Marshal(corr); err == nil {
		m.swallow("correlation push",
			m.st.TrimmedPush(ctx, store.KeyCorrelations, string(b), store.MaxCorrelations))
	}
}

// RecordError bumps the global error counter.
func (m *WorkerMetrics) RecordError(ctx context.Context) {
	if _, err := m.st.Incr(ctx, store.KeyTotalErrors); err != nil {
		m.swallow("total errors", err)
	}
}

// RecordSkip bumps the skipped counter (too-short text, no index value).
func (m *WorkerMetrics) RecordSkip(ctx context.Context) {
	if _, err := m.st.Incr(ctx, store.KeyTotalSkipped); err != nil {
		m.swallow("total skipped", err)
	}
}

// RecordEvent appends a structured event to the bounded metrics stream.
func (m *WorkerMetrics) RecordEvent(ctx context.Context, event string, attrs map[string]any) {
	entry := map[string]any{
		"event":     event,
		"worker_id": m.workerID,
		"ts":        time.Now().Unix(),
	}
	for k, v := range attrs {
		entry[k] = v
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	m.swallow("metrics event",
		m.st.TrimmedPush(ctx, store.KeyMetricsHistory, string(b), store.MaxMetricsEvents))
}

func (m *WorkerMetrics) swallow(op string, err error) {
	if err != nil {
		m.logger.Debug("telemetry write failed", "op", op, "error", err)
	}
}
