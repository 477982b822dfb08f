package dashboard

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// PipelineStats is the aggregate state shown in the dashboard header.
type PipelineStats struct {
	Status         string  `json:"status"`
	QueueDepth     int64   `json:"queue_depth"`
	TotalProcessed int64   `json:"total_processed"`
	TotalErrors    int64   `json:"total_errors"`
	TotalSkipped   int64   `json:"total_skipped"`
	URLsDiscovered int64   `json:"urls_discovered"`
	ActiveWorkers  int     `json:"active_workers"`
	FleetRate      float64 `json:"fleet_rate"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
	LastProcessed  int64   `json:"last_processed"`
}

// reader pulls dashboard views out of the coordination store. Read-only;
// the dashboard never mutates pipeline state except through the
// collector's sampling.
type reader struct {
	st store.Store
}

// results returns up to limit recent results, newest first.
func (r *reader) results(ctx context.Context, limit int64) ([]*types.Result, error) {
	raw, err := r.st.Range(ctx, store.KeyResults, 0, limit-1)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Result, 0, len(raw))
	for _, item := range raw {
		if res, err := types.DecodeResult(item); err == nil {
			out = append(out, res)
		}
	}
	return out, nil
}

// logs returns the producer's recent operational log entries.
func (r *reader) logs(ctx context.Context, limit int64) ([]types.LogEntry, error) {
	raw, err := r.st.Range(ctx, store.KeyProducerLogs, 0, limit-1)
	if err != nil {
		return nil, err
	}
	out := make([]types.LogEntry, 0, len(raw))
	for _, item := range raw {
		var e types.LogEntry
		if err := json.Unmarshal([]byte(item), &e); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// stats assembles the header numbers. Individual read failures zero the
// field rather than failing the whole view.
func (r *reader) stats(ctx context.Context) *PipelineStats {
	s := &PipelineStats{Status: "running"}

	s.QueueDepth, _ = r.st.QueueLen(ctx, store.KeyQueue)
	s.TotalProcessed, _ = r.st.GetInt(ctx, store.KeyTotalProcessed)
	s.TotalErrors, _ = r.st.GetInt(ctx, store.KeyTotalErrors)
	s.TotalSkipped, _ = r.st.GetInt(ctx, store.KeyTotalSkipped)
	s.URLsDiscovered, _ = r.st.SetSize(ctx, store.KeyProcessedURLs)
	s.LastProcessed, _ = r.st.GetInt(ctx, store.KeyLastProcessedTime)

	if raw, err := r.st.Get(ctx, store.KeyStartTime); err == nil {
		if start, err := strconv.ParseInt(raw, 10, 64); err == nil && start > 0 {
			s.UptimeSeconds = time.Now().Unix() - start
		}
	}
	return s
}
