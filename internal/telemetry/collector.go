package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
)

// WorkerSnapshot is one live worker's published state.
type WorkerSnapshot struct {
	ID         string  `json:"id"`
	Rate       float64 `json:"rate"`
	Processed  int64   `json:"processed"`
	Errors     int64   `json:"errors"`
	LastActive int64   `json:"last_active"`
}

// ThroughputPoint is one aggregate sample of fleet throughput.
type ThroughputPoint struct {
	TS        int64   `json:"ts"`
	Rate      float64 `json:"rate"`
	Workers   int     `json:"workers"`
	Processed int64   `json:"processed"`
}

// ScalabilityChange records the fleet's throughput at a worker count the
// deployment had not reached before.
type ScalabilityChange struct {
	TS      int64   `json:"ts"`
	Workers int     `json:"workers"`
	Rate    float64 `json:"rate"`
}

// ScalabilityMetrics derives speedup and efficiency per observed worker
// count. Baseline is the per-worker rate of the smallest fleet on
// record; efficiency is a percentage of the ideal linear scale-up.
type ScalabilityMetrics struct {
	Workers    int     `json:"workers"`
	Rate       float64 `json:"rate"`
	Speedup    float64 `json:"speedup"`
	Efficiency float64 `json:"efficiency"`
}

// Collector aggregates per-worker heartbeats into fleet-level series. It
// runs inside the dashboard process, sampled on each refresh.
type Collector struct {
	st     store.Store
	logger *slog.Logger
}

// NewCollector creates a fleet aggregator over the shared store.
func NewCollector(st store.Store, logger *slog.Logger) *Collector {
	return &Collector{st: st, logger: logger.With("component", "collector")}
}

// Workers lists the live workers, sorted by id. Heartbeats expire on
// their own, so presence in the scan means liveness.
func (c *Collector) Workers(ctx context.Context) ([]WorkerSnapshot, error) {
	keys, err := c.st.Keys(ctx, store.WorkerStatsPrefix+"*")
	if err != nil {
		return nil, err
	}

	snapshots := make([]WorkerSnapshot, 0, len(keys))
	for _, key := range keys {
		fields, err := c.st.HashGetAll(ctx, key)
		if err != nil || len(fields) == 0 {
			continue
		}
		snap := WorkerSnapshot{ID: strings.TrimPrefix(key, store.WorkerStatsPrefix)}
		snap.Rate, _ = strconv.ParseFloat(fields["rate"], 64)
		snap.Processed, _ = strconv.ParseInt(fields["processed"], 10, 64)
		snap.Errors, _ = strconv.ParseInt(fields["errors"], 10, 64)
		snap.LastActive, _ = strconv.ParseInt(fields["last_active"], 10, 64)
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })
	return snapshots, nil
}

// RecordSnapshot samples the fleet once: appends a throughput point and,
// when the fleet reaches a worker count not seen before, a scalability
// change. Even counts only; Kubernetes scales this deployment in pairs.
func (c *Collector) RecordSnapshot(ctx context.Context) (*ThroughputPoint, error) {
	workers, err := c.Workers(ctx)
	if err != nil {
		return nil, err
	}

	point := ThroughputPoint{TS: time.Now().Unix(), Workers: len(workers)}
	for _, w := range workers {
		point.Rate += w.Rate
		point.Processed += w.Processed
	}

	if b, err := json.Marshal(point); err == nil {
		if err := c.st.TrimmedPush(ctx, store.KeyThroughputHistory, string(b), store.MaxThroughput); err != nil {
			c.logger.Debug("throughput push failed", "error", err)
		}
	}

	c.maybeRecordScalability(ctx, &point)
	return &point, nil
}

func (c *Collector) maybeRecordScalability(ctx context.Context, point *ThroughputPoint) {
	if point.Workers == 0 || point.Workers%2 != 0 {
		return
	}

	last, err := c.st.GetInt(ctx, store.KeyLastWorkerCount)
	if err == nil && int(last) == point.Workers {
		return
	}

	rate := point.Rate
	if rate == 0 {
		// A fresh scale-up reports before workers produce; fall back to
		// the most recent non-zero sample.
		if pts, err := c.Throughput(ctx, 10); err == nil {
			for _, p := range pts {
				if p.Rate > 0 {
					rate = p.Rate
					break
				}
			}
		}
	}

	change := ScalabilityChange{TS: point.TS, Workers: point.Workers, Rate: rate}
	if b, err := json.Marshal(change); err == nil {
		if err := c.st.TrimmedPush(ctx, store.KeyScalabilityChanges, string(b), store.MaxThroughput); err != nil {
			c.logger.Debug("scalability push failed", "error", err)
			return
		}
	}
	if err := c.st.SetInt(ctx, store.KeyLastWorkerCount, int64(point.Workers)); err != nil {
		c.logger.Debug("worker count update failed", "error", err)
	}
	c.logger.Info("fleet size changed", "workers", point.Workers, "rate", rate)
}

// Throughput returns the most recent n throughput points, newest first.
func (c *Collector) Throughput(ctx context.Context, n int64) ([]ThroughputPoint, error) {
	if n <= 0 {
		n = store.MaxThroughput
	}
	raw, err := c.st.Range(ctx, store.KeyThroughputHistory, 0, n-1)
	if err != nil {
		return nil, err
	}
	points := make([]ThroughputPoint, 0, len(raw))
	for _, item := range raw {
		var p ThroughputPoint
		if err := json.Unmarshal([]byte(item), &p); err == nil {
			points = append(points, p)
		}
	}
	return points, nil
}

// Scalability derives per-fleet-size speedup and efficiency from the
// change log. Baseline is the per-worker rate at the smallest fleet
// size on record.
func (c *Collector) Scalability(ctx context.Context) ([]ScalabilityMetrics, error) {
	raw, err := c.st.Range(ctx, store.KeyScalabilityChanges, 0, store.MaxThroughput-1)
	if err != nil {
		return nil, err
	}

	// Latest rate per worker count. Range returns newest first, so the
	// first occurrence wins.
	byCount := make(map[int]float64)
	for _, item := range raw {
		var ch ScalabilityChange
		if err := json.Unmarshal([]byte(item), &ch); err != nil || ch.Workers == 0 {
			continue
		}
		if _, seen := byCount[ch.Workers]; !seen {
			byCount[ch.Workers] = ch.Rate
		}
	}
	if len(byCount) == 0 {
		return nil, nil
	}

	counts := make([]int, 0, len(byCount))
	for n := range byCount {
		counts = append(counts, n)
	}
	sort.Ints(counts)

	baseWorkers := counts[0]
	basePerWorker := byCount[baseWorkers] / float64(baseWorkers)

	out := make([]ScalabilityMetrics, 0, len(counts))
	for _, n := range counts {
		m := ScalabilityMetrics{Workers: n, Rate: byCount[n]}
		if basePerWorker > 0 {
			m.Speedup = round2(byCount[n] / basePerWorker)
			m.Efficiency = round2(byCount[n] / basePerWorker / float64(n) * 100)
		}
		out = append(out, m)
	}
	return out, nil
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
