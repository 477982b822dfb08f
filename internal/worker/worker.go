// Package worker consumes fetch tasks from the shared queue in small
// batches, processes them through a fixed goroutine pool, and publishes
// results and heartbeats back into the coordination store.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/colcap"
	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/telemetry"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// ResultSink receives finished results for durable storage. Optional;
// the coordination store remains the primary result surface.
type ResultSink interface {
	Save(ctx context.Context, result *types.Result) error
}

// Worker is one batch engine instance. Each Kubernetes pod runs exactly
// one; the pool size bounds in-flight fetches per pod.
type Worker struct {
	cfg       *config.Config
	st        store.Store
	processor *Processor
	metrics   *telemetry.WorkerMetrics
	prom      *telemetry.PromMetrics
	sink      ResultSink
	logger    *slog.Logger

	processed int64
	errs      int64
	started   time.Time
}

// New assembles a worker from its parts. prom and sink may be nil.
func New(cfg *config.Config, st store.Store, correlator *colcap.Correlator, prom *telemetry.PromMetrics, sink ResultSink, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:       cfg,
		st:        st,
		processor: NewProcessor(cfg, correlator, logger),
		metrics: telemetry.NewWorkerMetrics(
			cfg.Worker.ID, st, cfg.Worker.HeartbeatTTL, cfg.Dashboard.MaxResults, logger),
		prom:   prom,
		sink:   sink,
		logger: logger.With("component", "worker", "worker_id", cfg.Worker.ID),
	}
}

// outcome is one pool result: exactly one of result/err is set, or both
// nil for a skip.
type outcome struct {
	result *types.Result
	err    error
	skip   bool
}

// Run executes the batch loop until the context is cancelled. Returns a
// non-nil error only when the coordination store is lost for good.
func (w *Worker) Run(ctx context.Context) error {
	w.started = time.Now()
	w.metrics.InitGlobal(ctx)
	w.logger.Info("worker starting",
		"batch_size", w.cfg.Worker.BatchSize, "pool_size", w.cfg.Worker.PoolSize)
	w.metrics.RecordEvent(ctx, "worker_started", map[string]any{
		"batch_size": w.cfg.Worker.BatchSize,
		"pool_size":  w.cfg.Worker.PoolSize,
	})

	taskCh := make(chan *types.Task)
	outCh := make(chan outcome)
	for i := 0; i < w.cfg.Worker.PoolSize; i++ {
		go w.poolWorker(ctx, taskCh, outCh)
	}
	defer close(taskCh)

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping", "processed", w.processed, "errors", w.errs)
			w.metrics.RecordEvent(context.WithoutCancel(ctx), "worker_stopped", map[string]any{
				"processed": w.processed,
				"errors":    w.errs,
			})
			return nil
		}

		batch, err := w.collectBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if recovered := w.reconnect(ctx); !recovered {
				return err
			}
			continue
		}
		if len(batch) == 0 {
			// Idle pop timed out; keep the heartbeat fresh so the
			// dashboard does not declare us dead between tasks.
			w.heartbeat(ctx)
			continue
		}

		batchStart := time.Now()
		for _, task := range batch {
			taskCh <- task
		}
		for range batch {
			w.handleOutcome(ctx, <-outCh)
			w.heartbeat(ctx)
		}

		w.metrics.RecordEvent(ctx, "batch_completed", map[string]any{
			"size":     len(batch),
			"total_ms": time.Since(batchStart).Milliseconds(),
		})
		if w.prom != nil {
			w.prom.BatchTime.Observe(time.Since(batchStart).Seconds())
			if depth, err := w.st.QueueLen(ctx, store.KeyQueue); err == nil {
				w.prom.QueueLen.Set(float64(depth))
			}
		}
	}
}

// collectBatch drains up to BatchSize tasks without blocking, falling
// back to one blocking pop when the queue is empty.
func (w *Worker) collectBatch(ctx context.Context) ([]*types.Task, error) {
	var batch []*types.Task

	for len(batch) < w.cfg.Worker.BatchSize {
		payload, err := w.st.PopHead(ctx, store.KeyQueue)
		if errors.Is(err, types.ErrQueueEmpty) {
			break
		}
		if err != nil {
			return batch, err
		}
		if task := w.decode(payload); task != nil {
			batch = append(batch, task)
		}
	}
	if len(batch) > 0 {
		return batch, nil
	}

	payload, err := w.st.PopHeadBlocking(ctx, store.KeyQueue, w.cfg.Worker.PopTimeout)
	if errors.Is(err, types.ErrQueueEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if task := w.decode(payload); task != nil {
		batch = append(batch, task)
	}
	return batch, nil
}

func (w *Worker) decode(payload string) *types.Task {
	task, err := types.DecodeTask(payload)
	if err != nil {
		w.logger.Warn("dropping malformed task", "error", err)
		return nil
	}
	return task
}

func (w *Worker) poolWorker(ctx context.Context, in <-chan *types.Task, out chan<- outcome) {
	for task := range in {
		result, err := w.processor.Process(ctx, task)
		switch {
		case err == nil:
			out <- outcome{result: result}
		case isSkip(err):
			w.logger.Debug("task skipped", "url", task.URL, "reason", err)
			out <- outcome{skip: true}
		default:
			w.logger.Warn("task failed", "url", task.URL, "error", err)
			out <- outcome{err: err}
		}
	}
}

// isSkip separates expected no-result conditions from real failures.
func isSkip(err error) bool {
	return errors.Is(err, types.ErrTextTooShort) ||
		errors.Is(err, types.ErrNoIndexValue) ||
		errors.Is(err, types.ErrNoResponseRec)
}

func (w *Worker) handleOutcome(ctx context.Context, o outcome) {
	// Completions count regardless of outcome; skip and error counters
	// come on top.
	w.processed++
	w.metrics.RecordCompletion(ctx)

	switch {
	case o.result != nil:
		w.metrics.RecordResult(ctx, o.result)
		if w.prom != nil {
			w.prom.Processed.Inc()
		}
		if w.sink != nil {
			if err := w.sink.Save(ctx, o.result); err != nil {
				w.logger.Warn("result sink write failed", "url", o.result.URL, "error", err)
			}
		}
	case o.skip:
		w.metrics.RecordSkip(ctx)
		if w.prom != nil {
			w.prom.Skipped.Inc()
		}
	default:
		w.errs++
		w.metrics.RecordError(ctx)
		if w.prom != nil {
			w.prom.Errors.Inc()
		}
	}
}

// heartbeat publishes the worker's rate in articles per minute.
func (w *Worker) heartbeat(ctx context.Context) {
	elapsed := time.Since(w.started).Minutes()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(w.processed) / elapsed
	}
	w.metrics.Heartbeat(ctx, rate, w.processed, w.errs)
}

// reconnect pings the store with the configured retry budget. A worker
// that cannot reach the store is useless; after the budget it exits and
// lets the orchestrator restart the pod.
func (w *Worker) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= w.cfg.Redis.MaxRetries; attempt++ {
		if err := w.st.Ping(ctx); err == nil {
			w.logger.Info("store connection recovered", "attempt", attempt)
			return true
		}
		w.logger.Warn("store unreachable, retrying",
			"attempt", attempt, "max", w.cfg.Redis.MaxRetries)
		t := time.NewTimer(w.cfg.Redis.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
	w.logger.Error("store connection lost, giving up")
	return false
}
