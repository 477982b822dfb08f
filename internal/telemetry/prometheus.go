package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics exposes worker counters in Prometheus format, for clusters
// that scrape pods directly instead of reading the dashboard.
type PromMetrics struct {
	Processed prometheus.Counter
	Errors    prometheus.Counter
	Skipped   prometheus.Counter
	QueueLen  prometheus.Gauge
	BatchTime prometheus.Histogram
}

// NewPromMetrics registers the worker's metric set on a fresh registry.
func NewPromMetrics(workerID string) (*PromMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"worker_id": workerID}

	return &PromMetrics{
		Processed: factory.NewCounter(prometheus.CounterOpts{
			Name:        "colcap_articles_processed_total",
			Help:        "Articles fully processed by this worker.",
			ConstLabels: labels,
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "colcap_articles_errors_total",
			Help:        "Tasks that failed processing.",
			ConstLabels: labels,
		}),
		Skipped: factory.NewCounter(prometheus.CounterOpts{
			Name:        "colcap_articles_skipped_total",
			Help:        "Tasks skipped (short text, no index value).",
			ConstLabels: labels,
		}),
		QueueLen: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "colcap_task_queue_depth",
			Help:        "Shared task queue depth at last batch.",
			ConstLabels: labels,
		}),
		BatchTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "colcap_batch_duration_seconds",
			Help:        "Wall time per processed batch.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}, reg
}

// ServeProm runs the /metrics endpoint until the context is cancelled.
func ServeProm(ctx context.Context, reg *prometheus.Registry, port int, path string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint up", "addr", srv.Addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics endpoint stopped", "error", err)
	}
}
