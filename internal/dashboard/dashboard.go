// Package dashboard serves the pipeline's monitoring view: a single
// embedded HTML page plus the JSON API it polls.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/telemetry"
)

// Server is the monitoring HTTP server.
type Server struct {
	cfg       *config.Config
	st        store.Store
	reader    *reader
	collector *telemetry.Collector
	logger    *slog.Logger
}

// NewServer wires the dashboard over the shared store.
func NewServer(cfg *config.Config, st store.Store, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		st:        st,
		reader:    &reader{st: st},
		collector: telemetry.NewCollector(st, logger),
		logger:    logger.With("component", "dashboard"),
	}
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.HandleFunc("/api/throughput", s.handleThroughput)
	mux.HandleFunc("/api/scalability", s.handleScalability)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/healthz", s.handleHealthz)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Dashboard.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard up", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

// handleMetrics is the dashboard's main poll target. Each call also
// samples the fleet, so throughput history advances exactly as fast as
// someone is watching.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.st.Ping(ctx); err != nil {
		s.writeJSON(w, map[string]string{"status": "disconnected"})
		return
	}

	stats := s.reader.stats(ctx)

	point, err := s.collector.RecordSnapshot(ctx)
	if err != nil {
		s.logger.Warn("fleet snapshot failed", "error", err)
	} else {
		stats.ActiveWorkers = point.Workers
		stats.FleetRate = point.Rate
	}

	s.writeJSON(w, stats)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Dashboard.MaxResults)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	results, err := s.reader.results(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, results)
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.collector.Workers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, workers)
}

func (s *Server) handleThroughput(w http.ResponseWriter, r *http.Request) {
	points, err := s.collector.Throughput(r.Context(), store.MaxThroughput)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if raw := r.URL.Query().Get("seconds"); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
			cutoff := time.Now().Unix() - secs
			filtered := points[:0]
			for _, p := range points {
				if p.TS >= cutoff {
					filtered = append(filtered, p)
				}
			}
			points = filtered
		}
	}
	s.writeJSON(w, points)
}

func (s *Server) handleScalability(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.collector.Scalability(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, metrics)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.reader.logs(r.Context(), store.MaxProducerLogs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, logs)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.st.Ping(r.Context()); err != nil {
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Warn("api request failed", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
