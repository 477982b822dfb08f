package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/telemetry"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func seedStore(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	m := telemetry.NewWorkerMetrics("worker-a", st, time.Minute, 500, discardLogger())
	m.InitGlobal(ctx)
	m.Heartbeat(ctx, 2.5, 40, 1)
	m.RecordCompletion(ctx)
	m.RecordResult(ctx, &types.Result{
		URL:         "https://www.eltiempo.com/economia/nota-1",
		Title:       "El COLCAP al alza",
		Domain:      "eltiempo.com",
		Date:        "2024-12-05",
		ColcapValue: 1405.5,
		Sentiment:   types.Sentiment{Classification: "positivo"},
	})

	_ = st.SetAdd(ctx, store.KeyProcessedURLs, "https://www.eltiempo.com/economia/nota-1")
	entry, _ := json.Marshal(types.NewLogEntry("info", "discovery started"))
	_ = st.TrimmedPush(ctx, store.KeyProducerLogs, string(entry), store.MaxProducerLogs)
}

func newTestServer(st store.Store) *Server {
	return NewServer(config.DefaultConfig(), st, discardLogger())
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/workers", s.handleWorkers)
	mux.HandleFunc("/api/throughput", s.handleThroughput)
	mux.HandleFunc("/api/scalability", s.handleScalability)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.ServeHTTP(rec, req)
	return rec
}

func TestMetricsEndpoint(t *testing.T) {
	st := store.NewMemory()
	seedStore(t, st)
	s := newTestServer(st)

	rec := doRequest(t, s, http.MethodGet, "/api/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats PipelineStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Status != "running" {
		t.Errorf("status = %q, want running", stats.Status)
	}
	if stats.TotalProcessed != 1 {
		t.Errorf("total processed = %d, want 1", stats.TotalProcessed)
	}
	if stats.ActiveWorkers != 1 {
		t.Errorf("active workers = %d, want 1", stats.ActiveWorkers)
	}
	if stats.FleetRate != 2.5 {
		t.Errorf("fleet rate = %v, want 2.5", stats.FleetRate)
	}
	if stats.URLsDiscovered != 1 {
		t.Errorf("urls discovered = %d, want 1", stats.URLsDiscovered)
	}

	// Serving the metrics view samples the fleet.
	points, _ := st.Range(context.Background(), store.KeyThroughputHistory, 0, -1)
	if len(points) != 1 {
		t.Errorf("throughput history = %d entries, want 1", len(points))
	}
}

func TestResultsEndpointHonorsLimit(t *testing.T) {
	st := store.NewMemory()
	s := newTestServer(st)
	m := telemetry.NewWorkerMetrics("worker-a", st, time.Minute, 500, discardLogger())
	for i := 0; i < 8; i++ {
		m.RecordResult(context.Background(), &types.Result{
			URL: "https://x.co/nota-" + strconv.Itoa(i), Date: "2024-12-01", ColcapValue: 1400,
		})
	}

	rec := doRequest(t, s, http.MethodGet, "/api/results?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var results []*types.Result
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}
	// Newest first.
	if results[0].URL != "https://x.co/nota-7" {
		t.Errorf("first result = %q, want the newest", results[0].URL)
	}
}

func TestWorkersEndpoint(t *testing.T) {
	st := store.NewMemory()
	seedStore(t, st)
	s := newTestServer(st)

	rec := doRequest(t, s, http.MethodGet, "/api/workers")
	var workers []telemetry.WorkerSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&workers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(workers) != 1 || workers[0].ID != "worker-a" {
		t.Fatalf("workers = %+v, want the seeded worker", workers)
	}
	if workers[0].Errors != 1 {
		t.Errorf("errors = %d, want 1", workers[0].Errors)
	}
}

func TestLogsEndpoint(t *testing.T) {
	st := store.NewMemory()
	seedStore(t, st)
	s := newTestServer(st)

	rec := doRequest(t, s, http.MethodGet, "/api/logs")
	var logs []types.LogEntry
	if err := json.NewDecoder(rec.Body).Decode(&logs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(logs) != 1 || logs[0].Msg != "discovery started" {
		t.Errorf("logs = %+v, want the seeded entry", logs)
	}
}

func TestIndexServesHTML(t *testing.T) {
	s := newTestServer(store.NewMemory())

	rec := doRequest(t, s, http.MethodGet, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty page body")
	}

	if rec := doRequest(t, s, http.MethodGet, "/no-such-page"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(store.NewMemory())
	if rec := doRequest(t, s, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}
}
