package worker

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gustavoa6791/k8s-colcap-news/internal/colcap"
	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func testHistory(t *testing.T) *colcap.History {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Fecha,Ultimo\n")
	for day := 1; day <= 20; day++ {
		fmt.Fprintf(&sb, "2024-12-%02d,%.2f\n", day, 1400.0+float64(day))
	}
	h, err := colcap.ReadHistory(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	return h
}

func articleHTML() string {
	var sb strings.Builder
	sb.WriteString(`<html><head><meta property="og:title" content="El COLCAP registra crecimiento récord"></head><body><article>`)
	for i := 0; i < 5; i++ {
		sb.WriteString("<p>La bolsa de valores de Colombia registró un crecimiento récord impulsado por el optimismo del mercado y el aumento de las acciones del sector financiero.</p>")
	}
	sb.WriteString("</article></body></html>")
	return sb.String()
}

// gzippedSegment builds a gzip-compressed archive segment holding one
// response record.
func gzippedSegment(t *testing.T, html string) []byte {
	t.Helper()
	record := buildWARCRecord("response", "2024-03-15T10:00:00Z", httpPayload(html))
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(record); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, archiveURL string) (*Processor, store.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Worker.ID = "worker-test"
	cfg.Archive.DataBaseURL = archiveURL
	cfg.Archive.PolitenessDelay = 0

	st := store.NewMemory()
	correlator := colcap.NewCorrelator(testHistory(t), st, 8, 100, discardLogger())
	return NewProcessor(cfg, correlator, discardLogger()), st
}

func TestProcessArchiveTask(t *testing.T) {
	segment := gzippedSegment(t, articleHTML())

	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(segment)
	}))
	defer srv.Close()

	p, _ := newTestProcessor(t, srv.URL)
	task := &types.Task{
		Filename:  "crawl/segment-00001.warc.gz",
		Offset:    2048,
		Length:    int64(len(segment)),
		URL:       "https://www.eltiempo.com/economia/colcap-record-123456",
		Timestamp: "20240315100000",
		Domain:    "eltiempo.com",
	}

	result, err := p.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	wantRange := fmt.Sprintf("bytes=%d-%d", task.Offset, task.Offset+task.Length-1)
	if gotRange != wantRange {
		t.Errorf("Range header = %q, want %q", gotRange, wantRange)
	}
	if result.Source != types.SourceCommonCrawl {
		t.Errorf("source = %q, want %q", result.Source, types.SourceCommonCrawl)
	}
	if result.Title != "El COLCAP registra crecimiento récord" {
		t.Errorf("title = %q", result.Title)
	}
	if !strings.HasPrefix(result.Date, "2024-12-") {
		t.Errorf("assigned date = %q, want one inside the historical window", result.Date)
	}
	if result.ColcapValue < 1401 || result.ColcapValue > 1420 {
		t.Errorf("colcap value = %v, outside the synthetic series", result.ColcapValue)
	}
	if result.Sentiment.Classification != "positivo" {
		t.Errorf("sentiment = %q, want positivo for growth copy", result.Sentiment.Classification)
	}
	if result.EconomicAnalysis.TotalKeywords == 0 {
		t.Error("no economic keywords detected in financial copy")
	}
	if result.WorkerID != "worker-test" {
		t.Errorf("worker id = %q", result.WorkerID)
	}
	if len(result.TextExcerpt) > excerptLength {
		t.Errorf("excerpt length = %d, want <= %d", len(result.TextExcerpt), excerptLength)
	}
	if result.TextLength <= excerptLength {
		t.Errorf("text length = %d, want the full extracted length beyond the excerpt", result.TextLength)
	}
	if result.Timings.TotalMS < 0 {
		t.Errorf("total timing = %d, want >= 0", result.Timings.TotalMS)
	}
}

func TestProcessDirectTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			t.Error("direct fetch should negotiate brotli")
		}
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(articleHTML()))
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	p, _ := newTestProcessor(t, srv.URL)
	task := &types.Task{
		URL:       srv.URL + "/economia/nota-55",
		Timestamp: "20240601120000",
		Domain:    "eltiempo.com",
	}

	result, err := p.Process(context.Background(), task)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Source != types.SourceDirectFetch {
		t.Errorf("source = %q, want %q", result.Source, types.SourceDirectFetch)
	}
	if result.TextLength < minTextLength {
		t.Errorf("text length = %d, want >= %d", result.TextLength, minTextLength)
	}
}

func TestProcessSkipsShortArticles(t *testing.T) {
	segment := gzippedSegment(t, "<html><body><article><p>corto</p></article></body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(segment)
	}))
	defer srv.Close()

	p, st := newTestProcessor(t, srv.URL)
	task := &types.Task{
		Filename: "crawl/seg.warc.gz", Offset: 0, Length: int64(len(segment)),
		URL: "https://www.eltiempo.com/economia/corta-1", Timestamp: "20240315100000", Domain: "eltiempo.com",
	}

	_, err := p.Process(context.Background(), task)
	if !isSkip(err) {
		t.Errorf("err = %v, want a skippable condition", err)
	}

	// The capture correlates before extraction, so even a rejected
	// article consumes one counter tick.
	n, _ := st.GetInt(context.Background(), store.KeyNewsCounter)
	if n != 1 {
		t.Errorf("news counter = %d, want 1 (correlation precedes extraction)", n)
	}
}

func TestProcessRetriesServerErrors(t *testing.T) {
	segment := gzippedSegment(t, articleHTML())
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "transient", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(segment)
	}))
	defer srv.Close()

	p, _ := newTestProcessor(t, srv.URL)
	task := &types.Task{
		Filename: "crawl/seg.warc.gz", Offset: 0, Length: int64(len(segment)),
		URL: "https://www.eltiempo.com/economia/retry-9", Timestamp: "20240315100000", Domain: "eltiempo.com",
	}

	if _, err := p.Process(context.Background(), task); err != nil {
		t.Fatalf("Process should survive one 502: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestProcessDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p, _ := newTestProcessor(t, srv.URL)
	task := &types.Task{
		Filename: "crawl/seg.warc.gz", Offset: 0, Length: 100,
		URL: "https://www.eltiempo.com/economia/gone-4", Timestamp: "20240315100000", Domain: "eltiempo.com",
	}

	if _, err := p.Process(context.Background(), task); err == nil {
		t.Fatal("Process should fail on 404")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not retry)", attempts)
	}
}
