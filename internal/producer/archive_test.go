package producer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestArchiveDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("output"); got != "json" {
			t.Errorf("output param = %q, want json", got)
		}
		lines := []string{
			`{"url":"https://www.eltiempo.com/economia/dolar-sube-123456","filename":"crawl/seg1.warc.gz","offset":"1024","length":"2048","timestamp":"20240115120000","status":"200","mime":"text/html"}`,
			`{"url":"https://www.eltiempo.com/economia/dolar-sube-123456","filename":"crawl/seg1.warc.gz","offset":"1024","length":"2048","timestamp":"20240115120000"}`, // duplicate
			`{"url":"https://www.eltiempo.com/tag/dolar","filename":"crawl/seg2.warc.gz","offset":"10","length":"20","timestamp":"20240115120000"}`,                      // excluded pattern
			`{"url":"https://www.eltiempo.com/economia/pib-crece-99","filename":"","offset":"10","length":"20","timestamp":"20240115120000"}`,                            // missing filename
			`not json at all`,
			`{"url":"https://www.eltiempo.com/finanzas/tasa-banrep-777","filename":"crawl/seg3.warc.gz","offset":"55","length":"300","timestamp":"20240116080000"}`,
		}
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Archive
	cfg.IndexBaseURL = srv.URL
	cfg.CDXTimeout = 5 * time.Second

	d := NewArchiveDiscoverer(cfg, discardLogger())
	tasks, err := d.Discover(context.Background(), ArchiveIndex{ID: "CC-MAIN-2024-10"}, "eltiempo.com")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2: %+v", len(tasks), tasks)
	}
	first := tasks[0]
	if first.URL != "https://www.eltiempo.com/economia/dolar-sube-123456" {
		t.Errorf("first task url = %q", first.URL)
	}
	if first.Offset != 1024 || first.Length != 2048 {
		t.Errorf("first task range = (%d,%d), want (1024,2048)", first.Offset, first.Length)
	}
	if !first.FromArchive() {
		t.Error("archive task should report FromArchive")
	}
	if first.Domain != "eltiempo.com" {
		t.Errorf("domain = %q", first.Domain)
	}
}

func TestArchiveDiscoverNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Archive
	cfg.IndexBaseURL = srv.URL

	d := NewArchiveDiscoverer(cfg, discardLogger())
	tasks, err := d.Discover(context.Background(), ArchiveIndex{ID: "CC-MAIN-2023-06"}, "portafolio.co")
	if err != nil {
		t.Fatalf("Discover on 404 should yield empty, got error %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("got %d tasks, want 0", len(tasks))
	}
}

func TestArchiveDiscoverServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Archive
	cfg.IndexBaseURL = srv.URL

	d := NewArchiveDiscoverer(cfg, discardLogger())
	if _, err := d.Discover(context.Background(), ArchiveIndex{ID: "CC-MAIN-2023-06"}, "portafolio.co"); err == nil {
		t.Fatal("Discover on 503 should fail")
	}
}
