package producer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// cdxRecord is one NDJSON line from a CDX index query.
type cdxRecord struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Offset    string `json:"offset"`
	Length    string `json:"length"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Mime      string `json:"mime"`
}

// ArchiveDiscoverer queries a web archive's CDX API for article URLs on a
// given (crawl index, domain) pair and turns the hits into fetch tasks.
type ArchiveDiscoverer struct {
	indexBaseURL string
	client       *http.Client
	pageLimit    int
	logger       *slog.Logger
}

// NewArchiveDiscoverer creates a CDX-backed discoverer.
func NewArchiveDiscoverer(cfg config.ArchiveConfig, logger *slog.Logger) *ArchiveDiscoverer {
	return &ArchiveDiscoverer{
		indexBaseURL: strings.TrimRight(cfg.IndexBaseURL, "/"),
		client:       &http.Client{Timeout: cfg.CDXTimeout},
		pageLimit:    500,
		logger:       logger.With("component", "archive_discoverer"),
	}
}

// Discover queries one crawl index for one domain and returns the tasks
// that pass the news-URL filter. An empty result with a nil error means
// the index simply has nothing for that domain.
func (d *ArchiveDiscoverer) Discover(ctx context.Context, index ArchiveIndex, domain string) ([]types.Task, error) {
	endpoint := fmt.Sprintf("%s/%s-index", d.indexBaseURL, index.ID)
	if index.CDXAPI != "" {
		endpoint = index.CDXAPI
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("url", domain+"/*")
	q.Set("output", "json")
	q.Set("limit", fmt.Sprintf("%d", d.pageLimit))
	q.Add("filter", "status:200")
	q.Add("filter", "mime:text/html")
	q.Set("collapse", "urlkey")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", "colcap-news-pipeline/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &types.FetchError{URL: req.URL.String(), Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Index exists but has no captures for the domain.
		return nil, nil
	default:
		return nil, &types.FetchError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusServiceUnavailable,
		}
	}

	var tasks []types.Task
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec cdxRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // tolerate malformed lines, the API mixes in messages
		}
		if rec.Filename == "" || rec.Offset == "" || rec.Length == "" {
			continue
		}
		if !IsValidNewsURL(rec.URL, config.ExcludedPatterns, config.NewsSections) {
			continue
		}
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}

		task, err := types.NewArchiveTask(rec.Filename, rec.Offset, rec.Length, rec.URL, rec.Timestamp, domain)
		if err != nil {
			d.logger.Debug("skipping malformed archive record", "url", rec.URL, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return tasks, &types.ParseError{Source: "cdx response", Err: err}
	}

	d.logger.Info("archive query complete",
		"index", index.ID, "domain", domain, "tasks", len(tasks))
	return tasks, nil
}

// politeness pause helper shared by discoverers.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
