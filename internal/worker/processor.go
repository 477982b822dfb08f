package worker

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/gustavoa6791/k8s-colcap-news/internal/colcap"
	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/nlp"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

const (
	fetchRetries   = 2
	fetchBackoff   = 500 * time.Millisecond
	maxFetchedBody = 10 << 20 // 10 MiB cap on any response we buffer
	excerptLength  = 500      // published excerpt; text_length keeps the full size
)

// Processor turns one task into one result: fetch, decompress, extract,
// correlate, analyze.
type Processor struct {
	cfg        *config.Config
	client     *http.Client
	correlator *colcap.Correlator
	analyzer   *nlp.Analyzer
	workerID   string
	logger     *slog.Logger

	// politeness gate: at most one upstream fetch per delay window.
	mu        sync.Mutex
	lastFetch time.Time
}

// NewProcessor wires a processor for one worker process.
func NewProcessor(cfg *config.Config, correlator *colcap.Correlator, logger *slog.Logger) *Processor {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // we negotiate and decode encodings ourselves
	}
	return &Processor{
		cfg:        cfg,
		client:     &http.Client{Transport: transport, Timeout: cfg.Archive.FetchTimeout},
		correlator: correlator,
		analyzer:   nlp.NewAnalyzer(config.EconomicKeywords),
		workerID:   cfg.Worker.ID,
		logger:     logger.With("component", "processor"),
	}
}

// Process executes the full pipeline for one task.
func (p *Processor) Process(ctx context.Context, task *types.Task) (*types.Result, error) {
	start := time.Now()

	html, captureDate, downloadMS, err := p.download(ctx, task)
	if err != nil {
		return nil, err
	}

	// Correlation comes before extraction: every downloaded capture
	// consumes a counter tick, and a date with no index value skips the
	// task without parsing it.
	if captureDate == "" {
		captureDate = task.Timestamp
	}
	corr, err := p.correlator.Correlate(ctx, captureDate)
	if err != nil {
		return nil, err
	}

	extractStart := time.Now()
	article, err := ExtractArticle(html)
	if err != nil {
		return nil, err
	}
	extractionMS := time.Since(extractStart).Milliseconds()

	nlpStart := time.Now()
	sentiment := p.analyzer.Analyze(article.Text)
	keywords := p.analyzer.DetectEconomicKeywords(article.Text)
	nlpMS := time.Since(nlpStart).Milliseconds()

	source := types.SourceCommonCrawl
	if !task.FromArchive() {
		source = types.SourceDirectFetch
	}

	return &types.Result{
		URL:              task.URL,
		Title:            article.Title,
		Domain:           task.Domain,
		Date:             corr.Date,
		ColcapValue:      corr.Value,
		Sentiment:        sentiment,
		EconomicAnalysis: keywords,
		TextExcerpt:      truncateUTF8(article.Text, excerptLength),
		TextLength:       len(article.Text),
		Source:           source,
		Timings: types.Timings{
			DownloadMS:   downloadMS,
			ExtractionMS: extractionMS,
			NLPMS:        nlpMS,
			TotalMS:      time.Since(start).Milliseconds(),
		},
		WorkerID:    p.workerID,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// download dispatches on the task shape and returns the page HTML, the
// capture date when known, and the download duration.
func (p *Processor) download(ctx context.Context, task *types.Task) (html []byte, captureDate string, ms int64, err error) {
	if err := p.politeWait(ctx); err != nil {
		return nil, "", 0, err
	}

	start := time.Now()
	if task.FromArchive() {
		html, captureDate, err = p.fetchArchiveSegment(ctx, task)
	} else {
		html, err = p.fetchDirect(ctx, task.URL)
	}
	return html, captureDate, time.Since(start).Milliseconds(), err
}

// politeWait enforces the delay between upstream fetches across all pool
// goroutines of this process.
func (p *Processor) politeWait(ctx context.Context) error {
	p.mu.Lock()
	wait := p.cfg.Archive.PolitenessDelay - time.Since(p.lastFetch)
	if wait < 0 {
		wait = 0
	}
	p.lastFetch = time.Now().Add(wait)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetchArchiveSegment pulls the task's byte range out of the archive,
// gunzips it, and extracts the first response record.
func (p *Processor) fetchArchiveSegment(ctx context.Context, task *types.Task) ([]byte, string, error) {
	segURL := strings.TrimRight(p.cfg.Archive.DataBaseURL, "/") + "/" + task.Filename
	rangeHeader := fmt.Sprintf("bytes=%d-%d", task.Offset, task.Offset+task.Length-1)

	body, err := p.fetchWithRetry(ctx, segURL, func(req *http.Request) {
		req.Header.Set("Range", rangeHeader)
	}, http.StatusPartialContent, http.StatusOK)
	if err != nil {
		return nil, "", err
	}

	// Segments are gzip members; tolerate servers that transparently
	// decompress ranged responses.
	var reader io.Reader = bytes.NewReader(body)
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, "", &types.ParseError{Source: "archive segment gzip", Err: err}
		}
		defer gz.Close()
		reader = gz
	}

	return firstResponse(reader)
}

// fetchDirect downloads a live portal article, negotiating compressed
// encodings and decoding them here.
func (p *Processor) fetchDirect(ctx context.Context, url string) ([]byte, error) {
	var html []byte
	_, err := p.fetchWithRetryFull(ctx, url, func(req *http.Request) {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
		req.Header.Set("Accept-Language", "es-CO,es;q=0.9")
	}, func(resp *http.Response) error {
		body, err := decodeBody(resp)
		if err != nil {
			return err
		}
		html = body
		return nil
	}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return html, nil
}

// decodeBody applies the response's Content-Encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(io.LimitReader(reader, maxFetchedBody))
}

// fetchWithRetry is the buffered-body variant of fetchWithRetryFull.
func (p *Processor) fetchWithRetry(ctx context.Context, url string, prep func(*http.Request), okStatuses ...int) ([]byte, error) {
	var body []byte
	_, err := p.fetchWithRetryFull(ctx, url, prep, func(resp *http.Response) error {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchedBody))
		if err != nil {
			return err
		}
		body = b
		return nil
	}, okStatuses...)
	return body, err
}

// fetchWithRetryFull performs a GET with bounded retries and exponential
// backoff. Only transport failures and 5xx responses retry; anything
// else fails fast.
func (p *Processor) fetchWithRetryFull(ctx context.Context, url string, prep func(*http.Request), consume func(*http.Response) error, okStatuses ...int) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= fetchRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(fetchBackoff << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", "colcap-news-pipeline/1.0")
		if prep != nil {
			prep(req)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = &types.FetchError{URL: url, Err: err, Retryable: true}
			continue
		}

		if statusIn(resp.StatusCode, okStatuses) {
			err := consume(resp)
			resp.Body.Close()
			if err != nil {
				return resp.StatusCode, &types.FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
			}
			return resp.StatusCode, nil
		}

		resp.Body.Close()
		ferr := &types.FetchError{URL: url, StatusCode: resp.StatusCode, Retryable: resp.StatusCode >= 500}
		if !ferr.Retryable {
			return resp.StatusCode, ferr
		}
		lastErr = ferr
	}
	return 0, lastErr
}

func statusIn(code int, set []int) bool {
	for _, s := range set {
		if s == code {
			return true
		}
	}
	return false
}
