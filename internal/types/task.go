package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// Source identifies where an article's bytes came from.
const (
	SourceCommonCrawl = "common_crawl"
	SourceDirectFetch = "direct_fetch"
)

// Task is a single queue element: a pointer to a captured article.
//
// Archive-discovered tasks carry the WARC coordinates (Filename, Offset,
// Length). Portal-discovered tasks leave them as empty sentinels and are
// fetched directly from the original URL.
type Task struct {
	Filename  string `json:"filename"`
	Offset    int64  `json:"offset"`
	Length    int64  `json:"length"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Domain    string `json:"domain"`
}

// NewArchiveTask builds a task from the string fields of a CDX index
// record. Offset and length arrive as decimal strings on the wire.
func NewArchiveTask(filename, offset, length, url, timestamp, domain string) (Task, error) {
	off, err := strconv.ParseInt(offset, 10, 64)
	if err != nil {
		return Task{}, &ParseError{Source: "cdx offset", Err: err}
	}
	ln, err := strconv.ParseInt(length, 10, 64)
	if err != nil {
		return Task{}, &ParseError{Source: "cdx length", Err: err}
	}
	if ln <= 0 {
		return Task{}, &ParseError{Source: "cdx length", Err: ErrInvalidTask}
	}
	return Task{
		Filename:  filename,
		Offset:    off,
		Length:    ln,
		URL:       url,
		Timestamp: timestamp,
		Domain:    domain,
	}, nil
}

// NewPortalTask builds a direct-fetch task for a URL found on a live
// portal front page.
func NewPortalTask(url, domain string) Task {
	return Task{
		URL:       url,
		Timestamp: time.Now().UTC().Format("20060102150405"),
		Domain:    domain,
	}
}

// FromArchive reports whether the task points into a web archive segment.
func (t *Task) FromArchive() bool {
	return t.Filename != "" && t.Length > 0
}

// Encode serializes the task for the queue.
func (t *Task) Encode() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeTask parses a queue element back into a Task.
func DecodeTask(data string) (*Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Sentiment is the output of the sentiment analyzer.
type Sentiment struct {
	Polarity       float64 `json:"polarity"`
	Subjectivity   float64 `json:"subjectivity"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

// KeywordHit is one economic keyword and its occurrence count.
type KeywordHit struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// KeywordAnalysis summarizes economic keyword detection over a text.
type KeywordAnalysis struct {
	Keywords       []KeywordHit `json:"keywords"`
	TotalKeywords  int          `json:"total_keywords"`
	RelevanceScore int          `json:"relevance_score"`
}

// Timings records per-stage processing durations in milliseconds.
type Timings struct {
	DownloadMS   int64 `json:"download_ms"`
	ExtractionMS int64 `json:"extraction_ms"`
	NLPMS        int64 `json:"nlp_ms"`
	TotalMS      int64 `json:"total_ms"`
}

// Result is one fully processed article, correlated with the index series.
type Result struct {
	URL              string          `json:"url"`
	Title            string          `json:"title"`
	Domain           string          `json:"domain"`
	Date             string          `json:"fecha"`
	ColcapValue      float64         `json:"colcap_value"`
	Sentiment        Sentiment       `json:"sentiment"`
	EconomicAnalysis KeywordAnalysis `json:"economic_analysis"`
	TextExcerpt      string          `json:"text_excerpt"`
	TextLength       int             `json:"text_length"`
	Source           string          `json:"source"`
	Timings          Timings         `json:"processing_times"`
	WorkerID         string          `json:"worker_id,omitempty"`
	ProcessedAt      string          `json:"processed_at,omitempty"`
}

// Encode serializes the result for the store.
func (r *Result) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeResult parses a stored result record.
func DecodeResult(data string) (*Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LogEntry is one line of the producer's operational log stream.
type LogEntry struct {
	TS    int64  `json:"ts"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

// NewLogEntry builds a log entry stamped with the current time.
func NewLogEntry(level, msg string) LogEntry {
	return LogEntry{TS: time.Now().Unix(), Level: level, Msg: msg}
}
