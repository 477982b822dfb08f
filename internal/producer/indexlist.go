package producer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// ArchiveIndex is one crawl-index entry from the archive's collection list.
type ArchiveIndex struct {
	ID     string
	Name   string
	CDXAPI string
}

// IndexList resolves the ordered list of archive indexes (most recent
// first): local CSV cache when present, the collection listing otherwise,
// and a built-in fallback as last resort.
type IndexList struct {
	collinfoURL string
	cachePath   string
	client      *http.Client
	logger      *slog.Logger
}

// NewIndexList creates an index list resolver.
func NewIndexList(indexBaseURL, cachePath string, timeout time.Duration, logger *slog.Logger) *IndexList {
	return &IndexList{
		collinfoURL: strings.TrimRight(indexBaseURL, "/") + "/collinfo.json",
		cachePath:   cachePath,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With("component", "index_list"),
	}
}

// Get returns the available indexes. Never returns an empty slice and a
// nil error together.
func (l *IndexList) Get(ctx context.Context) ([]ArchiveIndex, error) {
	if indexes, err := l.loadCache(); err == nil && len(indexes) > 0 {
		l.logger.Info("using cached index list", "count", len(indexes))
		return indexes, nil
	}

	indexes, err := l.download(ctx)
	if err == nil && len(indexes) > 0 {
		if err := l.saveCache(indexes); err != nil {
			l.logger.Warn("could not cache index list", "error", err)
		}
		l.logger.Info("downloaded index list", "count", len(indexes))
		return indexes, nil
	}
	if err != nil {
		l.logger.Warn("index list download failed, using defaults", "error", err)
	}

	indexes = defaultIndexes()
	if len(indexes) == 0 {
		return nil, types.ErrNoIndexes
	}
	return indexes, nil
}

// download fetches the collection listing and keeps CC-MAIN entries.
func (l *IndexList) download(ctx context.Context) ([]ArchiveIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.collinfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collection listing returned status %d", resp.StatusCode)
	}

	var items []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		CDXAPI string `json:"cdx-api"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &types.ParseError{Source: "collinfo.json", Err: err}
	}

	var indexes []ArchiveIndex
	for _, item := range items {
		if strings.HasPrefix(item.ID, "CC-MAIN-") {
			indexes = append(indexes, ArchiveIndex{ID: item.ID, Name: item.Name, CDXAPI: item.CDXAPI})
		}
	}
	return indexes, nil
}

func (l *IndexList) loadCache() ([]ArchiveIndex, error) {
	f, err := os.Open(l.cachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	rows, err := cr.ReadAll()
	if err != nil || len(rows) < 2 {
		return nil, fmt.Errorf("unreadable index cache")
	}

	var indexes []ArchiveIndex
	for _, row := range rows[1:] {
		if len(row) < 3 {
			continue
		}
		indexes = append(indexes, ArchiveIndex{ID: row[0], Name: row[1], CDXAPI: row[2]})
	}
	return indexes, nil
}

func (l *IndexList) saveCache(indexes []ArchiveIndex) error {
	if err := os.MkdirAll(filepath.Dir(l.cachePath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(l.cachePath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "name", "cdx_api"}); err != nil {
		return err
	}
	for _, idx := range indexes {
		if err := w.Write([]string{idx.ID, idx.Name, idx.CDXAPI}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// defaultIndexes is the offline fallback, most recent first.
func defaultIndexes() []ArchiveIndex {
	ids := []struct{ id, name string }{
		{"CC-MAIN-2024-51", "December 2024"},
		{"CC-MAIN-2024-46", "November 2024"},
		{"CC-MAIN-2024-42", "October 2024"},
		{"CC-MAIN-2024-38", "September 2024"},
		{"CC-MAIN-2024-33", "August 2024"},
		{"CC-MAIN-2024-30", "July 2024"},
		{"CC-MAIN-2024-26", "June 2024"},
		{"CC-MAIN-2024-22", "May 2024"},
		{"CC-MAIN-2024-18", "April 2024"},
		{"CC-MAIN-2024-10", "March 2024"},
		{"CC-MAIN-2023-50", "December 2023"},
		{"CC-MAIN-2023-40", "October 2023"},
		{"CC-MAIN-2023-23", "June 2023"},
		{"CC-MAIN-2023-14", "April 2023"},
		{"CC-MAIN-2023-06", "February 2023"},
	}
	out := make([]ArchiveIndex, len(ids))
	for i, e := range ids {
		out[i] = ArchiveIndex{ID: e.id, Name: e.name}
	}
	return out
}
