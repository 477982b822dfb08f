package colcap

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// yahooDownloadURL serves the historical COLCAP series as CSV.
const yahooDownloadURL = "https://query1.finance.yahoo.com/v7/finance/download/%5ECOLCAP"

// Ingestion downloads and verifies the historical index file. Runs once,
// at producer startup; workers expect the file to already exist (it is
// baked into the image or mounted).
type Ingestion struct {
	dataPath string
	client   *http.Client
	logger   *slog.Logger
}

// NewIngestion creates the financial-data ingestion step.
func NewIngestion(dataPath string, logger *slog.Logger) *Ingestion {
	return &Ingestion{
		dataPath: dataPath,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "ingestion"),
	}
}

// Ensure makes the historical file available: keeps an existing valid
// file, otherwise downloads the series. Returns an error only when the
// file is absent and cannot be fetched.
func (g *Ingestion) Ensure(ctx context.Context) error {
	if _, err := ReadHistoryFile(g.dataPath); err == nil {
		g.logger.Info("historical data present", "path", g.dataPath)
		return nil
	}

	g.logger.Info("historical data missing, downloading", "path", g.dataPath)
	if err := g.download(ctx); err != nil {
		return fmt.Errorf("download historical data: %w", err)
	}
	return g.Verify()
}

// Verify checks the file parses and has the required columns.
func (g *Ingestion) Verify() error {
	h, err := ReadHistoryFile(g.dataPath)
	if err != nil {
		return fmt.Errorf("verify historical data: %w", err)
	}
	g.logger.Info("historical data verified", "records", h.Len())
	return nil
}

// download fetches the series for 2024 and rewrites it with the
// Fecha/Ultimo column names the rest of the pipeline expects.
func (g *Ingestion) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, yahooDownloadURL, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("period1", "1704067200") // 2024-01-01
	q.Set("period2", "1735689600") // 2024-12-31
	q.Set("interval", "1d")
	q.Set("events", "history")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return g.rewrite(resp.Body)
}

// rewrite maps Date->Fecha and Close->Ultimo and writes the result file.
func (g *Ingestion) rewrite(r io.Reader) error {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read downloaded header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Date":
			dateCol = i
		case "Close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return fmt.Errorf("downloaded csv missing Date/Close columns")
	}

	if err := os.MkdirAll(filepath.Dir(g.dataPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(g.dataPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Fecha", "Ultimo"}); err != nil {
		return err
	}

	rows := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read downloaded row: %w", err)
		}
		if dateCol >= len(rec) || closeCol >= len(rec) {
			continue
		}
		if err := w.Write([]string{rec[dateCol], rec[closeCol]}); err != nil {
			return err
		}
		rows++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	g.logger.Info("historical data downloaded", "records", rows, "path", g.dataPath)
	return nil
}

// ReadHistoryFile opens and parses a historical CSV from disk.
func ReadHistoryFile(path string) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadHistory(f)
}
