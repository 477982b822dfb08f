package colcap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIngestionRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colcap.csv")
	g := NewIngestion(path, discardLogger())

	downloaded := "Date,Open,High,Low,Close,Adj Close,Volume\n" +
		"2024-01-02,1380.1,1392.0,1375.5,1390.25,1390.25,1000\n" +
		"2024-01-03,1390.3,1401.7,1388.0,1400.50,1400.50,1200\n"

	if err := g.rewrite(strings.NewReader(downloaded)); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	h, err := ReadHistoryFile(path)
	if err != nil {
		t.Fatalf("ReadHistoryFile: %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("records = %d, want 2", h.Len())
	}

	raw, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(raw), "Fecha,Ultimo\n") {
		t.Errorf("rewritten header = %q, want Fecha,Ultimo", strings.SplitN(string(raw), "\n", 2)[0])
	}
}

func TestIngestionRewriteRejectsUnknownColumns(t *testing.T) {
	g := NewIngestion(filepath.Join(t.TempDir(), "colcap.csv"), discardLogger())
	if err := g.rewrite(strings.NewReader("A,B\n1,2\n")); err == nil {
		t.Fatal("rewrite without Date/Close columns should fail")
	}
}

func TestLoadHistoryFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colcap.csv")
	data := "Fecha,Ultimo\n2024-02-01,1410.00\n2024-02-02,1412.50\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := LoadHistory(path, discardLogger())
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if h.Len() != 2 {
		t.Errorf("records = %d, want 2", h.Len())
	}

	if _, err := LoadHistory(filepath.Join(t.TempDir(), "missing.csv"), discardLogger()); err == nil {
		t.Error("LoadHistory on a missing file should fail")
	}
}

func TestIngestionEnsureKeepsValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colcap.csv")
	existing := "Fecha,Ultimo\n2024-02-01,1410.00\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Ensure must not touch the network when the file already parses.
	g := NewIngestion(path, discardLogger())
	if err := g.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	raw, _ := os.ReadFile(path)
	if string(raw) != existing {
		t.Error("Ensure rewrote a valid file")
	}
}
