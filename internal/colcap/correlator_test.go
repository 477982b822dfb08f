package colcap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

// syntheticHistory builds months full months of trading days (the first
// 20 days of each month), most recent being Dec 2024 backwards.
func syntheticHistory(t *testing.T, months int) *History {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Fecha,Ultimo\n")
	for m := 0; m < months; m++ {
		base := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -m, 0)
		for day := 1; day <= 20; day++ {
			d := time.Date(base.Year(), base.Month(), day, 0, 0, 0, 0, time.UTC)
			fmt.Fprintf(&sb, "%s,%.2f\n", d.Format("2006-01-02"), 1300.0+float64(m*100+day))
		}
	}
	h, err := ReadHistory(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	return h
}

func TestReadHistoryParsesEuropeanDecimals(t *testing.T) {
	csv := "Fecha,Ultimo\n2024-06-03,\"1.434,56\"\n2024-06-04,1450.12\nnot-a-date,99\n"
	h, err := ReadHistory(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (bad row skipped)", h.Len())
	}
	v, ok := h.Value(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	if !ok || v != 1434.56 {
		t.Errorf("Value(2024-06-03) = %v,%v, want 1434.56,true", v, ok)
	}
}

func TestReadHistoryEmpty(t *testing.T) {
	if _, err := ReadHistory(strings.NewReader("Fecha,Ultimo\n")); err == nil {
		t.Fatal("ReadHistory with no rows should fail")
	}
	if _, err := ReadHistory(strings.NewReader("Date,Close\n2024-01-02,100\n")); err == nil {
		t.Fatal("ReadHistory without Fecha/Ultimo columns should fail")
	}
}

func TestMonthGroupsOrder(t *testing.T) {
	h := syntheticHistory(t, 10)
	groups := h.MonthGroups(8)

	if len(groups) != 8 {
		t.Fatalf("groups = %d, want 8", len(groups))
	}
	if got := groups[0][0].Month(); got != time.December {
		t.Errorf("first group month = %v, want December (most recent first)", got)
	}
	if got := groups[7][0].Month(); got != time.May {
		t.Errorf("last group month = %v, want May", got)
	}
	// Within a month, ascending.
	first := groups[0]
	if !first[0].Before(first[len(first)-1]) {
		t.Error("dates within a month should ascend")
	}
}

func TestCorrelateRotatesThroughMonths(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := syntheticHistory(t, 8)
	c := NewCorrelator(h, st, 8, 100, discardLogger())

	perMonth := make(map[string]int)
	for i := 0; i < 800; i++ {
		corr, err := c.Correlate(ctx, "20240101120000")
		if err != nil {
			t.Fatalf("Correlate #%d: %v", i, err)
		}
		perMonth[corr.Date[:7]]++
	}

	if len(perMonth) != 8 {
		t.Fatalf("articles landed in %d months, want 8: %v", len(perMonth), perMonth)
	}
	for month, n := range perMonth {
		if n != 100 {
			t.Errorf("month %s got %d articles, want 100", month, n)
		}
	}
}

func TestCorrelateWrapsAround(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := syntheticHistory(t, 8)
	c := NewCorrelator(h, st, 8, 100, discardLogger())

	first, err := c.Correlate(ctx, "20240101120000")
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	for i := 1; i < 800; i++ {
		if _, err := c.Correlate(ctx, "20240101120000"); err != nil {
			t.Fatalf("Correlate #%d: %v", i, err)
		}
	}

	// Article 801 restarts the cycle at the same date as article 1.
	wrapped, err := c.Correlate(ctx, "20240101120000")
	if err != nil {
		t.Fatalf("Correlate after wrap: %v", err)
	}
	if wrapped.Date != first.Date || wrapped.Value != first.Value {
		t.Errorf("wrap = %+v, want %+v", wrapped, first)
	}
}

func TestCorrelateSharesCounterAcrossInstances(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	h := syntheticHistory(t, 8)

	// Two correlators over one store model two worker pods.
	a := NewCorrelator(h, st, 8, 100, discardLogger())
	b := NewCorrelator(h, st, 8, 100, discardLogger())

	seen := make(map[string]int)
	for i := 0; i < 100; i++ {
		c := a
		if i%2 == 1 {
			c = b
		}
		corr, err := c.Correlate(ctx, "20240101120000")
		if err != nil {
			t.Fatalf("Correlate #%d: %v", i, err)
		}
		seen[corr.Date]++
	}

	// 100 articles over a 20-day month: every date exactly 5 times.
	for date, n := range seen {
		if n != 5 {
			t.Errorf("date %s assigned %d times, want 5", date, n)
		}
	}
	count, _ := st.GetInt(ctx, store.KeyNewsCounter)
	if count != 100 {
		t.Errorf("shared counter = %d, want 100", count)
	}
}

func TestParseArticleDate(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want string
	}{
		{"2024-03-15T10:30:00Z", true, "2024-03-15"},
		{"20240315103000", true, "2024-03-15"},
		{"2024-03-15", true, "2024-03-15"},
		{"yesterday", false, ""},
	}
	for _, tt := range tests {
		d, err := ParseArticleDate(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("ParseArticleDate(%q) err = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && d.Format("2006-01-02") != tt.want {
			t.Errorf("ParseArticleDate(%q) = %s, want %s", tt.in, d.Format("2006-01-02"), tt.want)
		}
	}
}
