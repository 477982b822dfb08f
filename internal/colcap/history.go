// Package colcap loads the historical COLCAP index series and correlates
// the processed article stream against it.
package colcap

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// History is the in-memory historical index table: date -> closing value.
// Loaded once at startup; read-only afterwards.
type History struct {
	values map[string]float64 // "2006-01-02" -> close
	dates  []time.Time        // ascending
}

// LoadHistory reads the CSV at path and logs the record count. Required
// columns: Fecha (ISO date) and Ultimo (numeric close).
func LoadHistory(path string, logger *slog.Logger) (*History, error) {
	h, err := ReadHistoryFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info("historical data loaded", "path", path, "records", len(h.dates))
	return h, nil
}

// ReadHistory parses a historical CSV stream.
func ReadHistory(r io.Reader) (*History, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	dateCol, valueCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Fecha":
			dateCol = i
		case "Ultimo":
			valueCol = i
		}
	}
	if dateCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("historical csv missing required columns Fecha/Ultimo")
	}

	h := &History{values: make(map[string]float64)}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if dateCol >= len(rec) || valueCol >= len(rec) {
			continue
		}

		d, err := time.Parse("2006-01-02", strings.TrimSpace(rec[dateCol]))
		if err != nil {
			continue
		}
		v, err := parseDecimal(rec[valueCol])
		if err != nil {
			continue
		}

		key := d.Format("2006-01-02")
		if _, dup := h.values[key]; !dup {
			h.dates = append(h.dates, d)
		}
		h.values[key] = v
	}

	if len(h.dates) == 0 {
		return nil, types.ErrEmptyHistory
	}

	sort.Slice(h.dates, func(i, j int) bool { return h.dates[i].Before(h.dates[j]) })
	return h, nil
}

// Value returns the closing value for an exact date, if present.
func (h *History) Value(date time.Time) (float64, bool) {
	v, ok := h.values[date.Format("2006-01-02")]
	return v, ok
}

// Len returns the number of trading days in the table.
func (h *History) Len() int { return len(h.dates) }

// MonthGroups returns the dates of the numMonths most recent months,
// most recent month first, each month's dates in ascending order.
func (h *History) MonthGroups(numMonths int) [][]time.Time {
	if len(h.dates) == 0 || numMonths <= 0 {
		return nil
	}

	type ym struct{ year, month int }
	groups := make(map[ym][]time.Time)
	var keys []ym
	for _, d := range h.dates {
		k := ym{d.Year(), int(d.Month())}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], d)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year > keys[j].year
		}
		return keys[i].month > keys[j].month
	})
	if len(keys) > numMonths {
		keys = keys[:numMonths]
	}

	out := make([][]time.Time, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k])
	}
	return out
}

// parseDecimal handles plain floats plus the "1.434,56" style the series
// sometimes ships with (thousands dot, decimal comma).
func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
