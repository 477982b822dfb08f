package colcap

import (
	"context"
	"log/slog"
	"time"

	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// Correlator maps the unbounded article stream onto the bounded calendar
// of historical dates. The k-th processed article (by the shared atomic
// counter, across all workers) is assigned a deterministic date: articles
// rotate through the N most recent months, newsPerMonth at a time, spread
// over each month's trading days.
type Correlator struct {
	history      *History
	months       [][]time.Time
	newsPerMonth int
	st           store.Store
	logger       *slog.Logger
}

// NewCorrelator builds a correlator over the most recent numMonths of the
// historical table.
func NewCorrelator(h *History, st store.Store, numMonths, newsPerMonth int, logger *slog.Logger) *Correlator {
	if numMonths <= 0 {
		numMonths = 8
	}
	if newsPerMonth <= 0 {
		newsPerMonth = 100
	}
	c := &Correlator{
		history:      h,
		months:       h.MonthGroups(numMonths),
		newsPerMonth: newsPerMonth,
		st:           st,
		logger:       logger.With("component", "correlator"),
	}
	c.logger.Info("correlator ready", "records", h.Len(), "months", len(c.months))
	return c
}

// Correlation is an assigned date and its index value.
type Correlation struct {
	Date  string
	Value float64
}

// Correlate assigns the next article a date in the historical window and
// returns the index value for it. The input date is only used as a
// fallback when no month grouping exists.
//
// The counter increment MUST go through the shared store: the uniform
// distribution depends on strict global monotonicity across all workers.
func (c *Correlator) Correlate(ctx context.Context, inputDate string) (*Correlation, error) {
	if len(c.months) == 0 {
		return c.correlateDirect(inputDate)
	}

	next, err := c.st.Incr(ctx, store.KeyNewsCounter)
	if err != nil {
		return nil, err
	}
	count := next - 1 // pre-increment value

	cycleLen := int64(c.newsPerMonth * len(c.months))
	pos := count % cycleLen

	monthIdx := int(pos) / c.newsPerMonth
	withinMonth := int(pos) % c.newsPerMonth

	monthDates := c.months[monthIdx]
	assigned := monthDates[withinMonth%len(monthDates)]

	value, ok := c.history.Value(assigned)
	if !ok {
		return nil, types.ErrNoIndexValue
	}
	return &Correlation{Date: assigned.Format("2006-01-02"), Value: value}, nil
}

// correlateDirect looks the original date up as-is.
func (c *Correlator) correlateDirect(inputDate string) (*Correlation, error) {
	d, err := ParseArticleDate(inputDate)
	if err != nil {
		return nil, types.ErrNoIndexValue
	}
	value, ok := c.history.Value(d)
	if !ok {
		return nil, types.ErrNoIndexValue
	}
	return &Correlation{Date: d.Format("2006-01-02"), Value: value}, nil
}

// ParseArticleDate accepts the date shapes that show up on tasks:
// WARC-Date (RFC3339), the archive index timestamp (yyyymmddhhmmss),
// and a bare ISO date.
func ParseArticleDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "20060102150405", "2006-01-02"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, &types.ParseError{Source: "article date", Err: types.ErrNoIndexValue}
}
