// Package report turns invoice records into the two datasets the dashboard
// renders: revenue per (week, status) and a chronological running total.
package report

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"invoicedash/internal/core"
)

type (
	// WeeklyStatusTotal is the summed amount for one (week, status) pair.
	WeeklyStatusTotal struct {
		WeekStart time.Time       `json:"week_start"`
		Status    core.Status     `json:"status"`
		Total     decimal.Decimal `json:"total"`
	}

	// CumulativePoint is one invoice in date order with the running total
	// including it.
	CumulativePoint struct {
		Date         time.Time       `json:"date"`
		Amount       decimal.Decimal `json:"amount"`
		RunningTotal decimal.Decimal `json:"running_total"`
	}

	// Report holds everything derived from one load.
	Report struct {
		WeekStart  time.Weekday        `json:"week_start_day"`
		Count      int                 `json:"count"`
		Total      decimal.Decimal     `json:"total"`
		Weekly     []WeeklyStatusTotal `json:"weekly"`
		Cumulative []CumulativePoint   `json:"cumulative"`
	}

	options struct {
		weekStart time.Weekday
	}

	// Option configures Build.
	Option func(*options)
)

// WithWeekStart sets the first day of a week bucket. Default is Monday.
func WithWeekStart(d time.Weekday) Option {
	return func(o *options) {
		o.weekStart = d
	}
}

// WeekBucket returns midnight UTC of the latest weekStart day on or before t.
func WeekBucket(t time.Time, weekStart time.Weekday) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

type bucketKey struct {
	week   int64
	status core.Status
}

// Build aggregates invoices. It validates every record before computing
// anything, so a bad record yields an error and no partial report.
func Build(invoices []core.Invoice, opts ...Option) (Report, error) {
	o := options{weekStart: time.Monday}
	for _, opt := range opts {
		opt(&o)
	}

	for i, inv := range invoices {
		if err := inv.Validate(); err != nil {
			var mErr *core.MalformedInputError
			if errors.As(err, &mErr) && mErr.Row == 0 {
				mErr.Row = i + 1
			}
			return Report{}, err
		}
	}

	weekly := weeklyTotals(invoices, o.weekStart)
	cumulative := cumulativeSeries(invoices)

	total := decimal.Zero
	if n := len(cumulative); n > 0 {
		total = cumulative[n-1].RunningTotal
	}

	return Report{
		WeekStart:  o.weekStart,
		Count:      len(invoices),
		Total:      total,
		Weekly:     weekly,
		Cumulative: cumulative,
	}, nil
}

func weeklyTotals(invoices []core.Invoice, weekStart time.Weekday) []WeeklyStatusTotal {
	sums := make(map[bucketKey]decimal.Decimal)
	for _, inv := range invoices {
		key := bucketKey{
			week:   WeekBucket(inv.Date, weekStart).Unix(),
			status: inv.Status,
		}
		if cur, ok := sums[key]; ok {
			sums[key] = cur.Add(inv.Amount)
		} else {
			sums[key] = inv.Amount
		}
	}

	out := make([]WeeklyStatusTotal, 0, len(sums))
	for key, total := range sums {
		out = append(out, WeeklyStatusTotal{
			WeekStart: time.Unix(key.week, 0).UTC(),
			Status:    key.status,
			Total:     total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.Before(out[j].WeekStart)
		}
		return core.CompareStatus(out[i].Status, out[j].Status) < 0
	})
	return out
}

func cumulativeSeries(invoices []core.Invoice) []CumulativePoint {
	ordered := make([]core.Invoice, len(invoices))
	copy(ordered, invoices)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	out := make([]CumulativePoint, 0, len(ordered))
	running := decimal.Zero
	for _, inv := range ordered {
		running = running.Add(inv.Amount)
		out = append(out, CumulativePoint{
			Date:         inv.Date,
			Amount:       inv.Amount,
			RunningTotal: running,
		})
	}
	return out
}

// Statuses returns the distinct statuses present in the weekly totals, in
// display order.
func (r Report) Statuses() []core.Status {
	seen := make(map[core.Status]struct{})
	var out []core.Status
	for _, w := range r.Weekly {
		if _, ok := seen[w.Status]; ok {
			continue
		}
		seen[w.Status] = struct{}{}
		out = append(out, w.Status)
	}
	core.SortStatuses(out)
	return out
}

// Weeks returns the distinct week starts in ascending order.
func (r Report) Weeks() []time.Time {
	var out []time.Time
	for _, w := range r.Weekly {
		if n := len(out); n == 0 || !out[n-1].Equal(w.WeekStart) {
			out = append(out, w.WeekStart)
		}
	}
	return out
}
