package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"invoicedash/internal/report"
	"invoicedash/internal/sources"
)

// sharedLoadTimeout bounds a read shared by collapsed callers. The read does
// not follow any single caller's context.
const sharedLoadTimeout = 30 * time.Second

// DashboardService reads the invoice dataset and aggregates it. Nothing is
// kept between calls; concurrent loads for the same week start share one read.
type DashboardService struct {
	reader    sources.InvoiceReader
	weekStart time.Weekday
	group     singleflight.Group
}

func NewDashboardService(reader sources.InvoiceReader, weekStart time.Weekday) *DashboardService {
	return &DashboardService{reader: reader, weekStart: weekStart}
}

// WeekStart returns the configured first day of a week bucket.
func (s *DashboardService) WeekStart() time.Weekday {
	return s.weekStart
}

// Load builds the report with the configured week start.
func (s *DashboardService) Load(ctx context.Context) (report.Report, error) {
	return s.LoadWithWeekStart(ctx, s.weekStart)
}

// LoadWithWeekStart builds the report bucketing weeks from weekStart.
func (s *DashboardService) LoadWithWeekStart(ctx context.Context, weekStart time.Weekday) (report.Report, error) {
	if s.reader == nil {
		return report.Report{}, sources.ErrNoReader
	}

	ch := s.group.DoChan(weekStart.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		start := time.Now()
		invoices, err := s.reader.ReadInvoices(ctx)
		if err != nil {
			return report.Report{}, fmt.Errorf("read invoices: %w", err)
		}
		rep, err := report.Build(invoices, report.WithWeekStart(weekStart))
		if err != nil {
			return report.Report{}, fmt.Errorf("build report: %w", err)
		}
		slog.DebugContext(ctx, "Report built",
			"invoices", rep.Count,
			"weekly_rows", len(rep.Weekly),
			"week_start", weekStart.String(),
			"duration", time.Since(start))
		return rep, nil
	})

	select {
	case <-ctx.Done():
		return report.Report{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return report.Report{}, res.Err
		}
		return res.Val.(report.Report), nil
	}
}
