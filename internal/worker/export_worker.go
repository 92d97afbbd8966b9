package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/core"
	"invoicedash/internal/report"
	"invoicedash/internal/sources/csvfile"
	"invoicedash/internal/sources"
	"invoicedash/internal/storage"
)

// RunStore tracks export run status.
type RunStore interface {
	MarkExportRunning(ctx context.Context, id string) error
	MarkExportDone(ctx context.Context, id, sheetRef string) error
	MarkExportFailed(ctx context.Context, id string, cause error) error
}

// ReportLoader produces a fresh report for a week start.
type ReportLoader interface {
	LoadWithWeekStart(ctx context.Context, weekStart time.Weekday) (report.Report, error)
}

// ExportWorker turns export requests into written Google Sheets reports
type ExportWorker struct {
	runs      RunStore
	loader    ReportLoader
	writer    sources.ReportWriter
	permanent func(error) bool
}

type Option func(*ExportWorker)

// WithPermanentErrors marks extra errors as not worth retrying, in addition
// to malformed input.
func WithPermanentErrors(fn func(error) bool) Option {
	return func(w *ExportWorker) { w.permanent = fn }
}

func NewExportWorker(runs RunStore, loader ReportLoader, writer sources.ReportWriter, opts ...Option) *ExportWorker {
	w := &ExportWorker{runs: runs, loader: loader, writer: writer}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleExportMessage processes one export request. A nil return acks the
// message: the run finished, failed for good, or no longer exists. A non-nil
// return requeues it.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	log := slog.With("run_id", msg.RunID)

	weekStart, err := core.ParseWeekday(msg.WeekStart)
	if err != nil {
		w.fail(ctx, msg.RunID, err)
		return nil
	}

	if err := w.runs.MarkExportRunning(ctx, msg.RunID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.WarnContext(ctx, "Dropping export request for unknown run")
			return nil
		}
		return fmt.Errorf("mark export running: %w", err)
	}

	start := time.Now()
	rep, err := w.loader.LoadWithWeekStart(ctx, weekStart)
	if err != nil {
		if w.isPermanent(err) {
			w.fail(ctx, msg.RunID, err)
			return nil
		}
		return fmt.Errorf("load report: %w", err)
	}

	ref, err := w.writer.WriteReport(ctx, rep)
	if err != nil {
		if w.isPermanent(err) {
			w.fail(ctx, msg.RunID, err)
			return nil
		}
		return fmt.Errorf("write report: %w", err)
	}

	if err := w.runs.MarkExportDone(ctx, msg.RunID, ref); err != nil {
		// the sheet is written; retrying would only rewrite it
		log.ErrorContext(ctx, "Failed to mark export done", "error", err)
		return nil
	}

	log.InfoContext(ctx, "Export completed",
		"sheet_ref", ref,
		"invoices", rep.Count,
		"weekly_rows", len(rep.Weekly),
		"duration", time.Since(start))
	return nil
}

// isPermanent reports errors a redelivery cannot fix: bad rows, a missing
// or unreadable source file, or a source without the expected columns.
func (w *ExportWorker) isPermanent(err error) bool {
	switch {
	case errors.Is(err, core.ErrMalformedInput),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, csvfile.ErrMissingColumn):
		return true
	}
	return w.permanent != nil && w.permanent(err)
}

func (w *ExportWorker) fail(ctx context.Context, runID string, cause error) {
	slog.WarnContext(ctx, "Export failed", "run_id", runID, "error", cause)
	if err := w.runs.MarkExportFailed(ctx, runID, cause); err != nil {
		slog.ErrorContext(ctx, "Failed to mark export failed", "run_id", runID, "error", err)
	}
}
