package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"invoicedash/internal/amqp"
	"invoicedash/internal/storage"
)

var ErrExportsDisabled = errors.New("exports are not configured")

// ExportStore persists export runs.
type ExportStore interface {
	CreateExportRun(ctx context.Context, weekStart time.Weekday) (storage.ExportRun, error)
	MarkExportFailed(ctx context.Context, id string, cause error) error
	GetExportRun(ctx context.Context, id string) (storage.ExportRun, error)
	ListExportRuns(ctx context.Context, limit int) ([]storage.ExportRun, error)
}

// ExportPublisher hands export requests to the worker.
type ExportPublisher interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
}

// ExportService records export runs in SQLite and queues them over AMQP
type ExportService struct {
	store     ExportStore
	publisher ExportPublisher
	weekStart time.Weekday
}

func NewExportService(store ExportStore, publisher ExportPublisher, weekStart time.Weekday) *ExportService {
	return &ExportService{store: store, publisher: publisher, weekStart: weekStart}
}

// Enabled reports whether both the run store and the queue are available.
func (s *ExportService) Enabled() bool {
	return s != nil && s.store != nil && s.publisher != nil
}

// Enqueue creates a queued run and publishes it. If publishing fails the run
// is marked failed and the error returned.
func (s *ExportService) Enqueue(ctx context.Context) (storage.ExportRun, error) {
	if !s.Enabled() {
		return storage.ExportRun{}, ErrExportsDisabled
	}

	run, err := s.store.CreateExportRun(ctx, s.weekStart)
	if err != nil {
		return storage.ExportRun{}, fmt.Errorf("create export run: %w", err)
	}

	msg := amqp.NewExportRequestMessage(run.ID, run.WeekStart)
	if err := s.publisher.PublishExportRequest(ctx, msg); err != nil {
		if markErr := s.store.MarkExportFailed(ctx, run.ID, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export run failed", "run_id", run.ID, "error", markErr)
		}
		return storage.ExportRun{}, fmt.Errorf("publish export request: %w", err)
	}

	slog.InfoContext(ctx, "Export queued", "run_id", run.ID, "week_start", run.WeekStart.String())
	return run, nil
}

func (s *ExportService) Get(ctx context.Context, id string) (storage.ExportRun, error) {
	if s == nil || s.store == nil {
		return storage.ExportRun{}, ErrExportsDisabled
	}
	return s.store.GetExportRun(ctx, id)
}

func (s *ExportService) Recent(ctx context.Context, limit int) ([]storage.ExportRun, error) {
	if s == nil || s.store == nil {
		return nil, ErrExportsDisabled
	}
	return s.store.ListExportRuns(ctx, limit)
}
