package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedash/internal/amqp"
	"invoicedash/internal/storage"
)

type fakeExportStore struct {
	runs   map[string]storage.ExportRun
	failed map[string]string
}

func newFakeExportStore() *fakeExportStore {
	return &fakeExportStore{runs: map[string]storage.ExportRun{}, failed: map[string]string{}}
}

func (f *fakeExportStore) CreateExportRun(_ context.Context, ws time.Weekday) (storage.ExportRun, error) {
	run := storage.ExportRun{ID: "run-1", Status: storage.ExportQueued, WeekStart: ws}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeExportStore) MarkExportFailed(_ context.Context, id string, cause error) error {
	f.failed[id] = cause.Error()
	return nil
}

func (f *fakeExportStore) GetExportRun(_ context.Context, id string) (storage.ExportRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return storage.ExportRun{}, storage.ErrNotFound
	}
	return run, nil
}

func (f *fakeExportStore) ListExportRuns(context.Context, int) ([]storage.ExportRun, error) {
	var out []storage.ExportRun
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

type fakePublisher struct {
	sent []*amqp.ExportRequestMessage
	err  error
}

func (p *fakePublisher) PublishExportRequest(_ context.Context, msg *amqp.ExportRequestMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func TestExportService_Enqueue(t *testing.T) {
	store := newFakeExportStore()
	pub := &fakePublisher{}
	svc := NewExportService(store, pub, time.Sunday)

	run, err := svc.Enqueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "run-1", pub.sent[0].RunID)
	assert.Equal(t, "Sunday", pub.sent[0].WeekStart)

	got, err := svc.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, storage.ExportQueued, got.Status)
}

func TestExportService_EnqueuePublishFailure(t *testing.T) {
	store := newFakeExportStore()
	svc := NewExportService(store, &fakePublisher{err: errors.New("connection refused")}, time.Monday)

	_, err := svc.Enqueue(context.Background())
	require.Error(t, err)
	assert.Equal(t, "connection refused", store.failed["run-1"])
}

func TestExportService_Disabled(t *testing.T) {
	svc := NewExportService(newFakeExportStore(), nil, time.Monday)
	assert.False(t, svc.Enabled())

	_, err := svc.Enqueue(context.Background())
	assert.ErrorIs(t, err, ErrExportsDisabled)

	var nilSvc *ExportService
	_, err = nilSvc.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrExportsDisabled)
}
