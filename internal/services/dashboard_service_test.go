package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedash/internal/core"
	"invoicedash/internal/report"
	"invoicedash/internal/sources"
	"invoicedash/internal/sources/memory"
)

type blockingReader struct {
	calls   atomic.Int32
	release chan struct{}
	items   []core.Invoice
}

func (r *blockingReader) ReadInvoices(ctx context.Context) ([]core.Invoice, error) {
	r.calls.Add(1)
	<-r.release
	return r.items, nil
}

type failingReader struct{ err error }

func (r failingReader) ReadInvoices(context.Context) ([]core.Invoice, error) { return nil, r.err }

func sampleInvoices() []core.Invoice {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	return []core.Invoice{
		{Date: d(2), Status: core.StatusProposed, Amount: decimal.NewFromInt(100)},
		{Date: d(3), Status: core.StatusPaid, Amount: decimal.NewFromInt(50)},
		{Date: d(10), Status: core.StatusPaid, Amount: decimal.NewFromInt(200)},
	}
}

func TestDashboardService_Load(t *testing.T) {
	svc := NewDashboardService(memory.New(sampleInvoices()...), time.Monday)

	rep, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Count)
	assert.True(t, rep.Total.Equal(decimal.NewFromInt(350)))
	require.Len(t, rep.Weekly, 3)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rep.Weekly[0].WeekStart)
}

func TestDashboardService_LoadWithWeekStart(t *testing.T) {
	svc := NewDashboardService(memory.New(sampleInvoices()...), time.Monday)

	rep, err := svc.LoadWithWeekStart(context.Background(), time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, rep.WeekStart)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), rep.Weekly[0].WeekStart)
}

func TestDashboardService_NoReader(t *testing.T) {
	svc := NewDashboardService(nil, time.Monday)

	_, err := svc.Load(context.Background())
	assert.ErrorIs(t, err, sources.ErrNoReader)
}

func TestDashboardService_PropagatesMalformedInput(t *testing.T) {
	bad := &core.MalformedInputError{Row: 4, Field: "amount", Value: "abc", Err: core.ErrInvalidAmount}
	svc := NewDashboardService(failingReader{err: bad}, time.Monday)

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)
	assert.Contains(t, err.Error(), "row 4")
}

func TestDashboardService_ReadsEveryCall(t *testing.T) {
	store := memory.New(sampleInvoices()[:1]...)
	svc := NewDashboardService(store, time.Monday)

	first, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)

	_, err = store.Append(context.Background(), sampleInvoices()[1:]...)
	require.NoError(t, err)

	second, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second.Count)
}

func TestDashboardService_CollapsesConcurrentLoads(t *testing.T) {
	reader := &blockingReader{release: make(chan struct{}), items: sampleInvoices()}
	svc := NewDashboardService(reader, time.Monday)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Load(context.Background())
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the other callers time to join the in-flight load
	time.Sleep(20 * time.Millisecond)
	close(reader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), reader.calls.Load())
}

// ctxReader blocks until released or until its context ends.
type ctxReader struct {
	started chan struct{}
	release chan struct{}
	items   []core.Invoice
}

func (r *ctxReader) ReadInvoices(ctx context.Context) ([]core.Invoice, error) {
	close(r.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.release:
		return r.items, nil
	}
}

func TestDashboardService_SharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	reader := &ctxReader{started: make(chan struct{}), release: make(chan struct{}), items: sampleInvoices()}
	svc := NewDashboardService(reader, time.Monday)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Load(firstCtx)
		firstErr <- err
	}()
	<-reader.started

	secondErr := make(chan error, 1)
	var second report.Report
	go func() {
		var err error
		second, err = svc.Load(context.Background())
		secondErr <- err
	}()
	// let the second caller join the in-flight load
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(reader.release)
	require.NoError(t, <-secondErr)
	assert.Equal(t, 3, second.Count)
}

func TestDashboardService_ContextCancelled(t *testing.T) {
	reader := &blockingReader{release: make(chan struct{})}
	defer close(reader.release)
	svc := NewDashboardService(reader, time.Monday)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Load(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
