package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/insights"
	"carteira/internal/ledger"
	"carteira/internal/services"
	"carteira/internal/sheets"
	"carteira/internal/storage/memory"
)

type countingExporter struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (e *countingExporter) ExportYear(_ context.Context, r sheets.YearReport) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, r.Year)
	return "ref", e.err
}

func (e *countingExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func newWorker(t *testing.T, exp sheets.ReportExporter) (*EventWorker, *memory.Store) {
	t.Helper()
	store := memory.New(nil)
	l := ledger.New(store)
	w := NewEventWorker(
		services.NewReconciler(store, l, nil),
		services.NewReportService(store, insights.DefaultThresholds(), time.Minute, nil),
		exp, nil)
	w.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return w, store
}

func TestHandle_UnlinkedEventLinksRows(t *testing.T) {
	w, store := newWorker(t, nil)
	ctx := context.Background()

	rows, err := ledger.ExpandInstallments(core.Transaction{Date: core.NewDate(2025, 5, 1), Description: "Bike", Amount: -90}, 3)
	require.NoError(t, err)
	rows, err = store.InsertMany(ctx, rows)
	require.NoError(t, err)

	ev := ledger.Event{Type: ledger.EventInstallmentsUnlinked, IDs: []string{rows[0].ID, rows[1].ID, rows[2].ID}}
	require.NoError(t, w.Handle(ctx, ev))

	for _, r := range rows {
		got, err := store.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, rows[0].ID, got.ParentInstallmentID)
	}
	assert.True(t, w.dirty.Load())
}

func TestHandle_DropsEventsWithoutFirstInstallment(t *testing.T) {
	w, store := newWorker(t, nil)
	ctx := context.Background()

	rows, err := ledger.ExpandInstallments(core.Transaction{Date: core.NewDate(2025, 5, 1), Description: "Bike", Amount: -90}, 2)
	require.NoError(t, err)
	rows, err = store.InsertMany(ctx, rows)
	require.NoError(t, err)

	err = w.Handle(ctx, ledger.Event{Type: ledger.EventInstallmentsUnlinked, IDs: []string{rows[1].ID}})
	assert.NoError(t, err)
}

func TestHandle_UnknownEventIsIgnored(t *testing.T) {
	w, _ := newWorker(t, nil)
	require.NoError(t, w.Handle(context.Background(), ledger.Event{Type: "budget.changed"}))
	assert.False(t, w.dirty.Load())
}

func TestFlush_ExportsOnlyWhenDirty(t *testing.T) {
	exp := &countingExporter{}
	w, _ := newWorker(t, exp)
	ctx := context.Background()

	require.NoError(t, w.Flush(ctx))
	assert.Zero(t, exp.count())

	require.NoError(t, w.Handle(ctx, ledger.Event{Type: ledger.EventTransactionsCreated, IDs: []string{"a"}}))
	require.NoError(t, w.Flush(ctx))
	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, []int{2025}, exp.calls)
}

func TestFlush_KeepsDirtyOnFailure(t *testing.T) {
	exp := &countingExporter{err: errors.New("quota exceeded")}
	w, _ := newWorker(t, exp)
	ctx := context.Background()

	require.NoError(t, w.Handle(ctx, ledger.Event{Type: ledger.EventTransactionsDeleted, IDs: []string{"a"}}))
	require.Error(t, w.Flush(ctx))
	assert.True(t, w.dirty.Load())
}

type chanSource struct {
	events chan ledger.Event
}

func (s chanSource) Consume(ctx context.Context, h amqp.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			if err := h(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func TestRun_ConsumesUntilCanceled(t *testing.T) {
	exp := &countingExporter{}
	w, _ := newWorker(t, exp)
	src := chanSource{events: make(chan ledger.Event, 1)}
	src.events <- ledger.Event{Type: ledger.EventTransactionsCreated, IDs: []string{"a"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, src, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return exp.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
