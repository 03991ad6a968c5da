// Package worker runs the background side of the ledger: it reacts to
// ledger events, sweeps unlinked installments and keeps the spreadsheet
// export current.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"carteira/internal/amqp"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/sheets"
)

// EventSource delivers ledger events until ctx is done.
type EventSource interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

type EventWorker struct {
	reconciler *services.Reconciler
	reports    *services.ReportService
	exporter   sheets.ReportExporter // optional
	logger     *log.Logger
	now        func() time.Time

	dirty atomic.Bool
}

func NewEventWorker(rec *services.Reconciler, reports *services.ReportService, exporter sheets.ReportExporter, logger *log.Logger) *EventWorker {
	return &EventWorker{
		reconciler: rec,
		reports:    reports,
		exporter:   exporter,
		logger:     log.OrDiscard(logger).WithComponent(log.ComponentWorker),
		now:        time.Now,
	}
}

// Handle processes one ledger event. Returning an error requeues it.
func (w *EventWorker) Handle(ctx context.Context, ev ledger.Event) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type, log.FieldRows, len(ev.IDs))

	switch ev.Type {
	case ledger.EventInstallmentsUnlinked:
		n, err := w.reconciler.LinkIDs(ctx, ev.IDs)
		if errors.Is(err, services.ErrFirstInstallmentMissing) {
			w.logger.WarnContext(ctx, "Dropping unlinked event", log.FieldError, err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("link announced installments: %w", err)
		}
		w.logger.InfoContext(ctx, "Linked installments from event", log.FieldRows, n)
	case ledger.EventTransactionsCreated, ledger.EventTransactionsUpdated, ledger.EventTransactionsDeleted:
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown ledger event", log.FieldEventType, ev.Type)
		return nil
	}

	w.reports.Invalidate()
	w.dirty.Store(true)
	return nil
}

// Flush exports the current year when events arrived since the last export.
func (w *EventWorker) Flush(ctx context.Context) error {
	if w.exporter == nil || !w.dirty.Swap(false) {
		return nil
	}
	year := w.now().Year()
	ref, err := w.reports.ExportYear(ctx, w.exporter, year)
	if err != nil {
		w.dirty.Store(true)
		return err
	}
	w.logger.InfoContext(ctx, "Refreshed spreadsheet export",
		log.FieldOperation, log.OpExport, "year", year, "range", ref)
	return nil
}

// Run consumes events from src (when not nil), sweeps unlinked installments
// every interval and flushes the export on the same cadence. It returns when
// ctx is done or any loop fails.
func (w *EventWorker) Run(ctx context.Context, src EventSource, interval time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	if src != nil {
		g.Go(func() error {
			return ignoreCanceled(src.Consume(gctx, w.Handle))
		})
	}
	g.Go(func() error {
		return w.reconciler.Run(gctx, interval)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := w.Flush(gctx); err != nil && gctx.Err() == nil {
					w.logger.ErrorContext(gctx, "Spreadsheet export failed", log.FieldError, err)
				}
			}
		}
	})

	err := g.Wait()
	w.logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown)
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
