// Package services composes the ledger, reporting and insight packages over
// a persistence backend.
package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"carteira/internal/core"
	"carteira/internal/forecast"
	"carteira/internal/insights"
	"carteira/internal/log"
	"carteira/internal/period"
	"carteira/internal/report"
	"carteira/internal/sheets"
)

// InsightLookbackMonths is how many calendar months, counting the current
// one, the insight heuristics read.
const InsightLookbackMonths = 6

// ReportStore is the read side a ReportService needs.
type ReportStore interface {
	QueryRange(ctx context.Context, start, end core.Date, f core.Filter) ([]core.Transaction, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListBills(ctx context.Context) ([]core.Bill, error)
	ListGoals(ctx context.Context) ([]core.Goal, error)
	ListRewards(ctx context.Context) ([]core.Reward, error)
}

// Report is the aggregate view of one period.
type Report struct {
	Period      period.State          `json:"period"`
	Range       period.DateRange      `json:"range"`
	Totals      report.Totals         `json:"totals"`
	ByCategory  []core.CategoryAmount `json:"by_category"`
	Monthly     []report.MonthBucket  `json:"monthly,omitempty"`
	Count       int                   `json:"count"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// clone returns a copy that shares no slices with r.
func (r Report) clone() *Report {
	r.ByCategory = slices.Clone(r.ByCategory)
	r.Monthly = slices.Clone(r.Monthly)
	return &r
}

// ReportService builds period reports, forecasts and insights. Reports are
// cached per period key until the TTL elapses or Invalidate is called.
type ReportService struct {
	store   ReportStore
	engine  *insights.Engine
	cache   *cache.Cache
	logger  *log.Logger
	now     func() time.Time
	enabled bool
}

func NewReportService(store ReportStore, th insights.Thresholds, ttl time.Duration, logger *log.Logger) *ReportService {
	return &ReportService{
		store:   store,
		engine:  insights.New(th),
		cache:   cache.New(ttl, 2*ttl+time.Minute),
		logger:  log.OrDiscard(logger).WithComponent(log.ComponentReport),
		now:     time.Now,
		enabled: ttl > 0,
	}
}

// Invalidate drops every cached report. Wire it as the ledger change hook.
func (s *ReportService) Invalidate() {
	s.cache.Flush()
}

// Build returns the report of the period described by state.
func (s *ReportService) Build(ctx context.Context, state period.State) (*Report, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if state.Mode == period.Yearly {
		state.Month = 0
	}
	key := state.Key()
	if s.enabled {
		if v, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Report cache hit", log.FieldPeriodKey, key)
			return v.(Report).clone(), nil
		}
	}

	rng := period.Range(state)
	var (
		txs  []core.Transaction
		cats []core.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.QueryRange(gctx, rng.Start, rng.End, core.Filter{})
		if err != nil {
			return fmt.Errorf("query transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cats, err = s.store.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{
		Period:      state,
		Range:       rng,
		Totals:      report.Sum(txs),
		ByCategory:  report.ByCategory(txs, report.CategoryNames(cats)),
		Count:       len(txs),
		GeneratedAt: s.now().UTC(),
	}
	if state.Mode == period.Yearly {
		buckets := report.MonthlyBuckets(txs, state.Year)
		rep.Monthly = buckets[:]
	}

	if s.enabled {
		s.cache.SetDefault(key, *rep.clone())
	}
	s.logger.DebugContext(ctx, "Report built",
		log.FieldPeriodKey, key, log.FieldRows, len(txs),
		log.FieldRangeStart, rng.Start.String(), log.FieldRangeEnd, rng.End.String())
	return rep, nil
}

// Forecast projects the period's transactions 30 days forward.
func (s *ReportService) Forecast(ctx context.Context, state period.State) (forecast.Result, error) {
	if err := state.Validate(); err != nil {
		return forecast.Result{}, err
	}
	rng := period.Range(state)
	txs, err := s.store.QueryRange(ctx, rng.Start, rng.End, core.Filter{})
	if err != nil {
		return forecast.Result{}, fmt.Errorf("query transactions: %w", err)
	}
	return forecast.Project(txs, s.now()), nil
}

// Insights runs every heuristic over the last InsightLookbackMonths months
// and the bill, goal and reward collections, fetched concurrently.
func (s *ReportService) Insights(ctx context.Context) ([]core.Insight, error) {
	now := s.now()
	today := core.DateOf(now)
	start := core.NewDate(today.Year(), today.Month(), 1).AddMonths(-(InsightLookbackMonths - 1))

	var in insights.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Transactions, err = s.store.QueryRange(gctx, start, today, core.Filter{})
		return wrap("query transactions", err)
	})
	g.Go(func() (err error) {
		in.Categories, err = s.store.ListCategories(gctx)
		return wrap("list categories", err)
	})
	g.Go(func() (err error) {
		in.Bills, err = s.store.ListBills(gctx)
		return wrap("list bills", err)
	})
	g.Go(func() (err error) {
		in.Goals, err = s.store.ListGoals(gctx)
		return wrap("list goals", err)
	})
	g.Go(func() (err error) {
		in.Rewards, err = s.store.ListRewards(gctx)
		return wrap("list rewards", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := s.engine.Build(in, now)
	s.logger.DebugContext(ctx, "Insights built", "count", len(out), log.FieldRows, len(in.Transactions))
	return out, nil
}

// YearReport builds the yearly export content for year.
func (s *ReportService) YearReport(ctx context.Context, year int) (sheets.YearReport, error) {
	rep, err := s.Build(ctx, period.State{Mode: period.Yearly, Year: year})
	if err != nil {
		return sheets.YearReport{}, err
	}
	out := sheets.YearReport{Year: year, Totals: rep.Totals, Categories: rep.ByCategory}
	copy(out.Months[:], rep.Monthly)
	return out, nil
}

// ExportYear writes the yearly report through exp.
func (s *ReportService) ExportYear(ctx context.Context, exp sheets.ReportExporter, year int) (string, error) {
	yr, err := s.YearReport(ctx, year)
	if err != nil {
		return "", err
	}
	ref, err := exp.ExportYear(ctx, yr)
	if err != nil {
		return "", fmt.Errorf("export year %d: %w", year, err)
	}
	return ref, nil
}

func wrap(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
