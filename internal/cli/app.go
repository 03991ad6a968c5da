package cli

import (
	"context"
	"fmt"

	"carteira/internal/backend"
	"carteira/internal/config"
	"carteira/internal/insights"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/services"
)

// App is the wired core every entry point runs against.
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Backend    backend.Backend
	Ledger     *ledger.Ledger
	Reports    *services.ReportService
	Reconciler *services.Reconciler

	cleanup backend.CleanupFunc
}

// Open builds the backend selected by cfg and wires the ledger, the report
// service and the reconciler on top of it.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	th, err := config.LoadThresholds(cfg.InsightsConfigFile)
	if err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	app := NewApp(cfg, res.Backend, th, logger, res.LedgerOptions()...)
	app.cleanup = res.Cleanup
	return app, nil
}

// NewApp wires an App over an already built backend.
func NewApp(cfg *config.Config, be backend.Backend, th insights.Thresholds, logger *log.Logger, opts ...ledger.Option) *App {
	logger = log.OrDiscard(logger)
	reports := services.NewReportService(be, th, cfg.ReportCacheTTL, logger)
	opts = append(opts, ledger.WithLogger(logger), ledger.WithChangeHook(reports.Invalidate))
	l := ledger.New(be, opts...)
	return &App{
		Config:     cfg,
		Logger:     logger,
		Backend:    be,
		Ledger:     l,
		Reports:    reports,
		Reconciler: services.NewReconciler(be, l, logger),
		cleanup:    be.Close,
	}
}

// Close releases the backend and its collaborators.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}
