package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/sheets"
	"carteira/internal/sheets/google"
)

var errNoCutDay = errors.New("card has no cut day configured")

func newReportCommand(o *rootOptions) *cobra.Command {
	var flags periodFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Totals and category breakdown of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				state, err := o.resolve(ctx, cmd, app, &flags)
				if err != nil {
					return err
				}
				rep, err := app.Reports.Build(ctx, state)
				if err != nil {
					return err
				}
				return o.render(cmd.OutOrStdout(), rep, func(tw *tabwriter.Writer) {
					row(tw, "PERIOD", "START", "END", "INCOME", "EXPENSE", "BALANCE", "ROWS")
					row(tw, rep.Period.Key(), rep.Range.Start, rep.Range.End,
						money(rep.Totals.Income), money(rep.Totals.Expense), money(rep.Totals.Balance), rep.Count)
					row(tw)
					row(tw, "CATEGORY", "AMOUNT")
					for _, c := range rep.ByCategory {
						row(tw, c.Name, money(c.Amount))
					}
					if len(rep.Monthly) > 0 {
						row(tw)
						row(tw, "MONTH", "INCOME", "EXPENSE", "BALANCE")
						for _, m := range rep.Monthly {
							row(tw, fmt.Sprintf("%04d-%02d", m.Year, m.Month), money(m.Income), money(m.Expense), money(m.Balance))
						}
					}
				})
			})
		},
	}
	flags.register(cmd)

	return cmd
}

func newForecastCommand(o *rootOptions) *cobra.Command {
	var flags periodFlags

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project daily net cash flow after a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				state, err := o.resolve(ctx, cmd, app, &flags)
				if err != nil {
					return err
				}
				res, err := app.Reports.Forecast(ctx, state)
				if err != nil {
					return err
				}
				return o.render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
					row(tw, "DATE", "PROJECTED")
					for _, p := range res.Series {
						row(tw, p.Date, money(p.Value))
					}
					row(tw, "TOTAL", money(res.Total))
				})
			})
		},
	}
	flags.register(cmd)

	return cmd
}

func newInsightsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "List spending alerts for recent months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				out, err := app.Reports.Insights(ctx)
				if err != nil {
					return err
				}
				if out == nil {
					out = []core.Insight{}
				}
				return o.render(cmd.OutOrStdout(), out, func(tw *tabwriter.Writer) {
					if len(out) == 0 {
						row(tw, "no insights")
						return
					}
					row(tw, "KIND", "MESSAGE")
					for _, in := range out {
						row(tw, in.Kind, in.Message)
					}
				})
			})
		},
	}
}

func newReconcileCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Link installment rows left without their first installment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				res, err := app.Reconciler.Sweep(ctx)
				if err != nil {
					return err
				}
				return o.render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
					row(tw, "GROUPS", "LINKED", "ORPHANS", "FAILED")
					row(tw, res.Groups, res.Linked, res.Orphans, res.Failed)
				})
			})
		},
	}
}

type exportView struct {
	Year  int    `json:"year"`
	Range string `json:"range"`
}

func newExportSheetCommand(o *rootOptions) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "export-sheet",
		Short: "Write a yearly report to Google Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = o.now().Year()
			}
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				exp, err := google.New(ctx, google.ConfigFromEnv(app.Config.GoogleSpreadsheetID, app.Config.ReportSheetName), app.Logger)
				if err != nil {
					return fmt.Errorf("google sheets: %w", err)
				}
				return runExport(ctx, cmd, o, app, exp, year)
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to export (default current year)")

	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, o *rootOptions, app *App, exp sheets.ReportExporter, year int) error {
	ref, err := app.Reports.ExportYear(ctx, exp, year)
	if err != nil {
		return err
	}
	app.Logger.Info("Report exported", log.FieldOperation, log.OpExport, "year", year, "range", ref)
	v := exportView{Year: year, Range: ref}
	return o.render(cmd.OutOrStdout(), v, func(tw *tabwriter.Writer) {
		row(tw, "YEAR", "RANGE")
		row(tw, v.Year, v.Range)
	})
}
