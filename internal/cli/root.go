package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"carteira/internal/log"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type opener func(ctx context.Context) (*App, error)

type rootOptions struct {
	open   opener
	output string
	now    func() time.Time
}

// NewRootCommand creates the carteira CLI with all subcommands registered.
// Every command reads its configuration from the environment (and .env).
func NewRootCommand() *cobra.Command {
	return newRootCommand(openFromEnv, time.Now)
}

func openFromEnv(ctx context.Context) (*App, error) {
	cfg, logger, err := Bootstrap(log.ComponentApp)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, logger)
}

func newRootCommand(open opener, now func() time.Time) *cobra.Command {
	o := &rootOptions{open: open, now: now}

	rootCmd := &cobra.Command{
		Use:     "carteira",
		Short:   "Personal finance ledger and reports",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch o.output {
			case "table", "json":
				return nil
			default:
				return fmt.Errorf("invalid output %q: must be table or json", o.output)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&o.output, "output", "o", "table", "output format: table or json")

	rootCmd.AddCommand(
		newAddCommand(o),
		newListCommand(o),
		newCycleCommand(o),
		newPeriodCommand(o),
		newReportCommand(o),
		newForecastCommand(o),
		newInsightsCommand(o),
		newReconcileCommand(o),
		newExportSheetCommand(o),
	)

	return rootCmd
}

// withApp opens the app for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing backend: %w", cerr)
		}
	}()
	return fn(ctx, app)
}

// render prints v as indented JSON, or calls table with a tab writer.
func (o *rootOptions) render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if o.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func row(tw *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
