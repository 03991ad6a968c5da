package cli

import (
	"context"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carteira/internal/billing"
	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/period"
)

// container resolves the active window from the stored preference, falling
// back to today when nothing is stored.
func (o *rootOptions) container(ctx context.Context, app *App, query string) *period.Container {
	c, err := period.NewContainer(ctx, period.Options{
		Query: period.NewMemoryQuery(query),
		Store: app.Backend.Preferences(),
		Now:   o.now,
	})
	if err != nil {
		app.Logger.Warn("Stored period unavailable, using defaults", log.FieldError, err)
	}
	return c
}

// periodFlags is the --mode/--month/--year trio shared by the commands that
// read or change a window. Only flags the user set end up in the partial.
type periodFlags struct {
	mode  string
	month int
	year  int
}

func (f *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "", "monthly or yearly")
	cmd.Flags().IntVar(&f.month, "month", 0, "month 1-12")
	cmd.Flags().IntVar(&f.year, "year", 0, "four digit year")
}

func (f *periodFlags) partial(cmd *cobra.Command) (period.Partial, error) {
	var p period.Partial
	if cmd.Flags().Changed("mode") {
		m := period.Mode(f.mode)
		p.Mode = &m
	}
	if cmd.Flags().Changed("month") {
		p.Month = &f.month
	}
	if cmd.Flags().Changed("year") {
		p.Year = &f.year
	}
	return p, p.Validate()
}

// resolve applies the flags over the stored window without persisting.
func (o *rootOptions) resolve(ctx context.Context, cmd *cobra.Command, app *App, f *periodFlags) (period.State, error) {
	p, err := f.partial(cmd)
	if err != nil {
		return period.State{}, err
	}
	state := p.Apply(o.container(ctx, app, "").Get())
	return state, state.Validate()
}

type periodView struct {
	State period.State     `json:"state"`
	Range period.DateRange `json:"range"`
}

func newPeriodCommand(o *rootOptions) *cobra.Command {
	periodCmd := &cobra.Command{
		Use:   "period",
		Short: "Show or change the default reporting window",
	}
	periodCmd.AddCommand(newPeriodGetCommand(o), newPeriodSetCommand(o))
	return periodCmd
}

func newPeriodGetCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the stored reporting window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				return printPeriod(cmd, o, o.container(ctx, app, ""))
			})
		},
	}
}

func newPeriodSetCommand(o *rootOptions) *cobra.Command {
	var flags periodFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change and store the reporting window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.partial(cmd)
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				c := o.container(ctx, app, "")
				if _, err := c.Set(ctx, p); err != nil {
					return err
				}
				return printPeriod(cmd, o, c)
			})
		},
	}
	flags.register(cmd)
	cmd.MarkFlagsOneRequired("mode", "month", "year")

	return cmd
}

func printPeriod(cmd *cobra.Command, o *rootOptions, c *period.Container) error {
	v := periodView{State: c.Get(), Range: c.Range()}
	return o.render(cmd.OutOrStdout(), v, func(tw *tabwriter.Writer) {
		row(tw, "MODE", "PERIOD", "START", "END")
		row(tw, v.State.Mode, v.State.Key(), v.Range.Start, v.Range.End)
	})
}

type cycleView struct {
	CardID string        `json:"card_id"`
	Cycle  billing.Cycle `json:"cycle"`
	Next   billing.Cycle `json:"next"`
}

func newCycleCommand(o *rootOptions) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "cycle <card-id>",
		Short: "Show the statement cycle of a credit card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refDate := core.DateOf(o.now())
			if ref != "" {
				d, err := core.ParseDate(ref)
				if err != nil {
					return err
				}
				refDate = d
			}
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				return runCycle(ctx, cmd, o, app, args[0], refDate)
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "reference date YYYY-MM-DD (default today)")

	return cmd
}

func runCycle(ctx context.Context, cmd *cobra.Command, o *rootOptions, app *App, cardID string, ref core.Date) error {
	card, err := app.Backend.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	c := billing.CycleFor(card, ref)
	if c == nil {
		return errNoCutDay
	}
	v := cycleView{CardID: card.ID, Cycle: *c, Next: *billing.Next(card, *c)}
	return o.render(cmd.OutOrStdout(), v, func(tw *tabwriter.Writer) {
		row(tw, "CYCLE", "START", "END", "DUE")
		row(tw, "current", v.Cycle.Start, v.Cycle.End, v.Cycle.Due)
		row(tw, "next", v.Next.Start, v.Next.End, v.Next.Due)
	})
}
