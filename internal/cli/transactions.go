package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/period"
)

type addOptions struct {
	date         string
	description  string
	amount       string
	category     string
	account      string
	card         string
	installments int
	notes        string
}

func newAddCommand(o *rootOptions) *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction, optionally split into monthly installments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				return runAdd(ctx, cmd, o, app, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "description")
	cmd.Flags().StringVarP(&opts.amount, "amount", "a", "", "signed amount, negative for expenses")
	cmd.Flags().StringVar(&opts.category, "category", "", "category id")
	cmd.Flags().StringVar(&opts.account, "account", "", "account id")
	cmd.Flags().StringVar(&opts.card, "card", "", "credit card id")
	cmd.Flags().IntVarP(&opts.installments, "installments", "n", 1, "number of monthly installments")
	cmd.Flags().StringVar(&opts.notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runAdd(ctx context.Context, cmd *cobra.Command, o *rootOptions, app *App, opts addOptions) error {
	date := core.DateOf(o.now())
	if opts.date != "" {
		d, err := core.ParseDate(opts.date)
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
		date = d
	}
	amount, err := core.ParseAmount(opts.amount)
	if err != nil {
		return fmt.Errorf("parsing --amount: %w", err)
	}

	rows, err := app.Ledger.Add(ctx, ledger.AddInput{
		Transaction: core.Transaction{
			Date:        date,
			Description: opts.description,
			Amount:      amount,
			CategoryID:  opts.category,
			AccountID:   opts.account,
			CardID:      opts.card,
			Notes:       opts.notes,
		},
		Installments: opts.installments,
	})
	var unlinked *ledger.UnlinkedError
	if err != nil && !errors.As(err, &unlinked) {
		return err
	}
	if unlinked != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d rows stored but not linked, run `carteira reconcile`\n", len(rows))
	}
	return printTransactions(cmd, o, rows)
}

type listOptions struct {
	start    string
	end      string
	kind     string
	category string
	account  string
	card     string
}

func newListCommand(o *rootOptions) *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions in a date range (default: the active period)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(ctx context.Context, app *App) error {
				return runList(ctx, cmd, o, app, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "first day YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.end, "end", "", "last day YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.kind, "type", "", "income or expense")
	cmd.Flags().StringVar(&opts.category, "category", "", "category id")
	cmd.Flags().StringVar(&opts.account, "account", "", "account id")
	cmd.Flags().StringVar(&opts.card, "card", "", "credit card id")
	cmd.MarkFlagsRequiredTogether("start", "end")

	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, o *rootOptions, app *App, opts listOptions) error {
	filter := core.Filter{CategoryID: opts.category, AccountID: opts.account, CardID: opts.card}
	switch t := core.TransactionType(strings.ToLower(opts.kind)); t {
	case "", core.Income, core.Expense:
		filter.Type = t
	default:
		return fmt.Errorf("invalid --type %q: must be income or expense", opts.kind)
	}

	var rng period.DateRange
	if opts.start != "" {
		var err error
		if rng.Start, err = core.ParseDate(opts.start); err != nil {
			return fmt.Errorf("parsing --start: %w", err)
		}
		if rng.End, err = core.ParseDate(opts.end); err != nil {
			return fmt.Errorf("parsing --end: %w", err)
		}
	} else {
		rng = o.container(ctx, app, "").Range()
	}

	rows, err := app.Ledger.ListByRange(ctx, rng.Start, rng.End, filter)
	if err != nil {
		return err
	}
	return printTransactions(cmd, o, rows)
}

func printTransactions(cmd *cobra.Command, o *rootOptions, rows []core.Transaction) error {
	if rows == nil {
		rows = []core.Transaction{}
	}
	return o.render(cmd.OutOrStdout(), rows, func(tw *tabwriter.Writer) {
		row(tw, "ID", "DATE", "DESCRIPTION", "AMOUNT", "CATEGORY", "INSTALLMENT", "PARENT")
		for _, t := range rows {
			inst := "-"
			if t.IsInstallment() {
				inst = fmt.Sprintf("%d/%d", t.InstallmentNo, t.InstallmentTotal)
			}
			row(tw, t.ID, t.Date, t.Description, money(t.Amount), dash(t.CategoryID), inst, dash(t.ParentInstallmentID))
		}
	})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
