package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/insights"
	"carteira/internal/ledger"
	"carteira/internal/period"
	"carteira/internal/services"
	"carteira/internal/sheets"
	"carteira/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New([]core.Category{{ID: "food", Name: "Alimentação", Kind: core.KindExpense}})
	ctx := context.Background()
	require.NoError(t, s.PutCard(ctx, core.CreditCard{ID: "visa", Name: "Visa", CutDay: intp(5), DueDay: intp(15)}))
	require.NoError(t, s.PutCard(ctx, core.CreditCard{ID: "debit", Name: "Debit"}))
	return s
}

func testApp(s *memory.Store) *App {
	return NewApp(&config.Config{ReportCacheTTL: time.Minute}, s, insights.DefaultThresholds(), nil)
}

// run executes the command tree against s and returns what it printed.
func run(t *testing.T, s *memory.Store, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(func(context.Context) (*App, error) { return testApp(s), nil }, func() time.Time { return testNow })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func runJSON[T any](t *testing.T, s *memory.Store, args ...string) T {
	t.Helper()
	out, err := run(t, s, append([]string{"-o", "json"}, args...)...)
	require.NoError(t, err, out)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestAdd_Installments(t *testing.T) {
	s := newStore(t)

	rows := runJSON[[]core.Transaction](t, s, "add",
		"--date", "2025-01-31", "-d", "Notebook", "-a", "-300,00", "--card", "visa", "-n", "3")

	require.Len(t, rows, 3)
	wantDates := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
	for i, r := range rows {
		assert.Equal(t, wantDates[i], r.Date.String())
		assert.Equal(t, i+1, r.InstallmentNo)
		assert.Equal(t, 3, r.InstallmentTotal)
		assert.Equal(t, -300.0, r.Amount)
		assert.Equal(t, rows[0].ID, r.ParentInstallmentID)
	}
}

func TestAdd_DefaultsToToday(t *testing.T) {
	s := newStore(t)

	rows := runJSON[[]core.Transaction](t, s, "add", "-d", "Café", "-a", "-4.5")

	require.Len(t, rows, 1)
	assert.Equal(t, "2025-03-20", rows[0].Date.String())
	assert.Equal(t, 0, rows[0].InstallmentTotal)
}

func TestAdd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing description", []string{"add", "-a", "10"}},
		{"missing amount", []string{"add", "-d", "x"}},
		{"bad amount", []string{"add", "-d", "x", "-a", "ten"}},
		{"bad date", []string{"add", "-d", "x", "-a", "10", "--date", "31/01/2025"}},
		{"too many installments", []string{"add", "-d", "x", "-a", "10", "-n", "421"}},
		{"account and card", []string{"add", "-d", "x", "-a", "10", "--account", "acc", "--card", "visa"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			_, err := run(t, s, tt.args...)
			assert.Error(t, err)

			rows, qerr := s.QueryRange(context.Background(), core.NewDate(2000, 1, 1), core.NewDate(2100, 1, 1), core.Filter{})
			require.NoError(t, qerr)
			assert.Empty(t, rows)
		})
	}
}

func seedMarch(t *testing.T, s *memory.Store) {
	t.Helper()
	l := ledger.New(s)
	for _, tx := range []core.Transaction{
		{Date: core.NewDate(2025, 3, 1), Description: "Salário", Amount: 5000},
		{Date: core.NewDate(2025, 3, 10), Description: "Mercado", Amount: -200, CategoryID: "food"},
		{Date: core.NewDate(2025, 3, 15), Description: "Restaurante", Amount: -150, CategoryID: "food"},
		{Date: core.NewDate(2025, 2, 10), Description: "Mercado", Amount: -180, CategoryID: "food"},
	} {
		_, err := l.Add(context.Background(), ledger.AddInput{Transaction: tx})
		require.NoError(t, err)
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		descs []string
	}{
		{"active period", []string{"list"}, []string{"Salário", "Mercado", "Restaurante"}},
		{"explicit range", []string{"list", "--start", "2025-02-01", "--end", "2025-02-28"}, []string{"Mercado"}},
		{"income only", []string{"list", "--type", "income"}, []string{"Salário"}},
		{"category", []string{"list", "--category", "food", "--start", "2025-01-01", "--end", "2025-12-31"}, []string{"Mercado", "Mercado", "Restaurante"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			seedMarch(t, s)

			rows := runJSON[[]core.Transaction](t, s, tt.args...)

			var got []string
			for _, r := range rows {
				got = append(got, r.Description)
			}
			assert.Equal(t, tt.descs, got)
		})
	}
}

func TestList_Errors(t *testing.T) {
	s := newStore(t)

	_, err := run(t, s, "list", "--start", "2025-01-01")
	assert.Error(t, err)

	_, err = run(t, s, "list", "--type", "transfer")
	assert.ErrorContains(t, err, "invalid --type")
}

func TestList_Table(t *testing.T) {
	s := newStore(t)
	seedMarch(t, s)

	out, err := run(t, s, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "DESCRIPTION")
	assert.Contains(t, out, "Restaurante")
	assert.Contains(t, out, "-150.00")
}

func TestPeriod(t *testing.T) {
	s := newStore(t)

	got := runJSON[periodView](t, s, "period", "get")
	assert.Equal(t, period.State{Mode: period.Monthly, Month: 3, Year: 2025}, got.State)

	got = runJSON[periodView](t, s, "period", "set", "--mode", "yearly", "--year", "2024")
	assert.Equal(t, period.Yearly, got.State.Mode)
	assert.Equal(t, "2024-01-01", got.Range.Start.String())
	assert.Equal(t, "2024-12-31", got.Range.End.String())

	// stored: a fresh invocation sees the new window
	got = runJSON[periodView](t, s, "period", "get")
	assert.Equal(t, period.Yearly, got.State.Mode)
	assert.Equal(t, 2024, got.State.Year)
}

func TestPeriodSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no flags", []string{"period", "set"}},
		{"bad month", []string{"period", "set", "--month", "13"}},
		{"bad mode", []string{"period", "set", "--mode", "weekly"}},
		{"bad year", []string{"period", "set", "--year", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, newStore(t), tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCycle(t *testing.T) {
	s := newStore(t)

	got := runJSON[cycleView](t, s, "cycle", "visa", "--ref", "2025-03-20")
	assert.Equal(t, "visa", got.CardID)
	assert.Equal(t, got.Cycle.End.AddDays(1), got.Next.Start)
	assert.Equal(t, 15, got.Cycle.Due.Day())

	_, err := run(t, s, "cycle", "debit")
	assert.ErrorIs(t, err, errNoCutDay)

	_, err = run(t, s, "cycle", "amex")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = run(t, s, "cycle")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	s := newStore(t)
	seedMarch(t, s)

	rep := runJSON[services.Report](t, s, "report")
	assert.Equal(t, 3, rep.Count)
	assert.Equal(t, 5000.0, rep.Totals.Income)

	yearly := runJSON[services.Report](t, s, "report", "--mode", "yearly")
	assert.Equal(t, 4, yearly.Count)
	assert.Len(t, yearly.Monthly, 12)

	_, err := run(t, s, "report", "--month", "0")
	assert.Error(t, err)
}

func TestReport_Table(t *testing.T) {
	s := newStore(t)
	seedMarch(t, s)

	out, err := run(t, s, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-03")
	assert.Contains(t, out, "5000.00")
	assert.Contains(t, out, "Alimentação")
}

func TestForecastAndInsights(t *testing.T) {
	s := newStore(t)
	seedMarch(t, s)

	fc := runJSON[struct {
		Series []core.ForecastPoint `json:"series"`
	}](t, s, "forecast")
	assert.Len(t, fc.Series, 30)

	out, err := run(t, s, "-o", "json", "insights")
	require.NoError(t, err)
	var ins []core.Insight
	require.NoError(t, json.Unmarshal([]byte(out), &ins))
	assert.NotNil(t, ins)
}

func TestReconcile(t *testing.T) {
	s := newStore(t)
	rows, err := ledger.ExpandInstallments(core.Transaction{
		Date: core.NewDate(2025, 1, 10), Description: "Geladeira", Amount: -400, CardID: "visa",
	}, 3)
	require.NoError(t, err)
	inserted, err := s.InsertMany(context.Background(), rows)
	require.NoError(t, err)

	res := runJSON[services.SweepResult](t, s, "reconcile")
	assert.Equal(t, services.SweepResult{Groups: 1, Linked: 3}, res)

	for _, r := range inserted {
		got, err := s.Get(context.Background(), r.ID)
		require.NoError(t, err)
		assert.Equal(t, inserted[0].ID, got.ParentInstallmentID)
	}
}

type recordingExporter struct {
	got sheets.YearReport
}

func (r *recordingExporter) ExportYear(_ context.Context, yr sheets.YearReport) (string, error) {
	r.got = yr
	return "2025 Relatório!A1:D18", nil
}

func TestRunExport(t *testing.T) {
	s := newStore(t)
	seedMarch(t, s)
	o := &rootOptions{output: "json", now: func() time.Time { return testNow }}
	cmd := newExportSheetCommand(o)
	var out bytes.Buffer
	cmd.SetOut(&out)
	exp := &recordingExporter{}

	require.NoError(t, runExport(context.Background(), cmd, o, testApp(s), exp, 2025))

	assert.Equal(t, 2025, exp.got.Year)
	assert.Equal(t, 5000.0, exp.got.Months[2].Income)
	var v exportView
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, "2025 Relatório!A1:D18", v.Range)
}

func TestInvalidOutput(t *testing.T) {
	_, err := run(t, newStore(t), "-o", "yaml", "insights")
	assert.ErrorContains(t, err, "invalid output")
}
