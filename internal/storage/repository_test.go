package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "carteira.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, nil)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestInsertQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := []core.Transaction{
		{Date: mustDate(t, "2025-03-10"), Description: "Mercado", Amount: -120.5, CategoryID: "food", CardID: "visa", InstallmentNo: 1},
		{Date: mustDate(t, "2025-03-01"), Description: "Salário", Amount: 5000, AccountID: "nubank", InstallmentNo: 1},
		{Date: mustDate(t, "2025-04-01"), Description: "Fora", Amount: -1, InstallmentNo: 1},
	}
	saved, err := repo.InsertMany(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(saved) != 3 || saved[0].ID == "" {
		t.Fatalf("unexpected saved rows: %+v", saved)
	}

	got, err := repo.QueryRange(ctx, mustDate(t, "2025-03-01"), mustDate(t, "2025-03-31"), core.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Description != "Salário" || got[1].Description != "Mercado" {
		t.Fatalf("unexpected order: %q, %q", got[0].Description, got[1].Description)
	}
	if got[1] != saved[0] {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got[1], saved[0])
	}

	tests := []struct {
		name   string
		filter core.Filter
		want   int
	}{
		{"category", core.Filter{CategoryID: "food"}, 1},
		{"account", core.Filter{AccountID: "nubank"}, 1},
		{"card", core.Filter{CardID: "visa"}, 1},
		{"income", core.Filter{Type: core.Income}, 1},
		{"expense", core.Filter{Type: core.Expense}, 1},
		{"unlinked installments", core.Filter{UnlinkedInstallments: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.QueryRange(ctx, mustDate(t, "2025-01-01"), mustDate(t, "2025-03-31"), tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(rows) != tt.want {
				t.Fatalf("got %d rows, want %d", len(rows), tt.want)
			}
		})
	}
}

func TestUpdateManyAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rows, err := repo.InsertMany(ctx, []core.Transaction{
		{Date: mustDate(t, "2025-01-15"), Description: "TV", Amount: -300, InstallmentNo: 1, InstallmentTotal: 2},
		{Date: mustDate(t, "2025-02-15"), Description: "TV", Amount: -300, InstallmentNo: 2, InstallmentTotal: 2},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	unlinked, _ := repo.QueryRange(ctx, mustDate(t, "2025-01-01"), mustDate(t, "2025-12-31"), core.Filter{UnlinkedInstallments: true})
	if len(unlinked) != 2 {
		t.Fatalf("expected 2 unlinked rows, got %d", len(unlinked))
	}

	parent := rows[0].ID
	if err := repo.UpdateMany(ctx, []string{rows[0].ID, rows[1].ID}, core.TransactionPatch{ParentInstallmentID: &parent}); err != nil {
		t.Fatalf("link: %v", err)
	}
	for _, r := range rows {
		got, err := repo.Get(ctx, r.ID)
		if err != nil || got.ParentInstallmentID != parent {
			t.Fatalf("row %s not linked: %+v %v", r.ID, got, err)
		}
	}

	note := "x"
	err = repo.UpdateMany(ctx, []string{rows[0].ID, "missing"}, core.TransactionPatch{Notes: &note})
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got, _ := repo.Get(ctx, rows[0].ID); got.Notes != "" {
		t.Fatalf("partial update committed: %+v", got)
	}

	if err := repo.UpdateMany(ctx, []string{rows[0].ID}, core.TransactionPatch{}); !errors.Is(err, core.ErrEmptyPatch) {
		t.Fatalf("expected empty patch error, got %v", err)
	}

	if err := repo.DeleteOne(ctx, rows[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, rows[1].ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := repo.DeleteOne(ctx, rows[1].ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCatalogAndPreferences(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	limit := 800.0
	if err := repo.PutCategory(ctx, core.Category{ID: "food", Name: "Alimentação", BudgetLimit: &limit}); err != nil {
		t.Fatalf("put category: %v", err)
	}
	cats, err := repo.ListCategories(ctx)
	if err != nil || len(cats) != 1 || cats[0].Kind != core.KindExpense || *cats[0].BudgetLimit != 800 {
		t.Fatalf("unexpected categories: %+v %v", cats, err)
	}

	cut, due := 10, 5
	if err := repo.PutCard(ctx, core.CreditCard{ID: "visa", Name: "Visa", CutDay: &cut, DueDay: &due}); err != nil {
		t.Fatalf("put card: %v", err)
	}
	if err := repo.PutCard(ctx, core.CreditCard{ID: "amex", Name: "Amex"}); err != nil {
		t.Fatalf("put card: %v", err)
	}
	card, err := repo.GetCard(ctx, "visa")
	if err != nil || *card.CutDay != 10 || *card.DueDay != 5 {
		t.Fatalf("unexpected card: %+v %v", card, err)
	}
	amex, _ := repo.GetCard(ctx, "amex")
	if amex.CutDay != nil {
		t.Fatalf("expected nil cut day, got %v", *amex.CutDay)
	}
	if _, err := repo.GetCard(ctx, "elo"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := repo.PutBill(ctx, core.Bill{ID: "b1", Name: "Luz", Amount: 150, DueDate: mustDate(t, "2025-03-10"), Paid: true}); err != nil {
		t.Fatalf("put bill: %v", err)
	}
	bills, err := repo.ListBills(ctx)
	if err != nil || len(bills) != 1 || !bills[0].Paid || bills[0].DueDate.String() != "2025-03-10" {
		t.Fatalf("unexpected bills: %+v %v", bills, err)
	}

	if err := repo.PutGoal(ctx, core.Goal{ID: "g1", Name: "Viagem", TargetAmount: 5000}); err != nil {
		t.Fatalf("put goal: %v", err)
	}
	goals, err := repo.ListGoals(ctx)
	if err != nil || len(goals) != 1 || !goals[0].Deadline.IsEmpty() {
		t.Fatalf("unexpected goals: %+v %v", goals, err)
	}

	if err := repo.PutReward(ctx, core.Reward{ID: "r1", Program: "Livelo", Points: 100, ExpiresAt: mustDate(t, "2025-05-01")}); err != nil {
		t.Fatalf("put reward: %v", err)
	}
	rewards, err := repo.ListRewards(ctx)
	if err != nil || len(rewards) != 1 || rewards[0].ExpiresAt.String() != "2025-05-01" {
		t.Fatalf("unexpected rewards: %+v %v", rewards, err)
	}

	if err := repo.PutAccount(ctx, core.Account{ID: "nu", Name: "Nubank", Balance: 10}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	accts, err := repo.ListAccounts(ctx)
	if err != nil || len(accts) != 1 || accts[0].Institution != "" {
		t.Fatalf("unexpected accounts: %+v %v", accts, err)
	}

	prefs := repo.Preferences()
	if _, ok, err := prefs.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	for _, v := range []string{"first", "second"} {
		if err := prefs.Set(ctx, "k", v); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	v, ok, err := prefs.Get(ctx, "k")
	if err != nil || !ok || v != "second" {
		t.Fatalf("expected last write to win, got %q %v %v", v, ok, err)
	}
}
