package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carteira/internal/core"
)

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, parent_id, kind, budget_limit FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c      core.Category
			parent sql.NullString
			limit  sql.NullFloat64
			kind   string
		)
		if err := rows.Scan(&c.ID, &c.Name, &parent, &kind, &limit); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ParentID = parent.String
		c.Kind = core.CategoryKind(kind)
		if limit.Valid {
			v := limit.Float64
			c.BudgetLimit = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutCategory(ctx context.Context, c core.Category) error {
	if c.Kind == "" {
		c.Kind = core.KindExpense
	}
	var limit sql.NullFloat64
	if c.BudgetLimit != nil {
		limit = sql.NullFloat64{Float64: core.SafeAmount(*c.BudgetLimit), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (id, name, parent_id, kind, budget_limit)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id,
			kind = excluded.kind, budget_limit = excluded.budget_limit`,
		c.ID, c.Name, nullable(c.ParentID), string(c.Kind), limit)
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.CreditCard, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, cut_day, due_day FROM credit_cards ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id string) (core.CreditCard, error) {
	c, err := scanCard(r.db.QueryRowContext(ctx, `SELECT id, name, cut_day, due_day FROM credit_cards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.CreditCard{}, fmt.Errorf("card %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func scanCard(s scanner) (core.CreditCard, error) {
	var (
		c        core.CreditCard
		cut, due sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.Name, &cut, &due); err != nil {
		return core.CreditCard{}, err
	}
	if cut.Valid {
		v := int(cut.Int64)
		c.CutDay = &v
	}
	if due.Valid {
		v := int(due.Int64)
		c.DueDay = &v
	}
	return c, nil
}

func (r *SQLiteRepository) PutCard(ctx context.Context, c core.CreditCard) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO credit_cards (id, name, cut_day, due_day) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, cut_day = excluded.cut_day, due_day = excluded.due_day`,
		c.ID, c.Name, nullableInt(c.CutDay), nullableInt(c.DueDay))
	if err != nil {
		return fmt.Errorf("save card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, institution, balance FROM accounts ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a   core.Account
			ins sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &ins, &a.Balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Institution = ins.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutAccount(ctx context.Context, a core.Account) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts (id, name, institution, balance) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, institution = excluded.institution, balance = excluded.balance`,
		a.ID, a.Name, nullable(a.Institution), core.SafeAmount(a.Balance))
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBills(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, amount, due_date, paid FROM bills ORDER BY due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		var (
			b   core.Bill
			due string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Amount, &due, &b.Paid); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		if b.DueDate, err = parseOptionalDate(due); err != nil {
			return nil, fmt.Errorf("scan bill %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutBill(ctx context.Context, b core.Bill) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO bills (id, name, amount, due_date, paid) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, amount = excluded.amount,
			due_date = excluded.due_date, paid = excluded.paid`,
		b.ID, b.Name, core.SafeAmount(b.Amount), b.DueDate.String(), b.Paid)
	if err != nil {
		return fmt.Errorf("save bill: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, target_amount, current_amount, deadline FROM goals ORDER BY deadline, id`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g        core.Goal
			deadline sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.Deadline, err = parseOptionalDate(deadline.String); err != nil {
			return nil, fmt.Errorf("scan goal %s: %w", g.ID, err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (id, name, target_amount, current_amount, deadline) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, target_amount = excluded.target_amount,
			current_amount = excluded.current_amount, deadline = excluded.deadline`,
		g.ID, g.Name, core.SafeAmount(g.TargetAmount), core.SafeAmount(g.CurrentAmount), nullable(g.Deadline.String()))
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRewards(ctx context.Context) ([]core.Reward, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, program, points, expires_at FROM rewards ORDER BY expires_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var out []core.Reward
	for rows.Next() {
		var (
			rw      core.Reward
			expires sql.NullString
		)
		if err := rows.Scan(&rw.ID, &rw.Program, &rw.Points, &expires); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		if rw.ExpiresAt, err = parseOptionalDate(expires.String); err != nil {
			return nil, fmt.Errorf("scan reward %s: %w", rw.ID, err)
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutReward(ctx context.Context, rw core.Reward) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO rewards (id, program, points, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET program = excluded.program, points = excluded.points, expires_at = excluded.expires_at`,
		rw.ID, rw.Program, core.SafeAmount(rw.Points), nullable(rw.ExpiresAt.String()))
	if err != nil {
		return fmt.Errorf("save reward: %w", err)
	}
	return nil
}

func parseOptionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
