package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"

	_ "modernc.org/sqlite"
)

const transactionColumns = `id, date, description, amount, category_id, account_id, card_id,
	installment_no, installment_total, parent_installment_id, attachment_url, notes`

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	logger = log.OrDiscard(logger).WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY on concurrent requests
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertMany writes every row inside one database transaction and returns
// them with their assigned ids, in input order.
func (r *SQLiteRepository) InsertMany(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		row.ID = uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.Date.String(), row.Description, core.SafeAmount(row.Amount),
			nullable(row.CategoryID), nullable(row.AccountID), nullable(row.CardID),
			row.InstallmentNo, row.InstallmentTotal,
			nullable(row.ParentInstallmentID), nullable(row.AttachmentURL), nullable(row.Notes),
		); err != nil {
			return nil, fmt.Errorf("insert transaction %d: %w", i+1, err)
		}
		out[i] = row
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	r.logger.DebugContext(ctx, "Transactions saved to SQLite", log.FieldRows, len(out))
	return out, nil
}

// UpdateMany applies patch to every id, or to none when any id is missing.
func (r *SQLiteRepository) UpdateMany(ctx context.Context, ids []string, patch core.TransactionPatch) error {
	set, args := patchAssignments(patch)
	if len(set) == 0 {
		return core.ErrEmptyPatch
	}
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE transactions SET ` + strings.Join(set, ", ") +
		` WHERE id IN (` + placeholders(len(unique)) + `)`
	for _, id := range unique {
		args = append(args, id)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transactions: %w", err)
	}
	if int(n) != len(unique) {
		return fmt.Errorf("update transactions: %w (%d of %d ids)", ledger.ErrNotFound, n, len(unique))
	}
	return tx.Commit()
}

func (r *SQLiteRepository) DeleteOne(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// QueryRange returns rows dated within [start, end] ordered by date, then
// insertion order.
func (r *SQLiteRepository) QueryRange(ctx context.Context, start, end core.Date, f core.Filter) ([]core.Transaction, error) {
	where := []string{"date >= ?", "date <= ?"}
	args := []any{start.String(), end.String()}

	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.CardID != "" {
		where = append(where, "card_id = ?")
		args = append(args, f.CardID)
	}
	switch f.Type {
	case core.Income:
		where = append(where, "amount > 0")
	case core.Expense:
		where = append(where, "amount < 0")
	}
	if f.UnlinkedInstallments {
		where = append(where, "installment_total > 1", "(parent_installment_id IS NULL OR parent_installment_id = '')")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE `+strings.Join(where, " AND ")+` ORDER BY date, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                                   core.Transaction
		date                                string
		cat, acct, card, parent, url, notes sql.NullString
	)
	if err := s.Scan(&t.ID, &date, &t.Description, &t.Amount, &cat, &acct, &card,
		&t.InstallmentNo, &t.InstallmentTotal, &parent, &url, &notes); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.CategoryID, t.AccountID, t.CardID = cat.String, acct.String, card.String
	t.ParentInstallmentID, t.AttachmentURL, t.Notes = parent.String, url.String, notes.String
	return t, nil
}

func patchAssignments(p core.TransactionPatch) ([]string, []any) {
	var set []string
	var args []any
	add := func(col string, v any) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}
	if p.Date != nil {
		add("date", p.Date.String())
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Amount != nil {
		add("amount", core.SafeAmount(*p.Amount))
	}
	if p.CategoryID != nil {
		add("category_id", nullable(*p.CategoryID))
	}
	if p.AccountID != nil {
		add("account_id", nullable(*p.AccountID))
	}
	if p.CardID != nil {
		add("card_id", nullable(*p.CardID))
	}
	if p.ParentInstallmentID != nil {
		add("parent_installment_id", nullable(*p.ParentInstallmentID))
	}
	if p.AttachmentURL != nil {
		add("attachment_url", nullable(*p.AttachmentURL))
	}
	if p.Notes != nil {
		add("notes", nullable(*p.Notes))
	}
	return set, args
}

// nullable stores empty references as NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
