package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// ErrFirstInstallmentMissing means a group cannot be linked because its
// installment 1 row no longer exists.
var ErrFirstInstallmentMissing = errors.New("first installment not found")

var (
	sweepStart = core.NewDate(1900, 1, 1)
	sweepEnd   = core.NewDate(9999, 12, 31)
)

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Groups  int `json:"groups"`
	Linked  int `json:"linked"`
	Orphans int `json:"orphans"`
	Failed  int `json:"failed"`
}

// Reconciler links installment rows that were inserted but never linked to
// their first row. It only runs when called; the ledger write path never
// compensates on its own.
type Reconciler struct {
	store  ledger.TransactionStore
	ledger *ledger.Ledger
	logger *log.Logger

	mu sync.Mutex // one pass at a time
}

func NewReconciler(store ledger.TransactionStore, l *ledger.Ledger, logger *log.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		ledger: l,
		logger: log.OrDiscard(logger).WithComponent(log.ComponentReconcile),
	}
}

// Sweep finds every unlinked installment row, rebuilds the groups they were
// expanded from and links each group to its installment 1 row. Rows whose
// first installment cannot be found are counted as orphans and left alone.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.store.QueryRange(ctx, sweepStart, sweepEnd, core.Filter{UnlinkedInstallments: true})
	if err != nil {
		return SweepResult{}, fmt.Errorf("query unlinked installments: %w", err)
	}

	var res SweepResult
	groups, orphans := regroup(rows)
	res.Orphans = orphans
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Groups++
		if _, err := r.ledger.LinkInstallments(ctx, g); err != nil {
			res.Failed++
			r.logger.WarnContext(ctx, "Failed to link installment group",
				log.FieldParentID, g[0].ID, log.FieldRows, len(g), log.FieldError, err)
			continue
		}
		res.Linked += len(g)
	}

	if res.Groups > 0 || res.Orphans > 0 {
		r.logger.InfoContext(ctx, "Reconciliation sweep finished",
			log.FieldOperation, log.OpReconcile,
			"groups", res.Groups, "linked", res.Linked, "orphans", res.Orphans, "failed", res.Failed)
	}
	return res, nil
}

// LinkIDs links the rows of one group, typically announced by an
// installments.unlinked event. Rows already linked are skipped.
func (r *Reconciler) LinkIDs(ctx context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([]core.Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := r.store.Get(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue // removed since the event was published
		}
		if err != nil {
			return 0, fmt.Errorf("get transaction %s: %w", id, err)
		}
		if t.ParentInstallmentID == "" && t.IsInstallment() {
			rows = append(rows, t)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	slices.SortStableFunc(rows, func(a, b core.Transaction) int { return a.InstallmentNo - b.InstallmentNo })
	if rows[0].InstallmentNo != 1 {
		return 0, fmt.Errorf("link installments with %s: %w", rows[0].ID, ErrFirstInstallmentMissing)
	}
	linked, err := r.ledger.LinkInstallments(ctx, rows)
	if err != nil {
		return 0, err
	}
	r.logger.InfoContext(ctx, "Linked announced installments",
		log.FieldOperation, log.OpLink, log.FieldParentID, rows[0].ID, log.FieldRows, len(linked))
	return len(linked), nil
}

// Run sweeps immediately and then every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "Reconciler started", "interval", interval)
	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "Reconciliation sweep failed", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Reconciler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// siblingKey identifies rows that may come from the same purchase.
type siblingKey struct {
	description string
	amount      string
	total       int
	category    string
	account     string
	card        string
}

func keyOf(t core.Transaction) siblingKey {
	return siblingKey{
		description: t.Description,
		amount:      strconv.FormatFloat(t.Amount, 'f', 2, 64),
		total:       t.InstallmentTotal,
		category:    t.CategoryID,
		account:     t.AccountID,
		card:        t.CardID,
	}
}

// regroup rebuilds installment groups. Installment i of a group is dated
// exactly AddMonths(i-1) from installment 1, which tells apart purchases
// that share everything but the origin date. Each returned group starts
// with installment 1.
func regroup(rows []core.Transaction) (groups [][]core.Transaction, orphans int) {
	type slot struct {
		key  siblingKey
		no   int
		date string
	}
	bySlot := make(map[slot][]int)
	var firsts []int
	for i, t := range rows {
		if t.InstallmentNo == 1 {
			firsts = append(firsts, i)
			continue
		}
		s := slot{keyOf(t), t.InstallmentNo, t.Date.String()}
		bySlot[s] = append(bySlot[s], i)
	}
	slices.SortStableFunc(firsts, func(a, b int) int { return rows[a].Date.Time.Compare(rows[b].Date.Time) })

	claimed := make(map[int]bool, len(rows))
	for _, fi := range firsts {
		first := rows[fi]
		g := []core.Transaction{first}
		claimed[fi] = true
		for no := 2; no <= first.InstallmentTotal; no++ {
			s := slot{keyOf(first), no, first.Date.AddMonths(no - 1).String()}
			cands := bySlot[s]
			if len(cands) == 0 {
				continue
			}
			idx := cands[0]
			bySlot[s] = cands[1:]
			claimed[idx] = true
			g = append(g, rows[idx])
		}
		groups = append(groups, g)
	}
	return groups, len(rows) - len(claimed)
}
