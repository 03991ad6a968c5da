package ledger

import (
	"fmt"

	"carteira/internal/core"
)

// UnlinkedError reports that an installment batch was inserted but the
// second write linking the rows to their parent failed. The rows exist and
// are individually valid.
type UnlinkedError struct {
	IDs []string
	Err error
}

func (e *UnlinkedError) Error() string {
	return fmt.Sprintf("link %d installment rows: %v", len(e.IDs), e.Err)
}

func (e *UnlinkedError) Unwrap() error { return e.Err }

// ExpandInstallments turns one purchase into n monthly rows. Row i is dated
// i-1 months after the purchase and carries the full original amount. A
// single-row purchase keeps installment_total unset.
func ExpandInstallments(in core.Transaction, n int) ([]core.Transaction, error) {
	if n < 1 || n > core.MaxInstallments {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidInstallment, n)
	}

	total := n
	if n == 1 {
		total = 0
	}

	rows := make([]core.Transaction, n)
	for i := range rows {
		row := in
		row.ID = ""
		row.ParentInstallmentID = ""
		row.Date = in.Date.AddMonths(i)
		row.InstallmentNo = i + 1
		row.InstallmentTotal = total
		rows[i] = row
	}
	return rows, nil
}

// ParentOf returns the id every sibling is linked to: the first row of the batch.
func ParentOf(rows []core.Transaction) string {
	if len(rows) == 0 {
		return ""
	}
	return rows[0].ID
}

func ids(rows []core.Transaction) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
