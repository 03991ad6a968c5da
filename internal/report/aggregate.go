// Package report rolls transactions already selected for a period into
// totals, monthly buckets and a category breakdown.
package report

import (
	"math"
	"slices"
	"strings"

	"carteira/internal/core"
)

// UncategorizedName labels expenses with no resolvable category.
const UncategorizedName = "Outros"

type (
	Totals struct {
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
		Balance float64 `json:"balance"`
	}

	MonthBucket struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Totals
	}
)

func (t *Totals) add(amount float64) {
	amount = core.SafeAmount(amount)
	switch {
	case amount > 0:
		t.Income += amount
	case amount < 0:
		t.Expense += math.Abs(amount)
	}
	t.Balance = t.Income - t.Expense
}

// Sum folds transactions into income, expense (as a positive value) and
// balance.
func Sum(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		t.add(tx.Amount)
	}
	return t
}

// MonthlyBuckets accumulates by the month of each date into January through
// December of year. Rows are not filtered by year.
func MonthlyBuckets(txs []core.Transaction, year int) [12]MonthBucket {
	var out [12]MonthBucket
	for i := range out {
		out[i].Year = year
		out[i].Month = i + 1
	}
	for _, tx := range txs {
		if tx.Date.IsEmpty() {
			continue
		}
		out[tx.Date.Month()-1].add(tx.Amount)
	}
	return out
}

// ByCategory sums absolute expense amounts per resolved category name and
// sorts descending. names maps category id to display name.
func ByCategory(txs []core.Transaction, names map[string]string) []core.CategoryAmount {
	idx := make(map[string]int)
	var out []core.CategoryAmount
	for _, tx := range txs {
		amount := core.SafeAmount(tx.Amount)
		if amount >= 0 {
			continue
		}
		id := tx.CategoryID
		name, ok := names[id]
		if id == "" || !ok || strings.TrimSpace(name) == "" {
			id, name = "", UncategorizedName
		}
		i, seen := idx[name]
		if !seen {
			i = len(out)
			idx[name] = i
			out = append(out, core.CategoryAmount{CategoryID: id, Name: name})
		}
		out[i].Amount += math.Abs(amount)
	}

	slices.SortStableFunc(out, func(a, b core.CategoryAmount) int {
		switch {
		case a.Amount > b.Amount:
			return -1
		case a.Amount < b.Amount:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// CategoryNames indexes categories by id.
func CategoryNames(cats []core.Category) map[string]string {
	m := make(map[string]string, len(cats))
	for _, c := range cats {
		m[c.ID] = c.Name
	}
	return m
}
