// Package insights derives textual signals from transactions and the
// supporting collections. Every heuristic is pure and skips silently when its
// inputs are insufficient.
package insights

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"

	"carteira/internal/core"
)

// Insight kinds.
const (
	KindCategoryVariance = "category_variance"
	KindHighestGrowth    = "highest_growth"
	KindBudgetThreshold  = "budget_threshold"
	KindRecurring        = "recurring_bill"
	KindRewardExpiring   = "reward_expiring"
	KindBillDue          = "bill_due"
	KindGoalDeadline     = "goal_deadline"
)

// Input is the data every heuristic reads from.
type Input struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Bills        []core.Bill
	Goals        []core.Goal
	Rewards      []core.Reward
}

// Engine runs the heuristics with a fixed set of thresholds.
type Engine struct {
	th Thresholds
}

func New(th Thresholds) *Engine {
	return &Engine{th: th}
}

// Build runs every heuristic against now and concatenates their output.
func (e *Engine) Build(in Input, now time.Time) []core.Insight {
	today := core.DateOf(now)
	names := categoryNames(in.Categories)

	var out []core.Insight
	monthly := monthlyExpenseByCategory(in.Transactions)
	for _, id := range monthly.order {
		if v, ok := monthly.variance(id); ok {
			out = append(out, varianceInsight(id, names, v))
		}
	}
	if v, ok := HighestGrowth(in.Transactions); ok {
		out = append(out, core.Insight{
			ID:   fmt.Sprintf("growth:%s:%s", v.CategoryID, v.Current),
			Kind: KindHighestGrowth,
			Message: fmt.Sprintf("%s teve o maior crescimento de gastos: +%.0f%% em %s",
				nameOf(v.CategoryID, names), v.Percent, v.Current),
		})
	}
	out = append(out, e.BudgetAlerts(in.Transactions, in.Categories, today)...)
	out = append(out, e.RecurringBills(in.Transactions)...)
	out = append(out, e.ExpiringRewards(in.Rewards, today)...)
	out = append(out, e.DueBills(in.Bills, today)...)
	out = append(out, e.GoalDeadlines(in.Goals, today)...)
	return out
}

// Variance is a month-over-month change of one category's expense.
type Variance struct {
	CategoryID string
	Previous   string // YYYY-MM
	Current    string // YYYY-MM
	PrevSum    float64
	CurSum     float64
	Percent    float64
}

// CategoryVariance compares the category's absolute expense in its two most
// recent months with data. ok is false with fewer than two months or when
// the earlier month sums to zero.
func CategoryVariance(txs []core.Transaction, categoryID string) (Variance, bool) {
	return monthlyExpenseByCategory(txs).variance(categoryID)
}

// HighestGrowth returns the category with the largest positive variance.
// On ties the category seen first wins.
func HighestGrowth(txs []core.Transaction) (Variance, bool) {
	m := monthlyExpenseByCategory(txs)
	var best Variance
	found := false
	for _, id := range m.order {
		v, ok := m.variance(id)
		if !ok || v.Percent <= 0 {
			continue
		}
		if !found || v.Percent > best.Percent {
			best, found = v, true
		}
	}
	return best, found
}

// BudgetAlerts flags categories whose spend in today's month reached the
// alert ratio of their budget limit.
func (e *Engine) BudgetAlerts(txs []core.Transaction, cats []core.Category, today core.Date) []core.Insight {
	month := today.MonthKey()
	spent := make(map[string]float64)
	for _, tx := range txs {
		if tx.CategoryID == "" || !tx.IsExpense() || tx.Date.MonthKey() != month {
			continue
		}
		spent[tx.CategoryID] += math.Abs(core.SafeAmount(tx.Amount))
	}

	var out []core.Insight
	for _, c := range cats {
		if c.BudgetLimit == nil || core.SafeAmount(*c.BudgetLimit) <= 0 {
			continue
		}
		limit := *c.BudgetLimit
		ratio := spent[c.ID] / limit
		if ratio < e.th.BudgetAlertRatio {
			continue
		}
		out = append(out, core.Insight{
			ID:   fmt.Sprintf("budget:%s:%s", c.ID, month),
			Kind: KindBudgetThreshold,
			Message: fmt.Sprintf("%s já consumiu %.0f%% do orçamento de %s (%s de %s)",
				c.Name, ratio*100, month, money(spent[c.ID]), money(limit)),
		})
	}
	return out
}

// RecurringBills finds expense groups sharing a normalized description whose
// dates follow a steady cadence and whose amounts stay close to their mean.
func (e *Engine) RecurringBills(txs []core.Transaction) []core.Insight {
	groups := make(map[string][]core.Transaction)
	var order []string
	for _, tx := range txs {
		if !tx.IsExpense() || tx.Date.IsEmpty() {
			continue
		}
		key := NormalizeDescription(tx.Description)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], tx)
	}

	var out []core.Insight
	for _, key := range order {
		g := groups[key]
		avgAmount, avgGap, ok := e.isRecurring(g)
		if !ok {
			continue
		}
		out = append(out, core.Insight{
			ID:   "recurring:" + strings.ReplaceAll(key, " ", "-"),
			Kind: KindRecurring,
			Message: fmt.Sprintf("%q parece recorrente: %d ocorrências a cada ~%.0f dias, cerca de %s",
				key, len(g), avgGap, money(avgAmount)),
		})
	}
	return out
}

func (e *Engine) isRecurring(g []core.Transaction) (avgAmount, avgGap float64, ok bool) {
	if len(g) < e.th.RecurringMinOccurrences || len(g) < 2 {
		return 0, 0, false
	}
	g = slices.Clone(g)
	slices.SortStableFunc(g, func(a, b core.Transaction) int { return a.Date.Compare(b.Date.Time) })

	gaps := make([]float64, len(g)-1)
	for i := 1; i < len(g); i++ {
		gaps[i-1] = float64(g[i-1].Date.DaysUntil(g[i].Date))
	}
	avgGap = mean(gaps)
	for _, gap := range gaps {
		if math.Abs(gap-avgGap) > e.th.RecurringDayTolerance {
			return 0, 0, false
		}
	}

	amounts := make([]float64, len(g))
	for i, tx := range g {
		amounts[i] = math.Abs(core.SafeAmount(tx.Amount))
	}
	avgAmount = mean(amounts)
	for _, a := range amounts {
		if math.Abs(a-avgAmount) > e.th.RecurringAmountTolerance*avgAmount {
			return 0, 0, false
		}
	}
	return avgAmount, avgGap, true
}

// ExpiringRewards lists rewards with points expiring within the window.
func (e *Engine) ExpiringRewards(rewards []core.Reward, today core.Date) []core.Insight {
	var out []core.Insight
	for _, r := range rewards {
		if r.Points <= 0 || !within(r.ExpiresAt, today, e.th.RewardExpiryDays) {
			continue
		}
		out = append(out, core.Insight{
			ID:   "reward:" + r.ID,
			Kind: KindRewardExpiring,
			Message: fmt.Sprintf("%.0f pontos de %s expiram em %d dias (%s)",
				r.Points, r.Program, today.DaysUntil(r.ExpiresAt), r.ExpiresAt),
		})
	}
	return out
}

// DueBills lists unpaid bills due within the window.
func (e *Engine) DueBills(bills []core.Bill, today core.Date) []core.Insight {
	var out []core.Insight
	for _, b := range bills {
		if b.Paid || !within(b.DueDate, today, e.th.BillDueDays) {
			continue
		}
		out = append(out, core.Insight{
			ID:   "bill:" + b.ID + ":" + b.DueDate.String(),
			Kind: KindBillDue,
			Message: fmt.Sprintf("%s de %s vence em %d dias (%s)",
				b.Name, money(b.Amount), today.DaysUntil(b.DueDate), b.DueDate),
		})
	}
	return out
}

// GoalDeadlines lists incomplete goals whose deadline falls within the window.
func (e *Engine) GoalDeadlines(goals []core.Goal, today core.Date) []core.Insight {
	var out []core.Insight
	for _, g := range goals {
		if g.IsComplete() || !within(g.Deadline, today, e.th.GoalDeadlineDays) {
			continue
		}
		out = append(out, core.Insight{
			ID:   "goal:" + g.ID,
			Kind: KindGoalDeadline,
			Message: fmt.Sprintf("Meta %s termina em %d dias e ainda faltam %s",
				g.Name, today.DaysUntil(g.Deadline), money(g.Remaining())),
		})
	}
	return out
}

// NormalizeDescription case-folds, drops digits and collapses whitespace.
func NormalizeDescription(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

type monthlySums struct {
	order []string
	sums  map[string]map[string]float64 // category -> YYYY-MM -> abs expense
}

func monthlyExpenseByCategory(txs []core.Transaction) monthlySums {
	m := monthlySums{sums: make(map[string]map[string]float64)}
	for _, tx := range txs {
		if tx.CategoryID == "" || !tx.IsExpense() || tx.Date.IsEmpty() {
			continue
		}
		byMonth, ok := m.sums[tx.CategoryID]
		if !ok {
			byMonth = make(map[string]float64)
			m.sums[tx.CategoryID] = byMonth
			m.order = append(m.order, tx.CategoryID)
		}
		byMonth[tx.Date.MonthKey()] += math.Abs(core.SafeAmount(tx.Amount))
	}
	return m
}

func (m monthlySums) variance(categoryID string) (Variance, bool) {
	byMonth := m.sums[categoryID]
	if len(byMonth) < 2 {
		return Variance{}, false
	}
	months := make([]string, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	slices.Sort(months)
	prev, cur := months[len(months)-2], months[len(months)-1]
	if prev != previousMonthKey(cur) || byMonth[prev] == 0 {
		return Variance{}, false
	}
	return Variance{
		CategoryID: categoryID,
		Previous:   prev,
		Current:    cur,
		PrevSum:    byMonth[prev],
		CurSum:     byMonth[cur],
		Percent:    (byMonth[cur] - byMonth[prev]) / byMonth[prev] * 100,
	}, true
}

// previousMonthKey returns the YYYY-MM key of the month before key.
func previousMonthKey(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return ""
	}
	return t.AddDate(0, -1, 0).Format("2006-01")
}

func varianceInsight(id string, names map[string]string, v Variance) core.Insight {
	verb := "subiram"
	if v.Percent < 0 {
		verb = "caíram"
	}
	return core.Insight{
		ID:   fmt.Sprintf("variance:%s:%s", id, v.Current),
		Kind: KindCategoryVariance,
		Message: fmt.Sprintf("Gastos com %s %s %.0f%% em %s comparado a %s",
			nameOf(id, names), verb, math.Abs(v.Percent), v.Current, v.Previous),
	}
}

func categoryNames(cats []core.Category) map[string]string {
	m := make(map[string]string, len(cats))
	for _, c := range cats {
		m[c.ID] = c.Name
	}
	return m
}

func nameOf(id string, names map[string]string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

// within reports whether d falls in [today, today+days].
func within(d, today core.Date, days int) bool {
	if d.IsEmpty() {
		return false
	}
	return !d.Before(today) && !d.After(today.AddDays(days))
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func money(v float64) string {
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", core.SafeAmount(v)), ".", ",", 1)
}
