package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/period"
)

type entry struct {
	tx  core.Transaction
	seq int
}

// Store keeps every collection in process memory. Values are copied on the
// way in and on the way out.
type Store struct {
	mu      sync.Mutex
	seq     int
	txs     map[string]entry
	cats    map[string]core.Category
	cards   map[string]core.CreditCard
	accts   map[string]core.Account
	bills   map[string]core.Bill
	goals   map[string]core.Goal
	rewards map[string]core.Reward
	prefs   *period.MemoryStore
}

func New(cats []core.Category) *Store {
	s := &Store{
		txs:     make(map[string]entry),
		cats:    make(map[string]core.Category),
		cards:   make(map[string]core.CreditCard),
		accts:   make(map[string]core.Account),
		bills:   make(map[string]core.Bill),
		goals:   make(map[string]core.Goal),
		rewards: make(map[string]core.Reward),
		prefs:   period.NewMemoryStore(),
	}
	for _, c := range cats {
		s.cats[c.ID] = c
	}
	return s
}

// NewFromFiles seeds expense categories from base/seed_categories.txt, one
// name per line.
func NewFromFiles(base string) *Store {
	names := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(names) == 0 {
		names = []string{"Alimentação", "Moradia", "Transporte"}
	}
	cats := make([]core.Category, 0, len(names))
	for _, n := range names {
		cats = append(cats, core.Category{ID: slug(n), Name: n, Kind: core.KindExpense})
	}
	return New(cats)
}

func (s *Store) InsertMany(_ context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		r.ID = uuid.NewString()
		s.seq++
		s.txs[r.ID] = entry{tx: r, seq: s.seq}
		out[i] = r
	}
	return out, nil
}

// UpdateMany applies patch to every id, or to none when any id is missing.
func (s *Store) UpdateMany(_ context.Context, ids []string, patch core.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.txs[id]; !ok {
			return fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
		}
	}
	for _, id := range ids {
		e := s.txs[id]
		e.tx = patch.Apply(e.tx)
		s.txs[id] = e
	}
	return nil
}

func (s *Store) DeleteOne(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	return e.tx, nil
}

// QueryRange returns matching rows ordered by date, then insertion order.
func (s *Store) QueryRange(_ context.Context, start, end core.Date, f core.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	matched := make([]entry, 0, len(s.txs))
	for _, e := range s.txs {
		if e.tx.Date.Between(start, end) && f.Match(e.tx) {
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(matched, func(a, b entry) int {
		if c := a.tx.Date.Compare(b.tx.Date.Time); c != 0 {
			return c
		}
		return a.seq - b.seq
	})
	out := make([]core.Transaction, len(matched))
	for i, e := range matched {
		out[i] = e.tx
	}
	return out, nil
}

// Preferences is the key-value store backing the period container.
func (s *Store) Preferences() period.KeyValuePort { return s.prefs }

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.cats, func(c core.Category) string { return c.Name + "\x00" + c.ID }), nil
}

func (s *Store) PutCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cats[c.ID] = c
	return nil
}

func (s *Store) ListCards(_ context.Context) ([]core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.cards, func(c core.CreditCard) string { return c.Name + "\x00" + c.ID }), nil
}

func (s *Store) GetCard(_ context.Context, id string) (core.CreditCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return core.CreditCard{}, fmt.Errorf("card %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) PutCard(_ context.Context, c core.CreditCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.accts, func(a core.Account) string { return a.Name + "\x00" + a.ID }), nil
}

func (s *Store) PutAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accts[a.ID] = a
	return nil
}

func (s *Store) ListBills(_ context.Context) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.bills, func(b core.Bill) string { return b.DueDate.String() + b.ID }), nil
}

func (s *Store) PutBill(_ context.Context, b core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.ID] = b
	return nil
}

func (s *Store) ListGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.goals, func(g core.Goal) string { return g.Deadline.String() + g.ID }), nil
}

func (s *Store) PutGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *Store) ListRewards(_ context.Context) ([]core.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.rewards, func(r core.Reward) string { return r.ExpiresAt.String() + r.ID }), nil
}

func (s *Store) PutReward(_ context.Context, r core.Reward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[r.ID] = r
	return nil
}

func (s *Store) Close() error { return nil }

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return strings.Compare(key(a), key(b)) })
	return out
}

func slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupeSorted(out)
}

func dedupeSorted(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
