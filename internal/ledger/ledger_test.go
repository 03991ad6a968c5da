package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/storage/memory"
)

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

// flakyStore fails UpdateMany or InsertMany on demand.
type flakyStore struct {
	*memory.Store
	failInsert error
	failUpdate error
}

func (f *flakyStore) InsertMany(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	if f.failInsert != nil {
		return nil, f.failInsert
	}
	return f.Store.InsertMany(ctx, rows)
}

func (f *flakyStore) UpdateMany(ctx context.Context, ids []string, p core.TransactionPatch) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	return f.Store.UpdateMany(ctx, ids, p)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ledger.Event
	err    error
}

func (r *recordingPublisher) PublishLedgerEvent(_ context.Context, ev ledger.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type memAttachments struct {
	keys []string
	body []byte
}

func (m *memAttachments) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	m.body = b
	return "mem://" + key, nil
}

func TestExpandInstallments(t *testing.T) {
	in := core.Transaction{Date: date(t, "2025-01-15"), Description: "TV", Amount: -300, CardID: "visa"}

	rows, err := ledger.ExpandInstallments(in, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []string{"2025-01-15", "2025-02-15", "2025-03-15"} {
		assert.Equal(t, want, rows[i].Date.String())
		assert.Equal(t, i+1, rows[i].InstallmentNo)
		assert.Equal(t, 3, rows[i].InstallmentTotal)
		assert.Equal(t, -300.0, rows[i].Amount, "each row keeps the full amount")
		assert.Equal(t, "visa", rows[i].CardID)
	}

	single, err := ledger.ExpandInstallments(in, 1)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, 0, single[0].InstallmentTotal)
	assert.Equal(t, 1, single[0].InstallmentNo)

	eom, err := ledger.ExpandInstallments(core.Transaction{Date: date(t, "2025-01-31"), Description: "x"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", eom[1].Date.String())
	assert.Equal(t, "2025-03-31", eom[2].Date.String())

	_, err = ledger.ExpandInstallments(in, 0)
	assert.ErrorIs(t, err, core.ErrInvalidInstallment)
	_, err = ledger.ExpandInstallments(in, core.MaxInstallments+1)
	assert.ErrorIs(t, err, core.ErrInvalidInstallment)
}

func TestAdd_LinksAllRowsToFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	pub := &recordingPublisher{}
	changes := 0
	l := ledger.New(store, ledger.WithEvents(pub), ledger.WithChangeHook(func() { changes++ }))

	rows, err := l.Add(ctx, ledger.AddInput{
		Transaction:  core.Transaction{Date: date(t, "2025-01-15"), Description: "Notebook", Amount: -1200},
		Installments: 3,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	parent := rows[0].ID
	for _, r := range rows {
		assert.Equal(t, parent, r.ParentInstallmentID)
		stored, err := store.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, parent, stored.ParentInstallmentID)
	}
	assert.Equal(t, []string{ledger.EventTransactionsCreated}, pub.types())
	assert.Equal(t, 2, changes)
}

func TestAdd_SingleRowSkipsLinking(t *testing.T) {
	store := &flakyStore{Store: memory.New(nil), failUpdate: errors.New("must not be called")}
	l := ledger.New(store)

	rows, err := l.Add(context.Background(), ledger.AddInput{
		Transaction: core.Transaction{Date: date(t, "2025-05-02"), Description: "Salário", Amount: 5000},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].ParentInstallmentID)
	assert.Equal(t, 0, rows[0].InstallmentTotal)
}

func TestAdd_LinkFailureLeavesRowsUnlinked(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	store := &flakyStore{Store: memory.New(nil), failUpdate: boom}
	pub := &recordingPublisher{}
	l := ledger.New(store, ledger.WithEvents(pub))

	rows, err := l.Add(ctx, ledger.AddInput{
		Transaction:  core.Transaction{Date: date(t, "2025-01-15"), Description: "Sofá", Amount: -900},
		Installments: 4,
	})
	require.Error(t, err)
	require.Len(t, rows, 4, "inserted rows are still returned")

	var unlinked *ledger.UnlinkedError
	require.ErrorAs(t, err, &unlinked)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, unlinked.IDs, 4)

	stored, err := store.QueryRange(ctx, date(t, "2025-01-01"), date(t, "2025-12-31"), core.Filter{UnlinkedInstallments: true})
	require.NoError(t, err)
	assert.Len(t, stored, 4)
	assert.Equal(t, []string{ledger.EventTransactionsCreated, ledger.EventInstallmentsUnlinked}, pub.types())
}

func TestAdd_InsertFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	store := &flakyStore{Store: memory.New(nil), failInsert: boom}
	l := ledger.New(store)

	rows, err := l.Add(ctx, ledger.AddInput{
		Transaction:  core.Transaction{Date: date(t, "2025-01-15"), Description: "x", Amount: -1},
		Installments: 2,
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, rows)

	var unlinked *ledger.UnlinkedError
	assert.False(t, errors.As(err, &unlinked))
}

func TestAdd_Validation(t *testing.T) {
	l := ledger.New(memory.New(nil))
	ctx := context.Background()

	tests := []struct {
		name string
		in   ledger.AddInput
		want error
	}{
		{"markup only description", ledger.AddInput{Transaction: core.Transaction{Date: date(t, "2025-01-01"), Description: "<b></b>"}}, core.ErrEmptyDescription},
		{"missing date", ledger.AddInput{Transaction: core.Transaction{Description: "x"}}, core.ErrZeroDate},
		{"account and card", ledger.AddInput{Transaction: core.Transaction{Date: date(t, "2025-01-01"), Description: "x", AccountID: "a", CardID: "c"}}, core.ErrSourceConflict},
		{"too many installments", ledger.AddInput{Transaction: core.Transaction{Date: date(t, "2025-01-01"), Description: "x"}, Installments: 421}, core.ErrInvalidInstallment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Add(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAdd_IgnoresCallerGroupingFields(t *testing.T) {
	l := ledger.New(memory.New(nil))

	rows, err := l.Add(context.Background(), ledger.AddInput{
		Transaction: core.Transaction{
			ID:                  "client-id",
			Date:                date(t, "2025-01-10"),
			Description:         "Geladeira",
			Amount:              -400,
			InstallmentNo:       7,
			InstallmentTotal:    999,
			ParentInstallmentID: "other",
		},
		Installments: 2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for i, r := range rows {
		assert.NotEqual(t, "client-id", r.ID)
		assert.Equal(t, i+1, r.InstallmentNo)
		assert.Equal(t, 2, r.InstallmentTotal)
		assert.Equal(t, rows[0].ID, r.ParentInstallmentID)
	}

	single, err := l.Add(context.Background(), ledger.AddInput{
		Transaction: core.Transaction{Date: date(t, "2025-01-10"), Description: "Café", Amount: -5, InstallmentTotal: 3},
	})
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, 0, single[0].InstallmentTotal)
	assert.Empty(t, single[0].ParentInstallmentID)
}

func TestAdd_SanitizesDescription(t *testing.T) {
	l := ledger.New(memory.New(nil))
	rows, err := l.Add(context.Background(), ledger.AddInput{
		Transaction: core.Transaction{Date: date(t, "2025-01-01"), Description: "  <script>x</script><b>M&amp;M</b>   store ", Amount: -3},
	})
	require.NoError(t, err)
	assert.Equal(t, "M&M store", rows[0].Description)
}

func TestUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	pub := &recordingPublisher{err: errors.New("broker down")}
	l := ledger.New(store, ledger.WithEvents(pub))

	rows, err := l.Add(ctx, ledger.AddInput{Transaction: core.Transaction{Date: date(t, "2025-02-01"), Description: "Aluguel", Amount: -1500}})
	require.NoError(t, err, "publish failures never fail the write")
	id := rows[0].ID

	amount := -1600.0
	got, err := l.Update(ctx, id, core.TransactionPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, -1600.0, got.Amount)
	assert.Equal(t, "Aluguel", got.Description)

	_, err = l.Update(ctx, id, core.TransactionPatch{})
	assert.ErrorIs(t, err, core.ErrEmptyPatch)

	card := "visa"
	_, err = l.Update(ctx, id, core.TransactionPatch{CardID: &card, AccountID: &card})
	assert.ErrorIs(t, err, core.ErrSourceConflict)

	_, err = l.Update(ctx, "missing", core.TransactionPatch{Amount: &amount})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, l.Remove(ctx, id))
	assert.ErrorIs(t, l.Remove(ctx, id), core.ErrNotFound)
	assert.Equal(t, []string{ledger.EventTransactionsCreated, ledger.EventTransactionsUpdated, ledger.EventTransactionsDeleted}, pub.types())
}

func TestListByRange(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(nil))
	_, err := l.Add(ctx, ledger.AddInput{
		Transaction:  core.Transaction{Date: date(t, "2025-01-15"), Description: "Curso", Amount: -100},
		Installments: 6,
	})
	require.NoError(t, err)

	rows, err := l.ListByRange(ctx, date(t, "2025-02-01"), date(t, "2025-03-31"), core.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].InstallmentNo)
	assert.Equal(t, 3, rows[1].InstallmentNo)

	_, err = l.ListByRange(ctx, date(t, "2025-03-01"), date(t, "2025-02-01"), core.Filter{})
	assert.ErrorIs(t, err, ledger.ErrInvalidRange)
}

func TestUploadAttachment(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	att := &memAttachments{}

	noAttach := ledger.New(store)
	_, err := noAttach.UploadAttachment(ctx, "x", "r.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ledger.ErrAttachmentsDisabled)

	l := ledger.New(store, ledger.WithAttachments(att))
	rows, err := l.Add(ctx, ledger.AddInput{Transaction: core.Transaction{Date: date(t, "2025-02-01"), Description: "Farmácia", Amount: -40}})
	require.NoError(t, err)

	got, err := l.UploadAttachment(ctx, rows[0].ID, "Recibo.PDF", "application/pdf", bytes.NewReader([]byte("%PDF")))
	require.NoError(t, err)
	require.Len(t, att.keys, 1)
	assert.True(t, strings.HasPrefix(att.keys[0], "transactions/"+rows[0].ID+"/"))
	assert.True(t, strings.HasSuffix(att.keys[0], ".pdf"))
	assert.Equal(t, "mem://"+att.keys[0], got.AttachmentURL)
	assert.Equal(t, []byte("%PDF"), att.body)

	_, err = l.UploadAttachment(ctx, "missing", "r.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
