package period

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }

func TestRange(t *testing.T) {
	tests := []struct {
		name       string
		state      State
		start, end string
	}{
		{"monthly march", State{Mode: Monthly, Month: 3, Year: 2025}, "2025-03-01", "2025-03-31"},
		{"yearly", State{Mode: Yearly, Year: 2025}, "2025-01-01", "2025-12-31"},
		{"february leap year", State{Mode: Monthly, Month: 2, Year: 2024}, "2024-02-01", "2024-02-29"},
		{"february common year", State{Mode: Monthly, Month: 2, Year: 2025}, "2025-02-01", "2025-02-28"},
		{"yearly ignores month", State{Mode: Yearly, Month: 7, Year: 2023}, "2023-01-01", "2023-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Range(tt.state)
			assert.Equal(t, tt.start, r.Start.String())
			assert.Equal(t, tt.end, r.End.String())
		})
	}
}

func TestNewContainer_Defaults(t *testing.T) {
	c, err := NewContainer(context.Background(), Options{Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, State{Mode: Monthly, Month: 10, Year: 2026}, c.Get())
}

func TestNewContainer_Precedence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, DefaultStorageKey, `{"mode":"yearly","year":2024}`))

	t.Run("storage overrides defaults", func(t *testing.T) {
		c, err := NewContainer(ctx, Options{Store: store, Now: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, State{Mode: Yearly, Month: 10, Year: 2024}, c.Get())
	})

	t.Run("query overrides storage", func(t *testing.T) {
		q := NewMemoryQuery("mode=monthly&month=3&year=2025")
		c, err := NewContainer(ctx, Options{Query: q, Store: store, Now: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, State{Mode: Monthly, Month: 3, Year: 2025}, c.Get())
	})

	t.Run("query fields merge per field", func(t *testing.T) {
		q := NewMemoryQuery("year=2022")
		c, err := NewContainer(ctx, Options{Query: q, Store: store, Now: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, State{Mode: Yearly, Month: 10, Year: 2022}, c.Get())
	})

	t.Run("malformed query fields are ignored", func(t *testing.T) {
		q := NewMemoryQuery("mode=quarterly&month=13&year=abc")
		c, err := NewContainer(ctx, Options{Query: q, Store: store, Now: fixedNow})
		require.NoError(t, err)
		assert.Equal(t, State{Mode: Yearly, Month: 10, Year: 2024}, c.Get())
	})
}

func TestNewContainer_CorruptStorage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, DefaultStorageKey, "{not json"))

	c, err := NewContainer(ctx, Options{Store: store, Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, State{Mode: Monthly, Month: 10, Year: 2026}, c.Get())
}

func TestNewContainer_StorageReadError(t *testing.T) {
	boom := errors.New("disk gone")
	c, err := NewContainer(context.Background(), Options{Store: failingStore{err: boom}, Now: fixedNow})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, c)
	assert.Equal(t, Monthly, c.Get().Mode)
}

func TestContainer_SetWritesThrough(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := NewMemoryQuery("tab=charts")
	c, err := NewContainer(ctx, Options{Query: q, Store: store, Now: fixedNow})
	require.NoError(t, err)

	s, err := c.SetMonth(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, State{Mode: Monthly, Month: 3, Year: 2026}, s)
	assert.Equal(t, "mode=monthly&month=3&tab=charts&year=2026", q.Query())
	raw, ok, _ := store.Get(ctx, DefaultStorageKey)
	require.True(t, ok)
	assert.JSONEq(t, `{"mode":"monthly","month":3,"year":2026}`, raw)

	s, err = c.SetMode(ctx, Yearly)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Month, "month survives in memory")
	assert.Equal(t, "mode=yearly&tab=charts&year=2026", q.Query())
	raw, _, _ = store.Get(ctx, DefaultStorageKey)
	assert.JSONEq(t, `{"mode":"yearly","year":2026}`, raw)

	s, err = c.SetYear(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2025", s.Key())

	s, err = c.SetMode(ctx, Monthly)
	require.NoError(t, err)
	assert.Equal(t, State{Mode: Monthly, Month: 3, Year: 2025}, s)
	assert.Equal(t, "2025-03", s.Key())
}

func TestContainer_SetRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, Options{Now: fixedNow})
	require.NoError(t, err)

	_, err = c.SetMonth(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidMonth)
	_, err = c.SetMode(ctx, Mode("custom"))
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = c.SetYear(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidYear)

	assert.Equal(t, State{Mode: Monthly, Month: 10, Year: 2026}, c.Get())
}

func TestContainer_PortFailureKeepsTransition(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	c := &Container{state: State{Mode: Monthly, Month: 1, Year: 2025}, kv: failingStore{err: boom}, key: DefaultStorageKey}

	s, err := c.SetMonth(ctx, 2)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, s.Month)
	assert.Equal(t, 2, c.Get().Month)
}

func TestQueryRoundTrip(t *testing.T) {
	s := State{Mode: Monthly, Month: 12, Year: 2030}
	got := DecodeQuery(EncodeQuery("", s)).Apply(State{})
	assert.Equal(t, s, got)

	y := State{Mode: Yearly, Month: 5, Year: 2030}
	q := EncodeQuery("month=5", y)
	assert.Equal(t, "mode=yearly&year=2030", q)
}
