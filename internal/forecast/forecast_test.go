package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
)

func day(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMovingAverage(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		window int
		want   []float64
	}{
		{"cumulative below window", []float64{1, 2, 3, 4, 5, 6, 7}, 7, []float64{1, 1.5, 2, 2.5, 3, 3.5, 4}},
		{"trailing once full", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 7, []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 5, 6}},
		{"window of two", []float64{4, 0, 2}, 2, []float64{4, 2, 1}},
		{"empty", nil, 7, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MovingAverage(tt.values, tt.window)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "index %d", i)
			}
		})
	}
}

func TestProject_Empty(t *testing.T) {
	now := time.Date(2026, 10, 15, 23, 30, 0, 0, time.UTC)
	got := Project(nil, now)

	require.Len(t, got.Series, Horizon)
	assert.Equal(t, 0.0, got.Total)
	assert.Equal(t, "2026-10-16", got.Series[0].Date.String())
	assert.Equal(t, "2026-11-14", got.Series[Horizon-1].Date.String())
	for _, p := range got.Series {
		assert.Equal(t, 0.0, p.Value)
	}
}

func TestProject_ConstantHistory(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 7; i++ {
		txs = append(txs, core.Transaction{Date: day("2025-06-01").AddDays(i), Amount: 10})
	}

	got := Project(txs, time.Now())
	require.Len(t, got.Series, Horizon)
	assert.InDelta(t, 300, got.Total, 1e-9)
	assert.Equal(t, "2025-06-08", got.Series[0].Date.String())
	for i, p := range got.Series {
		assert.InDelta(t, 10, p.Value, 1e-9)
		if i > 0 {
			assert.Equal(t, 1, got.Series[i-1].Date.DaysUntil(p.Date))
		}
	}
}

func TestProject_GapsAreZeroFilled(t *testing.T) {
	txs := []core.Transaction{
		{Date: day("2025-01-01"), Amount: 70},
		{Date: day("2025-01-07"), Amount: 100},
		{Date: day("2025-01-07"), Amount: -30},
	}

	series, first := DailyNet(txs)
	assert.Equal(t, "2025-01-01", first.String())
	assert.Equal(t, []float64{70, 0, 0, 0, 0, 0, 70}, series)

	got := Project(txs, time.Now())
	assert.Equal(t, "2025-01-08", got.Series[0].Date.String())
	assert.InDelta(t, 20, got.Series[0].Value, 1e-9)
	// second day averages {0,0,0,0,0,70,20}
	assert.InDelta(t, 90.0/7, got.Series[1].Value, 1e-9)
}

func TestProject_NonFiniteAmounts(t *testing.T) {
	txs := []core.Transaction{
		{Date: day("2025-01-01"), Amount: math.NaN()},
		{Date: day("2025-01-02"), Amount: 14},
	}
	got := Project(txs, time.Now())
	assert.InDelta(t, 7, got.Series[0].Value, 1e-9)
	assert.False(t, math.IsNaN(got.Total))
}
