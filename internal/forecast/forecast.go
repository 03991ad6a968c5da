// Package forecast projects near-term daily net cash flow from history.
package forecast

import (
	"time"

	"carteira/internal/core"
)

const (
	// Horizon is the number of projected days.
	Horizon = 30
	// Window is the trailing moving-average width.
	Window = 7
)

// Result is a projection plus the sum of its values.
type Result struct {
	Series []core.ForecastPoint `json:"series"`
	Total  float64              `json:"total"`
}

// MovingAverage returns, for each index i, the mean of the trailing
// min(window, i+1) values.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(window, i+1))
	}
	return out
}

// DailyNet reduces transactions to one net value per calendar day, returned
// as a continuous series from the earliest to the latest day with empty days
// set to 0. first is the day of series[0].
func DailyNet(txs []core.Transaction) (series []float64, first core.Date) {
	byDay := make(map[string]float64)
	var last core.Date
	for _, tx := range txs {
		if tx.Date.IsEmpty() {
			continue
		}
		byDay[tx.Date.String()] += core.SafeAmount(tx.Amount)
		if first.IsEmpty() || tx.Date.Before(first) {
			first = tx.Date
		}
		if last.IsEmpty() || tx.Date.After(last) {
			last = tx.Date
		}
	}
	if len(byDay) == 0 {
		return nil, core.Date{}
	}

	series = make([]float64, 0, first.DaysUntil(last)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		series = append(series, byDay[d.String()])
	}
	return series, first
}

// Project forecasts Horizon days after the latest transaction day. Each
// projected day is the moving average of the series so far, including the
// days already projected. With no history every point is 0, starting the day
// after now.
func Project(txs []core.Transaction, now time.Time) Result {
	series, first := DailyNet(txs)
	if len(series) == 0 {
		start := core.DateOf(now).AddDays(1)
		points := make([]core.ForecastPoint, Horizon)
		for i := range points {
			points[i] = core.ForecastPoint{Date: start.AddDays(i)}
		}
		return Result{Series: points}
	}

	start := first.AddDays(len(series))
	points := make([]core.ForecastPoint, Horizon)
	var total float64
	for i := range points {
		v := trailingMean(series, Window)
		series = append(series, v)
		points[i] = core.ForecastPoint{Date: start.AddDays(i), Value: v}
		total += v
	}
	return Result{Series: points, Total: total}
}

// trailingMean is the last element of MovingAverage(values, window).
func trailingMean(values []float64, window int) float64 {
	n := min(window, len(values))
	var sum float64
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}
