// Package billing computes credit card statement windows.
package billing

import (
	"time"

	"carteira/internal/core"
)

// Cycle is one statement window: purchases dated Start..End (inclusive) are
// billed on the statement that closes on End and is paid on Due.
type Cycle struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
	// Due is zero when the card has no due day configured.
	Due core.Date `json:"due"`
}

func (c Cycle) StartISO() string { return c.Start.String() }
func (c Cycle) EndISO() string   { return c.End.String() }
func (c Cycle) DueISO() string   { return c.Due.String() }

func (c Cycle) HasDue() bool { return !c.Due.IsZero() }

// Contains reports whether d falls within the statement window.
func (c Cycle) Contains(d core.Date) bool {
	return d.Between(c.Start, c.End)
}

// CycleFor returns the statement window of card around ref, or nil when the
// card has no cut day. A zero ref means today.
//
// The statement closes on cut_day of ref's month and opens the day after
// cut_day of the preceding month. When due_day <= cut_day the payment falls
// in the month after the close.
func CycleFor(card core.CreditCard, ref core.Date) *Cycle {
	if card.CutDay == nil {
		return nil
	}
	if ref.IsZero() {
		ref = core.DateOf(time.Now())
	}
	cut := clampDay(*card.CutDay)

	end := core.ClampedDate(ref.Year(), ref.Month(), cut)
	start := core.ClampedDate(end.Year(), end.Month()-1, cut).AddDays(1)

	c := &Cycle{Start: start, End: end}
	if card.DueDay != nil {
		due := clampDay(*card.DueDay)
		month := end.Month()
		if due <= cut {
			month++
		}
		c.Due = core.ClampedDate(end.Year(), month, due)
	}
	return c
}

// Next returns the window following c for the same card.
func Next(card core.CreditCard, c Cycle) *Cycle {
	return CycleFor(card, c.End.AddMonths(1))
}

func clampDay(day int) int {
	if day < 1 {
		return 1
	}
	if day > 31 {
		return 31
	}
	return day
}
