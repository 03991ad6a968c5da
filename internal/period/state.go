// Package period holds the active reporting window and resolves it to
// concrete calendar ranges.
//
// The window is a small state machine (monthly or yearly) kept in a
// Container. Every transition writes through to two injected ports: a
// durable key-value store and a shareable query-string representation.
package period

import (
	"errors"
	"fmt"

	"carteira/internal/core"
)

const (
	Monthly Mode = "monthly"
	Yearly  Mode = "yearly"
)

// Mode selects the granularity of the reporting window.
type Mode string

// State is the active reporting window. Month is only meaningful in monthly
// mode; it is kept in memory across mode switches but never persisted for
// yearly windows.
type State struct {
	Mode  Mode `json:"mode"`
	Month int  `json:"month,omitempty"`
	Year  int  `json:"year"`
}

// Partial is a transition request. Nil fields keep their current value.
type Partial struct {
	Mode  *Mode `json:"mode,omitempty"`
	Month *int  `json:"month,omitempty"`
	Year  *int  `json:"year,omitempty"`
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
}

var (
	ErrInvalidMode  = errors.New("invalid period mode")
	ErrInvalidMonth = errors.New("invalid period month")
	ErrInvalidYear  = errors.New("invalid period year")
)

func (m Mode) IsValid() bool {
	switch m {
	case Monthly, Yearly:
		return true
	default:
		return false
	}
}

func validMonth(m int) bool { return m >= 1 && m <= 12 }
func validYear(y int) bool  { return y >= 1 && y <= 9999 }

// Validate checks a full state.
func (s State) Validate() error {
	if !s.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, s.Mode)
	}
	if !validYear(s.Year) {
		return fmt.Errorf("%w: %d", ErrInvalidYear, s.Year)
	}
	if s.Mode == Monthly && !validMonth(s.Month) {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, s.Month)
	}
	return nil
}

// Validate checks only the fields a partial sets.
func (p Partial) Validate() error {
	if p.Mode != nil && !p.Mode.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, *p.Mode)
	}
	if p.Month != nil && !validMonth(*p.Month) {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, *p.Month)
	}
	if p.Year != nil && !validYear(*p.Year) {
		return fmt.Errorf("%w: %d", ErrInvalidYear, *p.Year)
	}
	return nil
}

// Apply merges p over s without validating it.
func (p Partial) Apply(s State) State {
	if p.Mode != nil {
		s.Mode = *p.Mode
	}
	if p.Month != nil {
		s.Month = *p.Month
	}
	if p.Year != nil {
		s.Year = *p.Year
	}
	return s
}

func (p Partial) IsEmpty() bool {
	return p.Mode == nil && p.Month == nil && p.Year == nil
}

// Range resolves a state to its inclusive calendar range: the whole month
// in monthly mode, Jan 1..Dec 31 in yearly mode. Consumers must read ranges
// only through this function.
func Range(s State) DateRange {
	if s.Mode == Yearly {
		return DateRange{
			Start: core.NewDate(s.Year, 1, 1),
			End:   core.NewDate(s.Year, 12, 31),
		}
	}
	return DateRange{
		Start: core.NewDate(s.Year, s.Month, 1),
		End:   core.NewDate(s.Year, s.Month, core.DaysIn(s.Year, s.Month)),
	}
}

// Key is a canonical identifier of the window, e.g. "2025-03" or "2025".
func (s State) Key() string {
	if s.Mode == Yearly {
		return fmt.Sprintf("%04d", s.Year)
	}
	return fmt.Sprintf("%04d-%02d", s.Year, s.Month)
}

// Contains reports whether d falls within the resolved range of s.
func (r DateRange) Contains(d core.Date) bool {
	return d.Between(r.Start, r.End)
}
