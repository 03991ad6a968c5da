package insights

import (
	"errors"
	"fmt"
)

// Thresholds are the tunable limits of every heuristic.
type Thresholds struct {
	// BudgetAlertRatio flags a category once month spend reaches this share of its limit.
	BudgetAlertRatio float64 `yaml:"budget_alert_ratio" json:"budget_alert_ratio"`

	RecurringMinOccurrences int `yaml:"recurring_min_occurrences" json:"recurring_min_occurrences"`
	// RecurringDayTolerance is the allowed distance, in days, of each gap from the mean gap.
	RecurringDayTolerance float64 `yaml:"recurring_day_tolerance" json:"recurring_day_tolerance"`
	// RecurringAmountTolerance is the allowed relative distance of each amount from the mean.
	RecurringAmountTolerance float64 `yaml:"recurring_amount_tolerance" json:"recurring_amount_tolerance"`

	RewardExpiryDays int `yaml:"reward_expiry_days" json:"reward_expiry_days"`
	BillDueDays      int `yaml:"bill_due_days" json:"bill_due_days"`
	GoalDeadlineDays int `yaml:"goal_deadline_days" json:"goal_deadline_days"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BudgetAlertRatio:         0.85,
		RecurringMinOccurrences:  3,
		RecurringDayTolerance:    5,
		RecurringAmountTolerance: 0.10,
		RewardExpiryDays:         30,
		BillDueDays:              7,
		GoalDeadlineDays:         30,
	}
}

func (t Thresholds) Validate() error {
	var errs []error
	if t.BudgetAlertRatio <= 0 {
		errs = append(errs, fmt.Errorf("budget_alert_ratio must be positive, got %v", t.BudgetAlertRatio))
	}
	if t.RecurringMinOccurrences < 2 {
		errs = append(errs, fmt.Errorf("recurring_min_occurrences must be at least 2, got %d", t.RecurringMinOccurrences))
	}
	if t.RecurringDayTolerance < 0 {
		errs = append(errs, fmt.Errorf("recurring_day_tolerance cannot be negative, got %v", t.RecurringDayTolerance))
	}
	if t.RecurringAmountTolerance < 0 {
		errs = append(errs, fmt.Errorf("recurring_amount_tolerance cannot be negative, got %v", t.RecurringAmountTolerance))
	}
	if t.RewardExpiryDays < 0 || t.BillDueDays < 0 || t.GoalDeadlineDays < 0 {
		errs = append(errs, errors.New("day windows cannot be negative"))
	}
	return errors.Join(errs...)
}
