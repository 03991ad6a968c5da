package core

import (
	"errors"
	"math"
	"strings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	KindIncome   CategoryKind = "income"
	KindExpense  CategoryKind = "expense"
	KindTransfer CategoryKind = "transfer"
)

// MaxInstallments bounds a single purchase to 35 years of monthly rows.
const MaxInstallments = 420

type (
	TransactionType string

	CategoryKind string

	// Transaction is a single dated cash movement. Amount is signed:
	// positive is income, negative is expense. Empty string references are null.
	Transaction struct {
		ID                  string  `json:"id"`
		Date                Date    `json:"date"`
		Description         string  `json:"description"`
		Amount              float64 `json:"amount"`
		CategoryID          string  `json:"category_id,omitempty"`
		AccountID           string  `json:"account_id,omitempty"`
		CardID              string  `json:"card_id,omitempty"`
		InstallmentNo       int     `json:"installment_no,omitempty"`    // 0 when not part of a group
		InstallmentTotal    int     `json:"installment_total,omitempty"` // 0 when the purchase is a single row
		ParentInstallmentID string  `json:"parent_installment_id,omitempty"`
		AttachmentURL       string  `json:"attachment_url,omitempty"`
		Notes               string  `json:"notes,omitempty"`
	}

	// TransactionPatch holds the fields an update may change. Nil fields are left untouched.
	TransactionPatch struct {
		Date                *Date    `json:"date,omitempty"`
		Description         *string  `json:"description,omitempty"`
		Amount              *float64 `json:"amount,omitempty"`
		CategoryID          *string  `json:"category_id,omitempty"`
		AccountID           *string  `json:"account_id,omitempty"`
		CardID              *string  `json:"card_id,omitempty"`
		ParentInstallmentID *string  `json:"parent_installment_id,omitempty"`
		AttachmentURL       *string  `json:"attachment_url,omitempty"`
		Notes               *string  `json:"notes,omitempty"`
	}

	// Filter narrows a range query. Zero values match everything.
	Filter struct {
		CategoryID string
		AccountID  string
		CardID     string
		Type       TransactionType
		// UnlinkedInstallments keeps only installment rows still missing their parent id.
		UnlinkedInstallments bool
	}

	Category struct {
		ID          string       `json:"id"`
		Name        string       `json:"name"`
		ParentID    string       `json:"parent_id,omitempty"`
		Kind        CategoryKind `json:"kind"`
		BudgetLimit *float64     `json:"budget_limit,omitempty"`
	}

	CreditCard struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		CutDay *int   `json:"cut_day,omitempty"`
		DueDay *int   `json:"due_day,omitempty"`
	}

	Account struct {
		ID          string  `json:"id"`
		Name        string  `json:"name"`
		Institution string  `json:"institution,omitempty"`
		Balance     float64 `json:"balance"`
	}

	Bill struct {
		ID      string  `json:"id"`
		Name    string  `json:"name"`
		Amount  float64 `json:"amount"`
		DueDate Date    `json:"due_date"`
		Paid    bool    `json:"paid"`
	}

	Goal struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		TargetAmount  float64 `json:"target_amount"`
		CurrentAmount float64 `json:"current_amount"`
		Deadline      Date    `json:"deadline"`
	}

	Reward struct {
		ID        string  `json:"id"`
		Program   string  `json:"program"`
		Points    float64 `json:"points"`
		ExpiresAt Date    `json:"expires_at"`
	}

	// Insight is a derived, never persisted signal. ID is stable for the same data.
	Insight struct {
		ID      string `json:"id"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}

	ForecastPoint struct {
		Date  Date    `json:"date"`
		Value float64 `json:"value"`
	}

	// CategoryAmount represents an amount aggregated by category name.
	CategoryAmount struct {
		CategoryID string  `json:"category_id,omitempty"`
		Name       string  `json:"name"`
		Amount     float64 `json:"amount"`
	}
)

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidInstallment = errors.New("invalid installment count")
	ErrSourceConflict     = errors.New("transaction cannot reference both an account and a card")
	ErrEmptyPatch         = errors.New("patch changes nothing")
	ErrNotFound           = errors.New("not found")
)

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.AccountID != "" && t.CardID != "" {
		return ErrSourceConflict
	}
	if t.InstallmentTotal < 0 || t.InstallmentTotal > MaxInstallments {
		return ErrInvalidInstallment
	}
	return nil
}

// IsIncome and IsExpense classify by sign; zero amounts are neither.
func (t Transaction) IsIncome() bool  { return SafeAmount(t.Amount) > 0 }
func (t Transaction) IsExpense() bool { return SafeAmount(t.Amount) < 0 }

// IsInstallment reports whether the row belongs to a multi-row purchase.
func (t Transaction) IsInstallment() bool { return t.InstallmentTotal > 1 }

func (p TransactionPatch) IsEmpty() bool {
	return p.Date == nil && p.Description == nil && p.Amount == nil &&
		p.CategoryID == nil && p.AccountID == nil && p.CardID == nil &&
		p.ParentInstallmentID == nil && p.AttachmentURL == nil && p.Notes == nil
}

// Apply returns t with every non-nil patch field written over it.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.CardID != nil {
		t.CardID = *p.CardID
	}
	if p.ParentInstallmentID != nil {
		t.ParentInstallmentID = *p.ParentInstallmentID
	}
	if p.AttachmentURL != nil {
		t.AttachmentURL = *p.AttachmentURL
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// Match reports whether t satisfies every set filter field.
func (f Filter) Match(t Transaction) bool {
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.CardID != "" && t.CardID != f.CardID {
		return false
	}
	switch f.Type {
	case Income:
		if !t.IsIncome() {
			return false
		}
	case Expense:
		if !t.IsExpense() {
			return false
		}
	}
	if f.UnlinkedInstallments && (!t.IsInstallment() || t.ParentInstallmentID != "") {
		return false
	}
	return true
}

// Remaining is how much is still missing to reach the goal target.
func (g Goal) Remaining() float64 {
	return math.Max(0, SafeAmount(g.TargetAmount)-SafeAmount(g.CurrentAmount))
}

func (g Goal) IsComplete() bool {
	return SafeAmount(g.CurrentAmount) >= SafeAmount(g.TargetAmount)
}
