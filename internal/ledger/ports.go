package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"carteira/internal/core"
)

var (
	ErrNotFound            = fmt.Errorf("transaction %w", core.ErrNotFound)
	ErrInvalidRange        = errors.New("range start is after range end")
	ErrAttachmentsDisabled = errors.New("attachment storage not configured")
)

// Ports for the persistence collaborators the ledger writes through.
type (
	// TransactionStore is the persistence contract over the transactions
	// collection. InsertMany assigns ids and returns rows in input order.
	TransactionStore interface {
		InsertMany(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error)
		UpdateMany(ctx context.Context, ids []string, patch core.TransactionPatch) error
		DeleteOne(ctx context.Context, id string) error
		QueryRange(ctx context.Context, start, end core.Date, f core.Filter) ([]core.Transaction, error)
		Get(ctx context.Context, id string) (core.Transaction, error)
	}

	// AttachmentStore saves an object and returns the URL to record on the row.
	AttachmentStore interface {
		Put(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
	}

	// EventPublisher announces ledger changes. Failures never fail the write.
	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, ev Event) error
	}
)

// Event types published after ledger writes.
const (
	EventTransactionsCreated  = "transactions.created"
	EventTransactionsUpdated  = "transactions.updated"
	EventTransactionsDeleted  = "transactions.deleted"
	EventInstallmentsUnlinked = "installments.unlinked"
)

// Event describes a committed ledger change.
type Event struct {
	Type       string    `json:"type"`
	IDs        []string  `json:"ids"`
	OccurredAt time.Time `json:"occurred_at"`
}
