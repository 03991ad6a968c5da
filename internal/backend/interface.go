package backend

import (
	"context"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/period"
)

// Catalog holds the reference data the reports and insights read.
type Catalog interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	PutCategory(ctx context.Context, c core.Category) error
	ListCards(ctx context.Context) ([]core.CreditCard, error)
	GetCard(ctx context.Context, id string) (core.CreditCard, error)
	PutCard(ctx context.Context, c core.CreditCard) error
	ListAccounts(ctx context.Context) ([]core.Account, error)
	PutAccount(ctx context.Context, a core.Account) error
	ListBills(ctx context.Context) ([]core.Bill, error)
	PutBill(ctx context.Context, b core.Bill) error
	ListGoals(ctx context.Context) ([]core.Goal, error)
	PutGoal(ctx context.Context, g core.Goal) error
	ListRewards(ctx context.Context) ([]core.Reward, error)
	PutReward(ctx context.Context, r core.Reward) error
}

// Backend is the persistence a process runs against.
type Backend interface {
	ledger.TransactionStore
	Catalog
	Preferences() period.KeyValuePort
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend, the optional collaborators built with
// it and a cleanup function releasing all of them.
type BackendResult struct {
	Backend     Backend
	Events      ledger.EventPublisher  // nil when AMQP is not configured
	Attachments ledger.AttachmentStore // nil when attachments are disabled
	Cleanup     CleanupFunc
}

// LedgerOptions returns the ledger options matching the built collaborators.
func (r *BackendResult) LedgerOptions() []ledger.Option {
	var opts []ledger.Option
	if r.Events != nil {
		opts = append(opts, ledger.WithEvents(r.Events))
	}
	if r.Attachments != nil {
		opts = append(opts, ledger.WithAttachments(r.Attachments))
	}
	return opts
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Attachments: none, local or gcs
	AttachmentBackend string
	AttachmentDir     string
	GCSBucket         string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
