package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/log"
)

// AddInput is a purchase as entered by the user. Installments defaults to 1.
type AddInput struct {
	Transaction  core.Transaction `json:"transaction"`
	Installments int              `json:"installments,omitempty"`
}

// Ledger writes transactions through a TransactionStore. Installment
// purchases are written in two explicit phases, see Add.
type Ledger struct {
	store       TransactionStore
	attachments AttachmentStore
	events      EventPublisher
	sanitizer   *Sanitizer
	logger      *log.Logger
	onChange    func()
	now         func() time.Time
}

// Option configures optional ledger collaborators.
type Option func(*Ledger)

func WithAttachments(a AttachmentStore) Option { return func(l *Ledger) { l.attachments = a } }

func WithEvents(p EventPublisher) Option { return func(l *Ledger) { l.events = p } }

func WithLogger(lg *log.Logger) Option {
	return func(l *Ledger) { l.logger = lg.WithComponent(log.ComponentLedger) }
}

// WithChangeHook registers fn to run after every committed write.
func WithChangeHook(fn func()) Option { return func(l *Ledger) { l.onChange = fn } }

func New(store TransactionStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		sanitizer: NewSanitizer(),
		logger:    log.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add is the installment-aware write: InsertInstallments followed by
// LinkInstallments. When linking fails the inserted rows are returned
// together with an *UnlinkedError; nothing is retried or rolled back.
func (l *Ledger) Add(ctx context.Context, in AddInput) ([]core.Transaction, error) {
	rows, err := l.InsertInstallments(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return rows, nil
	}

	linked, err := l.LinkInstallments(ctx, rows)
	if err != nil {
		unlinked := &UnlinkedError{IDs: ids(rows), Err: err}
		l.logger.WarnContext(ctx, "Installments left unlinked",
			log.FieldRows, len(rows), log.FieldError, err)
		l.publish(ctx, EventInstallmentsUnlinked, unlinked.IDs)
		return rows, unlinked
	}
	return linked, nil
}

// InsertInstallments validates and expands the input, then persists every
// row in one batch. On failure no rows are created.
func (l *Ledger) InsertInstallments(ctx context.Context, in AddInput) ([]core.Transaction, error) {
	n := in.Installments
	if n == 0 {
		n = 1
	}

	base := in.Transaction
	// grouping fields are derived from n, never taken from the caller
	base.ID, base.ParentInstallmentID = "", ""
	base.InstallmentNo, base.InstallmentTotal = 0, 0
	base.Description = l.sanitizer.Clean(base.Description)
	base.Notes = l.sanitizer.Clean(base.Notes)
	base.Amount = core.SafeAmount(base.Amount)
	if err := base.Validate(); err != nil {
		return nil, err
	}

	expanded, err := ExpandInstallments(base, n)
	if err != nil {
		return nil, err
	}

	rows, err := l.store.InsertMany(ctx, expanded)
	if err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	if len(rows) != len(expanded) || rows[0].ID == "" {
		return rows, fmt.Errorf("insert transactions: store returned %d rows for %d", len(rows), len(expanded))
	}

	log.NewStructuredLogger(l.logger).LogTransactionsCreated(ctx, rows[0].ID,
		base.Description, base.Amount, base.Date.String(), len(rows))
	l.changed()
	l.publish(ctx, EventTransactionsCreated, ids(rows))
	return rows, nil
}

// LinkInstallments sets parent_installment_id on every row, including the
// first, to the id of the first row.
func (l *Ledger) LinkInstallments(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	parent := ParentOf(rows)
	if parent == "" {
		return rows, errors.New("link installments: first row has no id")
	}

	if err := l.store.UpdateMany(ctx, ids(rows), core.TransactionPatch{ParentInstallmentID: &parent}); err != nil {
		return rows, fmt.Errorf("link installments: %w", err)
	}

	linked := make([]core.Transaction, len(rows))
	for i, r := range rows {
		r.ParentInstallmentID = parent
		linked[i] = r
	}
	l.logger.DebugContext(ctx, "Installments linked",
		log.FieldParentID, parent, log.FieldRows, len(linked))
	l.changed()
	return linked, nil
}

// Update applies patch to one transaction and returns the result.
func (l *Ledger) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if patch.IsEmpty() {
		return core.Transaction{}, core.ErrEmptyPatch
	}
	if patch.Description != nil {
		d := l.sanitizer.Clean(*patch.Description)
		patch.Description = &d
	}
	if patch.Notes != nil {
		n := l.sanitizer.Clean(*patch.Notes)
		patch.Notes = &n
	}
	if patch.Amount != nil {
		a := core.SafeAmount(*patch.Amount)
		patch.Amount = &a
	}

	current, err := l.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := l.store.UpdateMany(ctx, []string{id}, patch); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	l.logger.InfoContext(ctx, "Transaction updated",
		log.FieldTransactionID, id, log.FieldOperation, log.OpUpdate)
	l.changed()
	l.publish(ctx, EventTransactionsUpdated, []string{id})
	return next, nil
}

// Remove deletes one row. Siblings of an installment group are untouched.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	if err := l.store.DeleteOne(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	l.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTransactionID, id, log.FieldOperation, log.OpDelete)
	l.changed()
	l.publish(ctx, EventTransactionsDeleted, []string{id})
	return nil
}

// ListByRange returns the rows dated within [start, end], inclusive.
func (l *Ledger) ListByRange(ctx context.Context, start, end core.Date, f core.Filter) ([]core.Transaction, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	rows, err := l.store.QueryRange(ctx, start, end, f)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return rows, nil
}

// Get returns a single transaction.
func (l *Ledger) Get(ctx context.Context, id string) (core.Transaction, error) {
	return l.store.Get(ctx, id)
}

// UploadAttachment stores r through the attachment port and records the
// returned URL on the transaction.
func (l *Ledger) UploadAttachment(ctx context.Context, id, name, contentType string, r io.Reader) (core.Transaction, error) {
	if l.attachments == nil {
		return core.Transaction{}, ErrAttachmentsDisabled
	}
	if _, err := l.store.Get(ctx, id); err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	key := fmt.Sprintf("transactions/%s/%s%s", id, uuid.NewString(), strings.ToLower(path.Ext(name)))
	url, err := l.attachments.Put(ctx, key, contentType, r)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("store attachment: %w", err)
	}

	l.logger.InfoContext(ctx, "Attachment stored",
		log.FieldTransactionID, id, log.FieldAttachmentURL, url, log.FieldOperation, log.OpUpload)
	return l.Update(ctx, id, core.TransactionPatch{AttachmentURL: &url})
}

func (l *Ledger) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}

func (l *Ledger) publish(ctx context.Context, typ string, rowIDs []string) {
	if l.events == nil {
		return
	}
	ev := Event{Type: typ, IDs: rowIDs, OccurredAt: l.now().UTC()}
	if err := l.events.PublishLedgerEvent(ctx, ev); err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, typ, log.FieldError, err)
	}
}
