/*
store.go - Persistence interface for the reconciliation ledger

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory
  storage.

KEY INTERFACES:
  Store:    Record persistence for all ledger record types
  TxStore:  Transactional operations (atomic multi-table writes)
  Uploader: External receipt blob storage (best-effort collaborator)

APPEND-ONLY CONTRACT:
  LedgerTransaction rows are append-only: AppendTransaction exists, no
  update or delete. Revolving balances stay reproducible by replay.

COMPENSATING DELETES:
  PaymentRecord, DerivedExpense, and Attachment rows ARE deletable — but
  only by the rollback coordinator, in its prescribed order. The Store
  does not enforce that ordering; the coordinator does.

OPTIMISTIC LOCKING:
  UpdateObligation must compare the record's Version against the stored
  row and fail with ErrConcurrentModification on mismatch. This closes
  the read-validate-write race on paidAmount.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - recorder.go, rollback.go, allocation.go: Consumers
*/
package ledger

import "context"

// =============================================================================
// STORE - Record persistence
// =============================================================================

type Store interface {
	// Obligations
	CreateObligation(ctx context.Context, o *Obligation) error
	GetObligation(ctx context.Context, id string) (*Obligation, error)

	// UpdateObligation persists paidAmount/status changes. The stored row's
	// version must equal o.Version; on success the version is incremented.
	// Returns ErrConcurrentModification on version mismatch.
	UpdateObligation(ctx context.Context, o *Obligation) error

	// ListOpenCharges returns an account's charges with a collectible
	// balance, ordered by date ascending with id as tie-break. The ordering
	// is part of the contract: allocation must be deterministic.
	ListOpenCharges(ctx context.Context, accountID string) ([]Obligation, error)

	// Payments
	CreatePayment(ctx context.Context, p *PaymentRecord) error
	GetPayment(ctx context.Context, id string) (*PaymentRecord, error)
	DeletePayment(ctx context.Context, id string) error
	ListPaymentsByObligation(ctx context.Context, obligationID string) ([]PaymentRecord, error)

	// Derived expenses
	CreateExpense(ctx context.Context, e *DerivedExpense) error
	GetExpense(ctx context.Context, id string) (*DerivedExpense, error)
	DeleteExpense(ctx context.Context, id string) error

	// Attachments
	CreateAttachment(ctx context.Context, a *Attachment) error
	GetAttachment(ctx context.Context, id string) (*Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	// Credit accounts
	CreateAccount(ctx context.Context, a *CreditAccount) error
	GetAccount(ctx context.Context, id string) (*CreditAccount, error)
	UpdateAccountBalance(ctx context.Context, id string, balance Money) error

	// Ledger transactions (append-only)
	AppendTransaction(ctx context.Context, tx *LedgerTransaction) error
	ListTransactions(ctx context.Context, accountID string) ([]LedgerTransaction, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic multi-step writes
// =============================================================================

// TxStore wraps Store with transaction support. The recorder and rollback
// coordinator require it: their multi-record sequences are all-or-nothing.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// UPLOADER - External receipt storage (best-effort)
// =============================================================================

// Uploader is the boundary to the external blob-storage service. Failures
// are logged and swallowed by callers; the financial write path never
// waits on upload success.
type Uploader interface {
	// Upload stores a receipt and returns its public URL and storage id.
	Upload(ctx context.Context, fileName string, data []byte) (url, storageID string, err error)

	// Delete removes a previously uploaded receipt.
	Delete(ctx context.Context, storageID string) error
}
