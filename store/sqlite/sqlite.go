/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Implements the reconciliation ledger's persistence using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  obligations:   Charges and fixed-expense instances (paid/total aggregate)
  payments:      Partial payments against obligations
  expenses:      Derived bookkeeping entries (1:1 with payments)
  attachments:   Receipt metadata (0..1 per payment)
  accounts:      Revolving credit accounts
  transactions:  Append-only postings (no UPDATE, no DELETE)

INVARIANTS ENFORCED HERE:
  - idx_unique_payment_period: no two payments for the same obligation
    may share identical explicit (period_start, period_end) bounds.
  - UpdateObligation carries WHERE version = ?; zero affected rows means
    a concurrent writer won and the caller gets ErrConcurrentModification.
  - transactions has no update or delete path.

MONEY COLUMNS:
  Amounts are stored as decimal strings (TEXT), never floats. Parsing
  back through shopspring/decimal keeps arithmetic exact.

WAL MODE:
  SQLite is opened with WAL and foreign keys on, matching the usual
  single-writer/multi-reader deployment.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zurcherConstruction/ledger-service/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: SQLite has one writer anyway, and pooled
	// connections against :memory: would each see a different database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Obligations: revolving charges and fixed-expense instances
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		account_id TEXT,
		description TEXT NOT NULL,
		frequency TEXT,
		total_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT,
		date TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Allocation hot path: open charges by account in FIFO order
	CREATE INDEX IF NOT EXISTS idx_obligations_account_date
		ON obligations(account_id, date, id) WHERE kind = 'charge';
	CREATE INDEX IF NOT EXISTS idx_obligations_status
		ON obligations(status);

	-- Payments against obligations
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		obligation_id TEXT NOT NULL REFERENCES obligations(id),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		period_start TEXT,
		period_end TEXT,
		period_due_date TEXT,
		method TEXT,
		notes TEXT,
		derived_expense_id TEXT NOT NULL,
		attachment_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_obligation
		ON payments(obligation_id);

	-- CRITICAL: no two payments for one obligation may cover the same
	-- explicit billing period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_payment_period
		ON payments(obligation_id, period_start, period_end)
		WHERE period_start IS NOT NULL;

	-- Derived bookkeeping entries (1:1 with payments)
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		method TEXT,
		created_at TEXT NOT NULL
	);

	-- Receipt metadata
	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		storage_id TEXT NOT NULL,
		file_name TEXT,
		created_at TEXT NOT NULL
	);

	-- Revolving credit accounts
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Append-only ledger transactions
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		description TEXT,
		payment_method TEXT,
		balance_after TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account_id, date, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so the same queries serve both the
// plain store and the WithTx handle.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (s *Store) CreateObligation(ctx context.Context, o *ledger.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createObligation(ctx, s.db, o)
}

func createObligation(ctx context.Context, db dbtx, o *ledger.Obligation) error {
	query := `
		INSERT INTO obligations
		(id, kind, account_id, description, frequency, total_amount, paid_amount,
		 status, payment_method, date, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		o.ID, o.Kind, nullString(o.AccountID), o.Description, nullString(string(o.Frequency)),
		o.TotalAmount.Value.String(), o.PaidAmount.Value.String(),
		o.Status, o.PaymentMethod, o.Date.String(), o.Version,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create obligation: %w", err)
	}
	return nil
}

func (s *Store) GetObligation(ctx context.Context, id string) (*ledger.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getObligation(ctx, s.db, id)
}

const obligationColumns = `id, kind, account_id, description, frequency, total_amount,
	paid_amount, status, payment_method, date, version, created_at`

func getObligation(ctx context.Context, db dbtx, id string) (*ledger.Obligation, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+obligationColumns+" FROM obligations WHERE id = ?", id)
	o, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (*ledger.Obligation, error) {
	var (
		o                          ledger.Obligation
		accountID, frequency       sql.NullString
		method                     sql.NullString
		total, paid, date, created string
	)
	err := row.Scan(&o.ID, &o.Kind, &accountID, &o.Description, &frequency,
		&total, &paid, &o.Status, &method, &date, &o.Version, &created)
	if err != nil {
		return nil, err
	}
	o.AccountID = accountID.String
	o.Frequency = ledger.Frequency(frequency.String)
	o.PaymentMethod = ledger.PaymentMethod(method.String)
	o.TotalAmount = ledger.MustMoney(total)
	o.PaidAmount = ledger.MustMoney(paid)
	o.Date, _ = ledger.ParseDate(date)
	o.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &o, nil
}

func (s *Store) UpdateObligation(ctx context.Context, o *ledger.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateObligation(ctx, s.db, o)
}

func updateObligation(ctx context.Context, db dbtx, o *ledger.Obligation) error {
	res, err := db.ExecContext(ctx, `
		UPDATE obligations
		SET paid_amount = ?, status = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		o.PaidAmount.Value.String(), o.Status, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update obligation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the row is gone or somebody wrote first.
		existing, err := getObligation(ctx, db, o.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ledger.ErrObligationNotFound
		}
		return ledger.ErrConcurrentModification
	}
	o.Version++
	return nil
}

func (s *Store) ListOpenCharges(ctx context.Context, accountID string) ([]ledger.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOpenCharges(ctx, s.db, accountID)
}

func listOpenCharges(ctx context.Context, db dbtx, accountID string) ([]ledger.Obligation, error) {
	// The > epsilon filter is applied in Go: money columns are decimal
	// strings, with no numeric comparison in SQL.
	rows, err := db.QueryContext(ctx, `
		SELECT `+obligationColumns+`
		FROM obligations
		WHERE kind = 'charge' AND account_id = ?
		ORDER BY date ASC, id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open charges: %w", err)
	}
	defer rows.Close()

	var charges []ledger.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		if o.Open() {
			charges = append(charges, *o)
		}
	}
	return charges, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, p *ledger.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createPayment(ctx, s.db, p)
}

func createPayment(ctx context.Context, db dbtx, p *ledger.PaymentRecord) error {
	var periodStart, periodEnd, periodDue any
	if p.Period != nil {
		periodStart = p.Period.Start.String()
		periodEnd = p.Period.End.String()
		periodDue = p.Period.DueDate.String()
	}

	query := `
		INSERT INTO payments
		(id, obligation_id, amount, payment_date, period_start, period_end,
		 period_due_date, method, notes, derived_expense_id, attachment_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.ObligationID, p.Amount.Value.String(), p.PaymentDate.String(),
		periodStart, periodEnd, periodDue,
		p.Method, p.Notes, p.DerivedExpenseID, nullString(p.AttachmentID),
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, obligation_id, amount, payment_date, period_start,
	period_end, period_due_date, method, notes, derived_expense_id, attachment_id, created_at`

func (s *Store) GetPayment(ctx context.Context, id string) (*ledger.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, db dbtx, id string) (*ledger.PaymentRecord, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(row rowScanner) (*ledger.PaymentRecord, error) {
	var (
		p                            ledger.PaymentRecord
		amount, paymentDate, created string
		periodStart, periodEnd, due  sql.NullString
		method, notes, attachmentID  sql.NullString
	)
	err := row.Scan(&p.ID, &p.ObligationID, &amount, &paymentDate,
		&periodStart, &periodEnd, &due, &method, &notes,
		&p.DerivedExpenseID, &attachmentID, &created)
	if err != nil {
		return nil, err
	}
	p.Amount = ledger.MustMoney(amount)
	p.PaymentDate, _ = ledger.ParseDate(paymentDate)
	p.Method = ledger.PaymentMethod(method.String)
	p.Notes = notes.String
	p.AttachmentID = attachmentID.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)

	if periodStart.Valid && periodEnd.Valid {
		start, _ := ledger.ParseDate(periodStart.String)
		end, _ := ledger.ParseDate(periodEnd.String)
		period := ledger.BillingPeriod{Start: start, End: end, DueDate: end}
		if due.Valid {
			period.DueDate, _ = ledger.ParseDate(due.String)
		}
		p.Period = &period
	}
	return &p, nil
}

func (s *Store) DeletePayment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPaymentsByObligation(ctx context.Context, obligationID string) ([]ledger.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPaymentsByObligation(ctx, s.db, obligationID)
}

func listPaymentsByObligation(ctx context.Context, db dbtx, obligationID string) ([]ledger.PaymentRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE obligation_id = ?
		ORDER BY created_at ASC, id ASC`, obligationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// =============================================================================
// DERIVED EXPENSES
// =============================================================================

func (s *Store) CreateExpense(ctx context.Context, e *ledger.DerivedExpense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createExpense(ctx, s.db, e)
}

func createExpense(ctx context.Context, db dbtx, e *ledger.DerivedExpense) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO expenses (id, description, amount, date, method, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Description, e.Amount.Value.String(), e.Date.String(), e.Method,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*ledger.DerivedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getExpense(ctx, s.db, id)
}

func getExpense(ctx context.Context, db dbtx, id string) (*ledger.DerivedExpense, error) {
	var (
		e                     ledger.DerivedExpense
		amount, date, created string
		method                sql.NullString
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, description, amount, date, method, created_at FROM expenses WHERE id = ?", id,
	).Scan(&e.ID, &e.Description, &amount, &date, &method, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Amount = ledger.MustMoney(amount)
	e.Date, _ = ledger.ParseDate(date)
	e.Method = ledger.PaymentMethod(method.String)
	e.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteExpense(ctx, s.db, id)
}

func deleteExpense(ctx context.Context, db dbtx, id string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (s *Store) CreateAttachment(ctx context.Context, a *ledger.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAttachment(ctx, s.db, a)
}

func createAttachment(ctx context.Context, db dbtx, a *ledger.Attachment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attachments (id, url, storage_id, file_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.URL, a.StorageID, a.FileName,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

func (s *Store) GetAttachment(ctx context.Context, id string) (*ledger.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAttachment(ctx, s.db, id)
}

func getAttachment(ctx context.Context, db dbtx, id string) (*ledger.Attachment, error) {
	var (
		a        ledger.Attachment
		fileName sql.NullString
		created  string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, url, storage_id, file_name, created_at FROM attachments WHERE id = ?", id,
	).Scan(&a.ID, &a.URL, &a.StorageID, &fileName, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.FileName = fileName.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &a, nil
}

func (s *Store) DeleteAttachment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAttachment(ctx, s.db, id)
}

func deleteAttachment(ctx context.Context, db dbtx, id string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

// =============================================================================
// CREDIT ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a *ledger.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, a)
}

func createAccount(ctx context.Context, db dbtx, a *ledger.CreditAccount) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, balance, created_at)
		VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.Balance.Value.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.CreditAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id string) (*ledger.CreditAccount, error) {
	var (
		a                ledger.CreditAccount
		balance, created string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, balance, created_at FROM accounts WHERE id = ?", id,
	).Scan(&a.ID, &a.Name, &balance, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Balance = ledger.MustMoney(balance)
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &a, nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, id string, balance ledger.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccountBalance(ctx, s.db, id, balance)
}

func updateAccountBalance(ctx context.Context, db dbtx, id string, balance ledger.Money) error {
	res, err := db.ExecContext(ctx,
		"UPDATE accounts SET balance = ? WHERE id = ?",
		balance.Value.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// LEDGER TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx *ledger.LedgerTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbtx, tx *ledger.LedgerTransaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, account_id, date, amount, tx_type, description, payment_method,
		 balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.Date.String(), tx.Amount.Value.String(),
		tx.Type, tx.Description, tx.PaymentMethod,
		tx.BalanceAfter.Value.String(),
		tx.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]ledger.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, accountID)
}

func listTransactions(ctx context.Context, db dbtx, accountID string) ([]ledger.LedgerTransaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, date, amount, tx_type, description, payment_method,
		       balance_after, created_at
		FROM transactions
		WHERE account_id = ?
		ORDER BY date ASC, created_at ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.LedgerTransaction
	for rows.Next() {
		var (
			tx                           ledger.LedgerTransaction
			date, amount, after, created string
			description, method          sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &date, &amount, &tx.Type,
			&description, &method, &after, &created); err != nil {
			return nil, err
		}
		tx.Date, _ = ledger.ParseDate(date)
		tx.Amount = ledger.MustMoney(amount)
		tx.Description = description.String
		tx.PaymentMethod = ledger.PaymentMethod(method.String)
		tx.BalanceAfter = ledger.MustMoney(after)
		tx.CreatedAt, _ = time.Parse(time.RFC3339, created)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every Store call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateObligation(ctx context.Context, o *ledger.Obligation) error {
	return createObligation(ctx, ts.tx, o)
}
func (ts *txStore) GetObligation(ctx context.Context, id string) (*ledger.Obligation, error) {
	return getObligation(ctx, ts.tx, id)
}
func (ts *txStore) UpdateObligation(ctx context.Context, o *ledger.Obligation) error {
	return updateObligation(ctx, ts.tx, o)
}
func (ts *txStore) ListOpenCharges(ctx context.Context, accountID string) ([]ledger.Obligation, error) {
	return listOpenCharges(ctx, ts.tx, accountID)
}
func (ts *txStore) CreatePayment(ctx context.Context, p *ledger.PaymentRecord) error {
	return createPayment(ctx, ts.tx, p)
}
func (ts *txStore) GetPayment(ctx context.Context, id string) (*ledger.PaymentRecord, error) {
	return getPayment(ctx, ts.tx, id)
}
func (ts *txStore) DeletePayment(ctx context.Context, id string) error {
	return deletePayment(ctx, ts.tx, id)
}
func (ts *txStore) ListPaymentsByObligation(ctx context.Context, obligationID string) ([]ledger.PaymentRecord, error) {
	return listPaymentsByObligation(ctx, ts.tx, obligationID)
}
func (ts *txStore) CreateExpense(ctx context.Context, e *ledger.DerivedExpense) error {
	return createExpense(ctx, ts.tx, e)
}
func (ts *txStore) GetExpense(ctx context.Context, id string) (*ledger.DerivedExpense, error) {
	return getExpense(ctx, ts.tx, id)
}
func (ts *txStore) DeleteExpense(ctx context.Context, id string) error {
	return deleteExpense(ctx, ts.tx, id)
}
func (ts *txStore) CreateAttachment(ctx context.Context, a *ledger.Attachment) error {
	return createAttachment(ctx, ts.tx, a)
}
func (ts *txStore) GetAttachment(ctx context.Context, id string) (*ledger.Attachment, error) {
	return getAttachment(ctx, ts.tx, id)
}
func (ts *txStore) DeleteAttachment(ctx context.Context, id string) error {
	return deleteAttachment(ctx, ts.tx, id)
}
func (ts *txStore) CreateAccount(ctx context.Context, a *ledger.CreditAccount) error {
	return createAccount(ctx, ts.tx, a)
}
func (ts *txStore) GetAccount(ctx context.Context, id string) (*ledger.CreditAccount, error) {
	return getAccount(ctx, ts.tx, id)
}
func (ts *txStore) UpdateAccountBalance(ctx context.Context, id string, balance ledger.Money) error {
	return updateAccountBalance(ctx, ts.tx, id, balance)
}
func (ts *txStore) AppendTransaction(ctx context.Context, tx *ledger.LedgerTransaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}
func (ts *txStore) ListTransactions(ctx context.Context, accountID string) ([]ledger.LedgerTransaction, error) {
	return listTransactions(ctx, ts.tx, accountID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
