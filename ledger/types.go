/*
Package ledger provides the payment-reconciliation core.

PURPOSE:
  This package contains the domain types and algorithms for applying
  payments against a revolving credit account's open charges (FIFO) and
  for recording partial payments against recurring fixed-expense
  obligations: duplicate billing-period rejection, derived accounting
  entries, and exact compensating rollback.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A dollar amount backed by decimal.Decimal (no float math)
  - Obligation: Something owed — a revolving charge or a fixed expense
  - LedgerTransaction: Append-only posting against a revolving account
  - PaymentRecord: One partial payment against one obligation
  - DerivedExpense: Bookkeeping entry auto-created per payment

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere money is touched
  2. Explicit state: payment status is derived by DeriveStatus, never
     set by a persistence hook
  3. Fixed enums: frequencies, methods, and transaction types are
     compile-time constants, not live schema alterations
  4. Reproducibility: a revolving balance can always be recomputed by
     replaying its transactions in order

SEE ALSO:
  - allocation.go: FIFO payment distribution over open charges
  - period.go: Billing-period arithmetic and duplicate detection
  - recorder.go: Partial-payment orchestration
  - rollback.go: Compensating reversal of a recorded payment
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Dollar amount with decimal precision
// =============================================================================

// Epsilon is the tolerance used when comparing money amounts. A remaining
// balance at or below Epsilon counts as fully settled.
var Epsilon = decimal.NewFromFloat(0.01)

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money          { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money     { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                      { return Money{Value: decimal.Zero} }

// ParseMoney parses a decimal string like "1234.56".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustMoney parses a decimal string and returns zero on failure.
// Intended for constants and store scanning where the value is trusted.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money      { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money      { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money             { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool           { return m.Value.IsZero() }
func (m Money) IsPositive() bool       { return m.Value.IsPositive() }
func (m Money) IsNegative() bool       { return m.Value.IsNegative() }
func (m Money) LessThan(o Money) bool  { return m.Value.LessThan(o.Value) }
func (m Money) GreaterThan(o Money) bool { return m.Value.GreaterThan(o.Value) }
func (m Money) Min(o Money) Money      { if m.LessThan(o) { return m }; return o }
func (m Money) String() string         { return m.Value.StringFixed(2) }

// Negligible reports whether the amount is within Epsilon of zero.
func (m Money) Negligible() bool {
	return m.Value.Abs().LessThanOrEqual(Epsilon)
}

// Float64 returns the amount as a float64 for API serialization only.
// All arithmetic stays in decimal.
func (m Money) Float64() float64 {
	f, _ := m.Value.Float64()
	return f
}

// =============================================================================
// ENUMERATIONS - Fixed at compile time
// =============================================================================

// PaymentStatus is derived from (paidAmount, totalAmount), never stored
// independently of those fields. See DeriveStatus.
type PaymentStatus string

const (
	StatusUnpaid  PaymentStatus = "unpaid"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

type TransactionType string

const (
	TxCharge   TransactionType = "charge"
	TxPayment  TransactionType = "payment"
	TxInterest TransactionType = "interest"
)

type PaymentMethod string

const (
	MethodBank     PaymentMethod = "bank"
	MethodCard     PaymentMethod = "card"
	MethodCash     PaymentMethod = "cash"
	MethodCheck    PaymentMethod = "check"
	MethodTransfer PaymentMethod = "transfer"
)

// Frequency is the billing cadence of a fixed-expense obligation.
type Frequency string

const (
	FreqWeekly     Frequency = "weekly"
	FreqBiweekly   Frequency = "biweekly"
	FreqMonthly    Frequency = "monthly"
	FreqQuarterly  Frequency = "quarterly"
	FreqSemiannual Frequency = "semiannual"
	FreqAnnual     Frequency = "annual"
	FreqOneTime    Frequency = "one_time"
)

// ObligationKind distinguishes revolving-account charges from recurring
// fixed-expense instances. Both share the same paid/total mechanics.
type ObligationKind string

const (
	KindCharge       ObligationKind = "charge"
	KindFixedExpense ObligationKind = "fixed_expense"
)

// =============================================================================
// STATUS DERIVATION - The only way status is computed
// =============================================================================

// DeriveStatus computes payment status from amounts. Pure: the recorder and
// the rollback coordinator call this explicitly after every mutation.
//
//	paid    iff totalAmount - paidAmount <= Epsilon (and there is something owed)
//	unpaid  iff paidAmount <= Epsilon
//	partial otherwise
func DeriveStatus(paid, total Money) PaymentStatus {
	if total.IsPositive() && total.Sub(paid).Value.LessThanOrEqual(Epsilon) {
		return StatusPaid
	}
	if paid.Value.LessThanOrEqual(Epsilon) {
		return StatusUnpaid
	}
	return StatusPartial
}

// =============================================================================
// OBLIGATION - Something owed
// =============================================================================

type Obligation struct {
	ID            string
	Kind          ObligationKind
	AccountID     string // revolving account, set when Kind == KindCharge
	Description   string
	Frequency     Frequency // billing cadence, set when Kind == KindFixedExpense
	TotalAmount   Money
	PaidAmount    Money
	Status        PaymentStatus
	PaymentMethod PaymentMethod
	Date          Date // charge date; FIFO allocation ordering key

	// Version supports optimistic locking on the paidAmount
	// read-validate-write sequence. Incremented on every update.
	Version int64

	CreatedAt time.Time
}

// Remaining returns totalAmount - paidAmount.
func (o *Obligation) Remaining() Money {
	return o.TotalAmount.Sub(o.PaidAmount)
}

// Open reports whether the obligation still has a collectible balance.
func (o *Obligation) Open() bool {
	return o.Remaining().Value.GreaterThan(Epsilon)
}

// =============================================================================
// LEDGER TRANSACTION - Append-only posting against a revolving account
// =============================================================================

// LedgerTransaction records one balance change. Replaying all transactions
// for an account in date order, summing +charge +interest -payment, must
// reproduce every stored BalanceAfter. See ReplayBalance.
type LedgerTransaction struct {
	ID            string
	AccountID     string
	Date          Date
	Amount        Money
	Type          TransactionType
	Description   string
	PaymentMethod PaymentMethod
	BalanceAfter  Money
	CreatedAt     time.Time
}

// Delta returns the signed effect of the transaction on the account balance.
func (t *LedgerTransaction) Delta() Money {
	if t.Type == TxPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ReplayBalance recomputes the balance from a transaction history.
// Transactions must already be in ledger order (date asc, creation asc).
func ReplayBalance(txs []LedgerTransaction) Money {
	balance := ZeroMoney()
	for i := range txs {
		balance = balance.Add(txs[i].Delta())
	}
	return balance
}

// =============================================================================
// PAYMENT RECORD - One partial payment against one obligation
// =============================================================================

type PaymentRecord struct {
	ID           string
	ObligationID string
	Amount       Money
	PaymentDate  Date

	// Billing period this payment covers. All three are optional but
	// co-present; nil means "no explicit period supplied".
	Period *BillingPeriod

	Method PaymentMethod
	Notes  string

	// DerivedExpenseID is non-empty once the record exists (1:1).
	DerivedExpenseID string
	// AttachmentID is empty when the receipt upload was skipped or failed.
	AttachmentID string

	CreatedAt time.Time
}

// BillingPeriod is the interval a payment is meant to cover.
type BillingPeriod struct {
	Start   Date
	End     Date
	DueDate Date
}

// Equal reports whether two periods have identical start and end dates.
// Exact match, not overlap — this is the duplicate-detection key.
func (p BillingPeriod) Equal(o BillingPeriod) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

// =============================================================================
// DERIVED EXPENSE - Bookkeeping entry generated per payment
// =============================================================================

// DerivedExpense makes a partial payment visible in general bookkeeping.
// Exactly one per PaymentRecord; removed by compensating rollback, not by
// a referential cascade.
type DerivedExpense struct {
	ID          string
	Description string
	Amount      Money
	Date        Date
	Method      PaymentMethod
	CreatedAt   time.Time
}

// =============================================================================
// ATTACHMENT - Optional proof-of-payment metadata
// =============================================================================

// Attachment is best-effort receipt metadata. Its absence never blocks
// recording or reversing a payment.
type Attachment struct {
	ID        string
	URL       string
	StorageID string // id in the external blob store
	FileName  string
	CreatedAt time.Time
}

// =============================================================================
// CREDIT ACCOUNT - Revolving account accumulating charges and interest
// =============================================================================

type CreditAccount struct {
	ID        string
	Name      string
	Balance   Money // current balance; reproducible via ReplayBalance
	CreatedAt time.Time
}
