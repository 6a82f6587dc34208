// Package store provides an in-memory ledger.Store implementation for
// testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/zurcherConstruction/ledger-service/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	obligations  map[string]ledger.Obligation
	payments     map[string]ledger.PaymentRecord
	expenses     map[string]ledger.DerivedExpense
	attachments  map[string]ledger.Attachment
	accounts     map[string]ledger.CreditAccount
	transactions map[string][]ledger.LedgerTransaction
}

func NewMemory() *Memory {
	return &Memory{
		obligations:  make(map[string]ledger.Obligation),
		payments:     make(map[string]ledger.PaymentRecord),
		expenses:     make(map[string]ledger.DerivedExpense),
		attachments:  make(map[string]ledger.Attachment),
		accounts:     make(map[string]ledger.CreditAccount),
		transactions: make(map[string][]ledger.LedgerTransaction),
	}
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func (m *Memory) CreateObligation(_ context.Context, o *ledger.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[o.ID] = *o
	return nil
}

func (m *Memory) GetObligation(_ context.Context, id string) (*ledger.Obligation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.obligations[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) UpdateObligation(_ context.Context, o *ledger.Obligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.obligations[o.ID]
	if !ok {
		return ledger.ErrObligationNotFound
	}
	if stored.Version != o.Version {
		return ledger.ErrConcurrentModification
	}
	o.Version++
	m.obligations[o.ID] = *o
	return nil
}

func (m *Memory) ListOpenCharges(_ context.Context, accountID string) ([]ledger.Obligation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var charges []ledger.Obligation
	for _, o := range m.obligations {
		if o.Kind == ledger.KindCharge && o.AccountID == accountID && o.Open() {
			charges = append(charges, o)
		}
	}
	sort.SliceStable(charges, func(i, j int) bool {
		if !charges[i].Date.Equal(charges[j].Date) {
			return charges[i].Date.Before(charges[j].Date)
		}
		return charges[i].ID < charges[j].ID
	})
	return charges, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) CreatePayment(_ context.Context, p *ledger.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = *p
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id string) (*ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) DeletePayment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return ledger.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) ListPaymentsByObligation(_ context.Context, obligationID string) ([]ledger.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []ledger.PaymentRecord
	for _, p := range m.payments {
		if p.ObligationID == obligationID {
			records = append(records, p)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// =============================================================================
// DERIVED EXPENSES
// =============================================================================

func (m *Memory) CreateExpense(_ context.Context, e *ledger.DerivedExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = *e
	return nil
}

func (m *Memory) GetExpense(_ context.Context, id string) (*ledger.DerivedExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expenses[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) DeleteExpense(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expenses, id)
	return nil
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (m *Memory) CreateAttachment(_ context.Context, a *ledger.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[a.ID] = *a
	return nil
}

func (m *Memory) GetAttachment(_ context.Context, id string) (*ledger.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attachments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) DeleteAttachment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attachments, id)
	return nil
}

// =============================================================================
// CREDIT ACCOUNTS
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, a *ledger.CreditAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (*ledger.CreditAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) UpdateAccountBalance(_ context.Context, id string, balance ledger.Money) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	a.Balance = balance
	m.accounts[id] = a
	return nil
}

// =============================================================================
// LEDGER TRANSACTIONS (append-only)
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, tx *ledger.LedgerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.AccountID] = append(m.transactions[tx.AccountID], *tx)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, accountID string) ([]ledger.LedgerTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txs := m.transactions[accountID]
	out := make([]ledger.LedgerTransaction, len(txs))
	copy(out, txs)
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot/restore gives all-or-nothing semantics
// =============================================================================

// WithTx runs fn against the store and restores the pre-call snapshot if fn
// fails. Good enough for tests; the sqlite store uses real transactions.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	snapshot := m.snapshot()
	if err := fn(&txMemory{m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

// txMemory is the handle passed to WithTx callbacks. Writes go straight to
// the parent; rollback is handled by snapshot/restore.
type txMemory struct {
	*Memory
}

func (m *Memory) snapshot() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := NewMemory()
	for k, v := range m.obligations {
		s.obligations[k] = v
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.expenses {
		s.expenses[k] = v
	}
	for k, v := range m.attachments {
		s.attachments[k] = v
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.transactions {
		txs := make([]ledger.LedgerTransaction, len(v))
		copy(txs, v)
		s.transactions[k] = txs
	}
	return s
}

func (m *Memory) restore(s *Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations = s.obligations
	m.payments = s.payments
	m.expenses = s.expenses
	m.attachments = s.attachments
	m.accounts = s.accounts
	m.transactions = s.transactions
}
