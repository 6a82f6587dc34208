/*
allocation.go - FIFO distribution of a payment over open charges

PURPOSE:
  Given a payment against a revolving credit account, decide how much of
  it lands on each open charge. Oldest charge first, ties broken by
  charge id, so the same inputs always produce the same distribution.

THE ENGINE DOES NOT PERSIST:
  Allocate is read-only. The caller persists each allocation as an
  obligation update and writes the corresponding LedgerTransaction rows.
  Keeping the walk pure makes the determinism and conservation
  properties directly testable.

LEFTOVER:
  A payment larger than the sum of open charges is not an error. The
  surplus comes back as Leftover and the caller stores it as account
  credit (the persisted payment transaction carries the full amount, so
  the account balance may go negative).

SEE ALSO:
  - api/handlers.go: Persists allocations for POST /credit-account/transaction
  - types.go: Obligation.Remaining, DeriveStatus
*/
package ledger

import (
	"context"
	"sort"
)

// =============================================================================
// ALLOCATION ENGINE
// =============================================================================

type AllocationEngine struct {
	Store Store
}

func NewAllocationEngine(store Store) *AllocationEngine {
	return &AllocationEngine{Store: store}
}

// Allocation is one charge's share of a payment.
type Allocation struct {
	ChargeID      string
	AmountApplied Money
	NewStatus     PaymentStatus
}

// AllocationResult is the full distribution of one payment.
// Conservation invariant: TotalApplied + Leftover == the payment amount.
type AllocationResult struct {
	Allocations  []Allocation
	TotalApplied Money
	Leftover     Money
	NewBalance   Money
}

// Allocate distributes paymentAmount over the account's open charges,
// oldest first. Returns ErrInvalidAmount unless paymentAmount > 0 and
// ErrAccountNotFound for an unknown account.
func (e *AllocationEngine) Allocate(ctx context.Context, accountID string, paymentAmount Money) (*AllocationResult, error) {
	if !paymentAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	account, err := e.Store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	charges, err := e.Store.ListOpenCharges(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// The store contract already orders by (date, id), but the ordering is
	// load-bearing for reproducibility, so the engine enforces it itself.
	sort.SliceStable(charges, func(i, j int) bool {
		if !charges[i].Date.Equal(charges[j].Date) {
			return charges[i].Date.Before(charges[j].Date)
		}
		return charges[i].ID < charges[j].ID
	})

	result := &AllocationResult{TotalApplied: ZeroMoney()}
	remaining := paymentAmount

	for i := range charges {
		if remaining.Value.LessThanOrEqual(Epsilon) {
			break
		}
		charge := &charges[i]
		pending := charge.Remaining()
		if pending.Value.LessThanOrEqual(Epsilon) {
			continue
		}

		applied := remaining.Min(pending)
		newStatus := StatusPartial
		if pending.Sub(applied).Value.LessThanOrEqual(Epsilon) {
			newStatus = StatusPaid
		}

		result.Allocations = append(result.Allocations, Allocation{
			ChargeID:      charge.ID,
			AmountApplied: applied,
			NewStatus:     newStatus,
		})
		result.TotalApplied = result.TotalApplied.Add(applied)
		remaining = remaining.Sub(applied)
	}

	result.Leftover = remaining
	result.NewBalance = account.Balance.Sub(result.TotalApplied)
	return result, nil
}
