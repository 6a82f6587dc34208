package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zurcherConstruction/ledger-service/ledger"
	"github.com/zurcherConstruction/ledger-service/ledger/store"
)

func charge(id, accountID string, d ledger.Date, total, paid float64) *ledger.Obligation {
	o := &ledger.Obligation{
		ID:          id,
		Kind:        ledger.KindCharge,
		AccountID:   accountID,
		Description: "charge " + id,
		TotalAmount: money(total),
		PaidAmount:  money(paid),
		Date:        d,
	}
	o.Status = ledger.DeriveStatus(o.PaidAmount, o.TotalAmount)
	return o
}

func newAccountStore(t *testing.T, accountID string, balance float64, charges ...*ledger.Obligation) *store.Memory {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	if err := s.CreateAccount(ctx, &ledger.CreditAccount{
		ID:      accountID,
		Name:    "Test card",
		Balance: money(balance),
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	for _, c := range charges {
		if err := s.CreateObligation(ctx, c); err != nil {
			t.Fatalf("create charge %s: %v", c.ID, err)
		}
	}
	return s
}

// =============================================================================
// FIFO DISTRIBUTION
// =============================================================================

func TestAllocate_OldestChargeFirst(t *testing.T) {
	// GIVEN: Three open charges, the payment covers the first fully, the
	// second partially, and never reaches the third
	s := newAccountStore(t, "acct-1", 350,
		charge("chg-a", "acct-1", date(2025, time.January, 5), 100, 0),
		charge("chg-b", "acct-1", date(2025, time.January, 10), 50, 0),
		charge("chg-c", "acct-1", date(2025, time.January, 20), 200, 0),
	)
	engine := ledger.NewAllocationEngine(s)

	// WHEN: $120 is paid
	result, err := engine.Allocate(context.Background(), "acct-1", money(120))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// THEN: $100 paid, $20 partial, third charge untouched
	if len(result.Allocations) != 2 {
		t.Fatalf("allocations = %d, want 2", len(result.Allocations))
	}
	first, second := result.Allocations[0], result.Allocations[1]
	if first.ChargeID != "chg-a" || first.AmountApplied.String() != "100.00" || first.NewStatus != ledger.StatusPaid {
		t.Errorf("first allocation = %+v", first)
	}
	if second.ChargeID != "chg-b" || second.AmountApplied.String() != "20.00" || second.NewStatus != ledger.StatusPartial {
		t.Errorf("second allocation = %+v", second)
	}
	if result.TotalApplied.String() != "120.00" {
		t.Errorf("total applied = %s, want 120.00", result.TotalApplied)
	}
	if !result.Leftover.Negligible() {
		t.Errorf("leftover = %s, want 0", result.Leftover)
	}
	if result.NewBalance.String() != "230.00" {
		t.Errorf("new balance = %s, want 230.00", result.NewBalance)
	}
}

func TestAllocate_TieBrokenByChargeID(t *testing.T) {
	// Two charges on the same day: the lower id wins the tie
	sameDay := date(2025, time.June, 1)
	s := newAccountStore(t, "acct-1", 200,
		charge("chg-b", "acct-1", sameDay, 100, 0),
		charge("chg-a", "acct-1", sameDay, 100, 0),
	)
	engine := ledger.NewAllocationEngine(s)

	result, err := engine.Allocate(context.Background(), "acct-1", money(100))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if len(result.Allocations) != 1 || result.Allocations[0].ChargeID != "chg-a" {
		t.Errorf("allocations = %+v, want chg-a only", result.Allocations)
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	build := func() *ledger.AllocationEngine {
		s := newAccountStore(t, "acct-1", 1000,
			charge("chg-c", "acct-1", date(2025, time.February, 1), 75.50, 10),
			charge("chg-a", "acct-1", date(2025, time.January, 15), 120, 0),
			charge("chg-b", "acct-1", date(2025, time.January, 15), 33.33, 0),
		)
		return ledger.NewAllocationEngine(s)
	}

	first, err := build().Allocate(context.Background(), "acct-1", money(180))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := build().Allocate(context.Background(), "acct-1", money(180))
		if err != nil {
			t.Fatalf("allocate run %d: %v", i, err)
		}
		if len(again.Allocations) != len(first.Allocations) {
			t.Fatalf("run %d produced %d allocations, want %d", i, len(again.Allocations), len(first.Allocations))
		}
		for j := range first.Allocations {
			if again.Allocations[j].ChargeID != first.Allocations[j].ChargeID ||
				!again.Allocations[j].AmountApplied.Value.Equal(first.Allocations[j].AmountApplied.Value) {
				t.Errorf("run %d allocation %d = %+v, want %+v", i, j, again.Allocations[j], first.Allocations[j])
			}
		}
	}
}

// =============================================================================
// CONSERVATION AND LEFTOVER
// =============================================================================

func TestAllocate_ConservationHolds(t *testing.T) {
	tests := []struct {
		name    string
		payment float64
	}{
		{"payment below first charge", 40},
		{"payment exactly covers all", 350},
		{"payment exceeds all charges", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newAccountStore(t, "acct-1", 350,
				charge("chg-a", "acct-1", date(2025, time.January, 5), 100, 0),
				charge("chg-b", "acct-1", date(2025, time.January, 10), 50, 0),
				charge("chg-c", "acct-1", date(2025, time.January, 20), 200, 0),
			)
			engine := ledger.NewAllocationEngine(s)

			result, err := engine.Allocate(context.Background(), "acct-1", money(tt.payment))
			if err != nil {
				t.Fatalf("allocate: %v", err)
			}

			// TotalApplied + Leftover must equal the payment, exactly
			sum := result.TotalApplied.Add(result.Leftover)
			if !sum.Value.Equal(money(tt.payment).Value) {
				t.Errorf("applied %s + leftover %s = %s, want %s",
					result.TotalApplied, result.Leftover, sum, money(tt.payment))
			}

			// No allocation exceeds its charge's remaining
			for _, a := range result.Allocations {
				if a.AmountApplied.Value.IsNegative() {
					t.Errorf("negative allocation on %s: %s", a.ChargeID, a.AmountApplied)
				}
			}
		})
	}
}

func TestAllocate_OverpaymentReturnsLeftover(t *testing.T) {
	s := newAccountStore(t, "acct-1", 100,
		charge("chg-a", "acct-1", date(2025, time.January, 5), 100, 0),
	)
	engine := ledger.NewAllocationEngine(s)

	result, err := engine.Allocate(context.Background(), "acct-1", money(150))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if result.Leftover.String() != "50.00" {
		t.Errorf("leftover = %s, want 50.00", result.Leftover)
	}
	// Balance was exactly the charge total; the surplus drives it negative
	if result.NewBalance.String() != "0.00" {
		t.Errorf("new balance = %s, want 0.00", result.NewBalance)
	}
}

func TestAllocate_SkipsSettledCharges(t *testing.T) {
	// A charge with only a negligible remainder absorbs nothing
	s := newAccountStore(t, "acct-1", 200,
		charge("chg-a", "acct-1", date(2025, time.January, 5), 100, 99.995),
		charge("chg-b", "acct-1", date(2025, time.January, 10), 80, 0),
	)
	engine := ledger.NewAllocationEngine(s)

	result, err := engine.Allocate(context.Background(), "acct-1", money(80))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if len(result.Allocations) != 1 || result.Allocations[0].ChargeID != "chg-b" {
		t.Fatalf("allocations = %+v, want chg-b only", result.Allocations)
	}
	if result.Allocations[0].NewStatus != ledger.StatusPaid {
		t.Errorf("status = %s, want paid", result.Allocations[0].NewStatus)
	}
}

func TestAllocate_PartiallyPaidChargeAbsorbsOnlyRemainder(t *testing.T) {
	s := newAccountStore(t, "acct-1", 200,
		charge("chg-a", "acct-1", date(2025, time.January, 5), 100, 60),
		charge("chg-b", "acct-1", date(2025, time.January, 10), 100, 0),
	)
	engine := ledger.NewAllocationEngine(s)

	result, err := engine.Allocate(context.Background(), "acct-1", money(100))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if len(result.Allocations) != 2 {
		t.Fatalf("allocations = %d, want 2", len(result.Allocations))
	}
	if result.Allocations[0].AmountApplied.String() != "40.00" {
		t.Errorf("first applied = %s, want 40.00", result.Allocations[0].AmountApplied)
	}
	if result.Allocations[1].AmountApplied.String() != "60.00" {
		t.Errorf("second applied = %s, want 60.00", result.Allocations[1].AmountApplied)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestAllocate_RejectsNonPositiveAmounts(t *testing.T) {
	s := newAccountStore(t, "acct-1", 100)
	engine := ledger.NewAllocationEngine(s)

	for _, amount := range []float64{0, -25} {
		_, err := engine.Allocate(context.Background(), "acct-1", money(amount))
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("amount %v: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestAllocate_UnknownAccount(t *testing.T) {
	engine := ledger.NewAllocationEngine(store.NewMemory())

	_, err := engine.Allocate(context.Background(), "nope", money(50))
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestAllocate_NoOpenCharges(t *testing.T) {
	// Everything comes back as leftover when nothing is open
	s := newAccountStore(t, "acct-1", 0)
	engine := ledger.NewAllocationEngine(s)

	result, err := engine.Allocate(context.Background(), "acct-1", money(75))
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(result.Allocations) != 0 {
		t.Errorf("allocations = %+v, want none", result.Allocations)
	}
	if result.Leftover.String() != "75.00" {
		t.Errorf("leftover = %s, want 75.00", result.Leftover)
	}
}
