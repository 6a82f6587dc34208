package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zurcherConstruction/ledger-service/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testObligation(id string, kind ledger.ObligationKind) *ledger.Obligation {
	o := &ledger.Obligation{
		ID:          id,
		Kind:        kind,
		Description: "Office lease",
		Frequency:   ledger.FreqMonthly,
		TotalAmount: ledger.MustMoney("2500.00"),
		PaidAmount:  ledger.ZeroMoney(),
		Status:      ledger.StatusUnpaid,
		Date:        ledger.NewDate(2025, time.January, 1),
	}
	if kind == ledger.KindCharge {
		o.AccountID = "acct-1"
		o.Frequency = ""
	}
	return o
}

// =============================================================================
// OBLIGATION ROUND-TRIPS
// =============================================================================

func TestObligationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := testObligation("obl-1", ledger.KindFixedExpense)
	require.NoError(t, s.CreateObligation(ctx, created))

	got, err := s.GetObligation(ctx, "obl-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, ledger.KindFixedExpense, got.Kind)
	assert.Equal(t, ledger.FreqMonthly, got.Frequency)
	assert.Equal(t, "2500.00", got.TotalAmount.String())
	assert.Equal(t, "0.00", got.PaidAmount.String())
	assert.Equal(t, "2025-01-01", got.Date.String())
	assert.Equal(t, int64(0), got.Version)
}

func TestGetObligation_Missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetObligation(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateObligation_OptimisticLock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))

	// Two readers grab the same version
	first, err := s.GetObligation(ctx, "obl-1")
	require.NoError(t, err)
	second, err := s.GetObligation(ctx, "obl-1")
	require.NoError(t, err)

	// The first write wins and bumps the version
	first.PaidAmount = ledger.MustMoney("500.00")
	first.Status = ledger.StatusPartial
	require.NoError(t, s.UpdateObligation(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	// The second write carries the stale version and loses
	second.PaidAmount = ledger.MustMoney("800.00")
	err = s.UpdateObligation(ctx, second)
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)

	// The winner's state persisted
	got, err := s.GetObligation(ctx, "obl-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", got.PaidAmount.String())
}

func TestUpdateObligation_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateObligation(context.Background(), testObligation("ghost", ledger.KindFixedExpense))
	assert.ErrorIs(t, err, ledger.ErrObligationNotFound)
}

func TestListOpenCharges_OrderAndFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mkCharge := func(id string, d ledger.Date, total, paid string) *ledger.Obligation {
		o := testObligation(id, ledger.KindCharge)
		o.Date = d
		o.TotalAmount = ledger.MustMoney(total)
		o.PaidAmount = ledger.MustMoney(paid)
		o.Status = ledger.DeriveStatus(o.PaidAmount, o.TotalAmount)
		return o
	}

	require.NoError(t, s.CreateObligation(ctx, mkCharge("chg-b", ledger.NewDate(2025, time.January, 10), "50", "0")))
	require.NoError(t, s.CreateObligation(ctx, mkCharge("chg-a", ledger.NewDate(2025, time.January, 5), "100", "0")))
	require.NoError(t, s.CreateObligation(ctx, mkCharge("chg-settled", ledger.NewDate(2025, time.January, 1), "75", "75")))
	// A fixed expense on the same account id must not leak in
	fixed := testObligation("obl-fixed", ledger.KindFixedExpense)
	fixed.AccountID = "acct-1"
	require.NoError(t, s.CreateObligation(ctx, fixed))

	charges, err := s.ListOpenCharges(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "chg-a", charges[0].ID)
	assert.Equal(t, "chg-b", charges[1].ID)
}

// =============================================================================
// PAYMENTS AND THE UNIQUE PERIOD INDEX
// =============================================================================

func testPayment(id, obligationID string, period *ledger.BillingPeriod) *ledger.PaymentRecord {
	return &ledger.PaymentRecord{
		ID:               id,
		ObligationID:     obligationID,
		Amount:           ledger.MustMoney("500.00"),
		PaymentDate:      ledger.NewDate(2025, time.February, 5),
		Period:           period,
		Method:           ledger.MethodTransfer,
		Notes:            "wire ref 4417",
		DerivedExpenseID: "exp-" + id,
		CreatedAt:        time.Now().UTC(),
	}
}

func januaryPeriod() *ledger.BillingPeriod {
	return &ledger.BillingPeriod{
		Start:   ledger.NewDate(2025, time.January, 1),
		End:     ledger.NewDate(2025, time.January, 31),
		DueDate: ledger.NewDate(2025, time.January, 31),
	}
}

func TestPaymentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))

	require.NoError(t, s.CreatePayment(ctx, testPayment("pay-1", "obl-1", januaryPeriod())))

	got, err := s.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "500.00", got.Amount.String())
	assert.Equal(t, "wire ref 4417", got.Notes)
	require.NotNil(t, got.Period)
	assert.Equal(t, "2025-01-01", got.Period.Start.String())
	assert.Equal(t, "2025-01-31", got.Period.End.String())
}

func TestUniquePeriodIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))
	require.NoError(t, s.CreatePayment(ctx, testPayment("pay-1", "obl-1", januaryPeriod())))

	// Identical period on the same obligation is rejected at the schema level
	err := s.CreatePayment(ctx, testPayment("pay-2", "obl-1", januaryPeriod()))
	assert.ErrorIs(t, err, ledger.ErrDuplicatePeriod)

	// A different obligation may reuse the period
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-2", ledger.KindFixedExpense)))
	assert.NoError(t, s.CreatePayment(ctx, testPayment("pay-3", "obl-2", januaryPeriod())))
}

func TestUniquePeriodIndex_IgnoresPeriodlessPayments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))

	// Payments without explicit bounds never hit the partial index
	require.NoError(t, s.CreatePayment(ctx, testPayment("pay-1", "obl-1", nil)))
	assert.NoError(t, s.CreatePayment(ctx, testPayment("pay-2", "obl-1", nil)))
}

func TestDeletePayment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))
	require.NoError(t, s.CreatePayment(ctx, testPayment("pay-1", "obl-1", nil)))

	require.NoError(t, s.DeletePayment(ctx, "pay-1"))

	got, err := s.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeletePayment(ctx, "pay-1"), ledger.ErrPaymentNotFound)
}

// =============================================================================
// ACCOUNTS AND TRANSACTIONS
// =============================================================================

func TestAccountAndTransactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAccount(ctx, &ledger.CreditAccount{
		ID:      "acct-1",
		Name:    "Supplier card",
		Balance: ledger.ZeroMoney(),
	}))

	post := func(id string, d ledger.Date, amount string, txType ledger.TransactionType, after string) {
		require.NoError(t, s.AppendTransaction(ctx, &ledger.LedgerTransaction{
			ID:           id,
			AccountID:    "acct-1",
			Date:         d,
			Amount:       ledger.MustMoney(amount),
			Type:         txType,
			BalanceAfter: ledger.MustMoney(after),
			CreatedAt:    time.Now().UTC(),
		}))
	}
	post("tx-1", ledger.NewDate(2025, time.January, 5), "100.00", ledger.TxCharge, "100.00")
	post("tx-2", ledger.NewDate(2025, time.January, 10), "25.50", ledger.TxInterest, "125.50")
	post("tx-3", ledger.NewDate(2025, time.January, 20), "125.50", ledger.TxPayment, "0.00")

	require.NoError(t, s.UpdateAccountBalance(ctx, "acct-1", ledger.ZeroMoney()))

	txs, err := s.ListTransactions(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, "tx-3", txs[2].ID)

	// Replaying the full history reproduces the final stored balance
	replayed := ledger.ReplayBalance(txs)
	assert.True(t, replayed.Value.Equal(txs[2].BalanceAfter.Value),
		"replayed %s, stored %s", replayed, txs[2].BalanceAfter)
}

func TestUpdateAccountBalance_Missing(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateAccountBalance(context.Background(), "nope", ledger.ZeroMoney())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// =============================================================================
// TRANSACTIONAL SEMANTICS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.CreateExpense(ctx, &ledger.DerivedExpense{
			ID:          "exp-1",
			Description: "Payment - Office lease",
			Amount:      ledger.MustMoney("500.00"),
			Date:        ledger.NewDate(2025, time.February, 5),
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, testPayment("pay-1", "obl-1", nil)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing leaked out of the failed transaction
	expense, err := s.GetExpense(ctx, "exp-1")
	require.NoError(t, err)
	assert.Nil(t, expense)
	payment, err := s.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateObligation(ctx, testObligation("obl-1", ledger.KindFixedExpense)))

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		o, err := tx.GetObligation(ctx, "obl-1")
		if err != nil {
			return err
		}
		o.PaidAmount = ledger.MustMoney("500.00")
		o.Status = ledger.StatusPartial
		if err := tx.UpdateObligation(ctx, o); err != nil {
			return err
		}
		return tx.CreatePayment(ctx, testPayment("pay-1", "obl-1", nil))
	})
	require.NoError(t, err)

	got, err := s.GetObligation(ctx, "obl-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", got.PaidAmount.String())
	assert.Equal(t, int64(1), got.Version)

	payment, err := s.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.NotNil(t, payment)
}
