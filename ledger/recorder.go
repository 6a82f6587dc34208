/*
recorder.go - Partial-payment orchestration for fixed expenses

PURPOSE:
  Records one partial payment against a fixed-expense obligation:

    validate amount -> reject duplicate period -> best-effort receipt
    upload -> (in ONE store transaction) create DerivedExpense, create
    PaymentRecord, bump obligation paidAmount/status

  The DerivedExpense is the financial record of record; the PaymentRecord
  links it to the obligation; the Attachment is optional garnish.

FAILURE SEMANTICS:
  - Validation and duplicate-period failures abort before any write.
  - Receipt upload failure is logged and swallowed: the payment is
    recorded without an attachment.
  - Everything after validation runs inside WithTx, so a mid-sequence
    persistence failure leaves no orphaned DerivedExpense behind.
  - The obligation update carries an optimistic version check; a
    concurrent payment against the same obligation surfaces as
    ErrConcurrentModification instead of overshooting the total.

SEE ALSO:
  - period.go: Duplicate detection invoked here
  - rollback.go: The inverse operation
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// PARTIAL PAYMENT RECORDER
// =============================================================================

type PartialPaymentRecorder struct {
	Store    TxStore
	Uploader Uploader
	Log      *logrus.Logger
}

func NewPartialPaymentRecorder(store TxStore, uploader Uploader, log *logrus.Logger) *PartialPaymentRecorder {
	return &PartialPaymentRecorder{Store: store, Uploader: uploader, Log: log}
}

// ReceiptFile is an optional proof-of-payment upload.
type ReceiptFile struct {
	FileName string
	Data     []byte
}

type RecordPaymentInput struct {
	ObligationID string
	Amount       Money
	PaymentDate  Date
	Method       PaymentMethod
	Notes        string
	Period       *BillingPeriod
	Receipt      *ReceiptFile
}

type RecordPaymentResult struct {
	Payment    *PaymentRecord
	Expense    *DerivedExpense
	Obligation *Obligation
}

// RecordPayment validates and persists one partial payment.
func (r *PartialPaymentRecorder) RecordPayment(ctx context.Context, in RecordPaymentInput) (*RecordPaymentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := ValidatePeriodBounds(in.Period); err != nil {
		return nil, err
	}

	obligation, err := r.Store.GetObligation(ctx, in.ObligationID)
	if err != nil {
		return nil, err
	}
	if obligation == nil {
		return nil, ErrObligationNotFound
	}

	remaining := obligation.Remaining()
	if in.Amount.Sub(remaining).Value.GreaterThan(Epsilon) {
		return nil, &AmountExceedsRemainingError{
			ObligationID: obligation.ID,
			Total:        obligation.TotalAmount,
			Paid:         obligation.PaidAmount,
			Remaining:    remaining,
			Requested:    in.Amount,
		}
	}

	history, err := r.Store.ListPaymentsByObligation(ctx, obligation.ID)
	if err != nil {
		return nil, err
	}
	if conflict := ValidateNoDuplicatePeriod(history, obligation.Frequency, in.PaymentDate, in.Period); conflict != nil {
		return nil, &DuplicatePeriodError{
			ObligationID: obligation.ID,
			Frequency:    obligation.Frequency,
			Conflicting:  conflict,
		}
	}

	// Receipt upload happens outside the financial transaction and never
	// gates it. On failure the payment is recorded without an attachment.
	attachment := r.uploadReceipt(ctx, obligation.ID, in.Receipt)

	now := time.Now().UTC()
	expense := &DerivedExpense{
		ID:          uuid.NewString(),
		Description: fmt.Sprintf("Payment - %s", obligation.Description),
		Amount:      in.Amount,
		Date:        in.PaymentDate,
		Method:      in.Method,
		CreatedAt:   now,
	}
	payment := &PaymentRecord{
		ID:               uuid.NewString(),
		ObligationID:     obligation.ID,
		Amount:           in.Amount,
		PaymentDate:      in.PaymentDate,
		Period:           in.Period,
		Method:           in.Method,
		Notes:            in.Notes,
		DerivedExpenseID: expense.ID,
		CreatedAt:        now,
	}
	if attachment != nil {
		payment.AttachmentID = attachment.ID
	}

	obligation.PaidAmount = obligation.PaidAmount.Add(in.Amount)
	obligation.Status = DeriveStatus(obligation.PaidAmount, obligation.TotalAmount)

	err = r.Store.WithTx(ctx, func(s Store) error {
		if err := s.CreateExpense(ctx, expense); err != nil {
			return err
		}
		if attachment != nil {
			if err := s.CreateAttachment(ctx, attachment); err != nil {
				return err
			}
		}
		if err := s.CreatePayment(ctx, payment); err != nil {
			return err
		}
		return s.UpdateObligation(ctx, obligation)
	})
	if err != nil {
		// The financial write failed after a successful blob upload; the
		// blob is unreachable from any record, so try to reclaim it.
		if attachment != nil {
			if delErr := r.Uploader.Delete(ctx, attachment.StorageID); delErr != nil {
				r.Log.WithError(delErr).WithField("storage_id", attachment.StorageID).
					Warn("failed to reclaim orphaned receipt blob")
			}
		}
		return nil, err
	}

	r.Log.WithFields(logrus.Fields{
		"obligation_id": obligation.ID,
		"payment_id":    payment.ID,
		"amount":        in.Amount.String(),
		"status":        obligation.Status,
	}).Info("partial payment recorded")

	return &RecordPaymentResult{
		Payment:    payment,
		Expense:    expense,
		Obligation: obligation,
	}, nil
}

// uploadReceipt pushes the receipt to external storage. Returns nil when no
// receipt was supplied or the upload failed; failure is logged only.
func (r *PartialPaymentRecorder) uploadReceipt(ctx context.Context, obligationID string, receipt *ReceiptFile) *Attachment {
	if receipt == nil || r.Uploader == nil {
		return nil
	}

	url, storageID, err := r.Uploader.Upload(ctx, receipt.FileName, receipt.Data)
	if err != nil {
		r.Log.WithError(err).WithFields(logrus.Fields{
			"obligation_id": obligationID,
			"file_name":     receipt.FileName,
		}).Warn("receipt upload failed; recording payment without attachment")
		return nil
	}

	return &Attachment{
		ID:        uuid.NewString(),
		URL:       url,
		StorageID: storageID,
		FileName:  receipt.FileName,
		CreatedAt: time.Now().UTC(),
	}
}
