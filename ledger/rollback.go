/*
rollback.go - Compensating reversal of a recorded payment

PURPOSE:
  Undoes everything RecordPayment did, in an order that fails safe:

    1. best-effort delete of the receipt blob (failure logged, never blocks)
    2. in ONE store transaction:
         delete the Attachment row
         delete the DerivedExpense
         decrement the obligation's paidAmount and re-derive status
         delete the PaymentRecord LAST

  The PaymentRecord goes last on purpose: if the sequence dies midway the
  transaction rolls back and the payment stays discoverable, rather than
  vanishing while its derived records linger.

CORRUPTION CLAMP:
  A decrement that would push paidAmount below zero indicates prior
  corruption. The amount is clamped to zero and the result flags it so
  callers can alert instead of silently propagating a negative balance.

SEE ALSO:
  - recorder.go: The forward operation
*/
package ledger

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// ROLLBACK COORDINATOR
// =============================================================================

type RollbackCoordinator struct {
	Store    TxStore
	Uploader Uploader
	Log      *logrus.Logger
}

func NewRollbackCoordinator(store TxStore, uploader Uploader, log *logrus.Logger) *RollbackCoordinator {
	return &RollbackCoordinator{Store: store, Uploader: uploader, Log: log}
}

type ReversePaymentResult struct {
	DeletedPayment *PaymentRecord
	Obligation     *Obligation

	// CorruptionDetected is set when the decrement would have driven
	// paidAmount negative and was clamped to zero.
	CorruptionDetected bool
}

// ReversePayment reverses a recorded payment and restores the obligation's
// aggregate exactly.
func (c *RollbackCoordinator) ReversePayment(ctx context.Context, paymentID string) (*ReversePaymentResult, error) {
	payment, err := c.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	obligation, err := c.Store.GetObligation(ctx, payment.ObligationID)
	if err != nil {
		return nil, err
	}
	if obligation == nil {
		return nil, ErrObligationNotFound
	}

	c.deleteReceiptBlob(ctx, payment)

	newPaid := obligation.PaidAmount.Sub(payment.Amount)
	corrupted := false
	if newPaid.IsNegative() {
		c.Log.WithFields(logrus.Fields{
			"obligation_id": obligation.ID,
			"payment_id":    payment.ID,
			"paid_amount":   obligation.PaidAmount.String(),
			"reversal":      payment.Amount.String(),
		}).Error("reversal would drive paidAmount negative; clamping to zero")
		newPaid = ZeroMoney()
		corrupted = true
	}
	obligation.PaidAmount = newPaid
	obligation.Status = DeriveStatus(obligation.PaidAmount, obligation.TotalAmount)

	err = c.Store.WithTx(ctx, func(s Store) error {
		if payment.AttachmentID != "" {
			if err := s.DeleteAttachment(ctx, payment.AttachmentID); err != nil {
				return err
			}
		}
		if err := s.DeleteExpense(ctx, payment.DerivedExpenseID); err != nil {
			return err
		}
		if err := s.UpdateObligation(ctx, obligation); err != nil {
			return err
		}
		return s.DeletePayment(ctx, payment.ID)
	})
	if err != nil {
		return nil, err
	}

	c.Log.WithFields(logrus.Fields{
		"obligation_id": obligation.ID,
		"payment_id":    payment.ID,
		"amount":        payment.Amount.String(),
		"status":        obligation.Status,
	}).Info("payment reversed")

	return &ReversePaymentResult{
		DeletedPayment:     payment,
		Obligation:         obligation,
		CorruptionDetected: corrupted,
	}, nil
}

// deleteReceiptBlob removes the receipt from external storage. Best-effort:
// a failure is logged and the reversal continues.
func (c *RollbackCoordinator) deleteReceiptBlob(ctx context.Context, payment *PaymentRecord) {
	if payment.AttachmentID == "" || c.Uploader == nil {
		return
	}

	attachment, err := c.Store.GetAttachment(ctx, payment.AttachmentID)
	if err != nil || attachment == nil {
		c.Log.WithField("attachment_id", payment.AttachmentID).
			Warn("attachment metadata missing; skipping blob delete")
		return
	}

	if err := c.Uploader.Delete(ctx, attachment.StorageID); err != nil {
		c.Log.WithError(err).WithFields(logrus.Fields{
			"payment_id":    payment.ID,
			"attachment_id": attachment.ID,
		}).Warn("receipt blob delete failed; continuing reversal")
	}
}
