/*
errors.go - Centralized error types for the reconciliation core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP statuses via the Is* helpers.

ERROR CATEGORIES:
  1. Validation errors - Bad amounts, malformed periods
  2. Duplicate errors  - A billing period already has a payment
  3. Not-found errors  - Missing obligation/payment/account
  4. Concurrency       - Optimistic version conflict on an obligation
  5. External          - Attachment storage failures (always non-fatal)

USAGE:
  Callers match with errors.Is / errors.As:

    var dup *DuplicatePeriodError
    if errors.As(err, &dup) {
        // dup.Conflicting holds the prior payment for UI display
    }

SEE ALSO:
  - recorder.go: Produces validation and duplicate errors
  - api/handlers.go: Maps errors to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a payment amount is zero or negative.
	ErrInvalidAmount = errors.New("payment amount must be positive")

	// ErrAmountExceedsRemaining is returned when a payment would overshoot
	// the obligation's remaining balance beyond tolerance.
	ErrAmountExceedsRemaining = errors.New("amount exceeds remaining balance")

	// ErrDuplicatePeriod is returned when the billing period already has a
	// recorded payment.
	ErrDuplicatePeriod = errors.New("billing period already paid")

	// ErrInvalidPeriod is returned when a period is malformed (end before
	// start, or only one bound supplied).
	ErrInvalidPeriod = errors.New("invalid billing period")

	// ErrObligationNotFound is returned when a referenced obligation doesn't exist.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrPaymentNotFound is returned when a referenced payment doesn't exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAccountNotFound is returned when a referenced credit account doesn't exist.
	ErrAccountNotFound = errors.New("credit account not found")

	// ErrConcurrentModification is returned when the optimistic version check
	// on an obligation detects a conflicting write. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAttachmentUpload is returned by attachment clients when the blob
	// store rejects an upload. Never fatal to the financial write path.
	ErrAttachmentUpload = errors.New("attachment upload failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmountExceedsRemainingError reports the balance state that rejected a payment.
type AmountExceedsRemainingError struct {
	ObligationID string
	Total        Money
	Paid         Money
	Remaining    Money
	Requested    Money
}

func (e *AmountExceedsRemainingError) Error() string {
	return fmt.Sprintf("amount %s exceeds remaining balance %s (total %s, paid %s)",
		e.Requested, e.Remaining, e.Total, e.Paid)
}

func (e *AmountExceedsRemainingError) Unwrap() error {
	return ErrAmountExceedsRemaining
}

// DuplicatePeriodError carries the first conflicting payment found so the
// client can show the user what already covers the period.
type DuplicatePeriodError struct {
	ObligationID string
	Frequency    Frequency
	Conflicting  *PaymentRecord
}

func (e *DuplicatePeriodError) Error() string {
	if e.Conflicting != nil && e.Conflicting.Period != nil {
		return fmt.Sprintf("period %s to %s already paid by payment %s",
			e.Conflicting.Period.Start, e.Conflicting.Period.End, e.Conflicting.ID)
	}
	if e.Conflicting != nil {
		return fmt.Sprintf("%s period already paid by payment %s dated %s",
			e.Frequency, e.Conflicting.ID, e.Conflicting.PaymentDate)
	}
	return "billing period already paid"
}

func (e *DuplicatePeriodError) Unwrap() error {
	return ErrDuplicatePeriod
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAmountExceedsRemaining) ||
		errors.Is(err, ErrDuplicatePeriod) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObligationNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
