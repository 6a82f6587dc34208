/*
period.go - Billing-period arithmetic and duplicate-payment detection

PURPOSE:
  Pure functions answering two questions for recurring fixed expenses:
  1. Does a new payment collide with an already-paid billing period?
  2. Which period is due for a payment made on a given date?

DUPLICATE DETECTION:
  When the new payment carries explicit period bounds, the check is exact
  equality of (start, end) against each prior payment's bounds. Overlap is
  NOT a conflict; the field app sometimes records corrective half-periods.

  Without explicit bounds the check falls back to a date heuristic keyed
  by the expense's frequency: two payments collide when their dates land
  in the same frequency bucket (same month, same half-month, same
  Monday-anchored week, same quarter, same half-year, same year — or,
  for one-time expenses, when any payment exists at all).

ARREARS BILLING:
  SuggestedPeriod returns the PRIOR, now-due window relative to the
  payment date. A rent payment made in February covers January.

SEE ALSO:
  - recorder.go: Invokes ValidateNoDuplicatePeriod before any write
  - types.go: BillingPeriod, Frequency
*/
package ledger

import "time"

// =============================================================================
// DUPLICATE DETECTION
// =============================================================================

// ValidateNoDuplicatePeriod returns the first prior payment that conflicts
// with a new payment, or nil when the payment is safe to record.
//
// period carries the new payment's explicit bounds and may be nil; when set,
// conflicts are exact (start, end) matches against prior explicit bounds.
// Otherwise paymentDate is bucketed by frequency against each prior
// payment's date.
func ValidateNoDuplicatePeriod(history []PaymentRecord, frequency Frequency, paymentDate Date, period *BillingPeriod) *PaymentRecord {
	if period != nil {
		for i := range history {
			prior := &history[i]
			if prior.Period != nil && prior.Period.Equal(*period) {
				return prior
			}
		}
		return nil
	}

	for i := range history {
		prior := &history[i]
		if sameBucket(frequency, paymentDate, prior.PaymentDate) {
			return prior
		}
	}
	return nil
}

// sameBucket reports whether two dates fall into the same billing bucket
// for the given frequency.
func sameBucket(frequency Frequency, a, b Date) bool {
	switch frequency {
	case FreqMonthly:
		return a.Year() == b.Year() && a.Month() == b.Month()

	case FreqBiweekly:
		return a.Year() == b.Year() && a.Month() == b.Month() &&
			(a.Day() <= 15) == (b.Day() <= 15)

	case FreqWeekly:
		return StartOfWeek(a).Equal(StartOfWeek(b))

	case FreqQuarterly:
		return a.Year() == b.Year() && quarterOf(a) == quarterOf(b)

	case FreqSemiannual:
		return a.Year() == b.Year() && halfOf(a) == halfOf(b)

	case FreqAnnual:
		return a.Year() == b.Year()

	case FreqOneTime:
		// A one-time expense admits exactly one payment, ever.
		return true

	default:
		// Unknown frequencies fall back to the monthly bucket.
		return a.Year() == b.Year() && a.Month() == b.Month()
	}
}

func quarterOf(d Date) int { return (int(d.Month()) - 1) / 3 }
func halfOf(d Date) int    { return (int(d.Month()) - 1) / 6 }

// =============================================================================
// SUGGESTED PERIOD - The prior, now-due window (arrears)
// =============================================================================

// SuggestedPeriod computes the billing period a payment made on paymentDate
// is presumed to cover. The due date is always the period's end.
func SuggestedPeriod(paymentDate Date, frequency Frequency) BillingPeriod {
	switch frequency {
	case FreqMonthly:
		prev := prevMonth(paymentDate)
		return span(StartOfMonth(prev.Year(), prev.Month()), EndOfMonth(prev.Year(), prev.Month()))

	case FreqBiweekly:
		if paymentDate.Day() <= 15 {
			// First half of the month pays the prior month's back half.
			prev := prevMonth(paymentDate)
			return span(NewDate(prev.Year(), prev.Month(), 16), EndOfMonth(prev.Year(), prev.Month()))
		}
		// Back half of the month pays this month's front half.
		return span(StartOfMonth(paymentDate.Year(), paymentDate.Month()),
			NewDate(paymentDate.Year(), paymentDate.Month(), 15))

	case FreqWeekly:
		// Previous Monday-anchored week.
		start := StartOfWeek(paymentDate).AddDays(-7)
		return span(start, start.AddDays(6))

	case FreqQuarterly:
		q := quarterOf(paymentDate) - 1
		year := paymentDate.Year()
		if q < 0 {
			q = 3
			year--
		}
		startMonth := time.Month(q*3 + 1)
		return span(StartOfMonth(year, startMonth), EndOfMonth(year, startMonth+2))

	case FreqSemiannual:
		h := halfOf(paymentDate) - 1
		year := paymentDate.Year()
		if h < 0 {
			h = 1
			year--
		}
		startMonth := time.Month(h*6 + 1)
		return span(StartOfMonth(year, startMonth), EndOfMonth(year, startMonth+5))

	case FreqAnnual:
		year := paymentDate.Year() - 1
		return span(NewDate(year, time.January, 1), NewDate(year, time.December, 31))

	case FreqOneTime:
		// No recurring window exists; suggest the payment's own month.
		return span(StartOfMonth(paymentDate.Year(), paymentDate.Month()),
			EndOfMonth(paymentDate.Year(), paymentDate.Month()))

	default:
		prev := prevMonth(paymentDate)
		return span(StartOfMonth(prev.Year(), prev.Month()), EndOfMonth(prev.Year(), prev.Month()))
	}
}

// prevMonth returns a date in the calendar month before d. Anchored at the
// first of the month so day-31 dates cannot normalize forward into the
// current month when the prior month is shorter.
func prevMonth(d Date) Date {
	return StartOfMonth(d.Year(), d.Month()).AddMonths(-1)
}

func span(start, end Date) BillingPeriod {
	return BillingPeriod{Start: start, End: end, DueDate: end}
}

// ValidatePeriodBounds checks that explicit period bounds are well formed:
// both present and end not before start.
func ValidatePeriodBounds(period *BillingPeriod) error {
	if period == nil {
		return nil
	}
	if period.Start.IsZero() || period.End.IsZero() {
		return ErrInvalidPeriod
	}
	if period.End.Before(period.Start) {
		return ErrInvalidPeriod
	}
	return nil
}
