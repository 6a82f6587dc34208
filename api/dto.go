/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/zurcherConstruction/ledger-service/ledger"
)

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Conflict carries the prior payment on duplicate-period rejections
	// so the UI can show the user what already covers the period.
	Conflict *PaymentDTO `json:"conflictingPayment,omitempty"`
}

// =============================================================================
// FIXED EXPENSES
// =============================================================================

type CreateFixedExpenseRequest struct {
	Description   string  `json:"description"`
	TotalAmount   float64 `json:"totalAmount"`
	Frequency     string  `json:"frequency"`
	PaymentMethod string  `json:"paymentMethod"`
	Date          string  `json:"date"` // YYYY-MM-DD, defaults to today
}

type FixedExpenseDTO struct {
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	Frequency     string     `json:"frequency"`
	PaymentMethod string     `json:"paymentMethod"`
	Date          string     `json:"date"`
	Balance       BalanceDTO `json:"balance"`
}

// BalanceDTO is the paid/remaining block returned with every payment write.
type BalanceDTO struct {
	TotalAmount     float64 `json:"totalAmount"`
	PaidAmount      float64 `json:"paidAmount"`
	RemainingAmount float64 `json:"remainingAmount"`
	PaymentStatus   string  `json:"paymentStatus"`
}

func balanceOf(o *ledger.Obligation) BalanceDTO {
	return BalanceDTO{
		TotalAmount:     o.TotalAmount.Float64(),
		PaidAmount:      o.PaidAmount.Float64(),
		RemainingAmount: o.Remaining().Float64(),
		PaymentStatus:   string(o.Status),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID               string  `json:"id"`
	ObligationID     string  `json:"obligationId"`
	Amount           float64 `json:"amount"`
	PaymentDate      string  `json:"paymentDate"`
	PeriodStart      string  `json:"periodStart,omitempty"`
	PeriodEnd        string  `json:"periodEnd,omitempty"`
	PeriodDueDate    string  `json:"periodDueDate,omitempty"`
	Method           string  `json:"paymentMethod"`
	Notes            string  `json:"notes,omitempty"`
	DerivedExpenseID string  `json:"derivedExpenseId"`
	AttachmentID     string  `json:"attachmentId,omitempty"`
}

func paymentDTO(p *ledger.PaymentRecord) PaymentDTO {
	dto := PaymentDTO{
		ID:               p.ID,
		ObligationID:     p.ObligationID,
		Amount:           p.Amount.Float64(),
		PaymentDate:      p.PaymentDate.String(),
		Method:           string(p.Method),
		Notes:            p.Notes,
		DerivedExpenseID: p.DerivedExpenseID,
		AttachmentID:     p.AttachmentID,
	}
	if p.Period != nil {
		dto.PeriodStart = p.Period.Start.String()
		dto.PeriodEnd = p.Period.End.String()
		dto.PeriodDueDate = p.Period.DueDate.String()
	}
	return dto
}

type RecordPaymentResponse struct {
	Payment             PaymentDTO `json:"payment"`
	FixedExpenseBalance BalanceDTO `json:"fixedExpenseBalance"`
}

type PaymentHistoryResponse struct {
	Payments []PaymentDTO   `json:"payments"`
	Summary  PaymentSummary `json:"summary"`
}

type PaymentSummary struct {
	TotalPayments  int     `json:"totalPayments"`
	TotalPaid      float64 `json:"totalPaid"`
	Remaining      float64 `json:"remaining"`
	PercentagePaid float64 `json:"percentagePaid"`
}

type ReversePaymentResponse struct {
	DeletedPaymentID    string     `json:"deletedPaymentId"`
	FixedExpenseBalance BalanceDTO `json:"fixedExpenseBalance"`
	CorruptionDetected  bool       `json:"corruptionDetected,omitempty"`
}

type SuggestedPeriodRequest struct {
	PaymentDate string `json:"paymentDate"` // YYYY-MM-DD, defaults to today
}

type SuggestedPeriodResponse struct {
	PeriodStart   string `json:"periodStart"`
	PeriodEnd     string `json:"periodEnd"`
	PeriodDueDate string `json:"periodDueDate"`
}

// =============================================================================
// CREDIT ACCOUNTS
// =============================================================================

type CreateAccountRequest struct {
	Name           string  `json:"name"`
	InitialBalance float64 `json:"initialBalance"`
}

type AccountDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

type CreditTransactionRequest struct {
	AccountID       string  `json:"accountId"`
	TransactionType string  `json:"transactionType"` // charge | payment | interest
	Amount          float64 `json:"amount"`
	Description     string  `json:"description"`
	PaymentMethod   string  `json:"paymentMethod"`
	Date            string  `json:"date"` // YYYY-MM-DD, defaults to today
}

type TransactionDTO struct {
	ID            string  `json:"id"`
	AccountID     string  `json:"accountId"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
	Type          string  `json:"transactionType"`
	Description   string  `json:"description,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	BalanceAfter  float64 `json:"balanceAfter"`
}

func transactionDTO(tx *ledger.LedgerTransaction) TransactionDTO {
	return TransactionDTO{
		ID:            tx.ID,
		AccountID:     tx.AccountID,
		Date:          tx.Date.String(),
		Amount:        tx.Amount.Float64(),
		Type:          string(tx.Type),
		Description:   tx.Description,
		PaymentMethod: string(tx.PaymentMethod),
		BalanceAfter:  tx.BalanceAfter.Float64(),
	}
}

type AllocationDTO struct {
	ChargeID      string  `json:"chargeId"`
	AmountApplied float64 `json:"amountApplied"`
	NewStatus     string  `json:"newStatus"`
}

type CreditTransactionResponse struct {
	Transaction  TransactionDTO  `json:"transaction"`
	Allocations  []AllocationDTO `json:"allocations,omitempty"`
	TotalApplied float64         `json:"totalApplied,omitempty"`
	Leftover     float64         `json:"leftover,omitempty"`
	NewBalance   float64         `json:"newBalance"`
}

type ChargeDTO struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	TotalAmount float64 `json:"totalAmount"`
	PaidAmount  float64 `json:"paidAmount"`
	Pending     float64 `json:"pending"`
	Status      string  `json:"status"`
}
