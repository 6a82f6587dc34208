/*
handlers.go - HTTP API handlers for the reconciliation ledger

PURPOSE:
  Exposes the ledger via REST. Handles HTTP request/response, JSON and
  multipart parsing, and delegates to the domain logic.

ENDPOINTS:
  Fixed expenses:
    POST   /fixed-expenses                         Create obligation
    GET    /fixed-expenses/{id}                    Obligation + balance
    POST   /fixed-expenses/{id}/payments           Record partial payment (multipart)
    GET    /fixed-expenses/{id}/payments           Payment history + summary
    POST   /fixed-expenses/{id}/suggested-period   Arrears period helper
    DELETE /fixed-expense-payments/{paymentId}     Reverse a payment

  Credit accounts:
    POST   /credit-accounts                        Create account
    GET    /credit-accounts/{id}                   Account + balance
    GET    /credit-accounts/{id}/transactions      Replayable history
    GET    /credit-accounts/{id}/open-charges      Allocation engine's view
    POST   /credit-account/transaction             Post charge/interest/payment

ERROR HANDLING:
  Domain errors map onto HTTP statuses:
  - 400: validation failures, duplicate billing period
  - 404: unknown obligation/payment/account
  - 409: optimistic-lock conflict (retryable)
  - 500: persistence failures
  Attachment failures never surface as request failures.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zurcherConstruction/ledger-service/ledger"
)

const maxReceiptBytes = 10 << 20 // 10 MiB multipart memory cap

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.TxStore
	Recorder *ledger.PartialPaymentRecorder
	Rollback *ledger.RollbackCoordinator
	Engine   *ledger.AllocationEngine
	Log      *logrus.Logger
}

// NewHandler wires the domain components around one store and uploader.
func NewHandler(store ledger.TxStore, uploader ledger.Uploader, log *logrus.Logger) *Handler {
	return &Handler{
		Store:    store,
		Recorder: ledger.NewPartialPaymentRecorder(store, uploader, log),
		Rollback: ledger.NewRollbackCoordinator(store, uploader, log),
		Engine:   ledger.NewAllocationEngine(store),
		Log:      log,
	}
}

// =============================================================================
// FIXED EXPENSE HANDLERS
// =============================================================================

// CreateFixedExpense creates a fixed-expense obligation.
func (h *Handler) CreateFixedExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateFixedExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount := ledger.NewMoney(req.TotalAmount)
	if !amount.IsPositive() && !amount.IsZero() {
		writeError(w, http.StatusBadRequest, "totalAmount must not be negative", nil)
		return
	}

	date := ledger.Today()
	if req.Date != "" {
		var err error
		if date, err = ledger.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	obligation := &ledger.Obligation{
		ID:            uuid.NewString(),
		Kind:          ledger.KindFixedExpense,
		Description:   req.Description,
		Frequency:     ledger.Frequency(req.Frequency),
		TotalAmount:   amount,
		PaidAmount:    ledger.ZeroMoney(),
		Status:        ledger.DeriveStatus(ledger.ZeroMoney(), amount),
		PaymentMethod: ledger.PaymentMethod(req.PaymentMethod),
		Date:          date,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.Store.CreateObligation(r.Context(), obligation); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create fixed expense", err)
		return
	}

	writeJSON(w, http.StatusCreated, fixedExpenseDTO(obligation))
}

// GetFixedExpense returns an obligation with its balance block.
func (h *Handler) GetFixedExpense(w http.ResponseWriter, r *http.Request) {
	obligation, ok := h.loadObligation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, fixedExpenseDTO(obligation))
}

func fixedExpenseDTO(o *ledger.Obligation) FixedExpenseDTO {
	return FixedExpenseDTO{
		ID:            o.ID,
		Description:   o.Description,
		Frequency:     string(o.Frequency),
		PaymentMethod: string(o.PaymentMethod),
		Date:          o.Date.String(),
		Balance:       balanceOf(o),
	}
}

// RecordFixedExpensePayment records a partial payment from a multipart form:
// amount, paymentDate, paymentMethod, notes?, periodStart?, periodEnd?,
// receipt file?.
func (h *Handler) RecordFixedExpensePayment(w http.ResponseWriter, r *http.Request) {
	obligationID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	amount, err := ledger.ParseMoney(r.FormValue("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	paymentDate := ledger.Today()
	if v := r.FormValue("paymentDate"); v != "" {
		if paymentDate, err = ledger.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paymentDate format (use YYYY-MM-DD)", err)
			return
		}
	}

	period, err := parsePeriodForm(r.FormValue("periodStart"), r.FormValue("periodEnd"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid billing period", err)
		return
	}

	input := ledger.RecordPaymentInput{
		ObligationID: obligationID,
		Amount:       amount,
		PaymentDate:  paymentDate,
		Method:       ledger.PaymentMethod(r.FormValue("paymentMethod")),
		Notes:        r.FormValue("notes"),
		Period:       period,
		Receipt:      readReceipt(r, h.Log),
	}

	result, err := h.Recorder.RecordPayment(r.Context(), input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Payment:             paymentDTO(result.Payment),
		FixedExpenseBalance: balanceOf(result.Obligation),
	})
}

// ListFixedExpensePayments returns payment history with a summary block.
func (h *Handler) ListFixedExpensePayments(w http.ResponseWriter, r *http.Request) {
	obligation, ok := h.loadObligation(w, r)
	if !ok {
		return
	}

	payments, err := h.Store.ListPaymentsByObligation(r.Context(), obligation.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	totalPaid := ledger.ZeroMoney()
	for i := range payments {
		dtos[i] = paymentDTO(&payments[i])
		totalPaid = totalPaid.Add(payments[i].Amount)
	}

	percentage := 0.0
	if obligation.TotalAmount.IsPositive() {
		percentage = totalPaid.Float64() / obligation.TotalAmount.Float64() * 100
	}

	writeJSON(w, http.StatusOK, PaymentHistoryResponse{
		Payments: dtos,
		Summary: PaymentSummary{
			TotalPayments:  len(payments),
			TotalPaid:      totalPaid.Float64(),
			Remaining:      obligation.Remaining().Float64(),
			PercentagePaid: percentage,
		},
	})
}

// SuggestPaymentPeriod returns the arrears billing window for a payment date.
func (h *Handler) SuggestPaymentPeriod(w http.ResponseWriter, r *http.Request) {
	obligation, ok := h.loadObligation(w, r)
	if !ok {
		return
	}

	var req SuggestedPeriodRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body means "today"
	}

	date := ledger.Today()
	if req.PaymentDate != "" {
		var err error
		if date, err = ledger.ParseDate(req.PaymentDate); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paymentDate format (use YYYY-MM-DD)", err)
			return
		}
	}

	period := ledger.SuggestedPeriod(date, obligation.Frequency)
	writeJSON(w, http.StatusOK, SuggestedPeriodResponse{
		PeriodStart:   period.Start.String(),
		PeriodEnd:     period.End.String(),
		PeriodDueDate: period.DueDate.String(),
	})
}

// DeleteFixedExpensePayment reverses a recorded payment.
func (h *Handler) DeleteFixedExpensePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	result, err := h.Rollback.ReversePayment(r.Context(), paymentID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReversePaymentResponse{
		DeletedPaymentID:    result.DeletedPayment.ID,
		FixedExpenseBalance: balanceOf(result.Obligation),
		CorruptionDetected:  result.CorruptionDetected,
	})
}

// =============================================================================
// CREDIT ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates a revolving credit account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	account := &ledger.CreditAccount{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Balance:   ledger.NewMoney(req.InitialBalance),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, AccountDTO{
		ID: account.ID, Name: account.Name, Balance: account.Balance.Float64(),
	})
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, AccountDTO{
		ID: account.ID, Name: account.Name, Balance: account.Balance.Float64(),
	})
}

// ListAccountTransactions returns the account's full posting history.
func (h *Handler) ListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	txs, err := h.Store.ListTransactions(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i := range txs {
		dtos[i] = transactionDTO(&txs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

// ListOpenCharges returns the charges a payment would be allocated against,
// in allocation order.
func (h *Handler) ListOpenCharges(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	charges, err := h.Store.ListOpenCharges(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list open charges", err)
		return
	}

	dtos := make([]ChargeDTO, len(charges))
	for i := range charges {
		c := &charges[i]
		dtos[i] = ChargeDTO{
			ID:          c.ID,
			Description: c.Description,
			Date:        c.Date.String(),
			TotalAmount: c.TotalAmount.Float64(),
			PaidAmount:  c.PaidAmount.Float64(),
			Pending:     c.Remaining().Float64(),
			Status:      string(c.Status),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"openCharges": dtos})
}

// PostAccountTransaction posts a charge, interest, or payment. Payments run
// through the allocation engine and persist the per-charge distribution.
func (h *Handler) PostAccountTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreditTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount := ledger.NewMoney(req.Amount)
	if !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}

	date := ledger.Today()
	if req.Date != "" {
		var err error
		if date, err = ledger.ParseDate(req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	account, err := h.Store.GetAccount(r.Context(), req.AccountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Credit account not found", nil)
		return
	}

	switch ledger.TransactionType(req.TransactionType) {
	case ledger.TxCharge, ledger.TxInterest:
		h.postDebit(r.Context(), w, account, &req, amount, date)
	case ledger.TxPayment:
		h.postPayment(r.Context(), w, account, &req, amount, date)
	default:
		writeError(w, http.StatusBadRequest, "transactionType must be charge, payment, or interest", nil)
	}
}

// postDebit appends a charge or interest posting. Charges additionally
// create an open Obligation for future allocation. The balance is re-read
// inside the transaction: arithmetic against the handler's earlier read
// would race a concurrent post and break balance replay.
func (h *Handler) postDebit(ctx context.Context, w http.ResponseWriter, account *ledger.CreditAccount, req *CreditTransactionRequest, amount ledger.Money, date ledger.Date) {
	txType := ledger.TransactionType(req.TransactionType)

	tx := &ledger.LedgerTransaction{
		ID:            uuid.NewString(),
		AccountID:     account.ID,
		Date:          date,
		Amount:        amount,
		Type:          txType,
		Description:   req.Description,
		PaymentMethod: ledger.PaymentMethod(req.PaymentMethod),
		CreatedAt:     time.Now().UTC(),
	}

	var newBalance ledger.Money
	err := h.Store.WithTx(ctx, func(s ledger.Store) error {
		current, err := s.GetAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ledger.ErrAccountNotFound
		}
		newBalance = current.Balance.Add(amount)
		tx.BalanceAfter = newBalance

		if txType == ledger.TxCharge {
			obligation := &ledger.Obligation{
				ID:            uuid.NewString(),
				Kind:          ledger.KindCharge,
				AccountID:     account.ID,
				Description:   req.Description,
				TotalAmount:   amount,
				PaidAmount:    ledger.ZeroMoney(),
				Status:        ledger.StatusUnpaid,
				PaymentMethod: ledger.PaymentMethod(req.PaymentMethod),
				Date:          date,
				CreatedAt:     time.Now().UTC(),
			}
			if err := s.CreateObligation(ctx, obligation); err != nil {
				return err
			}
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		return s.UpdateAccountBalance(ctx, account.ID, newBalance)
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreditTransactionResponse{
		Transaction: transactionDTO(tx),
		NewBalance:  newBalance.Float64(),
	})
}

// postPayment distributes a payment over open charges and persists the
// allocation: per-charge obligation updates, one ledger row per charge
// touched, and one extra row when a surplus becomes account credit. The
// running balance starts from a fresh read inside the transaction, not the
// handler's earlier one, so concurrent posts cannot desync balance replay.
func (h *Handler) postPayment(ctx context.Context, w http.ResponseWriter, account *ledger.CreditAccount, req *CreditTransactionRequest, amount ledger.Money, date ledger.Date) {
	result, err := h.Engine.Allocate(ctx, account.ID, amount)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	var running ledger.Money
	var rows []*ledger.LedgerTransaction
	now := time.Now().UTC()

	err = h.Store.WithTx(ctx, func(s ledger.Store) error {
		current, err := s.GetAccount(ctx, account.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ledger.ErrAccountNotFound
		}
		running = current.Balance

		for _, alloc := range result.Allocations {
			charge, err := s.GetObligation(ctx, alloc.ChargeID)
			if err != nil {
				return err
			}
			if charge == nil {
				return ledger.ErrObligationNotFound
			}
			charge.PaidAmount = charge.PaidAmount.Add(alloc.AmountApplied)
			charge.Status = ledger.DeriveStatus(charge.PaidAmount, charge.TotalAmount)
			if err := s.UpdateObligation(ctx, charge); err != nil {
				return err
			}

			running = running.Sub(alloc.AmountApplied)
			row := &ledger.LedgerTransaction{
				ID:            uuid.NewString(),
				AccountID:     account.ID,
				Date:          date,
				Amount:        alloc.AmountApplied,
				Type:          ledger.TxPayment,
				Description:   req.Description,
				PaymentMethod: ledger.PaymentMethod(req.PaymentMethod),
				BalanceAfter:  running,
				CreatedAt:     now,
			}
			if err := s.AppendTransaction(ctx, row); err != nil {
				return err
			}
			rows = append(rows, row)
		}

		if result.Leftover.IsPositive() {
			// The surplus stays on the account as credit.
			running = running.Sub(result.Leftover)
			row := &ledger.LedgerTransaction{
				ID:            uuid.NewString(),
				AccountID:     account.ID,
				Date:          date,
				Amount:        result.Leftover,
				Type:          ledger.TxPayment,
				Description:   "Unapplied credit",
				PaymentMethod: ledger.PaymentMethod(req.PaymentMethod),
				BalanceAfter:  running,
				CreatedAt:     now,
			}
			if err := s.AppendTransaction(ctx, row); err != nil {
				return err
			}
			rows = append(rows, row)
		}

		return s.UpdateAccountBalance(ctx, account.ID, running)
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	allocDTOs := make([]AllocationDTO, len(result.Allocations))
	for i, a := range result.Allocations {
		allocDTOs[i] = AllocationDTO{
			ChargeID:      a.ChargeID,
			AmountApplied: a.AmountApplied.Float64(),
			NewStatus:     string(a.NewStatus),
		}
	}

	resp := CreditTransactionResponse{
		Allocations:  allocDTOs,
		TotalApplied: result.TotalApplied.Float64(),
		Leftover:     result.Leftover.Float64(),
		NewBalance:   running.Float64(),
	}
	if len(rows) > 0 {
		resp.Transaction = transactionDTO(rows[len(rows)-1])
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadObligation(w http.ResponseWriter, r *http.Request) (*ledger.Obligation, bool) {
	id := chi.URLParam(r, "id")
	obligation, err := h.Store.GetObligation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load fixed expense", err)
		return nil, false
	}
	if obligation == nil {
		writeError(w, http.StatusNotFound, "Fixed expense not found", nil)
		return nil, false
	}
	return obligation, true
}

func (h *Handler) loadAccount(w http.ResponseWriter, r *http.Request) (*ledger.CreditAccount, bool) {
	id := chi.URLParam(r, "id")
	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return nil, false
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Credit account not found", nil)
		return nil, false
	}
	return account, true
}

// respondDomainError maps ledger errors onto HTTP statuses.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var dup *ledger.DuplicatePeriodError
	if errors.As(err, &dup) {
		resp := ErrorResponse{Error: "Billing period already paid", Details: err.Error()}
		if dup.Conflicting != nil {
			conflict := paymentDTO(dup.Conflicting)
			resp.Conflict = &conflict
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, "Conflicting concurrent update, retry", err)
	default:
		writeError(w, http.StatusInternalServerError, "Operation failed", err)
	}
}

// parsePeriodForm builds an explicit billing period from form fields.
// Both bounds must be present or both absent.
func parsePeriodForm(start, end string) (*ledger.BillingPeriod, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, ledger.ErrInvalidPeriod
	}
	s, err := ledger.ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ledger.ParseDate(end)
	if err != nil {
		return nil, err
	}
	return &ledger.BillingPeriod{Start: s, End: e, DueDate: e}, nil
}

// readReceipt pulls the optional receipt file out of the multipart form.
// Any read failure is logged and treated as "no receipt".
func readReceipt(r *http.Request, log *logrus.Logger) *ledger.ReceiptFile {
	file, header, err := r.FormFile("receipt")
	if err != nil {
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.WithError(err).Warn("failed to read receipt upload; continuing without it")
		return nil
	}
	return &ledger.ReceiptFile{FileName: header.Filename, Data: data}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
