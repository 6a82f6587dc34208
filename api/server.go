/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the web UI and field app

SECURITY NOTE:
  Authentication middleware lives in the platform gateway, outside this
  service. All endpoints here assume an authenticated caller.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Fixed expense routes
	r.Route("/fixed-expenses", func(r chi.Router) {
		r.Post("/", h.CreateFixedExpense)
		r.Get("/{id}", h.GetFixedExpense)
		r.Post("/{id}/payments", h.RecordFixedExpensePayment)
		r.Get("/{id}/payments", h.ListFixedExpensePayments)
		r.Post("/{id}/suggested-period", h.SuggestPaymentPeriod)
	})

	r.Delete("/fixed-expense-payments/{paymentId}", h.DeleteFixedExpensePayment)

	// Credit account routes
	r.Route("/credit-accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Get("/{id}", h.GetAccount)
		r.Get("/{id}/transactions", h.ListAccountTransactions)
		r.Get("/{id}/open-charges", h.ListOpenCharges)
	})

	r.Post("/credit-account/transaction", h.PostAccountTransaction)

	return r
}
