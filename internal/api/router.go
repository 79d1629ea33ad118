/**
 * @description
 * This file sets up the HTTP router for the custody service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CustodyRoutes creates and returns a new router for the custody service.
func CustodyRoutes(h *CustodyHandlers, jwksURL string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// Wallet registration endpoints
		r.Post("/wallets", h.SubmitWalletHandler)
		r.Get("/wallets", h.ListWalletsHandler)

		// KYC document endpoints
		r.Post("/kyc/documents", h.SubmitKycDocumentHandler)
		r.Get("/kyc/documents", h.ListKycDocumentsHandler)

		// Balance and withdrawal endpoints
		r.Get("/balances", h.ListBalancesHandler)
		r.Post("/withdrawals", h.RequestWithdrawalHandler)
		r.Get("/withdrawals", h.ListWithdrawalsHandler)

		// Admin review endpoints
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Get("/admin/wallets/pending", h.ListPendingWalletsHandler)
			r.Get("/admin/kyc/pending", h.ListPendingKycDocumentsHandler)
			r.Post("/admin/transitions", h.TransitionHandler)
			r.Get("/admin/history/{subjectType}/{subjectID}", h.HistoryHandler)

			r.Post("/admin/balances/credit", h.CreditBalanceHandler)
			r.Post("/admin/balances/debit", h.DebitBalanceHandler)
			r.Post("/admin/balances/set", h.SetBalanceHandler)

			r.Get("/admin/withdrawals/pending", h.ListPendingWithdrawalsHandler)
			r.Post("/admin/withdrawals/{requestID}/approve", h.ApproveWithdrawalHandler)
			r.Post("/admin/withdrawals/{requestID}/complete", h.CompleteWithdrawalHandler)
			r.Post("/admin/withdrawals/{requestID}/reject", h.RejectWithdrawalHandler)
		})
	})

	return r
}
