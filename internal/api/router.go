/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
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

// WalletRoutes creates and returns the router for the wallet service.
func WalletRoutes(h *WalletHandlers, tokens *TokenIssuer) http.Handler {
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

	r.Route("/api", func(r chi.Router) {
		// Public endpoints: account creation, login, and the provider-facing
		// webhook, which authenticates by signature rather than bearer token.
		r.Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)
		r.Post("/wallet/webhook", h.PaystackWebhookHandler)

		// Authenticated user endpoints.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))

			r.Get("/auth/profile", h.ProfileHandler)

			r.Get("/wallet/balance", h.BalanceHandler)
			r.Get("/wallet/transactions", h.TransactionsHandler)
			r.Post("/wallet/fund", h.FundWalletHandler)
			r.Get("/wallet/verify/{reference}", h.VerifyFundingHandler)

			r.Get("/data/bundles", h.ListBundlesHandler)
			r.Post("/data/purchase", h.PurchaseDataHandler)
		})

		// Admin endpoints.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokens))
			r.Use(AdminOnly)

			r.Get("/admin/stats", h.AdminStatsHandler)
			r.Get("/admin/users", h.AdminListUsersHandler)
			r.Patch("/admin/users/{id}/wallet", h.AdminAdjustWalletHandler)
			r.Patch("/admin/users/{id}/status", h.AdminSetUserStatusHandler)
			r.Get("/admin/transactions", h.AdminListTransactionsHandler)
			r.Post("/admin/transactions/{id}/reconcile", h.AdminReconcileHandler)

			r.Get("/admin/bundles", h.AdminListBundlesHandler)
			r.Post("/admin/bundles", h.AdminCreateBundleHandler)
			r.Put("/admin/bundles/{id}", h.AdminUpdateBundleHandler)
			r.Delete("/admin/bundles/{id}", h.AdminDeleteBundleHandler)
		})
	})

	return r
}
