/**
 * @description
 * HTTP handlers for the admin surface: platform stats, user management,
 * manual wallet adjustments, the platform ledger, manual purchase
 * reconciliation, and bundle catalog management. All routes in this file sit
 * behind AuthMiddleware plus AdminOnly.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dataflare/wallet-service/internal/app"
	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
)

// urlParam reads a chi route parameter.
func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func parseIDParam(r *http.Request, key string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, key))
}

// AdminStatsHandler returns the platform dashboard counters.
func (h *WalletHandlers) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "admin_stats").Err(err).Msg("stats query failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// AdminListUsersHandler returns a page of users, optionally filtered by a
// search term over email and phone.
func (h *WalletHandlers) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	users, total, err := h.service.ListUsers(r.Context(), domain.UserListOptions{
		Limit:  limit,
		Offset: offset,
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "admin_list_users").Err(err).Msg("user listing failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// AdminAdjustWalletHandler applies a manual credit or debit to a user's
// wallet.
func (h *WalletHandlers) AdminAdjustWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req domain.AdminAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := h.service.AdminAdjust(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, "Debit exceeds the user's balance")
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		default:
			log.Error().Str("component", "api").Str("endpoint", "admin_adjust").Str("user_id", userID.String()).Err(err).Msg("adjustment failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// AdminSetUserStatusHandler suspends or reactivates an account.
func (h *WalletHandlers) AdminSetUserStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetUserActive(r.Context(), userID, req.Active); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "admin_user_status").Str("user_id", userID.String()).Err(err).Msg("status update failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// AdminListTransactionsHandler returns a page of the platform ledger.
func (h *WalletHandlers) AdminListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := parseTransactionListOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, total, err := h.service.ListAllTransactions(r.Context(), opts)
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "admin_transactions").Err(err).Msg("ledger listing failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"total":        total,
	})
}

// AdminReconcileHandler forces one reconciliation pass over a single pending
// purchase, for operators chasing a stuck order.
func (h *WalletHandlers) AdminReconcileHandler(w http.ResponseWriter, r *http.Request) {
	txID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	outcome, err := h.service.ReconcilePurchase(r.Context(), txID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "admin_reconcile").Str("tx_id", txID.String()).Err(err).Msg("reconcile failed")
		h.writeError(w, http.StatusBadGateway, "Could not reconcile against the delivery provider")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

// --- Bundle catalog management ---

// AdminListBundlesHandler returns the full catalog, inactive bundles included.
func (h *WalletHandlers) AdminListBundlesHandler(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.service.ListAllBundles(r.Context())
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "admin_list_bundles").Err(err).Msg("bundle listing failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, bundles)
}

// AdminCreateBundleHandler adds a bundle to the catalog.
func (h *WalletHandlers) AdminCreateBundleHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.BundleUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bundle, err := h.service.CreateBundle(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "admin_create_bundle").Err(err).Msg("bundle creation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, bundle)
}

// AdminUpdateBundleHandler replaces a bundle's fields.
func (h *WalletHandlers) AdminUpdateBundleHandler(w http.ResponseWriter, r *http.Request) {
	bundleID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid bundle ID format")
		return
	}

	var req domain.BundleUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bundle, err := h.service.UpdateBundle(r.Context(), bundleID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrBundleNotFound):
			h.writeError(w, http.StatusNotFound, "Bundle not found")
		default:
			log.Error().Str("component", "api").Str("endpoint", "admin_update_bundle").Str("bundle_id", bundleID.String()).Err(err).Msg("bundle update failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, bundle)
}

// AdminDeleteBundleHandler removes a bundle from the catalog.
func (h *WalletHandlers) AdminDeleteBundleHandler(w http.ResponseWriter, r *http.Request) {
	bundleID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid bundle ID format")
		return
	}

	if err := h.service.DeleteBundle(r.Context(), bundleID); err != nil {
		if errors.Is(err, store.ErrBundleNotFound) {
			h.writeError(w, http.StatusNotFound, "Bundle not found")
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "admin_delete_bundle").Str("bundle_id", bundleID.String()).Err(err).Msg("bundle deletion failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Bundle deleted"})
}
