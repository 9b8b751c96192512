/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dataflare/wallet-service/internal/app"
	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
)

const maxWebhookBody = 1 << 20

// RateLimits carries the per-user request budgets for the money-moving
// endpoints.
type RateLimits struct {
	FundingPerMinute  int
	PurchasePerMinute int
}

// WalletHandlers holds the application service and the supporting pieces the
// HTTP layer needs.
type WalletHandlers struct {
	service *app.Service
	tokens  *TokenIssuer
	limiter *app.RedisRateLimiter
	limits  RateLimits
}

// NewWalletHandlers creates a new instance of WalletHandlers. The limiter may
// be nil, in which case rate limiting is disabled.
func NewWalletHandlers(service *app.Service, tokens *TokenIssuer, limiter *app.RedisRateLimiter, limits RateLimits) *WalletHandlers {
	return &WalletHandlers{service: service, tokens: tokens, limiter: limiter, limits: limits}
}

// --- Auth endpoints ---

// RegisterHandler handles account creation.
func (h *WalletHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrInvalidPhone):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicateUser):
			h.writeError(w, http.StatusConflict, "An account with this email or phone already exists")
		default:
			log.Error().Str("component", "api").Str("endpoint", "register").Err(err).Msg("registration failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "register").Err(err).Msg("token generation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.AuthResult{Token: token, User: user})
}

// LoginHandler handles authentication by email or phone plus password.
func (h *WalletHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidCredentials):
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, app.ErrAccountSuspended):
			h.writeError(w, http.StatusForbidden, "Account suspended")
		case errors.Is(err, app.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Str("component", "api").Str("endpoint", "login").Err(err).Msg("login failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "login").Err(err).Msg("token generation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, domain.AuthResult{Token: token, User: user})
}

// ProfileHandler returns the authenticated user's account record.
func (h *WalletHandlers) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	user, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "profile").Str("user_id", userID.String()).Err(err).Msg("profile lookup failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// --- Wallet endpoints ---

// FundWalletHandler opens a payment-provider checkout session for the
// requested amount.
func (h *WalletHandlers) FundWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	if !h.allowRate(w, r, "funding", userID.String(), h.limits.FundingPerMinute) {
		return
	}

	var req struct {
		Amount int64 `json:"amount"` // kobo
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	initiation, err := h.service.InitiateFunding(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrAmountBelowMinimum):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrUpstreamUnavailable):
			h.writeError(w, http.StatusBadGateway, "Payment provider unavailable, please try again")
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		default:
			log.Error().Str("component", "api").Str("endpoint", "fund_wallet").Str("user_id", userID.String()).Err(err).Msg("funding initiation failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, initiation)
}

// VerifyFundingHandler is the poll path of the funding reconciliation.
func (h *WalletHandlers) VerifyFundingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reference := urlParam(r, "reference")
	if reference == "" {
		h.writeError(w, http.StatusBadRequest, "Payment reference is required")
		return
	}

	status, err := h.service.VerifyFunding(r.Context(), userID, reference)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Unknown payment reference")
		case errors.Is(err, app.ErrUpstreamUnavailable):
			h.writeError(w, http.StatusBadGateway, "Payment provider unavailable, please try again")
		default:
			log.Error().Str("component", "api").Str("endpoint", "verify_funding").Str("reference", reference).Err(err).Msg("funding verification failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// PaystackWebhookHandler is the push path of the funding reconciliation. The
// raw body is read before any parsing because the signature covers the exact
// bytes on the wire.
func (h *WalletHandlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if err := h.service.VerifyWebhookSignature(rawBody, signature); err != nil {
		log.Warn().Str("component", "api").Str("endpoint", "webhook").Msg("webhook signature mismatch")
		h.writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	h.service.HandleFundingWebhook(r.Context(), rawBody)
	w.WriteHeader(http.StatusOK)
}

// BalanceHandler returns the authenticated user's current balance.
func (h *WalletHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "balance").Str("user_id", userID.String()).Err(err).Msg("balance lookup failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// TransactionsHandler returns a page of the user's transaction history.
func (h *WalletHandlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	opts, err := parseTransactionListOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, total, err := h.service.History(r.Context(), userID, opts)
	if err != nil {
		log.Error().Str("component", "api").Str("endpoint", "transactions").Str("user_id", userID.String()).Err(err).Msg("history lookup failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"total":        total,
	})
}

// --- Data endpoints ---

// ListBundlesHandler returns the active bundle catalog, optionally filtered
// by network.
func (h *WalletHandlers) ListBundlesHandler(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")

	bundles, err := h.service.Bundles(r.Context(), network)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Str("component", "api").Str("endpoint", "list_bundles").Err(err).Msg("bundle listing failed")
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, bundles)
}

// purchaseFailureResponse reports a delivery failure together with the
// refunded balance, so the client can show both in one message.
type purchaseFailureResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Balance     int64               `json:"balance"`
}

// PurchaseDataHandler drives a data purchase through the saga and reports its
// terminal state.
func (h *WalletHandlers) PurchaseDataHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	if !h.allowRate(w, r, "purchase", userID.String(), h.limits.PurchasePerMinute) {
		return
	}

	var req domain.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Purchase(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDeliveryFailed) && result != nil:
			h.writeJSON(w, http.StatusBadGateway, purchaseFailureResponse{
				Status:      "failed",
				Message:     "Data delivery failed; your wallet has been refunded",
				Transaction: result.Transaction,
				Balance:     result.NewBalance,
			})
		case errors.Is(err, store.ErrInsufficientFunds):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient wallet balance")
		case errors.Is(err, app.ErrInvalidPhone):
			h.writeError(w, http.StatusBadRequest, "Invalid Nigerian phone number")
		case errors.Is(err, app.ErrBundleUnavailable):
			h.writeError(w, http.StatusBadRequest, "This bundle is currently unavailable")
		case errors.Is(err, store.ErrBundleNotFound):
			h.writeError(w, http.StatusNotFound, "Bundle not found")
		default:
			log.Error().Str("component", "api").Str("endpoint", "purchase").Str("user_id", userID.String()).Err(err).Msg("purchase failed")
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

// allowRate consumes one attempt from the user's budget for the given scope.
/// A Redis outage fails open: money movement must not depend on the limiter.
func (h *WalletHandlers) allowRate(w http.ResponseWriter, r *http.Request, scope, subject string, limit int) bool {
	if h.limiter == nil || limit <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, subject, limit, time.Minute)
	if err != nil {
		log.Warn().Str("component", "api").Str("scope", scope).Err(err).Msg("rate limiter unavailable; allowing request")
		return true
	}
	if count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests, please slow down")
		return false
	}
	return true
}

func parseTransactionListOptions(r *http.Request) (domain.TransactionListOptions, error) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		return domain.TransactionListOptions{}, errors.New("invalid limit")
	}
	offset, err := parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		return domain.TransactionListOptions{}, errors.New("invalid offset")
	}
	return domain.TransactionListOptions{
		Limit:  limit,
		Offset: offset,
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
	}, nil
}

func parseOptionalInt(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return parsed, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
