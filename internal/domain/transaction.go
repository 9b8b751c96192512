/**
 * @description
 * This file defines the core domain models for the wallet-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (kobo), which avoids floating-point inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds. Every money movement in the system is recorded as
// exactly one of these.
const (
	KindFunding         = "wallet_funding"
	KindPurchase        = "data_purchase"
	KindReferralBonus   = "referral_bonus"
	KindAdminAdjustment = "admin_adjustment"
)

// Transaction statuses. Transitions are monotone: pending -> success or
// pending -> failed; terminal records are never re-mutated except to attach a
// late-arriving provider reference.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Balance directions. Stored alongside the kind so the balance of any account
// can be reconstructed by replaying its successful transactions from zero.
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Transaction is the central append-only ledger record for any money movement.
// It maps directly to the `transactions` table.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	Direction string    `json:"direction"`
	Amount    int64     `json:"amount"` // in kobo, always positive
	Status    string    `json:"status"`

	// Purchase metadata (empty for other kinds).
	Network     string `json:"network,omitempty"`
	BundleLabel string `json:"bundle,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	// PaymentReference is the Paystack reference for funding records. It is the
	// idempotency key shared by the verify path and the webhook path.
	PaymentReference *string `json:"payment_reference,omitempty"`

	// ProviderReference is the order reference returned by the VTU provider
	// after a successful delivery.
	ProviderReference *string `json:"provider_reference,omitempty"`

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PurchaseRequest is the DTO for incoming data purchase API requests.
type PurchaseRequest struct {
	BundleID    uuid.UUID `json:"bundle_id"`
	PhoneNumber string    `json:"phone_number"`
}

// PurchaseResult is returned to the caller after the purchase saga reaches a
// terminal state.
type PurchaseResult struct {
	Transaction *Transaction `json:"transaction"`
	NewBalance  int64        `json:"new_balance"`
}

// FundingInitiation carries the payment-provider redirect for a new funding
// attempt, plus the locally tracked reference.
type FundingInitiation struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

// FundingStatus is the idempotent result of verifying a funding reference.
type FundingStatus struct {
	Status        string `json:"status"`
	WalletBalance int64  `json:"wallet_balance"`
	Credited      bool   `json:"credited"`
}

// AdminAdjustRequest is the DTO for a manual wallet adjustment.
type AdminAdjustRequest struct {
	Amount    int64  `json:"amount"` // in kobo, positive
	Direction string `json:"direction"`
	Reason    string `json:"reason"`
}

// TransactionListOptions controls pagination and filtering for history queries.
type TransactionListOptions struct {
	Limit  int
	Offset int
	Kind   string
	Status string
}

// PlatformStats aggregates counters for the admin dashboard.
type PlatformStats struct {
	TotalUsers          int64 `json:"total_users"`
	TotalTransactions   int64 `json:"total_transactions"`
	SuccessfulPurchases int64 `json:"successful_purchases"`
	TotalRevenue        int64 `json:"total_revenue"` // successful funding volume, in kobo
}
