/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the wallet-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the database.
//
// Every method that moves money executes as a single database transaction:
// the balance mutation, its sufficiency check, and the ledger record land
// together or not at all.
type Repository interface {
	// User methods
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByEmailOrPhone(ctx context.Context, identifier string) (*domain.User, error)
	FindUserByReferralCode(ctx context.Context, code string) (*domain.User, error)
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error
	ListUsers(ctx context.Context, opts domain.UserListOptions) ([]domain.User, int64, error)

	// Ledger primitives
	// AdjustBalance applies a signed delta atomically. A debit that would drive
	// the balance below zero fails with ErrInsufficientFunds and leaves no
	// partial state. Callers that need a ledger record use the composite
	// methods below instead.
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64) (int64, error)

	// Purchase saga
	ReservePurchase(ctx context.Context, tx *domain.Transaction) (int64, error)
	SettlePurchaseDelivered(ctx context.Context, txID uuid.UUID, providerRef string) error
	RefundPurchase(ctx context.Context, txID uuid.UUID) (bool, int64, error)

	// Funding reconciliation
	CreatePendingFunding(ctx context.Context, tx *domain.Transaction) error
	ApplyFundingSuccess(ctx context.Context, paymentRef string, amount int64) (bool, int64, error)
	MarkFundingFailed(ctx context.Context, paymentRef string) error

	// Referral and admin
	ApplyReferralBonus(ctx context.Context, inviterID uuid.UUID, amount int64, description string) error
	AdminAdjust(ctx context.Context, userID uuid.UUID, delta int64, description string) (int64, error)

	// Bundle catalog
	ListBundles(ctx context.Context, network string, activeOnly bool) ([]domain.DataBundle, error)
	FindBundleByID(ctx context.Context, bundleID uuid.UUID) (*domain.DataBundle, error)
	CreateBundle(ctx context.Context, bundle *domain.DataBundle) error
	UpdateBundle(ctx context.Context, bundle *domain.DataBundle) error
	DeleteBundle(ctx context.Context, bundleID uuid.UUID) error

	// Transaction log queries
	FindTransactionByID(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error)
	FindTransactionByPaymentRef(ctx context.Context, paymentRef string) (*domain.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, int64, error)
	ListAllTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.Transaction, int64, error)
	FindStalePendingPurchases(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error)
	GetPlatformStats(ctx context.Context) (*domain.PlatformStats, error)
}
