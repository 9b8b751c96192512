/**
 * @description
 * This file contains the core business logic for the wallet-service. The `Service`
 * struct orchestrates all money movement operations, coordinating between the
 * database repository, the Paystack payments client, the VTU delivery client,
 * and the message broker.
 *
 * Key features:
 * - Implements the purchase saga: reserve (atomic debit + pending record),
 *   deliver (VTU call keyed by the transaction UUID), settle or refund.
 * - Implements the dual-path funding reconciliation: verify (poll) and
 *   webhook (push) converge on one idempotent credit per payment reference.
 * - Publishes settlement events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/paystack, pkg/vtu, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
	"github.com/dataflare/wallet-service/pkg/paystack"
	"github.com/dataflare/wallet-service/pkg/rabbitmq"
	"github.com/dataflare/wallet-service/pkg/vtu"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrAmountBelowMinimum  = errors.New("amount below minimum")
	ErrBundleUnavailable   = errors.New("bundle unavailable")
	ErrDeliveryFailed      = errors.New("data delivery failed")
	ErrBadSignature        = errors.New("webhook signature mismatch")
	ErrUpstreamUnavailable = errors.New("payment provider unavailable")
)

const refundRetryAttempts = 3
const refundRetryBackoff = 200 * time.Millisecond

// Options carries the tunable business parameters the service needs.
type Options struct {
	PaystackSecretKey string
	CallbackURL       string
	MinFundingKobo    int64
	ReferralBonusKobo int64
	MaxAdjustmentKobo int64
	EventExchange     string
}

// Service provides the core business logic for the wallet.
type Service struct {
	repo     store.Repository
	payments *paystack.Client
	delivery *vtu.Client
	events   rabbitmq.Publisher
	opts     Options
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, payments *paystack.Client, delivery *vtu.Client, events rabbitmq.Publisher, opts Options) *Service {
	if opts.MinFundingKobo <= 0 {
		opts.MinFundingKobo = 10000
	}
	if opts.MaxAdjustmentKobo <= 0 {
		opts.MaxAdjustmentKobo = 500000000
	}
	if opts.EventExchange == "" {
		opts.EventExchange = "dataflare.events"
	}
	return &Service{
		repo:     repo,
		payments: payments,
		delivery: delivery,
		events:   events,
		opts:     opts,
	}
}

// Balance returns the user's current spendable balance.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// History returns a page of the user's transaction log, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, int64, error) {
	return s.repo.ListTransactionsByUser(ctx, userID, opts)
}

// Bundles lists the active catalog visible to buyers.
func (s *Service) Bundles(ctx context.Context, network string) ([]domain.DataBundle, error) {
	if network != "" && !domain.ValidNetwork(network) {
		return nil, fmt.Errorf("%w: unknown network %q", ErrInvalidInput, network)
	}
	return s.repo.ListBundles(ctx, network, true)
}

// Purchase drives one data purchase attempt through the saga:
// Initiated -> Reserved -> Delivered | Refunded.
//
// Once the reservation commits, the attempt always reaches a terminal state:
// settle on provider success, refund on provider failure, error, or timeout.
// When the outcome is Refunded the returned result carries the restored
// balance together with ErrDeliveryFailed, so callers can report "failed and
// refunded" in one breath.
func (s *Service) Purchase(ctx context.Context, userID uuid.UUID, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	bundle, err := s.repo.FindBundleByID(ctx, req.BundleID)
	if err != nil {
		return nil, err
	}
	if !bundle.IsActive {
		return nil, ErrBundleUnavailable
	}

	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      bundle.Price,
		Network:     bundle.Network,
		BundleLabel: bundle.Label(),
		PhoneNumber: phone,
		Description: fmt.Sprintf("%s %s for %s", bundle.Network, bundle.Name, phone),
	}

	// Commit point. From here the money has left the spendable balance and the
	// attempt must terminate in Delivered or Refunded.
	reservedBalance, err := s.repo.ReservePurchase(ctx, record)
	if err != nil {
		return nil, err
	}
	log.Info().Str("component", "purchase").Str("tx_id", record.ID.String()).
		Str("user_id", userID.String()).Int64("amount", bundle.Price).Msg("purchase reserved")

	// The saga must settle even if the caller goes away mid-delivery.
	settleCtx := context.WithoutCancel(ctx)

	result, err := s.delivery.PurchaseData(ctx, vtu.PurchaseRequest{
		Network:     bundle.Network,
		PhoneNumber: phone,
		PlanCode:    bundle.PlanCode,
		RequestID:   record.ID.String(),
	})
	if err != nil || !result.Success {
		reason := "provider reported failure"
		if err != nil {
			reason = err.Error()
		} else if result.Message != "" {
			reason = result.Message
		}
		log.Warn().Str("component", "purchase").Str("tx_id", record.ID.String()).
			Str("reason", reason).Msg("delivery failed; refunding")
		return s.refundPurchase(settleCtx, record)
	}

	if err := s.repo.SettlePurchaseDelivered(settleCtx, record.ID, result.OrderID); err != nil {
		// The delivery went through; the record must not stay pending. The
		// reconcile sweep picks this up via the provider's order status.
		log.Error().Str("component", "purchase").Str("tx_id", record.ID.String()).
			Err(err).Msg("failed to settle delivered purchase")
		return nil, fmt.Errorf("failed to settle purchase: %w", err)
	}
	record.Status = domain.StatusSuccess
	record.ProviderReference = &result.OrderID

	s.publishEvent(settleCtx, rabbitmq.RoutePurchaseSettled, record, result.OrderID)

	return &domain.PurchaseResult{Transaction: record, NewBalance: reservedBalance}, nil
}

// refundPurchase applies the compensating credit for a reserved purchase and
// flips the record to failed. The repository call is idempotent per
// transaction id, so it is retried until it durably lands; a refund is never
// reported to the caller before it is recorded.
func (s *Service) refundPurchase(ctx context.Context, record *domain.Transaction) (*domain.PurchaseResult, error) {
	var lastErr error
	for attempt := 0; attempt < refundRetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(refundRetryBackoff << uint(attempt-1))
		}
		applied, balance, err := s.repo.RefundPurchase(ctx, record.ID)
		if err != nil {
			lastErr = err
			continue
		}
		record.Status = domain.StatusFailed
		if applied {
			s.publishEvent(ctx, rabbitmq.RoutePurchaseRefunded, record, "")
		}
		return &domain.PurchaseResult{Transaction: record, NewBalance: balance}, ErrDeliveryFailed
	}
	log.Error().Str("component", "purchase").Str("tx_id", record.ID.String()).
		Err(lastErr).Msg("refund could not be recorded; left pending for sweep")
	return nil, fmt.Errorf("refund not yet recorded: %w", lastErr)
}

// AdminAdjust applies a manual credit or debit with an operator reason.
// Debits are gated by the same non-negative balance invariant as purchases.
func (s *Service) AdminAdjust(ctx context.Context, userID uuid.UUID, req domain.AdminAdjustRequest) (int64, error) {
	if req.Amount <= 0 || req.Amount > s.opts.MaxAdjustmentKobo {
		return 0, fmt.Errorf("%w: amount must be positive and at most %d kobo", ErrInvalidInput, s.opts.MaxAdjustmentKobo)
	}

	var delta int64
	var label string
	switch req.Direction {
	case domain.DirectionCredit:
		delta, label = req.Amount, "Admin credit"
	case domain.DirectionDebit:
		delta, label = -req.Amount, "Admin debit"
	default:
		return 0, fmt.Errorf("%w: direction must be credit or debit", ErrInvalidInput)
	}

	reason := req.Reason
	if reason == "" {
		reason = "Manual adjustment"
	}
	balance, err := s.repo.AdminAdjust(ctx, userID, delta, fmt.Sprintf("%s: %s", label, reason))
	if err != nil {
		return 0, err
	}
	log.Info().Str("component", "admin").Str("user_id", userID.String()).
		Int64("delta", delta).Msg("wallet adjusted")
	return balance, nil
}

// SetUserActive toggles account suspension.
func (s *Service) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return s.repo.SetUserActive(ctx, userID, active)
}

// ListUsers returns a page of users for the admin screen.
func (s *Service) ListUsers(ctx context.Context, opts domain.UserListOptions) ([]domain.User, int64, error) {
	return s.repo.ListUsers(ctx, opts)
}

// ListAllTransactions returns a page of the platform ledger for admins.
func (s *Service) ListAllTransactions(ctx context.Context, opts domain.TransactionListOptions) ([]domain.Transaction, int64, error) {
	return s.repo.ListAllTransactions(ctx, opts)
}

// Stats aggregates admin dashboard counters.
func (s *Service) Stats(ctx context.Context) (*domain.PlatformStats, error) {
	return s.repo.GetPlatformStats(ctx)
}

// Bundle catalog management, admin-only.

func (s *Service) ListAllBundles(ctx context.Context) ([]domain.DataBundle, error) {
	return s.repo.ListBundles(ctx, "", false)
}

func (s *Service) CreateBundle(ctx context.Context, req domain.BundleUpsertRequest) (*domain.DataBundle, error) {
	if err := validateBundle(req); err != nil {
		return nil, err
	}
	bundle := &domain.DataBundle{
		ID:       uuid.New(),
		Network:  req.Network,
		Name:     req.Name,
		Size:     req.Size,
		Validity: req.Validity,
		Price:    req.Price,
		PlanCode: req.PlanCode,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := s.repo.CreateBundle(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *Service) UpdateBundle(ctx context.Context, bundleID uuid.UUID, req domain.BundleUpsertRequest) (*domain.DataBundle, error) {
	if err := validateBundle(req); err != nil {
		return nil, err
	}
	bundle, err := s.repo.FindBundleByID(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	bundle.Network = req.Network
	bundle.Name = req.Name
	bundle.Size = req.Size
	bundle.Validity = req.Validity
	bundle.Price = req.Price
	bundle.PlanCode = req.PlanCode
	if req.IsActive != nil {
		bundle.IsActive = *req.IsActive
	}
	if err := s.repo.UpdateBundle(ctx, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *Service) DeleteBundle(ctx context.Context, bundleID uuid.UUID) error {
	return s.repo.DeleteBundle(ctx, bundleID)
}

func validateBundle(req domain.BundleUpsertRequest) error {
	if !domain.ValidNetwork(req.Network) {
		return fmt.Errorf("%w: unknown network %q", ErrInvalidInput, req.Network)
	}
	if req.Name == "" || req.Size == "" || req.Validity == "" || req.PlanCode == "" {
		return fmt.Errorf("%w: name, size, validity and plan_code are required", ErrInvalidInput)
	}
	if req.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, record *domain.Transaction, reference string) {
	if s.events == nil {
		return
	}
	event := rabbitmq.WalletEvent{
		TransactionID: record.ID,
		UserID:        record.UserID,
		Kind:          record.Kind,
		Amount:        record.Amount,
		Status:        record.Status,
		Reference:     reference,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, s.opts.EventExchange, routingKey, event); err != nil {
		log.Warn().Str("component", "events").Str("routing_key", routingKey).
			Err(err).Msg("event publish failed")
	}
}
