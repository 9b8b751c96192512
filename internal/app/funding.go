/**
 * @description
 * Funding reconciliation: turning Paystack payment confirmations into
 * at-most-once wallet credits.
 *
 * Two independent entry points converge on one idempotent state transition:
 * - VerifyFunding: user-initiated poll after the checkout redirect.
 * - HandleFundingWebhook: Paystack's asynchronous push notification.
 * Both call the repository's ApplyFundingSuccess, whose pending -> success
 * compare-and-swap guarantees the credit lands exactly once no matter how the
 * two paths race or replay.
 */

package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
	"github.com/dataflare/wallet-service/pkg/paystack"
	"github.com/dataflare/wallet-service/pkg/rabbitmq"
)

// InitiateFunding opens a Paystack checkout session for the given amount and
// records the matching pending funding transaction. The generated reference is
// the idempotency key both confirmation paths share.
func (s *Service) InitiateFunding(ctx context.Context, userID uuid.UUID, amountKobo int64) (*domain.FundingInitiation, error) {
	if amountKobo < s.opts.MinFundingKobo {
		return nil, fmt.Errorf("%w: minimum funding amount is %d kobo", ErrAmountBelowMinimum, s.opts.MinFundingKobo)
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("DF_%s_%d", userID, time.Now().UnixMilli())

	callbackURL := ""
	if s.opts.CallbackURL != "" {
		callbackURL = fmt.Sprintf("%s?ref=%s", s.opts.CallbackURL, reference)
	}

	initResp, err := s.payments.Initialize(ctx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      amountKobo,
		Reference:   reference,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	record := &domain.Transaction{
		ID:               uuid.New(),
		UserID:           userID,
		Amount:           amountKobo,
		PaymentReference: &reference,
		Description:      "Wallet funding",
	}
	if err := s.repo.CreatePendingFunding(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record pending funding: %w", err)
	}

	log.Info().Str("component", "funding").Str("reference", reference).
		Str("user_id", userID.String()).Int64("amount", amountKobo).Msg("funding initiated")

	return &domain.FundingInitiation{
		AuthorizationURL: initResp.Data.AuthorizationURL,
		Reference:        reference,
	}, nil
}

// VerifyFunding is the poll path: it asks Paystack for the ground truth about
// a reference and applies the credit if the record is still pending. Calling
// it again after the credit landed is a pure idempotent read.
//
// A reference Paystack has not yet settled stays pending; that is reported as
// status "pending", not as an error, because the same reference may succeed
// moments later.
func (s *Service) VerifyFunding(ctx context.Context, userID uuid.UUID, reference string) (*domain.FundingStatus, error) {
	record, err := s.repo.FindTransactionByPaymentRef(ctx, reference)
	if err != nil {
		return nil, err
	}
	if record.UserID != userID {
		// Another user's reference is indistinguishable from a missing one.
		return nil, store.ErrTransactionNotFound
	}

	if record.Status != domain.StatusPending {
		balance, err := s.Balance(ctx, record.UserID)
		if err != nil {
			return nil, err
		}
		return &domain.FundingStatus{Status: record.Status, WalletBalance: balance, Credited: false}, nil
	}

	verifyResp, err := s.payments.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	switch verifyResp.Data.Status {
	case paystack.StatusSuccess:
		credited, balance, err := s.applyFundingCredit(ctx, record, reference, verifyResp.Data.Amount)
		if err != nil {
			return nil, err
		}
		return &domain.FundingStatus{Status: domain.StatusSuccess, WalletBalance: balance, Credited: credited}, nil

	case paystack.StatusFailed:
		if err := s.repo.MarkFundingFailed(ctx, reference); err != nil {
			return nil, err
		}
		balance, err := s.Balance(ctx, record.UserID)
		if err != nil {
			return nil, err
		}
		return &domain.FundingStatus{Status: domain.StatusFailed, WalletBalance: balance, Credited: false}, nil

	default:
		// Not settled yet. Leave the record pending for a later verify or the webhook.
		balance, err := s.Balance(ctx, record.UserID)
		if err != nil {
			return nil, err
		}
		return &domain.FundingStatus{Status: domain.StatusPending, WalletBalance: balance, Credited: false}, nil
	}
}

// webhookEvent is the subset of Paystack's notification payload we act on.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	} `json:"data"`
}

// VerifyWebhookSignature authenticates a raw webhook payload: Paystack signs
// the body with HMAC-SHA512 under the secret key. The comparison is
// constant-time. No payload field is trusted before this passes.
func (s *Service) VerifyWebhookSignature(rawBody []byte, signature string) error {
	mac := hmac.New(sha512.New, []byte(s.opts.PaystackSecretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// HandleFundingWebhook is the push path. The signature must already have been
// verified (the HTTP handler rejects mismatches before any state is touched).
// Replays of the same charge.success notification are absorbed by the same
// pending -> success gate the verify path uses.
//
// Processing errors are logged, not returned: the provider retries
// indefinitely otherwise, and the credit is already guarded.
func (s *Service) HandleFundingWebhook(ctx context.Context, rawBody []byte) {
	var event webhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		log.Warn().Str("component", "webhook").Err(err).Msg("undecodable webhook payload")
		return
	}

	if event.Event != "charge.success" {
		log.Debug().Str("component", "webhook").Str("event", event.Event).Msg("ignoring webhook event")
		return
	}

	record, err := s.repo.FindTransactionByPaymentRef(ctx, event.Data.Reference)
	if err != nil {
		log.Warn().Str("component", "webhook").Str("reference", event.Data.Reference).
			Err(err).Msg("webhook for unknown reference")
		return
	}

	credited, _, err := s.applyFundingCredit(ctx, record, event.Data.Reference, event.Data.Amount)
	if err != nil {
		log.Error().Str("component", "webhook").Str("reference", event.Data.Reference).
			Err(err).Msg("webhook credit failed")
		return
	}
	if !credited {
		log.Debug().Str("component", "webhook").Str("reference", event.Data.Reference).
			Msg("webhook replay; credit already applied")
	}
}

func (s *Service) applyFundingCredit(ctx context.Context, record *domain.Transaction, reference string, amount int64) (bool, int64, error) {
	credited, balance, err := s.repo.ApplyFundingSuccess(ctx, reference, amount)
	if err != nil {
		return false, 0, err
	}
	if credited {
		log.Info().Str("component", "funding").Str("reference", reference).
			Str("user_id", record.UserID.String()).Int64("amount", amount).Msg("wallet credited")
		settled := *record
		settled.Status = domain.StatusSuccess
		settled.Amount = amount
		settled.Kind = domain.KindFunding
		s.publishEvent(ctx, rabbitmq.RouteWalletFunded, &settled, reference)
	}
	return credited, balance, nil
}
