/**
 * @description
 * Background reconciliation for purchases stranded in the pending state. A
 * crash between the reservation commit and the settle/refund write leaves a
 * pending record with money already debited; the sweep resolves each one
 * against the delivery provider's order status, which is keyed by the same
 * transaction UUID the original request carried.
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
	"github.com/dataflare/wallet-service/pkg/rabbitmq"
)

const sweepBatchSize = 50

// ReconcileOutcome reports what a reconciliation pass decided for one record.
type ReconcileOutcome string

const (
	OutcomeSettled     ReconcileOutcome = "settled"
	OutcomeRefunded    ReconcileOutcome = "refunded"
	OutcomeStillOpen   ReconcileOutcome = "still_open"
	OutcomeNotEligible ReconcileOutcome = "not_eligible"
)

// ReconcilePurchase resolves a single pending purchase by asking the provider
// for its order status. Delivered orders settle, failed orders refund, and
// anything still in flight at the provider is left pending for the next pass.
// Records that are not pending purchases report OutcomeNotEligible.
func (s *Service) ReconcilePurchase(ctx context.Context, txID uuid.UUID) (ReconcileOutcome, error) {
	record, err := s.repo.FindTransactionByID(ctx, txID)
	if err != nil {
		return "", err
	}
	if record.Kind != domain.KindPurchase || record.Status != domain.StatusPending {
		return OutcomeNotEligible, nil
	}

	status, err := s.delivery.CheckStatus(ctx, record.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to query order status: %w", err)
	}

	switch {
	case status.Delivered():
		if err := s.repo.SettlePurchaseDelivered(ctx, record.ID, status.OrderID); err != nil {
			if errors.Is(err, store.ErrTransactionSettled) {
				return OutcomeNotEligible, nil
			}
			return "", err
		}
		record.Status = domain.StatusSuccess
		s.publishEvent(ctx, rabbitmq.RoutePurchaseSettled, record, status.OrderID)
		return OutcomeSettled, nil

	case status.Failed():
		applied, _, err := s.repo.RefundPurchase(ctx, record.ID)
		if err != nil {
			return "", err
		}
		if !applied {
			return OutcomeNotEligible, nil
		}
		record.Status = domain.StatusFailed
		s.publishEvent(ctx, rabbitmq.RoutePurchaseRefunded, record, "")
		return OutcomeRefunded, nil

	default:
		return OutcomeStillOpen, nil
	}
}

// SweepPendingPurchases runs one reconciliation pass over purchases that have
// been pending for at least minAge. It returns how many records reached a
// terminal state.
func (s *Service) SweepPendingPurchases(ctx context.Context, minAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-minAge)
	stale, err := s.repo.FindStalePendingPurchases(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, record := range stale {
		outcome, err := s.ReconcilePurchase(ctx, record.ID)
		if err != nil {
			log.Warn().Str("component", "sweep").Str("tx_id", record.ID.String()).
				Err(err).Msg("reconcile failed; will retry next pass")
			continue
		}
		if outcome == OutcomeSettled || outcome == OutcomeRefunded {
			resolved++
			log.Info().Str("component", "sweep").Str("tx_id", record.ID.String()).
				Str("outcome", string(outcome)).Msg("stale purchase resolved")
		}
	}
	return resolved, nil
}

// RunPendingPurchaseSweeper loops SweepPendingPurchases on a ticker until the
// context is cancelled. Intended to run as a goroutine from main.
func (s *Service) RunPendingPurchaseSweeper(ctx context.Context, interval, minAge time.Duration) {
	log.Info().Str("component", "sweep").Dur("interval", interval).Dur("min_age", minAge).
		Msg("pending purchase sweeper started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "sweep").Msg("pending purchase sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepPendingPurchases(ctx, minAge); err != nil {
				log.Error().Str("component", "sweep").Err(err).Msg("sweep pass failed")
			}
		}
	}
}
