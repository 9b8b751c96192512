package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
	"github.com/dataflare/wallet-service/pkg/vtu"
)

type sweepRepoStub struct {
	store.Repository

	records map[uuid.UUID]*domain.Transaction
	stale   []domain.Transaction

	settled  []uuid.UUID
	refunded []uuid.UUID
}

func (s *sweepRepoStub) FindTransactionByID(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	record, ok := s.records[txID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return record, nil
}

func (s *sweepRepoStub) FindStalePendingPurchases(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	return s.stale, nil
}

func (s *sweepRepoStub) SettlePurchaseDelivered(ctx context.Context, txID uuid.UUID, providerRef string) error {
	record := s.records[txID]
	if record.Status != domain.StatusPending {
		return store.ErrTransactionSettled
	}
	record.Status = domain.StatusSuccess
	s.settled = append(s.settled, txID)
	return nil
}

func (s *sweepRepoStub) RefundPurchase(ctx context.Context, txID uuid.UUID) (bool, int64, error) {
	record := s.records[txID]
	if record.Status != domain.StatusPending {
		return false, 0, nil
	}
	record.Status = domain.StatusFailed
	s.refunded = append(s.refunded, txID)
	return true, record.Amount, nil
}

func pendingPurchaseRecord() *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Kind:      domain.KindPurchase,
		Direction: domain.DirectionDebit,
		Amount:    30000,
		Status:    domain.StatusPending,
	}
}

func newSweepService(repo store.Repository, providerStatus string) (*Service, *httptest.Server) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orderstatus.asp" {
			_, _ = io.WriteString(w, `{"status":"failed"}`)
			return
		}
		_, _ = io.WriteString(w, `{"status":"`+providerStatus+`","orderid":"ORD-SWEEP"}`)
	}))
	delivery := vtu.NewClient(server.URL, "user", "key", 5*time.Second)
	return NewService(repo, nil, delivery, nil, Options{}), server
}

func TestReconcilePurchase_DeliveredSettles(t *testing.T) {
	record := pendingPurchaseRecord()
	repo := &sweepRepoStub{records: map[uuid.UUID]*domain.Transaction{record.ID: record}}
	service, server := newSweepService(repo, "successful")
	defer server.Close()

	outcome, err := service.ReconcilePurchase(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSettled {
		t.Fatalf("expected settled, got %q", outcome)
	}
	if len(repo.settled) != 1 || repo.settled[0] != record.ID {
		t.Fatal("expected the record to be settled")
	}
	if len(repo.refunded) != 0 {
		t.Fatal("no refund expected for a delivered order")
	}
}

func TestReconcilePurchase_FailedRefunds(t *testing.T) {
	record := pendingPurchaseRecord()
	repo := &sweepRepoStub{records: map[uuid.UUID]*domain.Transaction{record.ID: record}}
	service, server := newSweepService(repo, "failed")
	defer server.Close()

	outcome, err := service.ReconcilePurchase(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRefunded {
		t.Fatalf("expected refunded, got %q", outcome)
	}
	if len(repo.refunded) != 1 {
		t.Fatal("expected the record to be refunded")
	}
}

func TestReconcilePurchase_InFlightOrderLeftPending(t *testing.T) {
	record := pendingPurchaseRecord()
	repo := &sweepRepoStub{records: map[uuid.UUID]*domain.Transaction{record.ID: record}}
	service, server := newSweepService(repo, "order_received")
	defer server.Close()

	outcome, err := service.ReconcilePurchase(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeStillOpen {
		t.Fatalf("expected still_open, got %q", outcome)
	}
	if record.Status != domain.StatusPending {
		t.Fatal("an in-flight order must stay pending")
	}
}

func TestReconcilePurchase_SettledRecordNotEligible(t *testing.T) {
	record := pendingPurchaseRecord()
	record.Status = domain.StatusSuccess
	repo := &sweepRepoStub{records: map[uuid.UUID]*domain.Transaction{record.ID: record}}
	service, server := newSweepService(repo, "failed")
	defer server.Close()

	outcome, err := service.ReconcilePurchase(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNotEligible {
		t.Fatalf("expected not_eligible, got %q", outcome)
	}
	if len(repo.refunded) != 0 {
		t.Fatal("settled records must never be refunded by the sweep")
	}
}

func TestReconcilePurchase_FundingRecordNotEligible(t *testing.T) {
	reference := "DF_sweep"
	record := &domain.Transaction{
		ID:               uuid.New(),
		Kind:             domain.KindFunding,
		Direction:        domain.DirectionCredit,
		Status:           domain.StatusPending,
		PaymentReference: &reference,
	}
	repo := &sweepRepoStub{records: map[uuid.UUID]*domain.Transaction{record.ID: record}}
	service, server := newSweepService(repo, "successful")
	defer server.Close()

	outcome, err := service.ReconcilePurchase(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNotEligible {
		t.Fatalf("expected not_eligible, got %q", outcome)
	}
}

func TestSweepPendingPurchases_ResolvesStaleRecords(t *testing.T) {
	first := pendingPurchaseRecord()
	second := pendingPurchaseRecord()
	repo := &sweepRepoStub{
		records: map[uuid.UUID]*domain.Transaction{
			first.ID:  first,
			second.ID: second,
		},
		stale: []domain.Transaction{*first, *second},
	}
	service, server := newSweepService(repo, "successful")
	defer server.Close()

	resolved, err := service.SweepPendingPurchases(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 2 {
		t.Fatalf("expected 2 resolved records, got %d", resolved)
	}
	if len(repo.settled) != 2 {
		t.Fatalf("expected both records settled, got %d", len(repo.settled))
	}
}
