package app

import (
	"context"
	"errors"
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

type purchaseRepoStub struct {
	store.Repository

	bundle              *domain.DataBundle
	reserveErr          error
	balanceAfterReserve int64
	balanceAfterRefund  int64

	reserved      *domain.Transaction
	settleCalled  bool
	settleOrderID string
	refundCalled  bool
}

func (s *purchaseRepoStub) FindBundleByID(ctx context.Context, bundleID uuid.UUID) (*domain.DataBundle, error) {
	if s.bundle == nil || s.bundle.ID != bundleID {
		return nil, store.ErrBundleNotFound
	}
	return s.bundle, nil
}

func (s *purchaseRepoStub) ReservePurchase(ctx context.Context, tx *domain.Transaction) (int64, error) {
	if s.reserveErr != nil {
		return 0, s.reserveErr
	}
	tx.Kind = domain.KindPurchase
	tx.Direction = domain.DirectionDebit
	tx.Status = domain.StatusPending
	s.reserved = tx
	return s.balanceAfterReserve, nil
}

func (s *purchaseRepoStub) SettlePurchaseDelivered(ctx context.Context, txID uuid.UUID, providerRef string) error {
	s.settleCalled = true
	s.settleOrderID = providerRef
	return nil
}

func (s *purchaseRepoStub) RefundPurchase(ctx context.Context, txID uuid.UUID) (bool, int64, error) {
	s.refundCalled = true
	return true, s.balanceAfterRefund, nil
}

func testBundle() *domain.DataBundle {
	return &domain.DataBundle{
		ID:       uuid.New(),
		Network:  "MTN",
		Name:     "1GB",
		Size:     "1GB",
		Validity: "30 days",
		Price:    30000,
		PlanCode: "1001",
		IsActive: true,
	}
}

func newPurchaseService(repo store.Repository, vtuURL string) *Service {
	delivery := vtu.NewClient(vtuURL, "user", "key", 5*time.Second)
	return NewService(repo, nil, delivery, nil, Options{})
}

func TestPurchase_SuccessSettlesAndDebits(t *testing.T) {
	bundle := testBundle()
	repo := &purchaseRepoStub{
		bundle:              bundle,
		balanceAfterReserve: 20000,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/datainfo.asp" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("MobileNetwork"); got != "01" {
			t.Errorf("expected MTN network code 01, got %q", got)
		}
		_, _ = io.WriteString(w, `{"status":"successful","orderid":"ORD-42"}`)
	}))
	defer server.Close()

	service := newPurchaseService(repo, server.URL)

	result, err := service.Purchase(context.Background(), uuid.New(), domain.PurchaseRequest{
		BundleID:    bundle.ID,
		PhoneNumber: "08031234567",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewBalance != 20000 {
		t.Fatalf("expected balance 20000, got %d", result.NewBalance)
	}
	if result.Transaction.Status != domain.StatusSuccess {
		t.Fatalf("expected success status, got %q", result.Transaction.Status)
	}
	if !repo.settleCalled || repo.settleOrderID != "ORD-42" {
		t.Fatalf("expected settle with order ORD-42, got called=%t order=%q", repo.settleCalled, repo.settleOrderID)
	}
	if repo.refundCalled {
		t.Fatal("refund must not run on a delivered purchase")
	}
	if repo.reserved == nil || repo.reserved.Amount != bundle.Price {
		t.Fatalf("expected reservation for %d kobo", bundle.Price)
	}
}

func TestPurchase_ProviderFailureRefunds(t *testing.T) {
	bundle := testBundle()
	repo := &purchaseRepoStub{
		bundle:              bundle,
		balanceAfterReserve: 20000,
		balanceAfterRefund:  50000,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"failed","message":"insufficient provider balance"}`)
	}))
	defer server.Close()

	service := newPurchaseService(repo, server.URL)

	result, err := service.Purchase(context.Background(), uuid.New(), domain.PurchaseRequest{
		BundleID:    bundle.ID,
		PhoneNumber: "08031234567",
	})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a result carrying the refunded balance")
	}
	if result.NewBalance != 50000 {
		t.Fatalf("expected restored balance 50000, got %d", result.NewBalance)
	}
	if result.Transaction.Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %q", result.Transaction.Status)
	}
	if !repo.refundCalled {
		t.Fatal("expected refund to be recorded")
	}
	if repo.settleCalled {
		t.Fatal("settle must not run on a failed delivery")
	}
}

func TestPurchase_ProviderTransportErrorRefunds(t *testing.T) {
	bundle := testBundle()
	repo := &purchaseRepoStub{
		bundle:              bundle,
		balanceAfterReserve: 20000,
		balanceAfterRefund:  50000,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	service := newPurchaseService(repo, server.URL)

	_, err := service.Purchase(context.Background(), uuid.New(), domain.PurchaseRequest{
		BundleID:    bundle.ID,
		PhoneNumber: "08031234567",
	})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if !repo.refundCalled {
		t.Fatal("expected refund after a transport error")
	}
}

func TestPurchase_InsufficientFundsLeavesWalletUntouched(t *testing.T) {
	bundle := testBundle()
	repo := &purchaseRepoStub{
		bundle:     bundle,
		reserveErr: store.ErrInsufficientFunds,
	}

	providerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		_, _ = io.WriteString(w, `{"status":"successful"}`)
	}))
	defer server.Close()

	service := newPurchaseService(repo, server.URL)

	_, err := service.Purchase(context.Background(), uuid.New(), domain.PurchaseRequest{
		BundleID:    bundle.ID,
		PhoneNumber: "08031234567",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if providerCalls != 0 {
		t.Fatal("provider must not be called when the reservation fails")
	}
	if repo.refundCalled || repo.settleCalled {
		t.Fatal("no settlement activity expected for a rejected reservation")
	}
}

func TestPurchase_InvalidPhoneRejectedBeforeReservation(t *testing.T) {
	bundle := testBundle()
	repo := &purchaseRepoStub{bundle: bundle}
	service := newPurchaseService(repo, "http://127.0.0.1:0")

	_, err := service.Purchase(context.Background(), uuid.New(), domain.PurchaseRequest{
		BundleID:    bundle.ID,
		PhoneNumber: "12345",
	})
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if repo.reserved != nil {
		t.Fatal("no reservation expected for an invalid phone")
	}
}

func TestPurchase_InactiveBundleRejected(t *testing.T) {
	bundle := testBundle()
	bundle.IsActive = false
	repo := &purchaseRepoStub{bundle: bundle}
	service := newPurchaseService(repo, "http://127.0.0.1:0")

	_, err := service.Purchase(context.Background(), uuid.New(), domain.PurchaseRequest{
		BundleID:    bundle.ID,
		PhoneNumber: "08031234567",
	})
	if !errors.Is(err, ErrBundleUnavailable) {
		t.Fatalf("expected ErrBundleUnavailable, got %v", err)
	}
	if repo.reserved != nil {
		t.Fatal("no reservation expected for an inactive bundle")
	}
}

func TestAdminAdjust_Validation(t *testing.T) {
	repo := &adjustRepoStub{balance: 15000}
	service := NewService(repo, nil, nil, nil, Options{MaxAdjustmentKobo: 100000})

	tests := []struct {
		name    string
		req     domain.AdminAdjustRequest
		wantErr error
	}{
		{
			name:    "zero amount rejected",
			req:     domain.AdminAdjustRequest{Amount: 0, Direction: domain.DirectionCredit},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "amount above cap rejected",
			req:     domain.AdminAdjustRequest{Amount: 100001, Direction: domain.DirectionCredit},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown direction rejected",
			req:     domain.AdminAdjustRequest{Amount: 1000, Direction: "sideways"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.AdminAdjust(context.Background(), uuid.New(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

type adjustRepoStub struct {
	store.Repository

	balance   int64
	lastDelta int64
	lastDesc  string
}

func (s *adjustRepoStub) AdminAdjust(ctx context.Context, userID uuid.UUID, delta int64, description string) (int64, error) {
	if s.balance+delta < 0 {
		return 0, store.ErrInsufficientFunds
	}
	s.lastDelta = delta
	s.lastDesc = description
	s.balance += delta
	return s.balance, nil
}

func TestAdminAdjust_DebitExceedingBalanceRejected(t *testing.T) {
	repo := &adjustRepoStub{balance: 15000}
	service := NewService(repo, nil, nil, nil, Options{})

	_, err := service.AdminAdjust(context.Background(), uuid.New(), domain.AdminAdjustRequest{
		Amount:    20000,
		Direction: domain.DirectionDebit,
		Reason:    "chargeback",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if repo.balance != 15000 {
		t.Fatalf("balance must be unchanged, got %d", repo.balance)
	}
}

func TestAdminAdjust_DebitAppliesNegativeDelta(t *testing.T) {
	repo := &adjustRepoStub{balance: 15000}
	service := NewService(repo, nil, nil, nil, Options{})

	balance, err := service.AdminAdjust(context.Background(), uuid.New(), domain.AdminAdjustRequest{
		Amount:    5000,
		Direction: domain.DirectionDebit,
		Reason:    "chargeback",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 10000 {
		t.Fatalf("expected balance 10000, got %d", balance)
	}
	if repo.lastDelta != -5000 {
		t.Fatalf("expected delta -5000, got %d", repo.lastDelta)
	}
	if repo.lastDesc != "Admin debit: chargeback" {
		t.Fatalf("unexpected description %q", repo.lastDesc)
	}
}
