package vtu

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPurchaseData_SendsProviderParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/datainfo.asp" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("UserID") != "CK101" || q.Get("APIKey") != "secret" {
			t.Errorf("credentials missing from query: %v", q)
		}
		if q.Get("MobileNetwork") != "04" {
			t.Errorf("expected Airtel network code 04, got %q", q.Get("MobileNetwork"))
		}
		if q.Get("MobileNumber") != "08031234567" {
			t.Errorf("unexpected phone %q", q.Get("MobileNumber"))
		}
		if q.Get("RequestID") != "req-1" {
			t.Errorf("unexpected request id %q", q.Get("RequestID"))
		}
		_, _ = io.WriteString(w, `{"status":"successful","orderid":"ORD-9"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "CK101", "secret", 5*time.Second)
	result, err := client.PurchaseData(context.Background(), PurchaseRequest{
		Network:     "Airtel",
		PhoneNumber: "08031234567",
		PlanCode:    "500",
		RequestID:   "req-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.OrderID != "ORD-9" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPurchaseData_UppercaseFieldsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Status":"SUCCESSFUL","OrderID":"ORD-10"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "CK101", "secret", 5*time.Second)
	result, err := client.PurchaseData(context.Background(), PurchaseRequest{
		Network:     "MTN",
		PhoneNumber: "08031234567",
		PlanCode:    "1001",
		RequestID:   "req-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.OrderID != "ORD-10" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPurchaseData_FailureCarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"failed","message":"INVALID_RECIPIENT"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "CK101", "secret", 5*time.Second)
	result, err := client.PurchaseData(context.Background(), PurchaseRequest{
		Network:     "Glo",
		PhoneNumber: "08051234567",
		PlanCode:    "200",
		RequestID:   "req-3",
	})
	if err != nil {
		t.Fatalf("a provider-side failure is not a transport error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Message != "INVALID_RECIPIENT" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestPurchaseData_UnknownNetworkRejected(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "CK101", "secret", time.Second)
	if _, err := client.PurchaseData(context.Background(), PurchaseRequest{Network: "Verizon"}); err == nil {
		t.Fatal("expected an error for an unknown network")
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantDelivered bool
		wantFailed    bool
	}{
		{
			name:          "delivered",
			body:          `{"status":"successful","orderid":"ORD-1"}`,
			wantDelivered: true,
		},
		{
			name:       "failed",
			body:       `{"status":"failed"}`,
			wantFailed: true,
		},
		{
			name:       "cancelled",
			body:       `{"status":"CANCELLED"}`,
			wantFailed: true,
		},
		{
			name:       "refunded",
			body:       `{"status":"refunded"}`,
			wantFailed: true,
		},
		{
			name: "in flight",
			body: `{"status":"order_received"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/orderstatus.asp" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, "CK101", "secret", 5*time.Second)
			status, err := client.CheckStatus(context.Background(), "req-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.Delivered() != tt.wantDelivered {
				t.Fatalf("Delivered() = %t, want %t", status.Delivered(), tt.wantDelivered)
			}
			if status.Failed() != tt.wantFailed {
				t.Fatalf("Failed() = %t, want %t", status.Failed(), tt.wantFailed)
			}
		})
	}
}

func TestGet_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "CK101", "secret", 5*time.Second)
	if _, err := client.CheckStatus(context.Background(), "req-1"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}
