package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dataflare/wallet-service/internal/domain"
)

func TestAuthMiddleware(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, err := issuer.Generate(&domain.User{ID: userID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotUserID uuid.UUID
	var gotOK bool
	handler := AuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotOK = GetAuthUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid token",
			authHeader: "Bearer " + token,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			authHeader: token,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "tampered token",
			authHeader: "Bearer " + token + "x",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOK = false
			req := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK {
				if !gotOK || gotUserID != userID {
					t.Fatalf("expected user %s on context, got %s (ok=%t)", userID, gotUserID, gotOK)
				}
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	adminToken, err := issuer.Generate(&domain.User{ID: uuid.New(), IsAdmin: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userToken, err := issuer.Generate(&domain.User{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := AuthMiddleware(issuer)(AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{
			name:       "admin allowed",
			token:      adminToken,
			wantStatus: http.StatusOK,
		},
		{
			name:       "regular user forbidden",
			token:      userToken,
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
