package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
)

type authRepoStub struct {
	store.Repository

	usersByCode map[string]*domain.User
	loginUser   *domain.User

	createErrs []error
	created    []*domain.User

	bonusInviter uuid.UUID
	bonusAmount  int64
	bonusDesc    string
	bonusCalls   int
}

func (s *authRepoStub) FindUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	if user, ok := s.usersByCode[code]; ok {
		return user, nil
	}
	return nil, store.ErrUserNotFound
}

func (s *authRepoStub) CreateUser(ctx context.Context, user *domain.User) error {
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	s.created = append(s.created, user)
	return nil
}

func (s *authRepoStub) ApplyReferralBonus(ctx context.Context, inviterID uuid.UUID, amount int64, description string) error {
	s.bonusCalls++
	s.bonusInviter = inviterID
	s.bonusAmount = amount
	s.bonusDesc = description
	return nil
}

func (s *authRepoStub) FindUserByEmailOrPhone(ctx context.Context, identifier string) (*domain.User, error) {
	if s.loginUser == nil {
		return nil, store.ErrUserNotFound
	}
	return s.loginUser, nil
}

func newAuthService(repo store.Repository) *Service {
	return NewService(repo, nil, nil, nil, Options{ReferralBonusKobo: 10000})
}

func TestRegister_ValidReferralCreditsInviter(t *testing.T) {
	inviter := &domain.User{ID: uuid.New(), ReferralCode: "DFINVITE", IsActive: true}
	repo := &authRepoStub{usersByCode: map[string]*domain.User{"DFINVITE": inviter}}
	service := newAuthService(repo)

	user, err := service.Register(context.Background(), domain.RegisterRequest{
		Phone:        "08031234567",
		Email:        "Ada@Example.com",
		Password:     "correcthorse",
		ReferralCode: "dfinvite",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.ReferredBy == nil || *user.ReferredBy != "DFINVITE" {
		t.Fatal("expected the new account to be stamped with the inviter's code")
	}
	if repo.bonusCalls != 1 {
		t.Fatalf("expected one bonus credit, got %d", repo.bonusCalls)
	}
	if repo.bonusInviter != inviter.ID || repo.bonusAmount != 10000 {
		t.Fatalf("bonus credited wrong target: inviter=%s amount=%d", repo.bonusInviter, repo.bonusAmount)
	}
	if !strings.Contains(repo.bonusDesc, "ada@example.com") {
		t.Fatalf("bonus description should name the new signup, got %q", repo.bonusDesc)
	}
}

func TestRegister_UnknownReferralCodeIgnored(t *testing.T) {
	repo := &authRepoStub{usersByCode: map[string]*domain.User{}}
	service := newAuthService(repo)

	user, err := service.Register(context.Background(), domain.RegisterRequest{
		Phone:        "08031234567",
		Email:        "ada@example.com",
		Password:     "correcthorse",
		ReferralCode: "DFNOBODY",
	})
	if err != nil {
		t.Fatalf("an unknown code must not block signup: %v", err)
	}
	if user.ReferredBy != nil {
		t.Fatal("unknown code must not be recorded as a referral")
	}
	if repo.bonusCalls != 0 {
		t.Fatal("no bonus expected for an unknown code")
	}
}

func TestRegister_SuspendedInviterEarnsNothing(t *testing.T) {
	inviter := &domain.User{ID: uuid.New(), ReferralCode: "DFINVITE", IsActive: false}
	repo := &authRepoStub{usersByCode: map[string]*domain.User{"DFINVITE": inviter}}
	service := newAuthService(repo)

	user, err := service.Register(context.Background(), domain.RegisterRequest{
		Phone:        "08031234567",
		Email:        "ada@example.com",
		Password:     "correcthorse",
		ReferralCode: "DFINVITE",
	})
	if err != nil {
		t.Fatalf("a suspended inviter's code must not block signup: %v", err)
	}
	if user.ReferredBy != nil {
		t.Fatal("a suspended inviter must not be recorded as referrer")
	}
	if repo.bonusCalls != 0 {
		t.Fatalf("no bonus expected for a suspended inviter, got %d credit(s)", repo.bonusCalls)
	}
}

func TestRegister_RetriesOnReferralCodeCollision(t *testing.T) {
	repo := &authRepoStub{createErrs: []error{store.ErrDuplicateReferralCode}}
	service := newAuthService(repo)

	user, err := service.Register(context.Background(), domain.RegisterRequest{
		Phone:    "08031234567",
		Email:    "ada@example.com",
		Password: "correcthorse",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one created user, got %d", len(repo.created))
	}
	if !strings.HasPrefix(user.ReferralCode, "DF") || len(user.ReferralCode) != 8 {
		t.Fatalf("unexpected referral code shape %q", user.ReferralCode)
	}
}

func TestRegister_Validation(t *testing.T) {
	repo := &authRepoStub{}
	service := newAuthService(repo)

	tests := []struct {
		name    string
		req     domain.RegisterRequest
		wantErr error
	}{
		{
			name:    "invalid phone",
			req:     domain.RegisterRequest{Phone: "12345", Email: "a@b.com", Password: "correcthorse"},
			wantErr: ErrInvalidPhone,
		},
		{
			name:    "missing email",
			req:     domain.RegisterRequest{Phone: "08031234567", Password: "correcthorse"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "short password",
			req:     domain.RegisterRequest{Phone: "08031234567", Email: "a@b.com", Password: "short"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if len(repo.created) != 0 {
		t.Fatal("no user should be created for invalid input")
	}
}

func TestLogin(t *testing.T) {
	hash, err := argon2id.CreateHash("correcthorse", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("failed to hash test password: %v", err)
	}

	activeUser := &domain.User{ID: uuid.New(), Email: "ada@example.com", PasswordHash: hash, IsActive: true}
	suspendedUser := &domain.User{ID: uuid.New(), Email: "eve@example.com", PasswordHash: hash, IsActive: false}

	tests := []struct {
		name     string
		user     *domain.User
		password string
		wantErr  error
	}{
		{
			name:     "valid credentials",
			user:     activeUser,
			password: "correcthorse",
		},
		{
			name:     "wrong password",
			user:     activeUser,
			password: "wrongbattery",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "unknown identifier",
			user:     nil,
			password: "correcthorse",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "suspended account",
			user:     suspendedUser,
			password: "correcthorse",
			wantErr:  ErrAccountSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newAuthService(&authRepoStub{loginUser: tt.user})
			got, err := service.Login(context.Background(), domain.LoginRequest{
				Identifier: "ada@example.com",
				Password:   tt.password,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tt.user.ID {
				t.Fatal("returned the wrong user")
			}
		})
	}
}
