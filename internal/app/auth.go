/**
 * @description
 * Account registration and login, including the referral credit flow: a new
 * signup carrying a valid referral code earns the inviter a one-time bonus,
 * recorded as a ledger transaction like any other credit.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dataflare/wallet-service/internal/domain"
	"github.com/dataflare/wallet-service/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountSuspended   = errors.New("account suspended")
)

const referralCodeAttempts = 5

// Register creates a new account. The password is hashed with argon2id and
// never stored in clear. If the request names a referral code that resolves to
// an existing active user, the new account is stamped with the inviter's code
// and the inviter is credited the configured bonus; an unknown code, or one
// belonging to a suspended account, is silently ignored so that it never
// blocks a signup.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var inviter *domain.User
	var referredBy *string
	if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
		inviter, err = s.repo.FindUserByReferralCode(ctx, code)
		switch {
		case err == nil && !inviter.IsActive:
			// A suspended account cannot earn referral credit; treat its code
			// like an unknown one.
			log.Debug().Str("component", "auth").Str("code", code).Msg("ignoring referral code of suspended account")
			inviter = nil
		case err == nil:
			referredBy = &inviter.ReferralCode
		case errors.Is(err, store.ErrUserNotFound):
			log.Debug().Str("component", "auth").Str("code", code).Msg("ignoring unknown referral code")
			inviter = nil
		default:
			return nil, err
		}
	}

	user := &domain.User{
		ID:           uuid.New(),
		Phone:        phone,
		Email:        email,
		PasswordHash: hash,
		ReferredBy:   referredBy,
		IsActive:     true,
	}

	// The referral code column is unique, so an unlucky collision surfaces as
	// ErrDuplicateReferralCode; regenerate and retry.
	for attempt := 0; ; attempt++ {
		user.ReferralCode = newReferralCode()
		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicateReferralCode) && attempt < referralCodeAttempts {
			continue
		}
		return nil, err
	}

	log.Info().Str("component", "auth").Str("user_id", user.ID.String()).Msg("user registered")

	if inviter != nil && s.opts.ReferralBonusKobo > 0 {
		description := fmt.Sprintf("Referral bonus: %s signed up with your code", email)
		if err := s.repo.ApplyReferralBonus(ctx, inviter.ID, s.opts.ReferralBonusKobo, description); err != nil {
			// The signup itself must not fail because the bonus write did.
			log.Error().Str("component", "auth").Str("inviter_id", inviter.ID.String()).
				Err(err).Msg("failed to apply referral bonus")
		} else {
			log.Info().Str("component", "auth").Str("inviter_id", inviter.ID.String()).
				Int64("bonus", s.opts.ReferralBonusKobo).Msg("referral bonus credited")
		}
	}

	return user, nil
}

// Login authenticates by email or phone plus password. Suspended accounts are
// rejected after the password check so the error does not leak which accounts
// exist.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.User, error) {
	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))
	if identifier == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", ErrInvalidInput)
	}

	user, err := s.repo.FindUserByEmailOrPhone(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountSuspended
	}

	return user, nil
}

// Profile returns the authenticated user's account record.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newReferralCode returns a short shareable code like "DFX7K2QM". The
// alphabet drops easily confused characters.
func newReferralCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a UUID
		// fragment rather than panic.
		return "DF" + strings.ToUpper(uuid.NewString()[:6])
	}
	for i, b := range buf {
		buf[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return "DF" + string(buf)
}
