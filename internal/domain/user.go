/**
 * @description
 * User and authentication domain models. A user owns exactly one wallet
 * balance; the balance is only ever mutated through the store's atomic
 * primitives, never written directly.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder. Users are never hard-deleted; suspension
// is expressed through IsActive.
type User struct {
	ID           uuid.UUID `json:"id"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`

	Balance int64 `json:"wallet_balance"` // in kobo, never negative

	ReferralCode       string  `json:"referral_code"`
	ReferredBy         *string `json:"referred_by,omitempty"`
	ReferralBonusTotal int64   `json:"referral_bonus"` // lifetime, in kobo
	ReferralCount      int     `json:"referral_count"`

	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest is the DTO for new account registration.
type RegisterRequest struct {
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// LoginRequest accepts either an email address or a phone number in the
// Identifier field, matching the mobile client's single login box.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthResult is returned after a successful registration or login.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UserListOptions controls pagination and search for the admin user listing.
type UserListOptions struct {
	Limit  int
	Offset int
	Search string
}
