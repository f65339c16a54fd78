package domain

import (
	"errors"
	"time"
)

var ErrNoCredential = errors.New("account requires a password hash or an external provider id")

type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	GoogleID     string
	Role         Role
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate enforces that an account can authenticate somehow.
func (a *Account) Validate() error {
	if a.PasswordHash == "" && a.GoogleID == "" {
		return ErrNoCredential
	}
	if !a.Role.Valid() {
		return ErrUnknownRole
	}
	return nil
}

// RefreshToken is a persisted session. Only the SHA-256 of the signed token
// is stored.
type RefreshToken struct {
	ID        string
	AccountID string
	TokenHash string
	IPAddress string
	UserAgent string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (rt *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(rt.ExpiresAt)
}
