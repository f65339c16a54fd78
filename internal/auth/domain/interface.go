package domain

//go:generate mockgen -destination=../../mocks/mock_repository.go -package=mocks github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain AccountRepository,SessionStore

import (
	"context"
	"time"
)

// AccountRepository returns (nil, nil) from the Get methods when nothing matches.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, account *Account) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateRole(ctx context.Context, id string, role Role) error
	LinkGoogleID(ctx context.Context, id, googleID string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Ping(ctx context.Context) error
}

// SessionStore holds the active refresh tokens of each account. Every method
// must be a single atomic operation in the backing store.
type SessionStore interface {
	// StoreRefreshToken adds rt, drops the account's expired tokens and keeps
	// at most maxActive of the newest ones.
	StoreRefreshToken(ctx context.Context, rt *RefreshToken, maxActive int) error
	HasRefreshToken(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error)
	// ConsumeRefreshToken removes the token and reports whether it was present.
	ConsumeRefreshToken(ctx context.Context, accountID, tokenHash string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, accountID string) error
	ListRefreshTokens(ctx context.Context, accountID string, now time.Time) ([]RefreshToken, error)
}
