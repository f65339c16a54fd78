package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service TokenGenerator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	authconstant "github.com/minuradeSilva2000/Employee-Register-App-sub000/pkg/constant"
)

const tokenIssuer = "hr-admin-auth"

var (
	ErrMissingSecret   = errors.New("token secret is not configured")
	ErrSharedSecret    = errors.New("access and refresh token secrets must differ")
	ErrInvalidTokenTTL = errors.New("token ttl must be greater than zero")
)

type TokenGenerator interface {
	IssueAccessToken(accountID string, role domain.Role) (IssuedToken, error)
	IssueRefreshToken(accountID string) (IssuedToken, error)
	Verify(tokenString, purpose string) (*JWTCustomClaims, error)
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type IssuedToken struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type JWTCustomClaims struct {
	jwt.RegisteredClaims
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
}

func (c *JWTCustomClaims) AccountID() string {
	return c.Subject
}

type TokenService struct {
	accessSecret       []byte
	refreshSecret      []byte
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	now func() time.Time
}

type TokenOption func(*TokenService)

// WithTokenClock overrides the time source used for issuing and verifying.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// NewTokenService refuses to build without two distinct secrets.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenService, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if accessSecret == refreshSecret {
		return nil, ErrSharedSecret
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, ErrInvalidTokenTTL
	}

	ts := &TokenService{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		AccessTokenExpiry:  accessTTL,
		RefreshTokenExpiry: refreshTTL,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts, nil
}

func (ts *TokenService) IssueAccessToken(accountID string, role domain.Role) (IssuedToken, error) {
	return ts.sign(accountID, role.String(), authconstant.TokenPurposeAccess, ts.AccessTokenExpiry, ts.accessSecret)
}

// IssueRefreshToken signs a refresh token. The caller persists it before
// handing it out.
func (ts *TokenService) IssueRefreshToken(accountID string) (IssuedToken, error) {
	return ts.sign(accountID, "", authconstant.TokenPurposeRefresh, ts.RefreshTokenExpiry, ts.refreshSecret)
}

func (ts *TokenService) sign(accountID, role, purpose string, ttl time.Duration, secret []byte) (IssuedToken, error) {
	if accountID == "" {
		return IssuedToken{}, errors.New("account id is required")
	}

	now := ts.now().UTC().Truncate(jwt.TimePrecision)
	id := ulid.Make().String()
	claims := JWTCustomClaims{
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    tokenIssuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", purpose, err)
	}

	return IssuedToken{
		Token:     signed,
		ID:        id,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Verify checks signature, expiry and purpose. Failures are one of
// ErrTokenMalformed, ErrTokenExpired or ErrTokenWrongPurpose.
func (ts *TokenService) Verify(tokenString, purpose string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, ts.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, autherror.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", autherror.ErrTokenMalformed, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing", autherror.ErrTokenMalformed)
	}
	if claims.Purpose != purpose {
		return nil, autherror.ErrTokenWrongPurpose
	}
	return claims, nil
}

// keyFor picks the secret matching the purpose the token claims. The claim is
// untrusted at this point; a token signed with the other secret fails the
// signature check.
func (ts *TokenService) keyFor(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	switch claims.Purpose {
	case authconstant.TokenPurposeAccess:
		return ts.accessSecret, nil
	case authconstant.TokenPurposeRefresh:
		return ts.refreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token purpose %q", claims.Purpose)
	}
}

func (ts *TokenService) GetAccessTokenExpiry() time.Duration {
	return ts.AccessTokenExpiry
}

func (ts *TokenService) GetRefreshTokenExpiry() time.Duration {
	return ts.RefreshTokenExpiry
}

// HashToken is the form in which refresh tokens are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
