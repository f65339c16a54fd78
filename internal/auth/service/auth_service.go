package service

//go:generate mockgen -destination=../../mocks/mock_service.go -package=mocks github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service LoginThrottle,IdentityProvider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/config"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/dto"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/throttle"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/events"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/metrics"
	authconstant "github.com/minuradeSilva2000/Employee-Register-App-sub000/pkg/constant"
)

var tracer = otel.Tracer("github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service")

// LoginThrottle counts failed logins per (email, ip).
type LoginThrottle interface {
	Allow(ctx context.Context, email, ip string) (bool, error)
	RecordFailure(ctx context.Context, email, ip string) error
	Reset(ctx context.Context, email, ip string) error
}

// IdentityProvider turns an authorization code into a verified identity.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.ExternalIdentity, error)
}

type options struct {
	throttle  LoginThrottle
	identity  IdentityProvider
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*options)

func WithThrottle(t LoginThrottle) Option {
	return func(o *options) { o.throttle = t }
}

func WithIdentityProvider(p IdentityProvider) Option {
	return func(o *options) { o.identity = p }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		throttle:  throttle.Disabled{},
		publisher: events.Noop{},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AuthService owns the login, refresh and logout flows and resolves access
// tokens into principals.
type AuthService struct {
	accounts domain.AccountRepository
	sessions domain.SessionStore
	tokens   TokenGenerator
	hasher   *PasswordHasher

	rotate    bool
	maxActive int

	options
}

func NewAuthService(
	accounts domain.AccountRepository,
	sessions domain.SessionStore,
	tokens TokenGenerator,
	hasher *PasswordHasher,
	cfg *config.Config,
	opts ...Option,
) *AuthService {
	maxActive := cfg.MaxActiveRefreshTokens
	if maxActive < 1 {
		maxActive = authconstant.DefaultMaxActiveRefreshTokens
	}
	return &AuthService{
		accounts:  accounts,
		sessions:  sessions,
		tokens:    tokens,
		hasher:    hasher,
		rotate:    cfg.RotateRefreshTokens,
		maxActive: maxActive,
		options:   buildOptions(opts),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login answers ErrInvalidCredentials for an unknown email, a wrong password
// and a deactivated account alike.
func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := normalizeEmail(input.Email)

	allowed, err := s.throttle.Allow(ctx, email, input.IPAddress)
	if err != nil {
		s.log.Warn("login throttle unavailable", zap.Error(err))
		allowed = true
	}
	if !allowed {
		s.metrics.LoginAttempt(metrics.ResultThrottled)
		return nil, autherror.ErrTooManyLoginAttempts
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("get account by email: %w", err))
	}

	var hash string
	if account != nil {
		hash = account.PasswordHash
	}
	matched := s.hasher.Verify(hash, input.Password)
	if account == nil || !matched || !account.Active {
		if err := s.throttle.RecordFailure(ctx, email, input.IPAddress); err != nil {
			s.log.Warn("record login failure", zap.Error(err))
		}
		s.metrics.LoginAttempt(metrics.ResultFailure)
		return nil, autherror.ErrInvalidCredentials
	}

	resp, err := s.completeLogin(ctx, account, input.IPAddress, input.UserAgent, "password")
	if err != nil {
		return nil, s.fail(span, err)
	}

	if err := s.throttle.Reset(ctx, email, input.IPAddress); err != nil {
		s.log.Warn("reset login throttle", zap.Error(err))
	}
	span.SetAttributes(attribute.String("account.id", account.ID))
	return resp, nil
}

// LoginWithGoogle signs in through Google. The account is found by Google id,
// then by email (linking the id), and is otherwise created as a Viewer.
func (s *AuthService) LoginWithGoogle(ctx context.Context, input dto.GoogleLoginInput) (*dto.LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.LoginWithGoogle")
	defer span.End()

	if s.identity == nil {
		return nil, autherror.ErrExternalAuthFailed
	}

	identity, err := s.identity.Exchange(ctx, input.Code)
	if err != nil {
		s.metrics.LoginAttempt(metrics.ResultFailure)
		if errors.Is(err, autherror.ErrExternalAuthFailed) {
			s.log.Info("google sign-in rejected", zap.Error(err))
			return nil, err
		}
		return nil, s.fail(span, err)
	}
	if !identity.EmailVerified {
		s.metrics.LoginAttempt(metrics.ResultFailure)
		return nil, fmt.Errorf("%w: email not verified", autherror.ErrExternalAuthFailed)
	}

	account, err := s.resolveExternalAccount(ctx, identity)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !account.Active {
		s.metrics.LoginAttempt(metrics.ResultFailure)
		return nil, autherror.ErrInvalidCredentials
	}

	resp, err := s.completeLogin(ctx, account, input.IPAddress, input.UserAgent, identity.Provider)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return resp, nil
}

func (s *AuthService) resolveExternalAccount(ctx context.Context, identity *domain.ExternalIdentity) (*domain.Account, error) {
	account, err := s.accounts.GetByGoogleID(ctx, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("get account by google id: %w", err)
	}
	if account != nil {
		return account, nil
	}

	email := normalizeEmail(identity.Email)
	account, err = s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	if account != nil {
		if err := s.accounts.LinkGoogleID(ctx, account.ID, identity.Subject); err != nil {
			return nil, fmt.Errorf("link google id: %w", err)
		}
		account.GoogleID = identity.Subject
		return account, nil
	}

	now := s.now().UTC()
	name := identity.Name
	if name == "" {
		name = email
	}
	account = &domain.Account{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		GoogleID:  identity.Subject,
		Role:      domain.RoleViewer,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	err = s.accounts.Create(ctx, account)
	if errors.Is(err, autherror.ErrGoogleIDInUse) {
		// A concurrent first sign-in with the same subject created it.
		winner, gerr := s.accounts.GetByGoogleID(ctx, identity.Subject)
		if gerr != nil {
			return nil, fmt.Errorf("get account by google id: %w", gerr)
		}
		if winner == nil {
			return nil, err
		}
		return winner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.publish(ctx, events.New(events.AccountCreated, account.ID, "", map[string]string{
		"role":     account.Role.String(),
		"provider": identity.Provider,
	}))
	return account, nil
}

func (s *AuthService) completeLogin(ctx context.Context, account *domain.Account, ip, userAgent, method string) (*dto.LoginResponse, error) {
	access, err := s.tokens.IssueAccessToken(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issueRefreshToken(ctx, account.ID, ip, userAgent)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.log.Warn("update last login", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastLoginAt = &now
	}

	s.metrics.LoginAttempt(metrics.ResultSuccess)
	s.publish(ctx, events.New(events.AccountLoggedIn, account.ID, "", map[string]string{
		"method": method,
		"ip":     ip,
	}))

	return &dto.LoginResponse{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    authconstant.DefaultTokenType,
		ExpiresIn:    int(s.tokens.GetAccessTokenExpiry().Seconds()),
		Account:      dto.NewAccountOutput(account),
	}, nil
}

// issueRefreshToken signs a refresh token and persists its hash before the
// token is handed to anyone.
func (s *AuthService) issueRefreshToken(ctx context.Context, accountID, ip, userAgent string) (IssuedToken, error) {
	issued, err := s.tokens.IssueRefreshToken(accountID)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("issue refresh token: %w", err)
	}

	rt := &domain.RefreshToken{
		ID:        issued.ID,
		AccountID: accountID,
		TokenHash: HashToken(issued.Token),
		IPAddress: ip,
		UserAgent: userAgent,
		IssuedAt:  issued.IssuedAt,
		ExpiresAt: issued.ExpiresAt,
	}
	if err := s.sessions.StoreRefreshToken(ctx, rt, s.maxActive); err != nil {
		return IssuedToken{}, fmt.Errorf("store refresh token: %w", err)
	}
	return issued, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation on,
// the presented token is consumed atomically and a replacement returned, so a
// second use of the same token fails with ErrTokenRevoked.
func (s *AuthService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.RefreshResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := s.tokens.Verify(input.RefreshToken, authconstant.TokenPurposeRefresh)
	if err != nil {
		s.metrics.TokenRefresh(verifyResult(err))
		return nil, err
	}
	accountID := claims.AccountID()
	hash := HashToken(input.RefreshToken)

	var present bool
	if s.rotate {
		present, err = s.sessions.ConsumeRefreshToken(ctx, accountID, hash)
	} else {
		present, err = s.sessions.HasRefreshToken(ctx, accountID, hash, s.now())
	}
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("check refresh token: %w", err))
	}
	if !present {
		s.metrics.TokenRefresh(metrics.ResultRevoked)
		return nil, autherror.ErrTokenRevoked
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("get account: %w", err))
	}
	if account == nil || !account.Active {
		s.metrics.TokenRefresh(metrics.ResultInvalid)
		return nil, autherror.ErrAccountDeactivated
	}

	// The role comes from the account, not from the old token, so a role
	// change applies at the next refresh.
	access, err := s.tokens.IssueAccessToken(account.ID, account.Role)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("issue access token: %w", err))
	}

	resp := &dto.RefreshResponse{
		AccessToken: access.Token,
		TokenType:   authconstant.DefaultTokenType,
		ExpiresIn:   int(s.tokens.GetAccessTokenExpiry().Seconds()),
	}
	if s.rotate {
		next, err := s.issueRefreshToken(ctx, account.ID, input.IPAddress, input.UserAgent)
		if err != nil {
			return nil, s.fail(span, err)
		}
		resp.RefreshToken = next.Token
	}

	s.metrics.TokenRefresh(metrics.ResultSuccess)
	return resp, nil
}

// Logout removes one refresh token of the caller, or all of them. Removing a
// token that is already gone is not an error. An expired token is still
// removed by hash.
func (s *AuthService) Logout(ctx context.Context, principal domain.Principal, input dto.LogoutInput) error {
	if input.AllSessions {
		if err := s.sessions.RevokeAllRefreshTokens(ctx, principal.AccountID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		s.publish(ctx, events.New(events.AccountLoggedOut, principal.AccountID, "", map[string]string{"scope": "all"}))
		return nil
	}

	owner := principal.AccountID
	claims, err := s.tokens.Verify(input.RefreshToken, authconstant.TokenPurposeRefresh)
	switch {
	case err == nil:
		owner = claims.AccountID()
	case errors.Is(err, autherror.ErrTokenExpired):
	default:
		return err
	}
	if owner != principal.AccountID {
		return autherror.ErrForbidden
	}

	if _, err := s.sessions.ConsumeRefreshToken(ctx, owner, HashToken(input.RefreshToken)); err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	s.publish(ctx, events.New(events.AccountLoggedOut, owner, "", map[string]string{"scope": "session"}))
	return nil
}

// Authenticate verifies an access token and reloads the account it names. An
// account that was deactivated or removed after the token was issued is
// rejected, and the principal carries the account's current role.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authenticate", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	claims, err := s.tokens.Verify(token, authconstant.TokenPurposeAccess)
	if err != nil {
		s.metrics.TokenVerification(authconstant.TokenPurposeAccess, verifyResult(err))
		return domain.Principal{}, err
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID())
	if err != nil {
		return domain.Principal{}, s.fail(span, fmt.Errorf("get account: %w", err))
	}
	if account == nil || !account.Active {
		s.metrics.TokenVerification(authconstant.TokenPurposeAccess, metrics.ResultInvalid)
		return domain.Principal{}, autherror.ErrAccountDeactivated
	}

	s.metrics.TokenVerification(authconstant.TokenPurposeAccess, metrics.ResultSuccess)
	return domain.NewPrincipal(account), nil
}

func (s *AuthService) Me(ctx context.Context, principal domain.Principal) (*dto.MeOutput, error) {
	account, err := s.accounts.GetByID(ctx, principal.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, autherror.ErrAccountNotFound
	}

	perms := domain.PermissionsFor(account.Role)
	out := &dto.MeOutput{
		AccountOutput: dto.NewAccountOutput(account),
		Permissions:   make([]string, 0, len(perms)),
	}
	for _, p := range perms {
		out.Permissions = append(out.Permissions, string(p))
	}
	return out, nil
}

// GoogleAuthURL returns the consent URL together with a fresh state value the
// caller must check when the provider redirects back.
func (s *AuthService) GoogleAuthURL() (*dto.GoogleAuthURLResponse, error) {
	if s.identity == nil {
		return nil, autherror.ErrExternalAuthFailed
	}
	state := uuid.NewString()
	return &dto.GoogleAuthURLResponse{URL: s.identity.AuthCodeURL(state), State: state}, nil
}

// GoogleEnabled reports whether an identity provider was configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.identity != nil
}

// Ping reports whether the account store is reachable.
func (s *AuthService) Ping(ctx context.Context) error {
	return s.accounts.Ping(ctx)
}

func (o *options) publish(ctx context.Context, event events.Event) {
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.log.Warn("publish auth event",
			zap.String("type", event.Type),
			zap.String("account_id", event.AccountID),
			zap.Error(err),
		)
	}
}

// fail records an unexpected error on the span and the log.
func (o *options) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.log.Error("auth operation failed", zap.Error(err))
	return err
}

func verifyResult(err error) string {
	switch {
	case errors.Is(err, autherror.ErrTokenExpired):
		return metrics.ResultExpired
	case errors.Is(err, autherror.ErrTokenRevoked):
		return metrics.ResultRevoked
	default:
		return metrics.ResultInvalid
	}
}
