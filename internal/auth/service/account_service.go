package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/dto"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/events"
)

// AccountService holds the administrative operations on accounts. Callers
// are expected to have passed the permission guard already.
type AccountService struct {
	accounts domain.AccountRepository
	sessions domain.SessionStore
	hasher   *PasswordHasher

	options
}

func NewAccountService(accounts domain.AccountRepository, sessions domain.SessionStore, hasher *PasswordHasher, opts ...Option) *AccountService {
	return &AccountService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		options:  buildOptions(opts),
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, actor domain.Principal, input dto.CreateAccountInput) (*dto.AccountOutput, error) {
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, autherror.ErrInvalidRole
	}

	email := normalizeEmail(input.Email)
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	if existing != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hash, err := s.hasher.Hash(input.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &dto.ValidationError{Fields: []dto.FieldError{{Field: "password", Rule: dto.RulePasswordBytes}}}
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.publish(ctx, events.New(events.AccountCreated, account.ID, actor.AccountID, map[string]string{
		"role": role.String(),
	}))

	out := dto.NewAccountOutput(account)
	return &out, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]dto.AccountOutput, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]dto.AccountOutput, 0, len(accounts))
	for i := range accounts {
		out = append(out, dto.NewAccountOutput(&accounts[i]))
	}
	return out, nil
}

// UpdateRole changes another account's role. Access tokens already issued
// pick up the new role on the next request because principals are built from
// the stored account.
func (s *AccountService) UpdateRole(ctx context.Context, actor domain.Principal, id string, input dto.UpdateRoleInput) (*dto.AccountOutput, error) {
	if id == actor.AccountID {
		return nil, autherror.ErrForbidden
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, autherror.ErrInvalidRole
	}

	if err := s.accounts.UpdateRole(ctx, id, role); err != nil {
		return nil, wrapStoreErr("update role", err)
	}
	account, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.AccountRoleChanged, id, actor.AccountID, map[string]string{
		"role": role.String(),
	}))

	out := dto.NewAccountOutput(account)
	return &out, nil
}

// Deactivate soft-disables an account and drops all of its sessions.
// Outstanding access tokens stop working on their next use.
func (s *AccountService) Deactivate(ctx context.Context, actor domain.Principal, id string) error {
	if id == actor.AccountID {
		return autherror.ErrForbidden
	}
	if err := s.accounts.SetActive(ctx, id, false); err != nil {
		return wrapStoreErr("deactivate account", err)
	}
	if err := s.sessions.RevokeAllRefreshTokens(ctx, id); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.publish(ctx, events.New(events.AccountDeactivated, id, actor.AccountID, nil))
	return nil
}

func (s *AccountService) Activate(ctx context.Context, actor domain.Principal, id string) error {
	if err := s.accounts.SetActive(ctx, id, true); err != nil {
		return wrapStoreErr("activate account", err)
	}
	s.publish(ctx, events.New(events.AccountActivated, id, actor.AccountID, nil))
	return nil
}

func (s *AccountService) ListSessions(ctx context.Context, id string) ([]dto.SessionOutput, error) {
	if _, err := s.mustGet(ctx, id); err != nil {
		return nil, err
	}
	tokens, err := s.sessions.ListRefreshTokens(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	out := make([]dto.SessionOutput, 0, len(tokens))
	for _, rt := range tokens {
		out = append(out, dto.NewSessionOutput(rt))
	}
	return out, nil
}

// RevokeSessions logs an account out everywhere.
func (s *AccountService) RevokeSessions(ctx context.Context, actor domain.Principal, id string) error {
	if _, err := s.mustGet(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllRefreshTokens(ctx, id); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.publish(ctx, events.New(events.AccountSessionsRevoked, id, actor.AccountID, nil))
	return nil
}

func (s *AccountService) mustGet(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, autherror.ErrAccountNotFound
	}
	return account, nil
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, autherror.ErrAccountNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
