package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
)

const uniqueViolation = "23505"

// Unique indexes on accounts, see db/migrations.
const (
	emailKey    = "accounts_email_key"
	googleIDKey = "accounts_google_id_key"
)

// uniqueConflict maps a unique violation on accounts to its domain error, or
// returns nil.
func uniqueConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case emailKey:
		return autherror.ErrEmailAlreadyInUse
	case googleIDKey:
		return autherror.ErrGoogleIDInUse
	}
	return nil
}

var (
	_ domain.AccountRepository = (*PostgresRepository)(nil)
	_ domain.SessionStore      = (*PostgresRepository)(nil)
)

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresRepository implements domain.AccountRepository and
// domain.SessionStore.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, name, email, COALESCE(password_hash, ''), COALESCE(google_id, ''),
	role, active, last_login_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a         domain.Account
		role      string
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.GoogleID,
		&role, &a.Active, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = domain.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where+` LIMIT 1`, arg)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, "email = $1", email)
}

func (r *PostgresRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.Account, error) {
	return r.getOne(ctx, "google_id = $1", googleID)
}

func (r *PostgresRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, google_id, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.GoogleID, a.Role.String(), a.Active, a.CreatedAt, a.UpdatedAt)

	if conflict := uniqueConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// updateOne runs an UPDATE by id and reports ErrAccountNotFound when no row
// matched.
func (r *PostgresRepository) updateOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if conflict := uniqueConflict(err); conflict != nil {
		return conflict
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherror.ErrAccountNotFound
	}
	return nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateOne(ctx, `UPDATE accounts SET active = $2, updated_at = now() WHERE id = $1`, id, active)
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.updateOne(ctx, `UPDATE accounts SET role = $2, updated_at = now() WHERE id = $1`, id, role.String())
}

func (r *PostgresRepository) LinkGoogleID(ctx context.Context, id, googleID string) error {
	return r.updateOne(ctx, `UPDATE accounts SET google_id = $2, updated_at = now() WHERE id = $1`, id, googleID)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// StoreRefreshToken inserts rt and trims the account's set in one
// transaction. The account row is locked first so concurrent logins of the
// same account apply the cap one after the other.
func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, rt *domain.RefreshToken, maxActive int) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM accounts WHERE id = $1 FOR UPDATE`, rt.AccountID); err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO refresh_tokens (id, account_id, token_hash, ip_address, user_agent, issued_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rt.ID, rt.AccountID, rt.TokenHash, rt.IPAddress, rt.UserAgent, rt.IssuedAt, rt.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to insert refresh token: %w", err)
		}

		_, err = tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1 AND expires_at <= $2`,
			rt.AccountID, rt.IssuedAt)
		if err != nil {
			return fmt.Errorf("failed to prune expired refresh tokens: %w", err)
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM refresh_tokens
			WHERE account_id = $1 AND id NOT IN (
				SELECT id FROM refresh_tokens
				WHERE account_id = $1
				ORDER BY issued_at DESC, id DESC
				LIMIT $2
			)`, rt.AccountID, maxActive)
		if err != nil {
			return fmt.Errorf("failed to trim refresh tokens: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) HasRefreshToken(ctx context.Context, accountID, tokenHash string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM refresh_tokens
			WHERE account_id = $1 AND token_hash = $2 AND expires_at > $3
		)`, accountID, tokenHash, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}
	return exists, nil
}

// ConsumeRefreshToken is a single DELETE, so of two concurrent callers only
// one sees the row.
func (r *PostgresRepository) ConsumeRefreshToken(ctx context.Context, accountID, tokenHash string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1 AND token_hash = $2`,
		accountID, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) RevokeAllRefreshTokens(ctx context.Context, accountID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRefreshTokens(ctx context.Context, accountID string, now time.Time) ([]domain.RefreshToken, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, account_id, token_hash, ip_address, user_agent, issued_at, expires_at
		FROM refresh_tokens
		WHERE account_id = $1 AND expires_at > $2
		ORDER BY issued_at DESC`, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		var rt domain.RefreshToken
		if err := rows.Scan(&rt.ID, &rt.AccountID, &rt.TokenHash, &rt.IPAddress, &rt.UserAgent,
			&rt.IssuedAt, &rt.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan refresh token: %w", err)
		}
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refresh tokens: %w", err)
	}
	return out, nil
}
