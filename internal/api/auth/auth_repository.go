package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mpereira-dev/tasknest/internal/api"
	"github.com/mpereira-dev/tasknest/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential store consumed by the auth service.
type AuthRepo interface {
	GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error)
	GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error)
	// CreateUser inserts a new unverified user. A duplicate email surfaces
	// as types.ErrConflict via the unique index, never via a pre-check.
	// The id is assigned by the caller so the email-verification token can
	// be issued before the row exists.
	CreateUser(ctx context.Context, id, username, email, passwordHash, verificationToken string) (*types.UserAuth, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	// SetPasswordResetToken stores the hash of a newly issued reset token,
	// replacing any outstanding one.
	SetPasswordResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ResetPassword sets the new hash, clears the reset fields and revokes
	// all stored refresh tokens in a single transaction, so a concurrent
	// refresh observes either fully-old or fully-new state.
	ResetPassword(ctx context.Context, userID, newPasswordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresAuthRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, username, email, password_hash, is_email_verified,
       email_verification_token, password_reset_token_hash, password_reset_expires_at,
       profile_image_url, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*types.UserAuth, error) {
	var u types.UserAuth
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsEmailVerified,
		&u.EmailVerificationToken, &u.PasswordResetTokenHash, &u.PasswordResetExpiresAt,
		&u.ProfileImageURL, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, id, username, email, passwordHash, verificationToken string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, email_verification_token)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+userColumns,
		id, username, email, passwordHash, verificationToken)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique violation
			return nil, fmt.Errorf("%w: email already registered", types.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET last_login_at = now(), updated_at = now() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) SetPasswordResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users
         SET password_reset_token_hash = $1, password_reset_expires_at = $2, updated_at = now()
         WHERE id = $3`,
		tokenHash, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("set password reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) ResetPassword(ctx context.Context, userID, newPasswordHash string) error {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset password: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE users
         SET password_hash = $1,
             password_reset_token_hash = NULL,
             password_reset_expires_at = NULL,
             updated_at = now()
         WHERE id = $2`,
		newPasswordHash, userID)
	if err != nil {
		return fmt.Errorf("reset password: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("reset password: revoke sessions: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset password: commit: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users
         SET is_email_verified = TRUE, email_verification_token = NULL, updated_at = now()
         WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

var _ RevocationRegistry = (*PostgresRegistry)(nil)

// PostgresRegistry is the durable revocation registry backed by the
// refresh_tokens table. Required for multi-instance deployments.
type PostgresRegistry struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresRegistry(pgpool api.PgxPool, logger *slog.Logger) *PostgresRegistry {
	return &PostgresRegistry{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresRegistry) Register(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, expires_at) VALUES ($1, $2, $3)`,
		jti, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("register refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) IsValid(ctx context.Context, jti string) (bool, error) {
	var expiresAt time.Time
	var revokedAt *time.Time
	err := r.pgpool.QueryRow(ctx,
		`SELECT expires_at, revoked_at FROM refresh_tokens WHERE jti = $1`, jti).
		Scan(&expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	if revokedAt != nil || time.Now().After(expiresAt) {
		return false, nil
	}
	return true, nil
}

func (r *PostgresRegistry) Revoke(ctx context.Context, jti string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE jti = $1 AND revoked_at IS NULL`, jti)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Unknown or already revoked: logout stays idempotent.
		r.logger.DebugContext(ctx, "Revoke on unknown or already-revoked token", slog.String("jti", jti))
	}
	return nil
}

func (r *PostgresRegistry) RevokeAll(ctx context.Context, userID string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
         WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}
