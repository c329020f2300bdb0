package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/mpereira-dev/tasknest/internal/api"
	"github.com/mpereira-dev/tasknest/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo reads and mutates profile data on the users table.
type UserRepo interface {
	GetProfile(ctx context.Context, userID string) (*types.UserAuth, error)
	UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*types.UserAuth, error)
	SetProfileImageURL(ctx context.Context, userID, url string) error
	// DeleteUser removes the account; todos and refresh tokens go with it
	// via ON DELETE CASCADE.
	DeleteUser(ctx context.Context, userID string) error
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool api.PgxPool
}

func NewPostgresUserRepo(pgpool api.PgxPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const profileColumns = `id, username, email, password_hash, is_email_verified,
       email_verification_token, password_reset_token_hash, password_reset_expires_at,
       profile_image_url, last_login_at, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.UserAuth, error) {
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
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) GetProfile(ctx context.Context, userID string) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1`, userID)
	return scanProfile(row)
}

func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*types.UserAuth, error) {
	row := r.pgpool.QueryRow(ctx,
		`UPDATE users
         SET username = COALESCE($1, username), updated_at = now()
         WHERE id = $2
         RETURNING `+profileColumns,
		params.Username, userID)
	return scanProfile(row)
}

func (r *PostgresUserRepo) SetProfileImageURL(ctx context.Context, userID, url string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET profile_image_url = $1, updated_at = now() WHERE id = $2`,
		url, userID)
	if err != nil {
		return fmt.Errorf("set profile image url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	r.logger.InfoContext(ctx, "User account deleted", slog.String("user_id", userID))
	return nil
}
