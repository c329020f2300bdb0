package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mpereira-dev/tasknest/app/mailer"
	appmetrics "github.com/mpereira-dev/tasknest/app/observability/metrics"
	"github.com/mpereira-dev/tasknest/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService orchestrates the credential store, password hasher, token
// issuer and revocation registry into the user-facing auth operations.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*RegisterResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (*PasswordResetIssue, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
}

type RegisterResult struct {
	User              *types.UserAuth
	VerificationToken string
}

type LoginResult struct {
	User         *types.UserAuth
	AccessToken  string
	RefreshToken string
}

type PasswordResetIssue struct {
	Token     string
	ExpiresAt time.Time
}

type AuthServiceImpl struct {
	logger   *slog.Logger
	repo     AuthRepo
	registry RevocationRegistry
	hasher   PasswordHasher
	issuer   *TokenIssuer
	notifier mailer.Notifier
	metrics  *appmetrics.AppMetrics // optional, nil in tests
}

func NewAuthService(repo AuthRepo, registry RevocationRegistry, hasher PasswordHasher,
	issuer *TokenIssuer, notifier mailer.Notifier, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:   logger,
		repo:     repo,
		registry: registry,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
	}
}

// WithMetrics attaches metric instruments. Must be called before serving.
func (s *AuthServiceImpl) WithMetrics(m *appmetrics.AppMetrics) *AuthServiceImpl {
	s.metrics = m
	return s
}

// dummyHash is a valid bcrypt hash compared against when the email is
// unknown, so a failed login costs the same whether the user exists or not.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// NormalizeEmail lowercases and trims an address; all lookups and storage
// use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", types.ErrValidation)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	userID := uuid.NewString()
	verifyToken, _, err := s.issuer.Issue(userID, types.PurposeEmailVerify)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, userID, username, email, passwordHash, verifyToken)
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, user.Email, "Verify your email",
		fmt.Sprintf("Hi %s,\n\nPlease verify your email using this token:\n\n%s\n", user.Username, verifyToken))

	if s.metrics != nil {
		s.metrics.RegisterRequestsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID))

	return &RegisterResult{User: user, VerificationToken: verifyToken}, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := time.Now()
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", types.ErrValidation)
	}
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.Add(ctx, 1)
		defer func() {
			s.metrics.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds())
		}()
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// Burn a compare so unknown emails take as long as bad passwords.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			if s.metrics != nil {
				s.metrics.LoginFailuresTotal.Add(ctx, 1)
			}
			return nil, types.ErrUnauthenticated
		}
		return nil, err
	}

	if err = s.hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			if s.metrics != nil {
				s.metrics.LoginFailuresTotal.Add(ctx, 1)
			}
			return nil, types.ErrUnauthenticated
		}
		return nil, err
	}

	if err = s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	now := time.Now()
	user.LastLoginAt = &now

	accessToken, _, err := s.issuer.Issue(user.ID, types.PurposeAccess)
	if err != nil {
		return nil, err
	}
	refreshToken, jti, err := s.issuer.Issue(user.ID, types.PurposeRefresh)
	if err != nil {
		return nil, err
	}
	if err = s.registry.Register(ctx, jti, user.ID, now.Add(s.issuer.TTL(types.PurposeRefresh))); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID))
	return &LoginResult{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", types.ErrMissingToken
	}

	claims, err := s.issuer.Verify(refreshToken, types.PurposeRefresh)
	if err != nil {
		return "", err
	}

	valid, err := s.registry.IsValid(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", types.ErrRevokedToken
	}

	// Non-rotating baseline: the refresh token stays valid until logout,
	// revocation or expiry; only a fresh access token is issued.
	accessToken, _, err := s.issuer.Issue(claims.UserID, types.PurposeAccess)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.TokenRefreshesTotal.Add(ctx, 1)
	}
	return accessToken, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return types.ErrMissingToken
	}

	claims, err := s.issuer.Verify(refreshToken, types.PurposeRefresh)
	if err != nil {
		// Nothing to revoke for a token that no longer verifies; logout
		// stays idempotent.
		s.logger.DebugContext(ctx, "Logout with unverifiable refresh token", slog.Any("error", err))
		return nil
	}

	return s.registry.Revoke(ctx, claims.ID)
}

func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetIssue, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", types.ErrValidation)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	resetToken, _, err := s.issuer.Issue(user.ID, types.PurposePasswordReset)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.issuer.TTL(types.PurposePasswordReset))

	// Storing the hash replaces any outstanding reset token: only the most
	// recently issued one is accepted.
	if err = s.repo.SetPasswordResetToken(ctx, user.ID, hashResetToken(resetToken), expiresAt); err != nil {
		return nil, err
	}

	s.dispatch(ctx, user.Email, "Reset your password",
		fmt.Sprintf("Hi %s,\n\nUse this token to reset your password (expires %s):\n\n%s\n",
			user.Username, expiresAt.Format(time.RFC1123), resetToken))

	return &PasswordResetIssue{Token: resetToken, ExpiresAt: expiresAt}, nil
}

func (s *AuthServiceImpl) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return fmt.Errorf("%w: token and new password are required", types.ErrValidation)
	}

	claims, err := s.issuer.Verify(token, types.PurposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return err
	}

	// The stored hash is cleared on use, which makes the token single-use
	// even while its signature is still within the expiry window.
	if user.PasswordResetTokenHash == nil || user.PasswordResetExpiresAt == nil {
		return types.ErrInvalidToken
	}
	if time.Now().After(*user.PasswordResetExpiresAt) {
		return types.ErrInvalidToken
	}
	presented := hashResetToken(token)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*user.PasswordResetTokenHash)) != 1 {
		return types.ErrInvalidToken
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	// ResetPassword clears the reset fields and revokes stored sessions in
	// one transaction; RevokeAll also clears the in-memory registry when
	// that backend is in use.
	if err = s.repo.ResetPassword(ctx, user.ID, newHash); err != nil {
		return err
	}
	if err = s.registry.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.PasswordResetsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "Password reset confirmed, all sessions revoked", slog.String("user_id", user.ID))
	return nil
}

func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return types.ErrMissingToken
	}

	claims, err := s.issuer.Verify(token, types.PurposeEmailVerify)
	if err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.ErrInvalidToken
		}
		return err
	}

	if user.IsEmailVerified {
		return types.ErrAlreadyVerified
	}
	if user.EmailVerificationToken == nil || *user.EmailVerificationToken != token {
		return types.ErrInvalidToken
	}

	return s.repo.MarkEmailVerified(ctx, user.ID)
}

// dispatch sends a notification without blocking the request and without
// propagating delivery failures to the caller.
func (s *AuthServiceImpl) dispatch(ctx context.Context, to, subject, body string) {
	sendCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.notifier.Send(sendCtx, to, subject, body); err != nil {
			s.logger.Error("Notification dispatch failed",
				slog.String("to", to),
				slog.String("subject", subject),
				slog.Any("error", err),
			)
		}
	}()
}
