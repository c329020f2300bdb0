package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mpereira-dev/tasknest/internal/types"
)

type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.UserAuth, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID string) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, id, username, email, passwordHash, verificationToken string) (*types.UserAuth, error) {
	args := m.Called(ctx, id, username, email, passwordHash, verificationToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockAuthRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAuthRepo) SetPasswordResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenHash, expiresAt).Error(0)
}

func (m *MockAuthRepo) ResetPassword(ctx context.Context, userID, newPasswordHash string) error {
	return m.Called(ctx, userID, newPasswordHash).Error(0)
}

func (m *MockAuthRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string, string, string) error { return nil }

// newTestService wires a service with a mocked credential store and real
// hasher, issuer and in-memory registry.
func newTestService(repo AuthRepo) (*AuthServiceImpl, *MemoryRegistry, *TokenIssuer) {
	registry := NewMemoryRegistry()
	issuer := NewTokenIssuer(testJWTConfig())
	hasher := &BcryptHasher{cost: bcrypt.MinCost}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewAuthService(repo, registry, hasher, issuer, nopNotifier{}, logger)
	return svc, registry, issuer
}

func testUser(passwordHash string) *types.UserAuth {
	return &types.UserAuth{
		ID:           uuid.NewString(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Add(-24 * time.Hour),
		UpdatedAt:    time.Now().Add(-24 * time.Hour),
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues a verifiable email token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)

		var createdID string
		repo.On("CreateUser", mock.Anything, mock.AnythingOfType("string"), "alice",
			"alice@example.com", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) { createdID = args.String(1) }).
			Return(testUser("irrelevant"), nil)

		result, err := svc.Register(ctx, "alice", " Alice@Example.COM ", "hunter22")
		require.NoError(t, err)
		require.NotNil(t, result.User)
		require.NotEmpty(t, result.VerificationToken)

		claims, err := issuer.Verify(result.VerificationToken, types.PurposeEmailVerify)
		require.NoError(t, err)
		assert.Equal(t, createdID, claims.UserID)

		repo.AssertExpectations(t)
	})

	t.Run("stored hash is not the plaintext", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		repo.On("CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
			mock.MatchedBy(func(hash string) bool { return hash != "hunter22" }), mock.Anything).
			Return(testUser("irrelevant"), nil)

		_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		for _, tc := range []struct{ username, email, password string }{
			{"", "alice@example.com", "hunter22"},
			{"alice", "", "hunter22"},
			{"alice", "alice@example.com", ""},
		} {
			_, err := svc.Register(ctx, tc.username, tc.email, tc.password)
			assert.ErrorIs(t, err, types.ErrValidation)
		}
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate email surfaces conflict", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		repo.On("CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything).
			Return(nil, types.ErrConflict)

		_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues access and registered refresh tokens", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, registry, issuer := newTestService(repo)
		user := testUser(mustHash(t, "hunter22"))

		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil)
		repo.On("UpdateLastLogin", mock.Anything, user.ID).Return(nil)

		result, err := svc.Login(ctx, "alice@example.com", "hunter22")
		require.NoError(t, err)

		accessClaims, err := issuer.Verify(result.AccessToken, types.PurposeAccess)
		require.NoError(t, err)
		assert.Equal(t, user.ID, accessClaims.UserID)

		refreshClaims, err := issuer.Verify(result.RefreshToken, types.PurposeRefresh)
		require.NoError(t, err)
		valid, err := registry.IsValid(ctx, refreshClaims.ID)
		require.NoError(t, err)
		assert.True(t, valid, "refresh jti must be registered at login")

		require.NotNil(t, result.User.LastLoginAt)
		repo.AssertExpectations(t)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		user := testUser(mustHash(t, "hunter22"))

		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound)
		repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil)

		_, unknownErr := svc.Login(ctx, "ghost@example.com", "hunter22")
		_, wrongErr := svc.Login(ctx, "alice@example.com", "not-the-password")

		assert.ErrorIs(t, unknownErr, types.ErrUnauthenticated)
		assert.ErrorIs(t, wrongErr, types.ErrUnauthenticated)
		assert.Equal(t, unknownErr, wrongErr, "both failures must look the same to the caller")
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		_, err := svc.Login(ctx, "", "hunter22")
		assert.ErrorIs(t, err, types.ErrValidation)
		_, err = svc.Login(ctx, "alice@example.com", "")
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, svc *AuthServiceImpl, repo *MockAuthRepo) *LoginResult {
		t.Helper()
		user := testUser(mustHash(t, "hunter22"))
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("UpdateLastLogin", mock.Anything, user.ID).Return(nil)
		result, err := svc.Login(ctx, user.Email, "hunter22")
		require.NoError(t, err)
		return result
	}

	t.Run("valid refresh issues a fresh access token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		session := login(t, svc, repo)

		accessToken, err := svc.Refresh(ctx, session.RefreshToken)
		require.NoError(t, err)

		claims, err := issuer.Verify(accessToken, types.PurposeAccess)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, claims.UserID)

		// Non-rotating: the same refresh token keeps working.
		_, err = svc.Refresh(ctx, session.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		_, err := svc.Refresh(ctx, "")
		assert.ErrorIs(t, err, types.ErrMissingToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		session := login(t, svc, repo)

		_, err := svc.Refresh(ctx, session.AccessToken)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("refresh after logout is refused", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		session := login(t, svc, repo)

		require.NoError(t, svc.Logout(ctx, session.RefreshToken))

		_, err := svc.Refresh(ctx, session.RefreshToken)
		assert.ErrorIs(t, err, types.ErrRevokedToken)
	})

	t.Run("unregistered but well-signed token is refused", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)

		// Signed with the right secret but never registered, e.g. minted
		// before a registry wipe.
		token, _, err := issuer.Issue("user-123", types.PurposeRefresh)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, token)
		assert.ErrorIs(t, err, types.ErrRevokedToken)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		assert.ErrorIs(t, svc.Logout(ctx, ""), types.ErrMissingToken)
	})

	t.Run("unverifiable token is a no-op", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		assert.NoError(t, svc.Logout(ctx, "garbage-token"))
	})

	t.Run("double logout is idempotent", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		user := testUser(mustHash(t, "hunter22"))
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("UpdateLastLogin", mock.Anything, user.ID).Return(nil)

		session, err := svc.Login(ctx, user.Email, "hunter22")
		require.NoError(t, err)

		assert.NoError(t, svc.Logout(ctx, session.RefreshToken))
		assert.NoError(t, svc.Logout(ctx, session.RefreshToken))
	})
}

func TestAuthService_RequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the token hash, not the token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		user := testUser(mustHash(t, "hunter22"))

		var storedHash string
		repo.On("GetUserByEmail", mock.Anything, user.Email).Return(user, nil)
		repo.On("SetPasswordResetToken", mock.Anything, user.ID,
			mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
			Run(func(args mock.Arguments) { storedHash = args.String(2) }).
			Return(nil)

		issue, err := svc.RequestPasswordReset(ctx, user.Email)
		require.NoError(t, err)
		require.NotEmpty(t, issue.Token)

		assert.NotEqual(t, issue.Token, storedHash)
		assert.Equal(t, hashResetToken(issue.Token), storedHash)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), issue.ExpiresAt, time.Minute)
		repo.AssertExpectations(t)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		repo.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, types.ErrNotFound)

		_, err := svc.RequestPasswordReset(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("empty email", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		_, err := svc.RequestPasswordReset(ctx, "  ")
		assert.ErrorIs(t, err, types.ErrValidation)
	})
}

func TestAuthService_ConfirmPasswordReset(t *testing.T) {
	ctx := context.Background()

	// issueReset mints a reset token and a user row holding its hash, as
	// RequestPasswordReset would have left them.
	issueReset := func(t *testing.T, issuer *TokenIssuer) (string, *types.UserAuth) {
		t.Helper()
		user := testUser(mustHash(t, "old-password"))
		token, _, err := issuer.Issue(user.ID, types.PurposePasswordReset)
		require.NoError(t, err)
		hash := hashResetToken(token)
		expires := time.Now().Add(30 * time.Minute)
		user.PasswordResetTokenHash = &hash
		user.PasswordResetExpiresAt = &expires
		return token, user
	}

	t.Run("success revokes every outstanding session", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, registry, issuer := newTestService(repo)
		token, user := issueReset(t, issuer)

		require.NoError(t, registry.Register(ctx, "session-1", user.ID, time.Now().Add(time.Hour)))
		require.NoError(t, registry.Register(ctx, "session-2", user.ID, time.Now().Add(time.Hour)))

		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
		repo.On("ResetPassword", mock.Anything, user.ID,
			mock.MatchedBy(func(hash string) bool { return hash != "new-password" })).
			Return(nil)

		require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "new-password"))

		for _, jti := range []string{"session-1", "session-2"} {
			valid, err := registry.IsValid(ctx, jti)
			require.NoError(t, err)
			assert.False(t, valid, "session %s must be revoked after reset", jti)
		}
		repo.AssertExpectations(t)
	})

	t.Run("cleared hash makes the token single-use", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		token, user := issueReset(t, issuer)

		// As after a successful reset: the stored hash is gone while the
		// JWT signature is still within its window.
		user.PasswordResetTokenHash = nil
		user.PasswordResetExpiresAt = nil
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		err := svc.ConfirmPasswordReset(ctx, token, "new-password")
		assert.ErrorIs(t, err, types.ErrInvalidToken)
		repo.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired stored token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		token, user := issueReset(t, issuer)

		past := time.Now().Add(-time.Minute)
		user.PasswordResetExpiresAt = &past
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		err := svc.ConfirmPasswordReset(ctx, token, "new-password")
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("superseded token is refused", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		oldToken, user := issueReset(t, issuer)

		// A newer request replaced the stored hash.
		newerHash := hashResetToken("some-newer-token")
		user.PasswordResetTokenHash = &newerHash
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		err := svc.ConfirmPasswordReset(ctx, oldToken, "new-password")
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("wrong-purpose token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)

		access, _, err := issuer.Issue("user-123", types.PurposeAccess)
		require.NoError(t, err)

		err = svc.ConfirmPasswordReset(ctx, access, "new-password")
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("missing fields fail validation", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)

		assert.ErrorIs(t, svc.ConfirmPasswordReset(ctx, "", "new-password"), types.ErrValidation)
		assert.ErrorIs(t, svc.ConfirmPasswordReset(ctx, "some-token", ""), types.ErrValidation)
	})
}

func TestAuthService_VerifyEmail(t *testing.T) {
	ctx := context.Background()

	issueVerify := func(t *testing.T, issuer *TokenIssuer) (string, *types.UserAuth) {
		t.Helper()
		user := testUser(mustHash(t, "hunter22"))
		token, _, err := issuer.Issue(user.ID, types.PurposeEmailVerify)
		require.NoError(t, err)
		user.EmailVerificationToken = &token
		return token, user
	}

	t.Run("success", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		token, user := issueVerify(t, issuer)

		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
		repo.On("MarkEmailVerified", mock.Anything, user.ID).Return(nil)

		require.NoError(t, svc.VerifyEmail(ctx, token))
		repo.AssertExpectations(t)
	})

	t.Run("already verified", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		token, user := issueVerify(t, issuer)
		user.IsEmailVerified = true

		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		assert.ErrorIs(t, svc.VerifyEmail(ctx, token), types.ErrAlreadyVerified)
		repo.AssertNotCalled(t, "MarkEmailVerified", mock.Anything, mock.Anything)
	})

	t.Run("token does not match the stored one", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		token, user := issueVerify(t, issuer)

		other := "some-other-token"
		user.EmailVerificationToken = &other
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		assert.ErrorIs(t, svc.VerifyEmail(ctx, token), types.ErrInvalidToken)
	})

	t.Run("user deleted since issuance", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, issuer := newTestService(repo)
		token, user := issueVerify(t, issuer)

		repo.On("GetUserByID", mock.Anything, user.ID).Return(nil, types.ErrNotFound)

		assert.ErrorIs(t, svc.VerifyEmail(ctx, token), types.ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		repo := new(MockAuthRepo)
		svc, _, _ := newTestService(repo)
		assert.ErrorIs(t, svc.VerifyEmail(ctx, ""), types.ErrMissingToken)
	})
}
