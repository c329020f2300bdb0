package user

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

	"github.com/mpereira-dev/tasknest/internal/api/auth"
	"github.com/mpereira-dev/tasknest/internal/types"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetProfile(ctx context.Context, userID string) (*types.UserAuth, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockUserRepo) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*types.UserAuth, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserAuth), args.Error(1)
}

func (m *MockUserRepo) SetProfileImageURL(ctx context.Context, userID, url string) error {
	return m.Called(ctx, userID, url).Error(0)
}

func (m *MockUserRepo) DeleteUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type stubImageStore struct {
	url string
	err error
}

func (s stubImageStore) Save(string, io.Reader) (string, error) { return s.url, s.err }

func newTestUserService(repo UserRepo, images ImageStore) (*UserServiceImpl, *auth.MemoryRegistry) {
	registry := auth.NewMemoryRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewUserService(repo, images, registry, logger), registry
}

func profileUser() *types.UserAuth {
	return &types.UserAuth{
		ID:        uuid.NewString(),
		Username:  "alice",
		Email:     "alice@example.com",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("trims the username", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newTestUserService(repo, stubImageStore{})
		user := profileUser()
		trimmed := "alice2"

		repo.On("UpdateProfile", mock.Anything, user.ID,
			UpdateProfileParams{Username: &trimmed}).Return(user, nil)

		padded := "  alice2  "
		_, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileParams{Username: &padded})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("blank username is rejected", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newTestUserService(repo, stubImageStore{})
		blank := "   "

		_, err := svc.UpdateProfile(ctx, "user-1", UpdateProfileParams{Username: &blank})
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_UploadProfileImage(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the stored url", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newTestUserService(repo, stubImageStore{url: "http://localhost:8000/uploads/x.png"})

		repo.On("SetProfileImageURL", mock.Anything, "user-1",
			"http://localhost:8000/uploads/x.png").Return(nil)

		url, err := svc.UploadProfileImage(ctx, "user-1", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000/uploads/x.png", url)
		repo.AssertExpectations(t)
	})

	t.Run("store rejection propagates without touching the repo", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newTestUserService(repo, stubImageStore{err: types.ErrValidation})

		_, err := svc.UploadProfileImage(ctx, "user-1", nil)
		assert.ErrorIs(t, err, types.ErrValidation)
		repo.AssertNotCalled(t, "SetProfileImageURL", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_DeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes every session with the account", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, registry := newTestUserService(repo, stubImageStore{})
		user := profileUser()

		require.NoError(t, registry.Register(ctx, "session-1", user.ID, time.Now().Add(time.Hour)))
		repo.On("DeleteUser", mock.Anything, user.ID).Return(nil)

		require.NoError(t, svc.DeleteAccount(ctx, user.ID))

		valid, err := registry.IsValid(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc, _ := newTestUserService(repo, stubImageStore{})

		repo.On("DeleteUser", mock.Anything, "nope").Return(types.ErrNotFound)

		assert.ErrorIs(t, svc.DeleteAccount(ctx, "nope"), types.ErrNotFound)
	})
}
