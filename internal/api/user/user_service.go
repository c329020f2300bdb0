package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mpereira-dev/tasknest/internal/api/auth"
	"github.com/mpereira-dev/tasknest/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// UserService covers the authenticated user's own profile: reading it,
// editing it, attaching an image and deleting the account.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*types.UserAuth, error)
	UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*types.UserAuth, error)
	UploadProfileImage(ctx context.Context, userID string, image io.Reader) (string, error)
	DeleteAccount(ctx context.Context, userID string) error
}

type UserServiceImpl struct {
	logger   *slog.Logger
	repo     UserRepo
	images   ImageStore
	registry auth.RevocationRegistry
}

func NewUserService(repo UserRepo, images ImageStore, registry auth.RevocationRegistry, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:   logger,
		repo:     repo,
		images:   images,
		registry: registry,
	}
}

func (s *UserServiceImpl) GetProfile(ctx context.Context, userID string) (*types.UserAuth, error) {
	return s.repo.GetProfile(ctx, userID)
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) (*types.UserAuth, error) {
	if params.Username != nil {
		trimmed := strings.TrimSpace(*params.Username)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: username must not be empty", types.ErrValidation)
		}
		params.Username = &trimmed
	}
	return s.repo.UpdateProfile(ctx, userID, params)
}

func (s *UserServiceImpl) UploadProfileImage(ctx context.Context, userID string, image io.Reader) (string, error) {
	url, err := s.images.Save(userID, image)
	if err != nil {
		return "", err
	}
	if err = s.repo.SetProfileImageURL(ctx, userID, url); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "Profile image updated",
		slog.String("user_id", userID), slog.String("url", url))
	return url, nil
}

// DeleteAccount removes the user row and revokes every live session, so
// outstanding refresh tokens die with the account.
func (s *UserServiceImpl) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return s.registry.RevokeAll(ctx, userID)
}
