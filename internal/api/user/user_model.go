package user

import (
	"time"

	"github.com/mpereira-dev/tasknest/internal/types"
)

// UpdateProfileParams carries the profile fields a user may change.
// Email changes are deliberately excluded; they would invalidate the
// verified-email state and need their own re-verification flow.
type UpdateProfileParams struct {
	Username *string `json:"username,omitempty"`
}

// ProfileResponse is the authenticated user's own view of their account.
type ProfileResponse struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	IsEmailVerified bool       `json:"is_email_verified"`
	ProfileImageURL *string    `json:"profile_image_url,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toProfileResponse(u *types.UserAuth) ProfileResponse {
	return ProfileResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
		ProfileImageURL: u.ProfileImageURL,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// UploadImageResponse returns the public URL of a stored profile image.
type UploadImageResponse struct {
	ProfileImageURL string `json:"profile_image_url"`
}
