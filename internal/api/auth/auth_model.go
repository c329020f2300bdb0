package auth

import (
	"time"

	"github.com/mpereira-dev/tasknest/internal/types"
)

// RegisterRequest represents the register request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse returns the sanitized user. VerificationToken is only
// populated in development mode; production delivers it via the mailer.
type RegisterResponse struct {
	User              UserDTO `json:"user"`
	Message           string  `json:"message"`
	VerificationToken string  `json:"verification_token,omitempty"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response body.
type LoginResponse struct {
	User         UserDTO `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordResponse echoes the raw reset token only in development mode.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
	ResetURL   string `json:"reset_url,omitempty"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// Response is the generic success/error acknowledgement body.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UserDTO is the sanitized user shape returned by auth endpoints.
// Never carries the password hash or any token material.
type UserDTO struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	IsEmailVerified bool       `json:"is_email_verified"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func sanitizeUser(u *types.UserAuth) UserDTO {
	return UserDTO{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}
