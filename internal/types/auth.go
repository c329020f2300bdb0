package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose scopes a signed token to exactly one use. Purposes use
// disjoint signing secrets, so a leaked password-reset token can never be
// replayed as an access token.
type TokenPurpose string

const (
	PurposeAccess        TokenPurpose = "access"
	PurposeRefresh       TokenPurpose = "refresh"
	PurposeEmailVerify   TokenPurpose = "email_verify"
	PurposePasswordReset TokenPurpose = "password_reset"
)

// UserAuth represents the core user entity in the domain.
type UserAuth struct {
	ID                     string     `json:"id"`
	Username               string     `json:"username"`
	Email                  string     `json:"email"` // Normalized: trimmed, lowercase.
	PasswordHash           string     `json:"-"`     // Never exposed.
	IsEmailVerified        bool       `json:"is_email_verified"`
	EmailVerificationToken *string    `json:"-"`
	PasswordResetTokenHash *string    `json:"-"`
	PasswordResetExpiresAt *time.Time `json:"-"`
	ProfileImageURL        *string    `json:"profile_image_url,omitempty"`
	LastLoginAt            *time.Time `json:"last_login_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Claims is the JWT claim set carried by every token the service issues.
type Claims struct {
	UserID  string       `json:"user_id"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}
