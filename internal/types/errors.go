package types

import "errors"

// Sentinel errors shared across services. Repositories and services wrap
// these with fmt.Errorf("...: %w", ...) and handlers map them to HTTP
// status codes with errors.Is.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrValidation      = errors.New("invalid input")

	// Token lifecycle errors.
	ErrMissingToken    = errors.New("token required")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrRevokedToken    = errors.New("token has been revoked")
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrCorruptCredential signals a stored password hash that cannot be
	// parsed. Always surfaced to the client as a generic 500.
	ErrCorruptCredential = errors.New("stored credential is corrupt")
)
