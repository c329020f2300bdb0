package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mpereira-dev/tasknest/internal/types"
)

// PasswordHasher produces and verifies one-way password hashes. The salt is
// embedded per hash, so two hashes of the same password differ.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify returns nil on match, types.ErrUnauthenticated on mismatch and
	// types.ErrCorruptCredential when the stored hash cannot be parsed.
	Verify(plaintext, hash string) error
}

// BcryptHasher implements PasswordHasher with bcrypt at the default cost.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: password must not be empty", types.ErrValidation)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return types.ErrUnauthenticated
	default:
		return fmt.Errorf("%w: %v", types.ErrCorruptCredential, err)
	}
}
