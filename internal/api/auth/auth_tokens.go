package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mpereira-dev/tasknest/config"
	"github.com/mpereira-dev/tasknest/internal/types"
)

// TokenIssuer creates and verifies purpose-scoped JWTs. Each purpose signs
// with its own secret, so verification with the wrong purpose fails at the
// signature check even before the purpose claim is compared.
type TokenIssuer struct {
	issuer   string
	purposes map[types.TokenPurpose]config.TokenConfig
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		issuer: cfg.Issuer,
		purposes: map[types.TokenPurpose]config.TokenConfig{
			types.PurposeAccess:        cfg.Access,
			types.PurposeRefresh:       cfg.Refresh,
			types.PurposeEmailVerify:   cfg.EmailVerify,
			types.PurposePasswordReset: cfg.PasswordReset,
		},
	}
}

// Issue signs a token for the given user and purpose. The returned jti
// uniquely identifies the token; refresh jtis key the revocation registry.
func (t *TokenIssuer) Issue(userID string, purpose types.TokenPurpose) (token string, jti string, err error) {
	pc, ok := t.purposes[purpose]
	if !ok {
		return "", "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := time.Now()
	jti = uuid.NewString()
	claims := types.Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(pc.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(pc.Secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, jti, nil
}

// Verify parses the token against the secret for the expected purpose and
// checks signature, expiry, issuer and the purpose claim. Returns
// types.ErrInvalidToken on any failure.
func (t *TokenIssuer) Verify(tokenString string, purpose types.TokenPurpose) (*types.Claims, error) {
	pc, ok := t.purposes[purpose]
	if !ok {
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}

	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(pc.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", types.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, types.ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", types.ErrInvalidToken)
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", types.ErrInvalidToken)
	}
	return claims, nil
}

// TTL returns the configured lifetime for a purpose.
func (t *TokenIssuer) TTL(purpose types.TokenPurpose) time.Duration {
	return t.purposes[purpose].TTL
}
