package auth

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// RevocationRegistry is the authoritative record of which refresh tokens are
// still honorable. A refresh token verifies statelessly, but must also be
// present and unrevoked here before a refresh is granted.
type RevocationRegistry interface {
	Register(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsValid(ctx context.Context, jti string) (bool, error)
	// Revoke is idempotent: revoking an unknown or already-revoked jti is
	// not an error.
	Revoke(ctx context.Context, jti string) error
	RevokeAll(ctx context.Context, userID string) error
}

// MemoryRegistry keeps refresh-token state in process memory with per-entry
// TTL eviction. Suitable for single-instance deployments only: state lives
// from process start to shutdown and does not survive restarts or scale
// horizontally. Multi-instance deployments use the Postgres-backed registry.
type MemoryRegistry struct {
	cache *gocache.Cache

	// byUser tracks jtis per user so RevokeAll doesn't scan the cache.
	mu     sync.Mutex
	byUser map[string]map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		cache:  gocache.New(gocache.NoExpiration, 10*time.Minute),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryRegistry) Register(_ context.Context, jti, userID string, expiresAt time.Time) error {
	m.cache.Set(jti, userID, time.Until(expiresAt))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]struct{})
	}
	m.byUser[userID][jti] = struct{}{}
	return nil
}

func (m *MemoryRegistry) IsValid(_ context.Context, jti string) (bool, error) {
	_, found := m.cache.Get(jti)
	return found, nil
}

func (m *MemoryRegistry) Revoke(_ context.Context, jti string) error {
	userID, found := m.cache.Get(jti)
	if !found {
		return nil
	}
	m.cache.Delete(jti)

	m.mu.Lock()
	defer m.mu.Unlock()
	if uid, ok := userID.(string); ok {
		delete(m.byUser[uid], jti)
	}
	return nil
}

func (m *MemoryRegistry) RevokeAll(_ context.Context, userID string) error {
	m.mu.Lock()
	jtis := m.byUser[userID]
	delete(m.byUser, userID)
	m.mu.Unlock()

	for jti := range jtis {
		m.cache.Delete(jti)
	}
	return nil
}
