package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/paymentsportal/pkg/cache"
)

// RevocationStore is the refresh-token denylist, keyed by token id (jti).
// Entries only need to outlive the token they revoke.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	// RevokeOnce denylists jti and reports whether this call did so. Exactly
	// one of any number of concurrent callers sees true.
	RevokeOnce(ctx context.Context, jti string, until time.Time) (bool, error)
}

// minRevocationTTL keeps a just-expiring token denylisted long enough for
// concurrent rotations to observe the entry.
const minRevocationTTL = time.Minute

func revocationTTL(until, now time.Time) time.Duration {
	ttl := until.Sub(now)
	if ttl < minRevocationTTL {
		return minRevocationTTL
	}
	return ttl
}

// MemoryRevocationStore keeps revoked ids in process memory.
type MemoryRevocationStore struct {
	entries *cache.Cache[struct{}]
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: cache.New[struct{}](), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	s.entries.Set(jti, struct{}{}, ttl)
	return nil
}

func (s *MemoryRevocationStore) RevokeOnce(_ context.Context, jti string, until time.Time) (bool, error) {
	return s.entries.SetIfAbsent(jti, struct{}{}, revocationTTL(until, s.now())), nil
}

// Prune drops entries whose tokens have expired anyway.
func (s *MemoryRevocationStore) Prune() int {
	return s.entries.Prune()
}

// RedisRevocationStore shares the denylist across replicas.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "paymentsportal:revoked:", now: time.Now}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+jti, "1", ttl); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) RevokeOnce(ctx context.Context, jti string, until time.Time) (bool, error) {
	won, err := s.client.SetNX(ctx, s.prefix+jti, "1", revocationTTL(until, s.now()))
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return won, nil
}
