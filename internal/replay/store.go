// Package replay rejects repeated deliveries of the same signed webhook.
//
// A signed timestamp only bounds how long a captured request stays usable.
// Inside the tolerance window the same bytes verify again, so accepted
// deliveries are remembered for the length of that window and a second
// arrival is refused.
package replay

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"telnyx-webhooks/internal/redis"
)

// Store records delivery keys for a limited time
type Store interface {
	// MarkSeen records key for ttl. It returns true on the first sighting
	// and false when the key is already recorded.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget removes key so the next sighting counts as the first again
	Forget(ctx context.Context, key string) error
}

// LocalStore keeps keys in process memory using patrickmn/go-cache
type LocalStore struct {
	cache *gocache.Cache
}

// NewLocalStore creates a new in-memory store
func NewLocalStore(cleanupInterval time.Duration) *LocalStore {
	return &LocalStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// MarkSeen records key in memory. go-cache's Add is atomic, so concurrent
// deliveries of the same key see exactly one winner.
func (l *LocalStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := l.cache.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Forget drops key from memory
func (l *LocalStore) Forget(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Len returns the number of unexpired keys
func (l *LocalStore) Len() int {
	return l.cache.ItemCount()
}

// RedisStore shares seen keys between replicas through Redis
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a new Redis backed store
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkSeen records key with SET NX and an expiry
func (r *RedisStore) MarkSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.keyPrefix+key, "1", ttl)
}

// Forget deletes key from Redis
func (r *RedisStore) Forget(ctx context.Context, key string) error {
	return r.client.Delete(ctx, r.keyPrefix+key)
}
