package redis

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// CacheStore implements ports.CacheStore using Redis strings.
type CacheStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// CacheOption configures a CacheStore.
type CacheOption func(*CacheStore)

// WithCacheTTL sets an expiration for cached results. Zero keeps them
// forever.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CacheStore) {
		c.ttl = ttl
	}
}

// WithCachePrefix sets the key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *CacheStore) {
		c.prefix = prefix
	}
}

// NewCacheStore creates a cache store with its own Redis client.
func NewCacheStore(address, password string, db int, opts ...CacheOption) *CacheStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewCacheStoreFromClient(client, opts...)
}

// NewCacheStoreFromClient creates a cache store on an existing client.
func NewCacheStoreFromClient(client *backend.Client, opts ...CacheOption) *CacheStore {
	store := &CacheStore{
		client: client,
		prefix: "arbor:cache:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (c *CacheStore) key(hash string) string {
	return c.prefix + hash
}

// Put stores the payload under the hash.
func (c *CacheStore) Put(ctx context.Context, hash string, value []byte) error {
	if err := c.client.Set(ctx, c.key(hash), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves the payload for the hash; a miss is (nil, false, nil).
func (c *CacheStore) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if err != nil {
		if err == backend.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, true, nil
}

// Close closes the underlying client.
func (c *CacheStore) Close() error {
	return c.client.Close()
}
