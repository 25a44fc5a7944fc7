package memory

import (
	"context"
	"sync"
)

// CacheStore implements ports.CacheStore with a plain map.
// Safe for concurrent use.
type CacheStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewCacheStore creates an empty in-memory cache store.
func NewCacheStore() *CacheStore {
	return &CacheStore{data: make(map[string][]byte)}
}

// Put stores the payload under the hash.
func (c *CacheStore) Put(ctx context.Context, hash string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	c.data[hash] = buf
	return nil
}

// Get retrieves the payload for the hash; a miss is (nil, false, nil).
func (c *CacheStore) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.data[hash]
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, true, nil
}
