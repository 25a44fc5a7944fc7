package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/arbor/pkg/ports"
)

// entry is the document stored per hash. Function repeats the identity so a
// lookup can verify it never hands out a result for a different function,
// whatever the backing store returns.
type entry struct {
	Function string `json:"function"`
	Ref      string `json:"ref"`
}

// Cache maps (function identity, inputs) to references of previously
// computed results.
type Cache struct {
	store ports.CacheStore
}

// New creates a cache over the given store.
func New(store ports.CacheStore) *Cache {
	return &Cache{store: store}
}

// Lookup returns the result reference recorded for this exact invocation.
// A payload whose identity does not match is treated as a miss.
func (c *Cache) Lookup(ctx context.Context, id Identity, in Inputs) (string, bool, error) {
	h, err := Hash(id, in)
	if err != nil {
		return "", false, err
	}

	payload, ok, err := c.store.Get(ctx, h)
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	var e entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return "", false, nil
	}
	if e.Function != id.String() {
		return "", false, nil
	}
	return e.Ref, true, nil
}

// Store records the result reference for this invocation and returns the
// content hash it was filed under.
func (c *Cache) Store(ctx context.Context, id Identity, in Inputs, ref string) (string, error) {
	h, err := Hash(id, in)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(entry{Function: id.String(), Ref: ref})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.store.Put(ctx, h, payload); err != nil {
		return "", fmt.Errorf("cache store failed: %w", err)
	}
	return h, nil
}
