package cache_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/cache"
)

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := cache.New(memory.NewCacheStore())
	id := cache.Identity{Name: "quantum.relax", Version: "1.0.0"}
	in := cache.Inputs{Kwargs: map[string]any{"cutoff": 500}}

	if _, ok, err := c.Lookup(ctx, id, in); err != nil || ok {
		t.Fatalf("fresh cache must miss: ok=%v err=%v", ok, err)
	}

	hash, err := c.Store(ctx, id, in, "pk:77")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" {
		t.Fatal("Store must return the content hash")
	}

	ref, ok, err := c.Lookup(ctx, id, in)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || ref != "pk:77" {
		t.Fatalf("Lookup = (%q, %v), want (pk:77, true)", ref, ok)
	}
}

func TestCacheMissOnDifferentInputs(t *testing.T) {
	ctx := context.Background()
	c := cache.New(memory.NewCacheStore())
	id := cache.Identity{Name: "quantum.relax", Version: "1.0.0"}

	if _, err := c.Store(ctx, id, cache.Inputs{Kwargs: map[string]any{"cutoff": 500}}, "pk:1"); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Lookup(ctx, id, cache.Inputs{Kwargs: map[string]any{"cutoff": 600}})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("different inputs must not hit")
	}
}

func TestCacheVerifiesIdentity(t *testing.T) {
	// A corrupted or colliding backend entry whose recorded function does
	// not match the queried identity is a miss, never a foreign result.
	ctx := context.Background()
	store := memory.NewCacheStore()
	c := cache.New(store)

	id := cache.Identity{Name: "quantum.relax", Version: "1.0.0"}
	in := cache.Inputs{Kwargs: map[string]any{"cutoff": 500}}

	hash, err := c.Store(ctx, id, in, "pk:9")
	if err != nil {
		t.Fatal(err)
	}

	// Overwrite the stored document with one claiming another function.
	if err := store.Put(ctx, hash, []byte(`{"function":"other.fn@9.9.9","ref":"pk:666"}`)); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Lookup(ctx, id, in)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("mismatched identity must be treated as a miss")
	}
}

func TestCacheIgnoresCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCacheStore()
	c := cache.New(store)

	id := cache.Identity{Name: "quantum.relax", Version: "1.0.0"}
	in := cache.Inputs{}
	hash, err := cache.Hash(id, in)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, hash, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Lookup(ctx, id, in)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("undecodable payload must be a miss")
	}
}
