package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/arbor/pkg/cache"
)

// ErrNotRegistered is returned when a function name is unknown.
var ErrNotRegistered = errors.New("process function not registered")

// ErrVersionMismatch is returned when a name resolves to a different
// version marker than the caller expects, or when a name is re-registered
// under a new marker. Records hashed against one version never silently
// re-bind to other code.
var ErrVersionMismatch = errors.New("process function version mismatch")

// ProcessFunction is the signature of a runnable process function. It
// receives named inputs and returns a result reference (an opaque string
// naming where the outputs live) or an error. A controlled failure is
// reported through the exit status, not the error.
type ProcessFunction func(ctx context.Context, inputs cache.Inputs) (ref string, exitStatus int, err error)

// Entry is one registered process function.
type Entry struct {
	Name    string
	Version string
	Fn      ProcessFunction
}

// Identity returns the cache identity of the entry.
func (e Entry) Identity() cache.Identity {
	return cache.Identity{Name: e.Name, Version: e.Version}
}

// Registry maps stable qualified names to process functions. Every name
// carries an explicit version marker, checked at registration and at
// version-pinned resolution.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds a function under its qualified name and version marker.
// Registering the same name and version again is an idempotent no-op;
// the same name under a different version fails with ErrVersionMismatch.
func (r *Registry) Register(name, version string, fn ProcessFunction) error {
	if name == "" {
		return fmt.Errorf("process function name cannot be empty")
	}
	if version == "" {
		return fmt.Errorf("process function %q: version marker cannot be empty", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[name]; ok {
		if existing.Version != version {
			return fmt.Errorf("%w: %q is registered as %s, cannot re-register as %s",
				ErrVersionMismatch, name, existing.Version, version)
		}
		return nil
	}
	r.entries[name] = Entry{Name: name, Version: version, Fn: fn}
	return nil
}

// Resolve looks up a function by name.
func (r *Registry) Resolve(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return entry, nil
}

// ResolveVersion looks up a function and verifies its version marker, for
// callers re-binding stored records to code.
func (r *Registry) ResolveVersion(name, version string) (Entry, error) {
	entry, err := r.Resolve(name)
	if err != nil {
		return Entry{}, err
	}
	if entry.Version != version {
		return Entry{}, fmt.Errorf("%w: %q wants %s, registry has %s",
			ErrVersionMismatch, name, version, entry.Version)
	}
	return entry, nil
}

// Names returns the registered names, for introspection surfaces.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
