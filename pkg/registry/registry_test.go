package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/cache"
)

func noop(ctx context.Context, inputs cache.Inputs) (string, int, error) {
	return "", 0, nil
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	if err := r.Register("quantum.relax", "1.0.0", noop); err != nil {
		t.Fatal(err)
	}

	entry, err := r.Resolve("quantum.relax")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Name != "quantum.relax" || entry.Version != "1.0.0" {
		t.Errorf("entry = %s@%s", entry.Name, entry.Version)
	}
	if entry.Identity().String() != "quantum.relax@1.0.0" {
		t.Errorf("identity = %s", entry.Identity().String())
	}
}

func TestResolveUnknown(t *testing.T) {
	r := New()
	_, err := r.Resolve("missing.fn")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
}

func TestReRegisterSameVersionIsIdempotent(t *testing.T) {
	r := New()
	if err := r.Register("quantum.relax", "1.0.0", noop); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("quantum.relax", "1.0.0", noop); err != nil {
		t.Fatalf("same name and version must be accepted: %v", err)
	}
}

func TestReRegisterNewVersionFails(t *testing.T) {
	r := New()
	if err := r.Register("quantum.relax", "1.0.0", noop); err != nil {
		t.Fatal(err)
	}
	err := r.Register("quantum.relax", "2.0.0", noop)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestResolveVersionChecksMarker(t *testing.T) {
	r := New()
	if err := r.Register("quantum.relax", "1.0.0", noop); err != nil {
		t.Fatal(err)
	}

	if _, err := r.ResolveVersion("quantum.relax", "1.0.0"); err != nil {
		t.Fatalf("matching marker rejected: %v", err)
	}

	_, err := r.ResolveVersion("quantum.relax", "1.1.0")
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	r := New()
	if err := r.Register("", "1.0.0", noop); err == nil {
		t.Error("empty name must be rejected")
	}
	if err := r.Register("fn", "", noop); err == nil {
		t.Error("empty version marker must be rejected")
	}
}
