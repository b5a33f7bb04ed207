package pagecontext

import (
	"context"
	"errors"
	"testing"

	"imagegen-api/internal/domain/service"
)

func TestRegistryActiveContext(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if _, err := r.ActiveContext(ctx); !errors.Is(err, service.ErrNoActiveContext) {
		t.Fatalf("empty registry: %v", err)
	}

	a, err := r.Register("A", "https://a.example", "http://127.0.0.1:9001/selection")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	b, _ := r.Register("B", "https://b.example", "http://127.0.0.1:9002/selection")

	active, _ := r.ActiveContext(ctx)
	if active.ID != b.ID || !active.Active {
		t.Fatalf("active = %+v, want B", active)
	}

	if _, err := r.Activate(a.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	active, _ = r.ActiveContext(ctx)
	if active.ID != a.ID {
		t.Fatalf("active = %s, want A", active.ID)
	}

	list := r.List()
	if len(list) != 2 || list[0].ID != a.ID || !list[0].Active || list[1].Active {
		t.Fatalf("list = %+v", list)
	}

	if err := r.Remove(a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.ActiveContext(ctx); !errors.Is(err, service.ErrNoActiveContext) {
		t.Fatalf("after removing active: %v", err)
	}
}

func TestRegistryErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("bad", "", "not a url"); err == nil {
		t.Error("expected invalid endpoint error")
	}
	if _, err := r.Register("bad", "", "ftp://host/x"); err == nil {
		t.Error("expected invalid scheme error")
	}
	if _, err := r.Activate("missing"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Activate missing = %v", err)
	}
	if err := r.Remove("missing"); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Remove missing = %v", err)
	}
}
