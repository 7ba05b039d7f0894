package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Player/internal/domain"
)

func TestCallbackRegistry_Resolve(t *testing.T) {
	r := NewCallbackRegistry()
	called := false
	r.Register("notify", func(context.Context, *domain.Run) error {
		called = true
		return nil
	})
	r.Register("archive", func(context.Context, *domain.Run) error { return nil })

	cbs, err := r.Resolve("notify", "", "archive")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cbs.PreRun == nil || cbs.PostRun != nil || cbs.Cancelled == nil {
		t.Fatalf("unexpected callbacks: %+v", cbs)
	}
	cbs.PreRun(context.Background(), &domain.Run{})
	if !called {
		t.Error("resolved callback should be the registered one")
	}

	if names := r.Names(); len(names) != 2 || names[0] != "archive" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestCallbackRegistry_UnknownName(t *testing.T) {
	r := NewCallbackRegistry()

	_, err := r.Resolve("", "missing", "")
	if !errors.Is(err, ErrUnknownCallback) {
		t.Errorf("expected ErrUnknownCallback, got %v", err)
	}
}
