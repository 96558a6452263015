package permittest

import (
	"context"
	"testing"

	"github.com/oarkflow/permit"
)

func TestHarnessSharesOneEngine(t *testing.T) {
	h := New()
	if h.Engine() != h.Engine() {
		t.Fatalf("Engine must return the same instance until Reset")
	}
	if h.Store() != h.Engine().Store() {
		t.Fatalf("Store must back the shared engine")
	}
}

func TestHarnessResetStartsEmpty(t *testing.T) {
	ctx := context.Background()
	h := New()

	eng := h.Engine()
	if _, err := eng.CreatePermission(ctx, &permit.Permission{
		ID: "perm-h", Name: "h", Resource: "doc", Actions: []string{"read"},
	}); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}

	h.Reset()
	fresh := h.Engine()
	if fresh == eng {
		t.Fatalf("Reset must produce a new engine")
	}
	if fresh.Store().GetPermission("perm-h", "") != nil {
		t.Fatalf("Reset must start from an empty store")
	}
}
