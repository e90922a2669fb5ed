package repository

import (
	"context"
	"testing"
)

func TestMemoryRepository_ResolveBindsFirstOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	d1, err := repo.Resolve(ctx, "key-a", "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d1.UserID != "u1" || d1.ID == "" {
		t.Fatalf("unexpected device %+v", d1)
	}
	again, err := repo.Resolve(ctx, "key-a", "u1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.ID != d1.ID {
		t.Errorf("Resolve created a second device: %q vs %q", again.ID, d1.ID)
	}

	other, err := repo.Resolve(ctx, "key-a", "u2")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if other.UserID != "u1" || other.OwnedBy("u2") {
		t.Errorf("device ownership changed: %+v", other)
	}

	got, _ := repo.GetByPublicKey(ctx, "key-a")
	if got == nil || got.ID != d1.ID {
		t.Errorf("GetByPublicKey = %+v", got)
	}
	missing, err := repo.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetByID missing = %v, %v", missing, err)
	}
}
