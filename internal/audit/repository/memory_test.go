package repository

import (
	"context"
	"testing"
	"time"

	"proctor-integrity/backend/internal/audit/domain"
)

func TestMemoryRepository_CreateKeepsOrder(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	want := []string{"logout", "tamper_detected", "refresh_token_reuse"}
	for i, action := range want {
		entry := &domain.AuditLog{ID: action, UserID: "user-1", Action: action, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatalf("Create: %v", err)
		}
		entry.Action = "mutated"
	}

	got := repo.Actions()
	if len(got) != len(want) {
		t.Fatalf("Actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Actions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
