package repository

import (
	"context"
	"time"

	"proctor-integrity/backend/internal/session/domain"
)

// Repository defines persistence for refresh tokens.
type Repository interface {
	Create(ctx context.Context, t *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Revoke marks a live token revoked. It returns false when the token was already revoked or is gone,
	// so exactly one of several concurrent presentations wins.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// PruneForUser keeps the keep most recently created live tokens of userID and deletes the other live ones.
	// Revoked tokens do not count toward keep; they are kept for reuse detection until they expire.
	PruneForUser(ctx context.Context, userID string, keep int, now time.Time) error
}
