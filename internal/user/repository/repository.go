package repository

import (
	"context"

	"proctor-integrity/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*domain.User, error)
	// Upsert inserts u or, when its provider id exists, refreshes the login and keeps the stored id and role.
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
}
