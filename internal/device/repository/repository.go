package repository

import (
	"context"

	"proctor-integrity/backend/internal/device/domain"
)

// Repository defines persistence for devices.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	// Resolve returns the device for publicKey, creating it bound to userID when absent.
	// An existing device is returned unchanged even if it belongs to another user; callers check ownership.
	Resolve(ctx context.Context, publicKey, userID string) (*domain.Device, error)
}
