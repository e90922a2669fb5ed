package repository

import (
	"context"
	"errors"
	"time"

	"proctor-integrity/backend/internal/tamper/domain"
)

// ErrAlreadyReviewed is returned by MarkReviewed for a flag that was reviewed before.
var ErrAlreadyReviewed = errors.New("tamper flag already reviewed")

// Repository defines persistence for tamper flags.
type Repository interface {
	Create(ctx context.Context, f *domain.Flag) error
	GetByID(ctx context.Context, id string) (*domain.Flag, error)
	// MarkReviewed sets the reviewed flag once. Missing flags return (false, nil).
	MarkReviewed(ctx context.Context, id, reviewerID string, at time.Time) (bool, error)
}
