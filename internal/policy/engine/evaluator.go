package engine

import (
	"context"

	tamperdomain "proctor-integrity/backend/internal/tamper/domain"
	userdomain "proctor-integrity/backend/internal/user/domain"
)

// ReviewInput is the document a review policy decides on.
type ReviewInput struct {
	Reviewer *userdomain.User
	Flag     *tamperdomain.Flag
}

// ReviewEvaluator decides whether a user may mark a tamper flag as reviewed.
type ReviewEvaluator interface {
	// AllowReview returns true only when the policy explicitly allows the review.
	// Callers treat a non-nil error as a denial.
	AllowReview(ctx context.Context, in ReviewInput) (bool, error)
}
