// Package review lets authorized users mark tamper flags as reviewed.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"proctor-integrity/backend/internal/audit"
	"proctor-integrity/backend/internal/policy/engine"
	tamperdomain "proctor-integrity/backend/internal/tamper/domain"
	tamperrepo "proctor-integrity/backend/internal/tamper/repository"
	"proctor-integrity/backend/internal/telemetry"
	userdomain "proctor-integrity/backend/internal/user/domain"
)

var (
	// ErrFlagNotFound is returned when no tamper flag has the given id.
	ErrFlagNotFound = errors.New("tamper flag not found")
	// ErrReviewDenied is returned when the review policy does not allow the reviewer.
	ErrReviewDenied = errors.New("tamper flag review denied")
)

// UserReader loads reviewers.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// FlagStore reads and updates tamper flags.
type FlagStore interface {
	GetByID(ctx context.Context, id string) (*tamperdomain.Flag, error)
	MarkReviewed(ctx context.Context, id, reviewerID string, at time.Time) (bool, error)
}

// Service authorizes and records tamper flag reviews.
type Service struct {
	users       UserReader
	flags       FlagStore
	evaluator   engine.ReviewEvaluator
	auditLogger audit.AuditLogger
	emitter     telemetry.EventEmitter
	now         func() time.Time
}

// NewService returns a review service. auditLogger and emitter may be nil.
func NewService(users UserReader, flags FlagStore, evaluator engine.ReviewEvaluator, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Service {
	return &Service{
		users:       users,
		flags:       flags,
		evaluator:   evaluator,
		auditLogger: auditLogger,
		emitter:     emitter,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MarkReviewed sets reviewed on flagID for reviewerID after the policy allows it.
// Reviewing an already reviewed flag succeeds without changing the original reviewer.
// A reviewer the policy denies gets ErrReviewDenied whether or not flagID exists.
func (s *Service) MarkReviewed(ctx context.Context, reviewerID, flagID string) error {
	reviewer, err := s.users.GetByID(ctx, reviewerID)
	if err != nil {
		return fmt.Errorf("load reviewer: %w", err)
	}
	if reviewer == nil {
		return ErrReviewDenied
	}
	flag, err := s.flags.GetByID(ctx, flagID)
	if err != nil {
		return fmt.Errorf("load tamper flag: %w", err)
	}
	subject := flag
	if subject == nil {
		subject = &tamperdomain.Flag{ID: flagID}
	}
	allowed, err := s.evaluator.AllowReview(ctx, engine.ReviewInput{Reviewer: reviewer, Flag: subject})
	if err != nil {
		log.Printf("review: policy evaluation failed for flag %s: %v", flagID, err)
		return ErrReviewDenied
	}
	if !allowed {
		return ErrReviewDenied
	}
	if flag == nil {
		return ErrFlagNotFound
	}

	updated, err := s.flags.MarkReviewed(ctx, flagID, reviewerID, s.now())
	if errors.Is(err, tamperrepo.ErrAlreadyReviewed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark tamper flag reviewed: %w", err)
	}
	if !updated {
		return ErrFlagNotFound
	}

	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, reviewerID, audit.ActionTamperFlagReviewed, "tamper_flag/"+flagID, string(flag.Kind))
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		UserID:       reviewerID,
		DeviceID:     flag.DeviceID,
		AssignmentID: flag.AssignmentID,
		EventType:    telemetry.EventTamperFlagReviewed,
		Source:       "review",
	})
	return nil
}
