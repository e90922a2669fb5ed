package domain

import "time"

// Kind classifies a tamper flag.
type Kind string

const (
	KindCheckpointReset Kind = "checkpoint_reset"
	KindSequenceGap     Kind = "sequence_gap"
)

// Flag is an append-only record of a detected integrity violation for a (device, assignment) pair.
// Reviewed (with its reviewer and time) is the only part that changes after creation.
type Flag struct {
	ID                   string
	DeviceID             string
	AssignmentID         string
	Kind                 Kind
	Description          string
	Seq                  int64
	SignalEventID        *string
	PreviousCheckpointID *string
	NewCheckpointID      *string
	Reviewed             bool
	ReviewedBy           *string
	ReviewedAt           *time.Time
	CreatedAt            time.Time
}
