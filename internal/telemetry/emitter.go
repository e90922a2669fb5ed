package telemetry

import (
	"context"
	"time"
)

// Event types emitted by the services.
const (
	EventLogin               = "login"
	EventLogout              = "logout"
	EventRefreshTokenReuse   = "refresh_token_reuse"
	EventSignalBatchIngested = "signal_batch_ingested"
	EventTamperDetected      = "tamper_detected"
	EventTamperFlagReviewed  = "tamper_flag_reviewed"
)

// Event is a telemetry record about something a user or device did.
// Empty fields are omitted from the exported record.
type Event struct {
	UserID       string
	DeviceID     string
	SessionID    string
	AssignmentID string
	EventType    string
	Source       string
	Metadata     []byte
	CreatedAt    time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
