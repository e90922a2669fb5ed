package ingest

import (
	"context"
	"time"

	"proctor-integrity/backend/internal/checkpoint"
	devicedomain "proctor-integrity/backend/internal/device/domain"
	"proctor-integrity/backend/internal/sequence"
	"proctor-integrity/backend/internal/signal/domain"
	tamperdomain "proctor-integrity/backend/internal/tamper/domain"
)

// Record is an accepted signal with the server-side context it is stored with.
type Record struct {
	Signal     *domain.Signal
	DeviceID   string
	UserID     string
	ReceivedAt time.Time
}

// Store reads committed ingest state and opens units of work.
type Store interface {
	sequence.Reader
	SignalExists(ctx context.Context, eventID, assignmentID string) (bool, error)
	// LoadCheckpoint returns nil when the pair has no checkpoint state yet.
	LoadCheckpoint(ctx context.Context, deviceID, assignmentID string) (*checkpoint.State, error)
	// WithinTx runs fn in one all-or-nothing transaction. fn's error rolls everything back.
	// A lost serialization race surfaces as sequence.ErrConcurrentUpdate.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of work for one signal. The sequence advance, signal insert, checkpoint upsert
// and tamper flag commit or roll back together.
type Tx interface {
	sequence.Locker
	// InsertSignal returns ErrDuplicateEvent when (eventId, assignmentId) exists.
	InsertSignal(ctx context.Context, rec *Record) error
	SaveCheckpoint(ctx context.Context, deviceID, assignmentID string, st checkpoint.State) error
	CreateTamperFlag(ctx context.Context, f *tamperdomain.Flag) error
}

// DeviceResolver binds public keys to devices.
type DeviceResolver interface {
	Resolve(ctx context.Context, publicKey, userID string) (*devicedomain.Device, error)
}
