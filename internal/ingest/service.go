// Package ingest runs the per-signal pipeline for a batch of device signals: validation, signature
// verification, device binding, sequence and duplicate checks, tamper detection and the atomic write.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"proctor-integrity/backend/internal/audit"
	"proctor-integrity/backend/internal/checkpoint"
	"proctor-integrity/backend/internal/security"
	"proctor-integrity/backend/internal/sequence"
	"proctor-integrity/backend/internal/signal"
	"proctor-integrity/backend/internal/signal/domain"
	tamperdomain "proctor-integrity/backend/internal/tamper/domain"
	"proctor-integrity/backend/internal/telemetry"
)

// DefaultMaxBatch bounds a batch when Config.MaxBatch is unset.
const DefaultMaxBatch = 100

var (
	// ErrUnauthenticated rejects a whole batch submitted without a user.
	ErrUnauthenticated = errors.New("ingest: unauthenticated")
	// ErrEmptyBatch rejects a batch with no signals.
	ErrEmptyBatch = errors.New("ingest: empty batch")
	// ErrBatchTooLarge rejects a batch above the configured maximum.
	ErrBatchTooLarge = errors.New("ingest: batch too large")

	// ErrSignatureInvalid rejects a signal whose signature does not verify.
	ErrSignatureInvalid = errors.New("ingest: signature invalid")
	// ErrDeviceOwnershipMismatch rejects a signal from a device bound to another user.
	ErrDeviceOwnershipMismatch = errors.New("ingest: device ownership mismatch")
	// ErrDuplicateEvent rejects a signal whose (eventId, assignmentId) is already stored.
	ErrDuplicateEvent = errors.New("ingest: duplicate event")
)

// Outcome is the result for one signal of a batch.
type Outcome struct {
	EventID  string
	Accepted bool
	// Err is the rejection cause. Nil when accepted.
	Err error
	// Tamper is set when the accepted signal was recorded with a tamper flag.
	Tamper checkpoint.TamperKind
}

// BatchResult summarizes a batch. Outcomes are in submission order.
type BatchResult struct {
	Accepted    int
	Rejected    int
	RejectedIDs []string
	Outcomes    []Outcome
}

func (r *BatchResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Accepted {
		r.Accepted++
		return
	}
	r.Rejected++
	if o.EventID != "" {
		r.RejectedIDs = append(r.RejectedIDs, o.EventID)
	}
}

// Config tunes the service.
type Config struct {
	MaxBatch int
	MaxSeq   int64
	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

// Service ingests signal batches.
type Service struct {
	store       Store
	devices     DeviceResolver
	guard       *sequence.Guard
	validator   signal.Validator
	maxBatch    int
	metrics     *counters
	auditLogger audit.AuditLogger
	emitter     telemetry.EventEmitter
	now         func() time.Time
}

// NewService returns an ingest Service. auditLogger and emitter may be nil.
func NewService(store Store, devices DeviceResolver, cfg Config, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Service {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Service{
		store:       store,
		devices:     devices,
		guard:       sequence.NewGuard(store),
		validator:   signal.Validator{MaxSeq: cfg.MaxSeq},
		maxBatch:    maxBatch,
		metrics:     newCounters(cfg.Meter),
		auditLogger: auditLogger,
		emitter:     emitter,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Ingest processes signals in order for userID. Each signal is accepted or rejected on its own;
// a rejection never affects its siblings. If ctx ends mid-batch the partial result is returned
// with ctx.Err(); signals committed before that stay committed.
func (s *Service) Ingest(ctx context.Context, userID string, signals []signal.Wire) (*BatchResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if len(signals) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(signals) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d signals, max %d", ErrBatchTooLarge, len(signals), s.maxBatch)
	}

	res := &BatchResult{}
	for _, w := range signals {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o := s.ingestOne(ctx, userID, w)
		if !o.Accepted {
			s.metrics.recordRejected(ctx, reasonLabel(o.Err))
			log.Printf("ingest: rejected signal %q for user %s: %v", o.EventID, userID, o.Err)
		}
		res.add(o)
	}
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		UserID:    userID,
		EventType: telemetry.EventSignalBatchIngested,
		Source:    "ingest",
		Metadata:  batchMetadata(res),
	})
	return res, nil
}

func (s *Service) ingestOne(ctx context.Context, userID string, w signal.Wire) Outcome {
	o := Outcome{EventID: w.RawEventID()}

	sig, err := s.validator.Validate(w)
	if err != nil {
		o.Err = err
		return o
	}
	o.EventID = sig.EventID

	// The signature covers the object as sent, never the validated copy.
	if !security.VerifySignature(w.SignedPayload(), sig.Signature, sig.PublicKey) {
		o.Err = ErrSignatureInvalid
		return o
	}

	dev, err := s.devices.Resolve(ctx, sig.PublicKey, userID)
	if err != nil {
		o.Err = fmt.Errorf("resolve device: %w", err)
		return o
	}
	if !dev.OwnedBy(userID) {
		if s.auditLogger != nil {
			s.auditLogger.LogEvent(ctx, userID, audit.ActionDeviceOwnershipMismatch, "device/"+dev.ID, sig.AssignmentID)
		}
		o.Err = ErrDeviceOwnershipMismatch
		return o
	}

	expected, err := s.guard.Precheck(ctx, dev.ID, sig.AssignmentID, sig.Seq)
	if err != nil {
		o.Err = s.classifySequenceError(ctx, sig, err)
		return o
	}

	exists, err := s.store.SignalExists(ctx, sig.EventID, sig.AssignmentID)
	if err != nil {
		o.Err = fmt.Errorf("check duplicate: %w", err)
		return o
	}
	if exists {
		o.Err = ErrDuplicateEvent
		return o
	}

	prior, err := s.store.LoadCheckpoint(ctx, dev.ID, sig.AssignmentID)
	if err != nil {
		o.Err = fmt.Errorf("load checkpoint: %w", err)
		return o
	}
	detected := checkpoint.Detect(prior, sig)
	now := s.now()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := sequence.Advance(ctx, tx, dev.ID, sig.AssignmentID, sig.Seq, expected); err != nil {
			return err
		}
		if err := tx.InsertSignal(ctx, &Record{Signal: sig, DeviceID: dev.ID, UserID: userID, ReceivedAt: now}); err != nil {
			return err
		}
		if err := tx.SaveCheckpoint(ctx, dev.ID, sig.AssignmentID, detected.UpdatedState); err != nil {
			return err
		}
		if detected.IsTampered {
			return tx.CreateTamperFlag(ctx, tamperFlag(dev.ID, sig, detected, now))
		}
		return nil
	})
	if err != nil {
		o.Err = err
		return o
	}

	o.Accepted = true
	s.metrics.recordAccepted(ctx)
	if detected.IsTampered {
		o.Tamper = detected.TamperType
		s.recordTamper(ctx, userID, dev.ID, sig, detected)
	}
	return o
}

// classifySequenceError reports a replay of an already stored event as a duplicate.
func (s *Service) classifySequenceError(ctx context.Context, sig *domain.Signal, err error) error {
	if !errors.Is(err, sequence.ErrReplay) {
		return err
	}
	exists, existsErr := s.store.SignalExists(ctx, sig.EventID, sig.AssignmentID)
	if existsErr == nil && exists {
		return ErrDuplicateEvent
	}
	return err
}

func (s *Service) recordTamper(ctx context.Context, userID, deviceID string, sig *domain.Signal, detected checkpoint.Result) {
	kind := string(detected.TamperType)
	s.metrics.recordTamper(ctx, kind)
	log.Printf("ingest: tamper %s on device %s assignment %s at seq %d: %s", kind, deviceID, sig.AssignmentID, sig.Seq, detected.Description)
	if s.auditLogger != nil {
		s.auditLogger.LogEvent(ctx, userID, audit.ActionTamperDetected, "device/"+deviceID+"/"+sig.AssignmentID, kind)
	}
	meta, _ := json.Marshal(map[string]any{"kind": kind, "seq": sig.Seq, "eventId": sig.EventID})
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{
		UserID:       userID,
		DeviceID:     deviceID,
		SessionID:    sig.SessionID,
		AssignmentID: sig.AssignmentID,
		EventType:    telemetry.EventTamperDetected,
		Source:       "ingest",
		Metadata:     meta,
	})
}

func tamperFlag(deviceID string, sig *domain.Signal, detected checkpoint.Result, now time.Time) *tamperdomain.Flag {
	eventID := sig.EventID
	declared, _ := sig.DeclaredCheckpointID()
	var newID *string
	if declared != nil {
		v := *declared
		newID = &v
	}
	return &tamperdomain.Flag{
		ID:                   uuid.New().String(),
		DeviceID:             deviceID,
		AssignmentID:         sig.AssignmentID,
		Kind:                 tamperdomain.Kind(detected.TamperType),
		Description:          detected.Description,
		Seq:                  sig.Seq,
		SignalEventID:        &eventID,
		PreviousCheckpointID: detected.PreviousCheckpointID,
		NewCheckpointID:      newID,
		CreatedAt:            now,
	}
}

func batchMetadata(res *BatchResult) []byte {
	b, _ := json.Marshal(map[string]int{"accepted": res.Accepted, "rejected": res.Rejected})
	return b
}

// reasonLabel maps a rejection cause to a low-cardinality metric attribute.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, signal.ErrValidation):
		return "validation"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrDeviceOwnershipMismatch):
		return "device_ownership_mismatch"
	case errors.Is(err, sequence.ErrReplay):
		return "sequence_replay"
	case errors.Is(err, sequence.ErrGap):
		return "sequence_gap"
	case errors.Is(err, sequence.ErrConcurrentUpdate):
		return "concurrent_update"
	case errors.Is(err, ErrDuplicateEvent):
		return "duplicate"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
