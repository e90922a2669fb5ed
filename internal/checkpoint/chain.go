// Package checkpoint folds signals into a per (device, assignment) hash chain and detects
// resets or rewrites of the client's local checkpoint store.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"proctor-integrity/backend/internal/signal/domain"
)

// TamperKind classifies a detected anomaly.
type TamperKind string

const (
	KindCheckpointReset TamperKind = "checkpoint_reset"
	KindSequenceGap     TamperKind = "sequence_gap"
)

// State is the running checkpoint state of one (device, assignment) pair.
type State struct {
	LastCheckpointID    *string
	StateHash           string
	Seq                 int64
	SessionCount        int
	TotalFocusedSeconds int64
	// HasDiscontinuity is sticky: once set it is never cleared.
	HasDiscontinuity bool
}

// Result is the outcome of folding one signal into the chain.
type Result struct {
	IsTampered           bool
	TamperType           TamperKind
	Description          string
	UpdatedState         State
	PreviousCheckpointID *string
}

// NextHash returns sha256(prev|eventId|type|timestamp|seq|checkpointId) in hex. The seed hash is "".
func NextHash(prev string, s *domain.Signal, checkpointID *string) string {
	ck := ""
	if checkpointID != nil {
		ck = *checkpointID
	}
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		prev,
		s.EventID,
		string(s.Type),
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(s.Seq, 10),
		ck,
	}, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

// Detect folds s into prior (nil when the pair has no state yet) and classifies it.
// The chain always advances, tampered or not. At most one anomaly is reported per signal.
func Detect(prior *State, s *domain.Signal) Result {
	declared, declares := s.DeclaredCheckpointID()

	if prior == nil {
		next := State{Seq: s.Seq}
		if declares {
			next.LastCheckpointID = cloneID(declared)
		}
		next.StateHash = NextHash("", s, declared)
		applyCounters(&next, s)
		return Result{UpdatedState: next}
	}

	res := Result{PreviousCheckpointID: cloneID(prior.LastCheckpointID)}
	if p, ok := s.Payload.(domain.UnverifiedChanges); ok {
		switch {
		case prior.LastCheckpointID != nil && declared == nil:
			res.IsTampered = true
			res.TamperType = KindCheckpointReset
			res.Description = fmt.Sprintf("local checkpoint store appears to have been deleted: last checkpoint %q, signal reports none", *prior.LastCheckpointID)
		case prior.LastCheckpointID != nil && *declared != *prior.LastCheckpointID &&
			(p.LastCheckpointID == nil || *p.LastCheckpointID != *prior.LastCheckpointID):
			res.IsTampered = true
			res.TamperType = KindCheckpointReset
			res.Description = fmt.Sprintf("checkpoint discontinuity: %q introduced without lineage to %q", *declared, *prior.LastCheckpointID)
		}
	}
	if !res.IsTampered && s.Seq > prior.Seq+1 {
		res.IsTampered = true
		res.TamperType = KindSequenceGap
		res.Description = fmt.Sprintf("sequence jumped from %d to %d", prior.Seq, s.Seq)
	}

	next := *prior
	next.LastCheckpointID = cloneID(prior.LastCheckpointID)
	if declares {
		next.LastCheckpointID = cloneID(declared)
	}
	next.Seq = s.Seq
	next.StateHash = NextHash(prior.StateHash, s, declared)
	next.HasDiscontinuity = prior.HasDiscontinuity || res.IsTampered
	applyCounters(&next, s)
	res.UpdatedState = next
	return res
}

func applyCounters(st *State, s *domain.Signal) {
	switch p := s.Payload.(type) {
	case domain.SessionStart:
		st.SessionCount++
	case domain.SessionEnd:
		st.TotalFocusedSeconds += p.FocusedSeconds
	}
}

func cloneID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
