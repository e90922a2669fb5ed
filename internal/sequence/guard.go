// Package sequence enforces per (device, assignment) monotonic sequence numbers for replay protection.
package sequence

import (
	"context"
	"errors"
)

var (
	// ErrReplay is returned when seq is not above the last accepted value.
	ErrReplay = errors.New("sequence: replay or out-of-order")
	// ErrGap is returned when seq skips ahead of last+1 outside the first-signal window.
	ErrGap = errors.New("sequence: gap")
	// ErrConcurrentUpdate is returned when the counter moved between the precheck and the transaction.
	ErrConcurrentUpdate = errors.New("sequence: concurrent update")
)

// Check applies the acceptance policy for seq given the last accepted value (0 when none).
// A fresh pair accepts any seq >= 1 once; afterwards only current+1 is accepted.
func Check(current, seq int64) error {
	if seq <= current {
		return ErrReplay
	}
	if current == 0 || seq == current+1 {
		return nil
	}
	return ErrGap
}

// Reader reads the last accepted sequence for a pair. A missing row reads as 0.
type Reader interface {
	LastSeq(ctx context.Context, deviceID, assignmentID string) (int64, error)
}

// Locker is the transactional side used by the authoritative check.
// LockSeq must create the row at 0 if absent and hold a row lock until the transaction ends.
type Locker interface {
	LockSeq(ctx context.Context, deviceID, assignmentID string) (int64, error)
	SaveSeq(ctx context.Context, deviceID, assignmentID string, seq int64) error
}

// Guard runs the optimistic precheck outside a transaction and the authoritative check inside one.
type Guard struct {
	reader Reader
}

// NewGuard returns a Guard reading committed state from r.
func NewGuard(r Reader) *Guard {
	return &Guard{reader: r}
}

// Precheck validates seq against committed state and returns the value it compared against.
// The returned value is the expected current for Advance.
func (g *Guard) Precheck(ctx context.Context, deviceID, assignmentID string, seq int64) (int64, error) {
	current, err := g.reader.LastSeq(ctx, deviceID, assignmentID)
	if err != nil {
		return 0, err
	}
	if err := Check(current, seq); err != nil {
		return current, err
	}
	return current, nil
}

// Advance re-reads the counter under lock, requires it to still equal expected, re-applies Check
// and stores seq. Any error must abort the surrounding transaction.
func Advance(ctx context.Context, l Locker, deviceID, assignmentID string, seq, expected int64) error {
	current, err := l.LockSeq(ctx, deviceID, assignmentID)
	if err != nil {
		return err
	}
	if current != expected {
		return ErrConcurrentUpdate
	}
	if err := Check(current, seq); err != nil {
		return err
	}
	return l.SaveSeq(ctx, deviceID, assignmentID, seq)
}
