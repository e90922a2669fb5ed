package repository

import (
	"context"
	"sync"

	"proctor-integrity/backend/internal/checkpoint"
	"proctor-integrity/backend/internal/ingest"
	tamperdomain "proctor-integrity/backend/internal/tamper/domain"
)

type pairKey struct{ device, assignment string }

type signalKey struct{ event, assignment string }

// FlagCreator receives tamper flags committed by the memory store.
type FlagCreator interface {
	Create(ctx context.Context, f *tamperdomain.Flag) error
}

// MemoryStore is an in-memory ingest.Store for tests and local runs. Units of work are serialized
// and their writes are staged until fn returns nil.
type MemoryStore struct {
	mu          sync.Mutex
	seqs        map[pairKey]int64
	checkpoints map[pairKey]checkpoint.State
	signals     map[signalKey]*ingest.Record
	flags       FlagCreator
}

var _ ingest.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. Committed tamper flags go to flags, which may be nil.
func NewMemoryStore(flags FlagCreator) *MemoryStore {
	return &MemoryStore{
		seqs:        make(map[pairKey]int64),
		checkpoints: make(map[pairKey]checkpoint.State),
		signals:     make(map[signalKey]*ingest.Record),
		flags:       flags,
	}
}

func (m *MemoryStore) LastSeq(_ context.Context, deviceID, assignmentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqs[pairKey{deviceID, assignmentID}], nil
}

func (m *MemoryStore) SignalExists(_ context.Context, eventID, assignmentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.signals[signalKey{eventID, assignmentID}]
	return ok, nil
}

func (m *MemoryStore) LoadCheckpoint(_ context.Context, deviceID, assignmentID string) (*checkpoint.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.checkpoints[pairKey{deviceID, assignmentID}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// WithinTx holds the store lock for the whole unit of work and applies staged writes only on success.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ingest.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{
		store:       m,
		seqs:        make(map[pairKey]int64),
		checkpoints: make(map[pairKey]checkpoint.State),
		signals:     make(map[signalKey]*ingest.Record),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.flags != nil {
		for _, f := range tx.flags {
			if err := m.flags.Create(context.WithoutCancel(ctx), f); err != nil {
				return err
			}
		}
	}
	for k, v := range tx.seqs {
		m.seqs[k] = v
	}
	for k, v := range tx.checkpoints {
		m.checkpoints[k] = v
	}
	for k, v := range tx.signals {
		m.signals[k] = v
	}
	return nil
}

// SetSeq overwrites a committed counter, as a concurrent writer would.
func (m *MemoryStore) SetSeq(deviceID, assignmentID string, seq int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[pairKey{deviceID, assignmentID}] = seq
}

// SetCheckpoint overwrites a committed checkpoint state.
func (m *MemoryStore) SetCheckpoint(deviceID, assignmentID string, st checkpoint.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[pairKey{deviceID, assignmentID}] = st
}

// SignalCount returns the number of stored signals.
func (m *MemoryStore) SignalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signals)
}

// HasSeq reports whether a counter row exists for the pair.
func (m *MemoryStore) HasSeq(deviceID, assignmentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seqs[pairKey{deviceID, assignmentID}]
	return ok
}

type memTx struct {
	store       *MemoryStore
	seqs        map[pairKey]int64
	checkpoints map[pairKey]checkpoint.State
	signals     map[signalKey]*ingest.Record
	flags       []*tamperdomain.Flag
}

func (t *memTx) LockSeq(_ context.Context, deviceID, assignmentID string) (int64, error) {
	k := pairKey{deviceID, assignmentID}
	if v, ok := t.seqs[k]; ok {
		return v, nil
	}
	v := t.store.seqs[k]
	t.seqs[k] = v
	return v, nil
}

func (t *memTx) SaveSeq(_ context.Context, deviceID, assignmentID string, seq int64) error {
	t.seqs[pairKey{deviceID, assignmentID}] = seq
	return nil
}

func (t *memTx) InsertSignal(_ context.Context, rec *ingest.Record) error {
	k := signalKey{rec.Signal.EventID, rec.Signal.AssignmentID}
	if _, ok := t.store.signals[k]; ok {
		return ingest.ErrDuplicateEvent
	}
	if _, ok := t.signals[k]; ok {
		return ingest.ErrDuplicateEvent
	}
	c := *rec
	t.signals[k] = &c
	return nil
}

func (t *memTx) SaveCheckpoint(_ context.Context, deviceID, assignmentID string, st checkpoint.State) error {
	k := pairKey{deviceID, assignmentID}
	if prev, ok := t.store.checkpoints[k]; ok && prev.HasDiscontinuity {
		st.HasDiscontinuity = true
	}
	t.checkpoints[k] = st
	return nil
}

func (t *memTx) CreateTamperFlag(_ context.Context, f *tamperdomain.Flag) error {
	c := *f
	t.flags = append(t.flags, &c)
	return nil
}
