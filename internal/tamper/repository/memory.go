package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"proctor-integrity/backend/internal/tamper/domain"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.Flag
}

// NewMemoryRepository returns an empty in-memory tamper flag repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*domain.Flag)}
}

func (m *MemoryRepository) Create(_ context.Context, f *domain.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *f
	m.rows[f.ID] = &c
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	c := *f
	return &c, nil
}

func (m *MemoryRepository) MarkReviewed(_ context.Context, id, reviewerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	if f.Reviewed {
		return false, ErrAlreadyReviewed
	}
	f.Reviewed = true
	f.ReviewedBy = &reviewerID
	f.ReviewedAt = &at
	return true, nil
}

// All returns every stored flag ordered by sequence.
func (m *MemoryRepository) All() []*domain.Flag {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Flag, 0, len(m.rows))
	for _, f := range m.rows {
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
