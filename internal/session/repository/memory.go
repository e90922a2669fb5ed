package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"proctor-integrity/backend/internal/session/domain"
)

// ErrDuplicateToken is returned by MemoryRepository.Create for a hash that already exists.
var ErrDuplicateToken = errors.New("refresh token hash already exists")

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.RefreshToken // by id
}

// NewMemoryRepository returns an empty in-memory refresh token repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*domain.RefreshToken)}
}

func (m *MemoryRepository) Create(_ context.Context, t *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TokenHash == t.TokenHash {
			return ErrDuplicateToken
		}
	}
	c := *t
	m.rows[t.ID] = &c
	return nil
}

func (m *MemoryRepository) GetByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TokenHash == tokenHash {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.RevokedAt != nil {
		return false, nil
	}
	r.RevokedAt = &at
	return true, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *MemoryRepository) DeleteByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.TokenHash == tokenHash {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *MemoryRepository) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.rows {
		if r.UserID == userID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) PruneForUser(_ context.Context, userID string, keep int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live []*domain.RefreshToken
	for id, r := range m.rows {
		if r.UserID != userID {
			continue
		}
		if r.Revoked() {
			if r.Expired(now) {
				delete(m.rows, id)
			}
			continue
		}
		live = append(live, r)
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].ID > live[j].ID
		}
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})
	for i := keep; i < len(live); i++ {
		delete(m.rows, live[i].ID)
	}
	return nil
}

// CountForUser returns how many token rows userID has, revoked ones included.
func (m *MemoryRepository) CountForUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.UserID == userID {
			n++
		}
	}
	return n
}
