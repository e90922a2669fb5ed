package repository

import (
	"context"
	"sync"

	"proctor-integrity/backend/internal/user/domain"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.User
	byProv map[string]string
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.User), byProv: make(map[string]string)}
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.byID[id]), nil
}

func (m *MemoryRepository) GetByProviderID(_ context.Context, providerID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.byID[m.byProv[providerID]]), nil
}

func (m *MemoryRepository) Upsert(_ context.Context, u *domain.User) (*domain.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byProv[u.ProviderID]; ok {
		existing := m.byID[id]
		existing.Login = u.Login
		existing.UpdatedAt = u.CreatedAt
		return clone(existing), nil
	}
	stored := *u
	stored.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = &stored
	m.byProv[u.ProviderID] = u.ID
	return clone(&stored), nil
}

// SetRole changes a stored user's role; roles are managed outside the login flow.
func (m *MemoryRepository) SetRole(id string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.Role = role
	}
}

func clone(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
