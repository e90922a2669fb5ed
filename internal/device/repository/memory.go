package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"proctor-integrity/backend/internal/device/domain"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu    sync.Mutex
	byID  map[string]*domain.Device
	byKey map[string]string
	nowF  func() time.Time
}

// NewMemoryRepository returns an empty in-memory device repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*domain.Device),
		byKey: make(map[string]string),
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.byID[id]), nil
}

// GetByPublicKey returns the device pinned to publicKey, or nil. Tests use it to inspect stored state.
func (m *MemoryRepository) GetByPublicKey(_ context.Context, publicKey string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.byID[m.byKey[publicKey]]), nil
}

func (m *MemoryRepository) Resolve(_ context.Context, publicKey, userID string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowF()
	if id, ok := m.byKey[publicKey]; ok {
		d := m.byID[id]
		if d.UserID == userID {
			d.LastSeenAt = now
		}
		return clone(d), nil
	}
	d := &domain.Device{ID: uuid.New().String(), UserID: userID, PublicKey: publicKey, CreatedAt: now, LastSeenAt: now}
	m.byID[d.ID] = d
	m.byKey[publicKey] = d.ID
	return clone(d), nil
}

func clone(d *domain.Device) *domain.Device {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
