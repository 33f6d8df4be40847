package codestore

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps codes in process memory. Expired records are only removed by
// the Store on access.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]PendingCode
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]PendingCode)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (*PendingCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pc, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	return &pc, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, pc PendingCode, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = pc
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
