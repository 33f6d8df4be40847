package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendsheets/internal/domain"
)

// MemoryStore keeps identities in process memory, keyed by normalized email.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]domain.Identity
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEmail: make(map[string]domain.Identity)}
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Identity{}, domain.ErrIdentityNotFound
	}
	return id, nil
}

func (m *MemoryStore) Create(_ context.Context, n domain.NewIdentity) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := domain.NormalizeEmail(n.Email)
	if _, ok := m.byEmail[email]; ok {
		return domain.Identity{}, domain.ErrDuplicateIdentity
	}
	id := domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         n.Name,
		PasswordHash: n.PasswordHash,
		Role:         n.Role,
		CreatedAt:    time.Now().UTC(),
	}
	m.byEmail[email] = id
	return id, nil
}

func (m *MemoryStore) UpdatePasswordHash(_ context.Context, id domain.Identity, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byEmail[domain.NormalizeEmail(id.Email)]
	if !ok || cur.ID != id.ID {
		return domain.ErrIdentityNotFound
	}
	cur.PasswordHash = hash
	m.byEmail[cur.Email] = cur
	return nil
}
