package grants

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]AccessGrant
	order   []string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]AccessGrant)}
}

func (r *memoryRepository) Create(_ context.Context, grant AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.KeyHash == grant.KeyHash {
			return errors.New("key hash exists")
		}
	}
	r.storage[grant.ID] = grant
	r.order = append(r.order, grant.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id, userID string) (AccessGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grant, ok := r.storage[id]
	if !ok || grant.UserID != userID {
		return AccessGrant{}, ErrNotFound
	}
	return grant, nil
}

func (r *memoryRepository) FindByHash(_ context.Context, keyHash string) (AccessGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, grant := range r.storage {
		if grant.KeyHash == keyHash {
			return grant, nil
		}
	}
	return AccessGrant{}, ErrNotFound
}

func (r *memoryRepository) CountActive(_ context.Context, userID string, now time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, grant := range r.storage {
		if grant.UserID == userID && grant.Active(now) {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) SetRevoked(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.storage[id]
	if !ok || grant.UserID != userID {
		return ErrNotFound
	}
	grant.Revoked = true
	r.storage[id] = grant
	return nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]AccessGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []AccessGrant
	for i := len(r.order) - 1; i >= 0; i-- {
		grant := r.storage[r.order[i]]
		if grant.UserID == userID {
			result = append(result, grant)
		}
	}
	return result, nil
}

// expireGrant is a test hook that backdates a grant's expiry.
func (r *memoryRepository) expireGrant(id string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant := r.storage[id]
	grant.ExpiresAt = expiresAt
	r.storage[id] = grant
}
