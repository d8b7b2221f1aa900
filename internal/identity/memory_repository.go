package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/kobovault/kobovault/internal/wallet"
)

type memoryRepository struct {
	mu      sync.RWMutex
	users   map[string]User
	wallets wallet.Repository
}

// NewMemoryRepository constructs an in-memory repository for tests. Wallets
// provisioned alongside users are mirrored into the given wallet repository.
func NewMemoryRepository(wallets wallet.Repository) Repository {
	return &memoryRepository{users: make(map[string]User), wallets: wallets}
}

func (r *memoryRepository) CreateWithWallet(ctx context.Context, user User, w wallet.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return errors.New("email exists")
		}
	}
	if err := r.wallets.Create(ctx, w); err != nil {
		return err
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}
