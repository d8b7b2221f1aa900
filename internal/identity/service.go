package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kobovault/kobovault/internal/wallet"
)

// Service manages the user lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FindOrCreate resolves the external login profile to a local user, creating
// the user and their wallet atomically on first login.
func (s *Service) FindOrCreate(ctx context.Context, profile Profile) (User, error) {
	if profile.Email == "" {
		return User{}, errors.New("profile email is required")
	}

	user, err := s.repo.FindByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	now := time.Now().UTC()
	user = User{
		ID:        uuid.NewString(),
		Email:     profile.Email,
		Name:      profile.Name,
		CreatedAt: now,
	}
	w := wallet.Wallet{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Number:    wallet.NewNumber(),
		CreatedAt: now,
	}

	if err := s.repo.CreateWithWallet(ctx, user, w); err != nil {
		return User{}, err
	}
	return user, nil
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
