package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxActiveGrants caps the number of simultaneously active grants per user.
const maxActiveGrants = 5

// Service manages the grant lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a grant service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Issued pairs a freshly issued grant with its plaintext secret. The secret
// is never recoverable afterwards.
type Issued struct {
	Grant  AccessGrant
	Secret string
}

// Issue creates a new grant for the user, subject to the active-grant cap.
func (s *Service) Issue(ctx context.Context, userID, name string, rawPerms []string, expiryCode string) (Issued, error) {
	if name == "" {
		return Issued{}, fmt.Errorf("grant name is required")
	}
	perms, err := ParsePermissions(rawPerms)
	if err != nil {
		return Issued{}, err
	}
	now := s.now()
	expiresAt, err := ParseExpiry(expiryCode, now)
	if err != nil {
		return Issued{}, err
	}
	return s.create(ctx, userID, name, perms, expiresAt, now)
}

// Rollover replaces an expired grant with a new one carrying the same
// permission scope. A still-active grant cannot be rolled over.
func (s *Service) Rollover(ctx context.Context, userID, grantID, expiryCode string) (Issued, error) {
	old, err := s.repo.Get(ctx, grantID, userID)
	if err != nil {
		return Issued{}, err
	}
	now := s.now()
	if now.Before(old.ExpiresAt) {
		return Issued{}, ErrNotExpired
	}
	expiresAt, err := ParseExpiry(expiryCode, now)
	if err != nil {
		return Issued{}, err
	}
	return s.create(ctx, userID, old.Name, old.Permissions, expiresAt, now)
}

func (s *Service) create(ctx context.Context, userID, name string, perms []Permission, expiresAt, now time.Time) (Issued, error) {
	active, err := s.repo.CountActive(ctx, userID, now)
	if err != nil {
		return Issued{}, err
	}
	if active >= maxActiveGrants {
		return Issued{}, fmt.Errorf("%w: maximum %d", ErrKeyCapReached, maxActiveGrants)
	}

	secret := NewSecret()
	grant := AccessGrant{
		ID:          uuid.NewString(),
		UserID:      userID,
		KeyHash:     HashSecret(secret),
		Name:        name,
		Permissions: perms,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, grant); err != nil {
		return Issued{}, err
	}
	return Issued{Grant: grant, Secret: secret}, nil
}

// Revoke marks a grant unusable. Revocation is permanent.
func (s *Service) Revoke(ctx context.Context, userID, grantID string) error {
	return s.repo.SetRevoked(ctx, grantID, userID)
}

// List returns the user's grants, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]AccessGrant, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Resolve maps a presented secret to its grant, rejecting revoked and
// expired grants.
func (s *Service) Resolve(ctx context.Context, secret string) (AccessGrant, error) {
	grant, err := s.repo.FindByHash(ctx, HashSecret(secret))
	if err != nil {
		return AccessGrant{}, err
	}
	if grant.Revoked {
		return AccessGrant{}, ErrRevoked
	}
	if !s.now().Before(grant.ExpiresAt) {
		return AccessGrant{}, ErrExpired
	}
	return grant, nil
}
