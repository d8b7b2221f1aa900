// Package grants implements scoped delegated credentials (access grants):
// issuance against an active-grant cap, rollover after expiry, revocation,
// and resolution of a presented secret to an authorization scope.
package grants

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrNotFound indicates no grant matches the lookup.
	ErrNotFound = errors.New("access grant not found")

	// ErrKeyCapReached indicates the user already holds the maximum number
	// of active grants.
	ErrKeyCapReached = errors.New("active grant limit reached")

	// ErrNotExpired indicates a rollover was attempted on a still-active grant.
	ErrNotExpired = errors.New("grant is not expired")

	// ErrExpired indicates the resolved grant is past its expiry.
	ErrExpired = errors.New("grant expired")

	// ErrRevoked indicates the resolved grant was revoked.
	ErrRevoked = errors.New("grant revoked")

	// ErrForbidden indicates the grant's scope excludes the required permission.
	ErrForbidden = errors.New("permission not granted")
)

// Permission is one operation class a delegated grant may be scoped to.
type Permission string

const (
	PermDeposit  Permission = "deposit"
	PermTransfer Permission = "transfer"
	PermRead     Permission = "read"
)

// ParsePermissions validates a raw permission list at issuance time.
func ParsePermissions(raw []string) ([]Permission, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one permission is required")
	}
	perms := make([]Permission, 0, len(raw))
	for _, r := range raw {
		switch p := Permission(r); p {
		case PermDeposit, PermTransfer, PermRead:
			perms = append(perms, p)
		default:
			return nil, fmt.Errorf("invalid permission: %s", r)
		}
	}
	return perms, nil
}

// Scope is the caller's authorization: either a full-owner session, which no
// permission check restricts, or a delegated grant gated by its permission set.
type Scope struct {
	delegated bool
	perms     map[Permission]bool
}

// FullOwner returns the unrestricted scope carried by a session credential.
func FullOwner() Scope {
	return Scope{}
}

// Delegated returns a scope restricted to the grant's permission set.
func Delegated(perms []Permission) Scope {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return Scope{delegated: true, perms: set}
}

// Require returns nil when the scope allows the permission and ErrForbidden
// otherwise. Full-owner scopes allow everything.
func (s Scope) Require(p Permission) error {
	if !s.delegated {
		return nil
	}
	if !s.perms[p] {
		return fmt.Errorf("%w: %s", ErrForbidden, p)
	}
	return nil
}

// Delegated reports whether the scope came from a delegated grant.
func (s Scope) Delegated() bool {
	return s.delegated
}

// AccessGrant is a scoped, expiring delegated credential. Only the one-way
// hash of the secret is ever persisted.
type AccessGrant struct {
	ID          string
	UserID      string
	KeyHash     string
	Name        string
	Permissions []Permission
	ExpiresAt   time.Time
	Revoked     bool
	CreatedAt   time.Time
}

// Active reports whether the grant is usable at the given instant.
func (g AccessGrant) Active(now time.Time) bool {
	return !g.Revoked && now.Before(g.ExpiresAt)
}

// Scope returns the delegated scope carried by the grant.
func (g AccessGrant) Scope() Scope {
	return Delegated(g.Permissions)
}

// NewSecret generates a fresh grant secret. It is returned to the caller
// exactly once; only its hash is stored.
func NewSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return "sk_live_" + hex.EncodeToString(buf)
}

// HashSecret derives the stored one-way hash of a grant secret.
func HashSecret(secret string) string {
	sum := sha3.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ParseExpiry converts an expiry code into an absolute expiry timestamp.
func ParseExpiry(code string, now time.Time) (time.Time, error) {
	switch code {
	case "1H":
		return now.Add(time.Hour), nil
	case "1D":
		return now.Add(24 * time.Hour), nil
	case "1M":
		return now.Add(30 * 24 * time.Hour), nil
	case "1Y":
		return now.Add(365 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("invalid expiry %q: use 1H, 1D, 1M, or 1Y", code)
	}
}
