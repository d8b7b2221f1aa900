package identity

import "time"

// User represents a registered wallet owner. Users are created on first
// successful external login and never deleted.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Profile is the identity payload returned by the external login provider.
type Profile struct {
	Email      string
	Name       string
	ExternalID string
}
