package auth

import (
	"context"
	"errors"
	"time"

	"github.com/kobovault/kobovault/internal/identity"
)

// ErrUnauthenticated indicates no presented credential could be validated.
var ErrUnauthenticated = errors.New("unauthenticated")

// Service handles external login and session token issuance.
type Service struct {
	provider Provider
	users    *identity.Service
	secret   []byte
	tokenTTL time.Duration
}

// NewService builds an auth service.
func NewService(provider Provider, users *identity.Service, secret string, tokenTTL time.Duration) *Service {
	return &Service{provider: provider, users: users, secret: []byte(secret), tokenTTL: tokenTTL}
}

// LoginURL is the provider consent URL for starting a login.
func (s *Service) LoginURL() string {
	return s.provider.AuthURL()
}

// HandleCallback completes the external login: the code is exchanged for a
// profile, the user is created or found (wallet provisioned on first login),
// and a session token is issued.
func (s *Service) HandleCallback(ctx context.Context, code string) (string, identity.User, error) {
	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", identity.User{}, err
	}
	user, err := s.users.FindOrCreate(ctx, profile)
	if err != nil {
		return "", identity.User{}, err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return "", identity.User{}, err
	}
	return token, user, nil
}

// IssueToken signs a session token naming the user.
func (s *Service) IssueToken(user identity.User) (string, error) {
	now := time.Now()
	claims := map[string]any{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}
	return SignHS256(claims, s.secret)
}

// VerifyToken validates a session token and returns the user it names.
func (s *Service) VerifyToken(ctx context.Context, token string) (identity.User, error) {
	claims, err := ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return identity.User{}, ErrUnauthenticated
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return identity.User{}, ErrUnauthenticated
	}
	user, err := s.users.Get(ctx, sub)
	if err != nil {
		return identity.User{}, ErrUnauthenticated
	}
	return user, nil
}
