package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/auth"
	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/identity"
	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/wallet"
)

type authFixture struct {
	app      *fiber.App
	sessions *auth.Service
	keys     *grants.Service
	user     identity.User
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	walletRepo := wallet.NewMemoryRepository()
	users := identity.NewService(identity.NewMemoryRepository(walletRepo))
	wallets := wallet.NewService(walletRepo, ledger.NewInMemory())
	keys := grants.NewService(grants.NewMemoryRepository())
	sessions := auth.NewService(nil, users, "test-secret", time.Hour)

	user, err := users.FindOrCreate(context.Background(), identity.Profile{Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	app := fiber.New()
	protected := app.Group("", Authenticate(sessions, users, wallets, keys))
	protected.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":   PrincipalUser(c).ID,
			"wallet_id": PrincipalWallet(c).ID,
			"delegated": PrincipalScope(c).Delegated(),
		})
	})
	protected.Post("/transfers", RequirePermission(grants.PermTransfer), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	protected.Post("/keys", RequireOwner(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	return authFixture{app: app, sessions: sessions, keys: keys, user: user}
}

func (f authFixture) request(t *testing.T, method, path string, header map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestAuthenticateRejectsMissingAndBadCredentials(t *testing.T) {
	f := newAuthFixture(t)

	if status := f.request(t, fiber.MethodGet, "/whoami", nil); status != fiber.StatusUnauthorized {
		t.Fatalf("no credentials: status %d, want 401", status)
	}
	if status := f.request(t, fiber.MethodGet, "/whoami", map[string]string{
		fiber.HeaderAuthorization: "Bearer not-a-token",
	}); status != fiber.StatusUnauthorized {
		t.Fatalf("bad token: status %d, want 401", status)
	}
	if status := f.request(t, fiber.MethodGet, "/whoami", map[string]string{
		apiKeyHeader: "sk_live_unknown",
	}); status != fiber.StatusUnauthorized {
		t.Fatalf("unknown api key: status %d, want 401", status)
	}
}

func TestAuthenticateOwnerSession(t *testing.T) {
	f := newAuthFixture(t)

	token, err := f.sessions.IssueToken(f.user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	header := map[string]string{fiber.HeaderAuthorization: "Bearer " + token}

	if status := f.request(t, fiber.MethodGet, "/whoami", header); status != fiber.StatusOK {
		t.Fatalf("whoami: status %d, want 200", status)
	}
	// Owner sessions pass every permission gate and may manage keys.
	if status := f.request(t, fiber.MethodPost, "/transfers", header); status != fiber.StatusCreated {
		t.Fatalf("transfer: status %d, want 201", status)
	}
	if status := f.request(t, fiber.MethodPost, "/keys", header); status != fiber.StatusCreated {
		t.Fatalf("keys: status %d, want 201", status)
	}
}

func TestAuthenticateDelegatedKeyScope(t *testing.T) {
	f := newAuthFixture(t)

	issued, err := f.keys.Issue(context.Background(), f.user.ID, "reporting bot", []string{"read"}, "1D")
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	header := map[string]string{apiKeyHeader: issued.Secret}

	if status := f.request(t, fiber.MethodGet, "/whoami", header); status != fiber.StatusOK {
		t.Fatalf("whoami: status %d, want 200", status)
	}
	// A read-only key must not transfer, and no key ever manages keys.
	if status := f.request(t, fiber.MethodPost, "/transfers", header); status != fiber.StatusForbidden {
		t.Fatalf("transfer: status %d, want 403", status)
	}
	if status := f.request(t, fiber.MethodPost, "/keys", header); status != fiber.StatusForbidden {
		t.Fatalf("keys: status %d, want 403", status)
	}
}

func TestAuthenticateRevokedKey(t *testing.T) {
	f := newAuthFixture(t)

	issued, err := f.keys.Issue(context.Background(), f.user.ID, "bot", []string{"read"}, "1D")
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	if err := f.keys.Revoke(context.Background(), f.user.ID, issued.Grant.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	status := f.request(t, fiber.MethodGet, "/whoami", map[string]string{apiKeyHeader: issued.Secret})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("revoked key: status %d, want 401", status)
	}
}
