package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/auth"
	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/identity"
	"github.com/kobovault/kobovault/internal/wallet"
)

const (
	apiKeyHeader = "X-API-Key"

	localsUser   = "user"
	localsWallet = "wallet"
	localsScope  = "scope"
)

// Authenticate resolves the caller's credential to a principal. A Bearer
// session token yields the unrestricted owner scope; an X-API-Key secret
// yields the delegated scope carried by the matching access grant. The
// resolved user, wallet, and scope are stored in request locals.
func Authenticate(sessions *auth.Service, users *identity.Service, wallets *wallet.Service, keys *grants.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token := strings.TrimSpace(authz[len("Bearer "):])
			user, err := sessions.VerifyToken(c.UserContext(), token)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid session token")
			}
			return attach(c, wallets, user, grants.FullOwner())
		}

		if secret := strings.TrimSpace(c.Get(apiKeyHeader)); secret != "" {
			grant, err := keys.Resolve(c.UserContext(), secret)
			if err != nil {
				switch {
				case errors.Is(err, grants.ErrExpired):
					return fiber.NewError(http.StatusUnauthorized, "api key expired")
				case errors.Is(err, grants.ErrRevoked):
					return fiber.NewError(http.StatusUnauthorized, "api key revoked")
				case errors.Is(err, grants.ErrNotFound):
					return fiber.NewError(http.StatusUnauthorized, "invalid api key")
				default:
					return fiber.NewError(http.StatusInternalServerError, "credential lookup failed")
				}
			}
			user, err := users.Get(c.UserContext(), grant.UserID)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid api key")
			}
			return attach(c, wallets, user, grant.Scope())
		}

		return fiber.NewError(http.StatusUnauthorized, "missing credentials")
	}
}

func attach(c *fiber.Ctx, wallets *wallet.Service, user identity.User, scope grants.Scope) error {
	w, err := wallets.GetByOwner(c.UserContext(), user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "wallet lookup failed")
	}
	c.Locals(localsUser, user)
	c.Locals(localsWallet, w)
	c.Locals(localsScope, scope)
	return c.Next()
}

// RequirePermission gates a route on one permission. Owner sessions pass
// unconditionally; delegated scopes must carry the permission.
func RequirePermission(p grants.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := PrincipalScope(c).Require(p); err != nil {
			return fiber.NewError(http.StatusForbidden, err.Error())
		}
		return c.Next()
	}
}

// RequireOwner rejects delegated credentials outright. Key management only
// ever accepts an owner session.
func RequireOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if PrincipalScope(c).Delegated() {
			return fiber.NewError(http.StatusForbidden, "owner session required")
		}
		return c.Next()
	}
}

// PrincipalUser returns the authenticated user set by Authenticate.
func PrincipalUser(c *fiber.Ctx) identity.User {
	user, _ := c.Locals(localsUser).(identity.User)
	return user
}

// PrincipalWallet returns the authenticated user's wallet set by Authenticate.
func PrincipalWallet(c *fiber.Ctx) wallet.Wallet {
	w, _ := c.Locals(localsWallet).(wallet.Wallet)
	return w
}

// PrincipalScope returns the caller's authorization scope set by Authenticate.
func PrincipalScope(c *fiber.Ctx) grants.Scope {
	scope, _ := c.Locals(localsScope).(grants.Scope)
	return scope
}
