package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/middleware"
	"github.com/kobovault/kobovault/internal/money"
	"github.com/kobovault/kobovault/internal/wallet"
)

// RegisterWalletRoutes wires wallet read endpoints.
func RegisterWalletRoutes(r fiber.Router, wallets *wallet.Service, h *wallet.Handler) {
	read := middleware.RequirePermission(grants.PermRead)
	r.Get("/wallet", read, walletMe(wallets))
	r.Get("/wallet/balance", read, h.Balance)
	r.Get("/wallet/transactions", read, h.Transactions)
}

// walletMe returns the current user's profile together with their wallet.
func walletMe(wallets *wallet.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := middleware.PrincipalUser(c)
		w := middleware.PrincipalWallet(c)

		bal, err := wallets.Balance(c.UserContext(), w.ID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user": fiber.Map{
				"id":    user.ID,
				"email": user.Email,
				"name":  user.Name,
			},
			"wallet": fiber.Map{
				"id":         w.ID,
				"number":     w.Number,
				"balance":    money.String(bal.Amount),
				"as_of":      bal.AsOf,
				"created_at": w.CreatedAt,
			},
		})
	}
}
