package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/deposit"
	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/middleware"
)

// RegisterDepositRoutes wires deposit initiation and status endpoints.
func RegisterDepositRoutes(r fiber.Router, h *deposit.Handler) {
	r.Post("/wallet/deposit", middleware.RequirePermission(grants.PermDeposit), h.Initiate)
	r.Get("/wallet/deposit/:reference/status", middleware.RequirePermission(grants.PermRead), h.Status)
}
