package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/middleware"
	"github.com/kobovault/kobovault/internal/payments"
)

// RegisterPaymentRoutes wires the wallet-to-wallet transfer endpoint.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/wallet/transfer", middleware.RequirePermission(grants.PermTransfer), h.Transfer)
}
