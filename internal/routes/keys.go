package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/middleware"
)

// RegisterKeyRoutes wires API key management. Only owner sessions may manage
// keys; a delegated key can never mint, refresh, or revoke keys.
func RegisterKeyRoutes(r fiber.Router, h *grants.Handler) {
	keys := r.Group("/keys", middleware.RequireOwner())
	keys.Post("", h.Issue)
	keys.Get("", h.List)
	keys.Post("/:id/rollover", h.Rollover)
	keys.Post("/:id/revoke", h.Revoke)
}
