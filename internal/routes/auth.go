package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/auth"
)

// RegisterAuthRoutes wires the external-login endpoints. The callback sits
// behind a per-IP rate limit.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	r.Get("/auth/google", h.Login)
	r.Get("/auth/google/callback", rateLimiter, h.Callback)
}
