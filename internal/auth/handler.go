package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the external-login HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an auth handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Login redirects the browser to the identity provider's consent screen.
func (h *Handler) Login(c *fiber.Ctx) error {
	return c.Redirect(h.service.LoginURL(), http.StatusTemporaryRedirect)
}

// Callback completes the provider login: the authorization code is exchanged
// for a profile, the user and wallet are provisioned on first login, and a
// session token is returned.
func (h *Handler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return fiber.NewError(http.StatusBadRequest, "missing authorization code")
	}

	token, user, err := h.service.HandleCallback(c.UserContext(), code)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "login failed")
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}
