package grants

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/identity"
)

// Handler exposes access grant management over HTTP. Every route sits behind
// an owner session; delegated keys cannot manage keys.
type Handler struct {
	service *Service
}

// NewHandler constructs a grants handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type issueRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry"`
}

type rolloverRequest struct {
	Expiry string `json:"expiry"`
}

type grantResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
}

// Issue creates a new delegated key for the authenticated owner. The
// plaintext secret appears in this response and nowhere else.
func (h *Handler) Issue(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(identity.User)

	var req issueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	issued, err := h.service.Issue(c.UserContext(), user.ID, req.Name, req.Permissions, req.Expiry)
	if err != nil {
		if errors.Is(err, ErrKeyCapReached) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"key":   issued.Secret,
		"grant": toResponse(issued.Grant),
	})
}

// Rollover replaces an expired key with a fresh one carrying the same scope.
func (h *Handler) Rollover(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(identity.User)
	grantID := c.Params("id")

	var req rolloverRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	issued, err := h.service.Rollover(c.UserContext(), user.ID, grantID, req.Expiry)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNotExpired):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrKeyCapReached):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"key":   issued.Secret,
		"grant": toResponse(issued.Grant),
	})
}

// Revoke permanently disables a key.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(identity.User)
	grantID := c.Params("id")

	if err := h.service.Revoke(c.UserContext(), user.ID, grantID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// List returns the owner's keys, newest first. Secrets are never included.
func (h *Handler) List(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(identity.User)

	all, err := h.service.List(c.UserContext(), user.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]grantResponse, 0, len(all))
	for _, g := range all {
		out = append(out, toResponse(g))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"grants": out})
}

func toResponse(g AccessGrant) grantResponse {
	perms := make([]string, 0, len(g.Permissions))
	for _, p := range g.Permissions {
		perms = append(perms, string(p))
	}
	return grantResponse{
		ID:          g.ID,
		Name:        g.Name,
		Permissions: perms,
		ExpiresAt:   g.ExpiresAt,
		Revoked:     g.Revoked,
		CreatedAt:   g.CreatedAt,
	}
}
