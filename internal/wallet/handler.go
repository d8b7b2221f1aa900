package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/money"
)

// Handler exposes wallet HTTP endpoints for the authenticated owner.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type entryResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance returns the authenticated wallet's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	w, _ := c.Locals("wallet").(Wallet)

	bal, err := h.service.Balance(c.UserContext(), w.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": w.ID,
		"number":    w.Number,
		"balance":   money.String(bal.Amount),
		"as_of":     bal.AsOf,
	})
}

// Transactions returns the authenticated wallet's ledger entries, newest
// first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	w, _ := c.Locals("wallet").(Wallet)

	entries, err := h.service.Statement(c.UserContext(), w.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Amount:    money.String(e.Amount),
		Status:    string(e.Status),
		Reference: e.Reference,
		CreatedAt: e.CreatedAt,
	}
}
