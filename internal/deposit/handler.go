package deposit

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kobovault/kobovault/internal/identity"
	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/money"
	"github.com/kobovault/kobovault/internal/wallet"
)

// signatureHeader carries the gateway's HMAC over the raw webhook payload.
const signatureHeader = "x-paystack-signature"

// Handler exposes deposit initiation, status, and the gateway webhook.
type Handler struct {
	service *Service
}

// NewHandler constructs a deposit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type initiateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Initiate opens a pending deposit for the authenticated wallet and returns
// the gateway authorization URL the payer completes the charge at.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(identity.User)
	w, _ := c.Locals("wallet").(wallet.Wallet)

	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Initiate(c.UserContext(), InitiateInput{
		WalletID: w.ID,
		Email:    user.Email,
		Amount:   req.Amount,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusBadGateway, "payment initiation failed")
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"reference":         result.Reference,
		"authorization_url": result.AuthorizationURL,
	})
}

// Status reports the settlement state of a deposit reference owned by the
// authenticated wallet.
func (h *Handler) Status(c *fiber.Ctx) error {
	w, _ := c.Locals("wallet").(wallet.Wallet)
	reference := c.Params("reference")

	result, err := h.service.Status(c.UserContext(), reference)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		return fiber.NewError(http.StatusNotFound, "deposit not found")
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if result.WalletID != w.ID {
		return fiber.NewError(http.StatusNotFound, "deposit not found")
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"reference": result.Reference,
		"status":    string(result.Status),
		"amount":    money.String(result.Amount),
	})
}

// Webhook ingests gateway settlement events. Every semantically disposed
// event is acknowledged with the gateway's success shape; only a store
// failure surfaces as an error so the gateway redelivers.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get(signatureHeader)

	if _, err := h.service.HandleEvent(c.UserContext(), payload, signature); err != nil {
		return fiber.NewError(http.StatusInternalServerError, "event processing failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": true})
}
