package payments

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

// Handler exposes the transfer HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	RecipientNumber string          `json:"recipient_number"`
	Amount          decimal.Decimal `json:"amount"`
}

// Transfer moves funds from the authenticated wallet to the recipient wallet
// addressed by its number.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(identity.User)
	w, _ := c.Locals("wallet").(wallet.Wallet)

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Transfer(c.UserContext(), TransferInput{
		SenderWalletID:  w.ID,
		RecipientNumber: req.RecipientNumber,
		Amount:          req.Amount,
		RequestorUserID: user.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTransfer):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRecipientNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"debit_entry_id":  result.DebitEntryID,
		"credit_entry_id": result.CreditEntryID,
		"balance":         money.String(result.FromBalance),
		"completed_at":    result.CompletedAt,
	})
}
