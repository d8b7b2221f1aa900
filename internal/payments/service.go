// Package payments implements the transfer engine: atomic two-sided
// balance moves between wallets.
package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/money"
	"github.com/kobovault/kobovault/internal/notification"
	"github.com/kobovault/kobovault/internal/wallet"
)

var (
	// ErrInvalidAmount indicates a transfer amount that is not a positive
	// two-digit-exact value.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrRecipientNotFound indicates no wallet carries the given number.
	ErrRecipientNotFound = errors.New("recipient wallet not found")

	// ErrSelfTransfer indicates sender and recipient are the same wallet.
	ErrSelfTransfer = errors.New("cannot transfer to own wallet")

	// ErrNotOwner indicates the caller does not own the source wallet.
	ErrNotOwner = errors.New("not owner of source wallet")
)

// Service orchestrates wallet-to-wallet transfers over the ledger store.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	notifier notification.Notifier
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, wallets *wallet.Service, notifier notification.Notifier) *Service {
	return &Service{store: store, wallets: wallets, notifier: notifier}
}

// TransferInput captures the data needed to move funds between wallets.
// The recipient is addressed by wallet number, never by internal ID.
type TransferInput struct {
	SenderWalletID  string
	RecipientNumber string
	Amount          decimal.Decimal
	RequestorUserID string
}

// TransferResult describes the ledger outcome of a committed transfer.
type TransferResult struct {
	DebitEntryID  string
	CreditEntryID string
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
	CompletedAt   time.Time
}

// Transfer debits the sender and credits the recipient in one atomic unit.
// Either both legs commit or neither does; total balance across the two
// wallets is invariant in both cases.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if !money.IsPositive(input.Amount) || !money.IsValid(input.Amount) {
		return TransferResult{}, ErrInvalidAmount
	}

	sender, err := s.wallets.Get(ctx, input.SenderWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	if input.RequestorUserID != "" && sender.UserID != input.RequestorUserID {
		return TransferResult{}, ErrNotOwner
	}

	recipient, err := s.wallets.GetByNumber(ctx, input.RecipientNumber)
	if errors.Is(err, wallet.ErrNotFound) {
		return TransferResult{}, ErrRecipientNotFound
	}
	if err != nil {
		return TransferResult{}, err
	}
	if recipient.ID == sender.ID {
		return TransferResult{}, ErrSelfTransfer
	}

	res, err := s.store.Transfer(ctx, ledger.TransferInput{
		FromWalletID: sender.ID,
		ToWalletID:   recipient.ID,
		Amount:       input.Amount,
		Reference:    newReference(),
	})
	if err != nil {
		return TransferResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.UserID,
			Body:        fmt.Sprintf("You received %s from wallet %s", money.String(input.Amount), sender.Number),
		})
	}

	return TransferResult{
		DebitEntryID:  res.DebitEntryID,
		CreditEntryID: res.CreditEntryID,
		FromBalance:   res.FromBalance,
		ToBalance:     res.ToBalance,
		CompletedAt:   time.Now().UTC(),
	}, nil
}

func newReference() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return "tfr_" + hex.EncodeToString(buf)
}
