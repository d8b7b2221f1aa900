package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/wallet"
)

func newTestService(t *testing.T) (*Service, ledger.Store, wallet.Wallet, wallet.Wallet) {
	t.Helper()

	store := ledger.NewInMemory()
	repo := wallet.NewMemoryRepository()
	ctx := context.Background()

	sender := wallet.Wallet{ID: "wal-sender", UserID: "usr-sender", Number: "1000000000001"}
	recipient := wallet.Wallet{ID: "wal-recipient", UserID: "usr-recipient", Number: "1000000000002"}
	for _, w := range []wallet.Wallet{sender, recipient} {
		if err := repo.Create(ctx, w); err != nil {
			t.Fatalf("create wallet: %v", err)
		}
	}
	ledger.SeedWallet(store, sender.ID, decimal.RequireFromString("100.00"))
	ledger.SeedWallet(store, recipient.ID, decimal.Zero)

	svc := NewService(store, wallet.NewService(repo, store), nil)
	return svc, store, sender, recipient
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	svc, store, sender, recipient := newTestService(t)
	ctx := context.Background()

	res, err := svc.Transfer(ctx, TransferInput{
		SenderWalletID:  sender.ID,
		RecipientNumber: recipient.Number,
		Amount:          decimal.RequireFromString("70.00"),
		RequestorUserID: sender.UserID,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.FromBalance.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("sender balance = %s, want 30.00", res.FromBalance)
	}
	if !res.ToBalance.Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("recipient balance = %s, want 70.00", res.ToBalance)
	}

	// Both legs recorded, opposite signs, same reference root.
	debit, err := store.ListByWallet(ctx, sender.ID)
	if err != nil || len(debit) != 1 {
		t.Fatalf("sender entries = %d (%v), want 1", len(debit), err)
	}
	credit, err := store.ListByWallet(ctx, recipient.ID)
	if err != nil || len(credit) != 1 {
		t.Fatalf("recipient entries = %d (%v), want 1", len(credit), err)
	}
	if !debit[0].Amount.Neg().Equal(credit[0].Amount) {
		t.Fatalf("legs are not mirrored: debit %s, credit %s", debit[0].Amount, credit[0].Amount)
	}
	if debit[0].Kind != ledger.KindTransferDebit || credit[0].Kind != ledger.KindTransferCredit {
		t.Fatalf("kinds = %s/%s", debit[0].Kind, credit[0].Kind)
	}
}

func TestTransferInsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	svc, store, sender, recipient := newTestService(t)
	ctx := context.Background()

	_, err := svc.Transfer(ctx, TransferInput{
		SenderWalletID:  sender.ID,
		RecipientNumber: recipient.Number,
		Amount:          decimal.RequireFromString("100.01"),
		RequestorUserID: sender.UserID,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	from, _ := store.Balance(ctx, sender.ID)
	to, _ := store.Balance(ctx, recipient.ID)
	if !from.Equal(decimal.RequireFromString("100.00")) || !to.IsZero() {
		t.Fatalf("balances moved on a failed transfer: %s / %s", from, to)
	}
	entries, _ := store.ListByWallet(ctx, sender.ID)
	if len(entries) != 0 {
		t.Fatalf("failed transfer left %d entries", len(entries))
	}
}

func TestTransferRejectsInvalidAmount(t *testing.T) {
	svc, _, sender, recipient := newTestService(t)

	for _, raw := range []string{"0", "-10.00", "9.999"} {
		_, err := svc.Transfer(context.Background(), TransferInput{
			SenderWalletID:  sender.ID,
			RecipientNumber: recipient.Number,
			Amount:          decimal.RequireFromString(raw),
			RequestorUserID: sender.UserID,
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: err = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestTransferRejectsUnknownRecipient(t *testing.T) {
	svc, _, sender, _ := newTestService(t)

	_, err := svc.Transfer(context.Background(), TransferInput{
		SenderWalletID:  sender.ID,
		RecipientNumber: "9999999999999",
		Amount:          decimal.RequireFromString("10.00"),
		RequestorUserID: sender.UserID,
	})
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Fatalf("err = %v, want ErrRecipientNotFound", err)
	}
}

func TestTransferRejectsSelfTransfer(t *testing.T) {
	svc, _, sender, _ := newTestService(t)

	_, err := svc.Transfer(context.Background(), TransferInput{
		SenderWalletID:  sender.ID,
		RecipientNumber: sender.Number,
		Amount:          decimal.RequireFromString("10.00"),
		RequestorUserID: sender.UserID,
	})
	if !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("err = %v, want ErrSelfTransfer", err)
	}
}

func TestTransferRejectsForeignWallet(t *testing.T) {
	svc, _, sender, recipient := newTestService(t)

	_, err := svc.Transfer(context.Background(), TransferInput{
		SenderWalletID:  sender.ID,
		RecipientNumber: recipient.Number,
		Amount:          decimal.RequireFromString("10.00"),
		RequestorUserID: recipient.UserID,
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}
