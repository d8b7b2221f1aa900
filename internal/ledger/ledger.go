// Package ledger implements the balance store and the append-only
// transaction ledger backing every wallet. All balance-affecting writes go
// through a Store implementation; composite operations (Transfer, Settle)
// execute as a single atomic unit against the backend.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit would drive a wallet balance
	// below zero. The check and the mutation are one atomic unit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateReference indicates the entry reference is already recorded.
	// The reference uniqueness constraint is the system's idempotency boundary.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrInvalidTransition indicates the entry was not in the expected status
	// at the moment of the atomic update.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEntryNotFound indicates no ledger entry matches the lookup.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrWalletNotFound indicates the wallet has no balance row.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindDeposit        Kind = "deposit"
	KindTransferDebit  Kind = "transfer_debit"
	KindTransferCredit Kind = "transfer_credit"
)

// Status is the settlement state of a ledger entry. Transitions are
// monotone: once terminal, an entry never changes again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Entry is a single balance-affecting record. Transfer legs carry a signed
// amount: negative on the sender side, positive on the recipient side.
type Entry struct {
	ID                   string
	WalletID             string
	Kind                 Kind
	Amount               decimal.Decimal
	Status               Status
	Reference            string // unique when present
	CounterpartyWalletID string
	Metadata             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TransferInput describes an atomic two-sided balance move.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Reference    string
}

// TransferResult captures the outcome of a committed transfer.
type TransferResult struct {
	DebitEntryID  string
	CreditEntryID string
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
}

// SettleResult captures the outcome of a deposit settlement.
type SettleResult struct {
	WalletID   string
	NewBalance decimal.Decimal
}

// Store is the contract implemented by ledger backends (Postgres in
// production, in-memory for tests).
type Store interface {
	// Adjust applies delta to the wallet balance as an atomic
	// read-modify-write and returns the new balance. A zero delta is a
	// no-op read.
	Adjust(ctx context.Context, walletID string, delta decimal.Decimal) (decimal.Decimal, error)

	// Balance returns the current persisted balance.
	Balance(ctx context.Context, walletID string) (decimal.Decimal, error)

	// Append inserts a new entry. A populated reference that already exists
	// fails with ErrDuplicateReference.
	Append(ctx context.Context, entry Entry) (Entry, error)

	// FindByReference resolves an entry by its idempotency reference.
	FindByReference(ctx context.Context, reference string) (Entry, error)

	// Transition moves an entry from one status to another, failing with
	// ErrInvalidTransition unless the current status equals from at the
	// moment of the update.
	Transition(ctx context.Context, entryID string, from, to Status) error

	// ListByWallet returns the wallet's entries, newest first.
	ListByWallet(ctx context.Context, walletID string) ([]Entry, error)

	// Transfer debits the sender, credits the recipient and appends both
	// transfer legs in one atomic unit. No partial debit/credit is ever
	// observable.
	Transfer(ctx context.Context, input TransferInput) (TransferResult, error)

	// Settle transitions a pending entry to success and credits its wallet
	// with the settled amount in one atomic unit. The recorded entry amount
	// is updated to the settled amount so the entry trail stays consistent
	// with the balance. If the entry is not pending the credit is skipped
	// and ErrInvalidTransition is returned.
	Settle(ctx context.Context, entryID string, amount decimal.Decimal) (SettleResult, error)
}
