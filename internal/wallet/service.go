package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kobovault/kobovault/internal/ledger"
)

// Service exposes wallet reads backed by the repository and the ledger.
type Service struct {
	repo  Repository
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(repo Repository, store ledger.Store) *Service {
	return &Service{repo: repo, store: store}
}

// Get retrieves wallet metadata by identifier.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the wallet belonging to the given user.
func (s *Service) GetByOwner(ctx context.Context, userID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, userID)
}

// GetByNumber resolves a wallet by its externally facing number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Wallet, error) {
	return s.repo.GetByNumber(ctx, number)
}

// Balance holds a wallet balance snapshot.
type Balance struct {
	WalletID string
	Amount   decimal.Decimal
	AsOf     time.Time
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.store.Balance(ctx, wallet.ID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: wallet.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// Statement returns the wallet's ledger entries, newest first.
func (s *Service) Statement(ctx context.Context, id string) ([]ledger.Entry, error) {
	wallet, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.ListByWallet(ctx, wallet.ID)
}
