package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryStore struct {
	mu          sync.Mutex
	balances    map[string]decimal.Decimal
	entries     map[string]*Entry
	byReference map[string]string // reference -> entry ID
	order       []string          // entry IDs in append order
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests. Semantics match the Postgres implementation.
func NewInMemory() Store {
	return &inMemoryStore{
		balances:    make(map[string]decimal.Decimal),
		entries:     make(map[string]*Entry),
		byReference: make(map[string]string),
	}
}

func (s *inMemoryStore) Adjust(_ context.Context, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(walletID, delta)
}

func (s *inMemoryStore) adjustLocked(walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, ok := s.balances[walletID]
	if !ok {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	next := balance.Add(delta)
	if next.IsNegative() {
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	s.balances[walletID] = next
	return next, nil
}

func (s *inMemoryStore) Balance(_ context.Context, walletID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[walletID]
	if !ok {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	return balance, nil
}

func (s *inMemoryStore) Append(_ context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(entry)
}

func (s *inMemoryStore) appendLocked(entry Entry) (Entry, error) {
	if entry.Reference != "" {
		if _, exists := s.byReference[entry.Reference]; exists {
			return Entry{}, ErrDuplicateReference
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	stored := entry
	s.entries[entry.ID] = &stored
	s.order = append(s.order, entry.ID)
	if entry.Reference != "" {
		s.byReference[entry.Reference] = entry.ID
	}
	return entry, nil
}

func (s *inMemoryStore) FindByReference(_ context.Context, reference string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byReference[reference]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return *s.entries[id], nil
}

func (s *inMemoryStore) Transition(_ context.Context, entryID string, from, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	if entry.Status != from {
		return ErrInvalidTransition
	}
	entry.Status = to
	entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *inMemoryStore) ListByWallet(_ context.Context, walletID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []Entry
	for i := len(s.order) - 1; i >= 0; i-- {
		entry := s.entries[s.order[i]]
		if entry.WalletID == walletID {
			entries = append(entries, *entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (s *inMemoryStore) Transfer(_ context.Context, input TransferInput) (TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromBalance, ok := s.balances[input.FromWalletID]
	if !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if _, ok := s.balances[input.ToWalletID]; !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	if fromBalance.LessThan(input.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}
	if input.Reference != "" {
		if _, exists := s.byReference[input.Reference]; exists {
			return TransferResult{}, ErrDuplicateReference
		}
	}

	s.balances[input.FromWalletID] = fromBalance.Sub(input.Amount)
	s.balances[input.ToWalletID] = s.balances[input.ToWalletID].Add(input.Amount)

	debit, _ := s.appendLocked(Entry{
		WalletID:             input.FromWalletID,
		Kind:                 KindTransferDebit,
		Amount:               input.Amount.Neg(),
		Status:               StatusSuccess,
		Reference:            input.Reference,
		CounterpartyWalletID: input.ToWalletID,
	})
	credit, _ := s.appendLocked(Entry{
		WalletID:             input.ToWalletID,
		Kind:                 KindTransferCredit,
		Amount:               input.Amount,
		Status:               StatusSuccess,
		Reference:            creditReference(input.Reference),
		CounterpartyWalletID: input.FromWalletID,
	})

	return TransferResult{
		DebitEntryID:  debit.ID,
		CreditEntryID: credit.ID,
		FromBalance:   s.balances[input.FromWalletID],
		ToBalance:     s.balances[input.ToWalletID],
	}, nil
}

func (s *inMemoryStore) Settle(_ context.Context, entryID string, amount decimal.Decimal) (SettleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return SettleResult{}, ErrEntryNotFound
	}
	if entry.Status != StatusPending {
		return SettleResult{}, ErrInvalidTransition
	}

	balance, err := s.adjustLocked(entry.WalletID, amount)
	if err != nil {
		return SettleResult{}, err
	}
	entry.Status = StatusSuccess
	entry.Amount = amount
	entry.UpdatedAt = time.Now().UTC()

	return SettleResult{WalletID: entry.WalletID, NewBalance: balance}, nil
}
