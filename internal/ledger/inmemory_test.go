package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestInMemoryStore_TransferConservesTotal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("100.00"))
	SeedWallet(s, "wallet-b", amt("0.00"))

	res, err := s.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: amt("30.00"), Reference: "tfr_1"})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !res.FromBalance.Equal(amt("70.00")) {
		t.Fatalf("expected from balance 70.00, got %s", res.FromBalance)
	}
	if !res.ToBalance.Equal(amt("30.00")) {
		t.Fatalf("expected to balance 30.00, got %s", res.ToBalance)
	}
	if total := res.FromBalance.Add(res.ToBalance); !total.Equal(amt("100.00")) {
		t.Fatalf("total not conserved: %s", total)
	}

	aEntries, _ := s.ListByWallet(ctx, "wallet-a")
	bEntries, _ := s.ListByWallet(ctx, "wallet-b")
	if len(aEntries) != 1 || len(bEntries) != 1 {
		t.Fatalf("expected one entry per wallet, got %d and %d", len(aEntries), len(bEntries))
	}
	if !aEntries[0].Amount.Equal(amt("-30.00")) || aEntries[0].Kind != KindTransferDebit {
		t.Fatalf("unexpected debit leg: %+v", aEntries[0])
	}
	if aEntries[0].CounterpartyWalletID != "wallet-b" {
		t.Fatalf("debit leg missing counterparty: %+v", aEntries[0])
	}
	if !bEntries[0].Amount.Equal(amt("30.00")) || bEntries[0].Kind != KindTransferCredit {
		t.Fatalf("unexpected credit leg: %+v", bEntries[0])
	}
}

func TestInMemoryStore_TransferInsufficientFundsLeavesBalancesUnchanged(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("10.00"))
	SeedWallet(s, "wallet-b", amt("5.00"))

	_, err := s.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: amt("10.01")})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	a, _ := s.Balance(ctx, "wallet-a")
	b, _ := s.Balance(ctx, "wallet-b")
	if !a.Equal(amt("10.00")) || !b.Equal(amt("5.00")) {
		t.Fatalf("balances changed after failed transfer: %s / %s", a, b)
	}
	aEntries, _ := s.ListByWallet(ctx, "wallet-a")
	if len(aEntries) != 0 {
		t.Fatalf("expected no entries after failed transfer, got %d", len(aEntries))
	}
}

func TestInMemoryStore_DuplicateReference(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("50.00"))

	if _, err := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("20.00"), Status: StatusPending, Reference: "dep_1"}); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if _, err := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("20.00"), Status: StatusPending, Reference: "dep_1"}); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
}

func TestInMemoryStore_SettleOnlyOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("100.00"))

	entry, err := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("50.00"), Status: StatusPending, Reference: "dep_1"})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	res, err := s.Settle(ctx, entry.ID, amt("50.00"))
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if !res.NewBalance.Equal(amt("150.00")) {
		t.Fatalf("expected balance 150.00, got %s", res.NewBalance)
	}

	if _, err := s.Settle(ctx, entry.ID, amt("50.00")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second settle, got %v", err)
	}
	balance, _ := s.Balance(ctx, "wallet-a")
	if !balance.Equal(amt("150.00")) {
		t.Fatalf("balance mutated by duplicate settle: %s", balance)
	}
}

func TestInMemoryStore_TransitionGuard(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("0.00"))

	entry, _ := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("10.00"), Status: StatusPending, Reference: "dep_2"})

	if err := s.Transition(ctx, entry.ID, StatusPending, StatusFailed); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if err := s.Transition(ctx, entry.ID, StatusPending, StatusSuccess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := s.Transition(ctx, "missing", StatusPending, StatusFailed); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
}

func TestInMemoryStore_AdjustBelowZero(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("5.00"))

	if _, err := s.Adjust(ctx, "wallet-a", amt("-5.01")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	balance, err := s.Adjust(ctx, "wallet-a", amt("-5.00"))
	if err != nil {
		t.Fatalf("adjust to zero failed: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", balance)
	}
	if _, err := s.Adjust(ctx, "missing", amt("1.00")); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentTransfersConserveTotal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("1000.00"))
	SeedWallet(s, "wallet-b", amt("0.00"))

	const workers = 10

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := fmt.Sprintf("tfr_%d", i)
			if _, err := s.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: amt("5.00"), Reference: ref}); err != nil {
				t.Errorf("transfer %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	a, _ := s.Balance(ctx, "wallet-a")
	b, _ := s.Balance(ctx, "wallet-b")
	if total := a.Add(b); !total.Equal(amt("1000.00")) {
		t.Fatalf("total not conserved after concurrency: %s", total)
	}
	if !b.Equal(amt("50.00")) {
		t.Fatalf("expected wallet-b at 50.00, got %s", b)
	}
}

func TestInMemoryStore_ConcurrentSettleCreditsOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("100.00"))

	entry, _ := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("50.00"), Status: StatusPending, Reference: "dep_1"})

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Settle(ctx, entry.ID, amt("50.00"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected settle error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful settle, got %d", succeeded)
	}
	balance, _ := s.Balance(ctx, "wallet-a")
	if !balance.Equal(amt("150.00")) {
		t.Fatalf("expected 150.00 after concurrent settles, got %s", balance)
	}
}

// Balance must always equal the sum of successful entry amounts.
func TestInMemoryStore_BalanceMatchesEntrySum(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	SeedWallet(s, "wallet-a", amt("0.00"))
	SeedWallet(s, "wallet-b", amt("0.00"))

	dep, _ := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("80.00"), Status: StatusPending, Reference: "dep_1"})
	if _, err := s.Settle(ctx, dep.ID, amt("80.00")); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if _, err := s.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: amt("25.50"), Reference: "tfr_1"}); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	// Pending entries never count toward the balance.
	if _, err := s.Append(ctx, Entry{WalletID: "wallet-a", Kind: KindDeposit, Amount: amt("999.00"), Status: StatusPending, Reference: "dep_2"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	for _, walletID := range []string{"wallet-a", "wallet-b"} {
		entries, _ := s.ListByWallet(ctx, walletID)
		sum := decimal.Zero
		for _, e := range entries {
			if e.Status == StatusSuccess {
				sum = sum.Add(e.Amount)
			}
		}
		balance, _ := s.Balance(ctx, walletID)
		if !balance.Equal(sum) {
			t.Fatalf("wallet %s: balance %s != entry sum %s", walletID, balance, sum)
		}
	}
}
