package ledger

import "github.com/shopspring/decimal"

// SeedWallet is a test helper that registers a wallet with an opening
// balance when using the in-memory store.
func SeedWallet(s Store, walletID string, balance decimal.Decimal) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[walletID] = balance
	}
}
