package wallet

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Wallet is the balance-holding account owned by exactly one user. The
// balance itself lives in the ledger store; the model carries metadata only.
type Wallet struct {
	ID        string
	UserID    string
	Number    string // externally facing 13-digit wallet number
	CreatedAt time.Time
}

// NewNumber generates a 13-digit wallet number.
func NewNumber() string {
	// [1000000000000, 9999999999999]
	n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000_000))
	if err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return n.Add(n, big.NewInt(1_000_000_000_000)).String()
}
