package deposit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/logging"
	"github.com/kobovault/kobovault/internal/wallet"
)

const testSecret = "sk_test_webhook"

func newTestService(t *testing.T) (*Service, ledger.Store, wallet.Wallet) {
	t.Helper()

	store := ledger.NewInMemory()
	repo := wallet.NewMemoryRepository()
	w := wallet.Wallet{ID: "wal-1", UserID: "usr-1", Number: wallet.NewNumber()}
	if err := repo.Create(context.Background(), w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	ledger.SeedWallet(store, w.ID, decimal.Zero)

	wallets := wallet.NewService(repo, store)
	svc := NewService(store, wallets, StaticGateway{}, testSecret, nil, logging.Discard())
	return svc, store, w
}

func signedEvent(t *testing.T, kind EventKind, reference string, amountKobo int64) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"event": string(kind),
		"data": map[string]any{
			"reference": reference,
			"amount":    amountKobo,
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, SignPayload(payload, []byte(testSecret))
}

func TestInitiateCreatesPendingEntry(t *testing.T) {
	svc, store, w := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{
		WalletID: w.ID,
		Email:    "owner@example.com",
		Amount:   decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if res.AuthorizationURL == "" {
		t.Fatal("expected an authorization URL")
	}

	entry, err := store.FindByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("find entry: %v", err)
	}
	if entry.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want pending", entry.Status)
	}

	// A pending deposit must not touch the balance.
	balance, err := store.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestInitiateRejectsInvalidAmount(t *testing.T) {
	svc, _, w := newTestService(t)

	for _, raw := range []string{"0", "-5.00", "1.005"} {
		_, err := svc.Initiate(context.Background(), InitiateInput{
			WalletID: w.ID,
			Email:    "owner@example.com",
			Amount:   decimal.RequireFromString(raw),
		})
		if err != ErrInvalidAmount {
			t.Fatalf("amount %s: err = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestSettleCreditsGatewayAmount(t *testing.T) {
	svc, store, w := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Email: "o@example.com", Amount: decimal.RequireFromString("100.00")})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// The payer actually completed a 150.00 charge; the gateway reports kobo.
	payload, sig := signedEvent(t, EventChargeSuccess, res.Reference, 15000)
	outcome, err := svc.HandleEvent(ctx, payload, sig)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeSettled {
		t.Fatalf("outcome = %s, want settled", outcome)
	}

	balance, err := store.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("balance = %s, want 150.00", balance)
	}

	entry, err := store.FindByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("find entry: %v", err)
	}
	if entry.Status != ledger.StatusSuccess {
		t.Fatalf("status = %s, want success", entry.Status)
	}
	if !entry.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("entry amount = %s, want the gateway-reported 150.00", entry.Amount)
	}
}

func TestRedeliveredSuccessCreditsOnce(t *testing.T) {
	svc, store, w := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Email: "o@example.com", Amount: decimal.RequireFromString("40.00")})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload, sig := signedEvent(t, EventChargeSuccess, res.Reference, 4000)
	for i := 0; i < 3; i++ {
		outcome, err := svc.HandleEvent(ctx, payload, sig)
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		want := OutcomeSettled
		if i > 0 {
			want = OutcomeAlreadySettled
		}
		if outcome != want {
			t.Fatalf("delivery %d: outcome = %s, want %s", i, outcome, want)
		}
	}

	balance, _ := store.Balance(ctx, w.ID)
	if !balance.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("balance = %s, want 40.00 after redeliveries", balance)
	}
}

func TestInvalidSignatureIsDropped(t *testing.T) {
	svc, store, w := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Email: "o@example.com", Amount: decimal.RequireFromString("40.00")})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload, _ := signedEvent(t, EventChargeSuccess, res.Reference, 4000)
	outcome, err := svc.HandleEvent(ctx, payload, "deadbeef")
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome != OutcomeBadSignature {
		t.Fatalf("outcome = %s, want bad_signature", outcome)
	}

	entry, _ := store.FindByReference(ctx, res.Reference)
	if entry.Status != ledger.StatusPending {
		t.Fatalf("status = %s, forged event must not settle", entry.Status)
	}
	balance, _ := store.Balance(ctx, w.ID)
	if !balance.IsZero() {
		t.Fatalf("balance = %s, forged event must not credit", balance)
	}
}

func TestFailureEventsNeverCredit(t *testing.T) {
	for _, kind := range []EventKind{EventChargeFailed, EventChargeAbandoned} {
		t.Run(string(kind), func(t *testing.T) {
			svc, store, w := newTestService(t)
			ctx := context.Background()

			res, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Email: "o@example.com", Amount: decimal.RequireFromString("25.00")})
			if err != nil {
				t.Fatalf("initiate: %v", err)
			}

			payload, sig := signedEvent(t, kind, res.Reference, 2500)
			outcome, err := svc.HandleEvent(ctx, payload, sig)
			if err != nil {
				t.Fatalf("handle event: %v", err)
			}
			want := OutcomeMarkedFailed
			if kind == EventChargeAbandoned {
				want = OutcomeMarkedAbandoned
			}
			if outcome != want {
				t.Fatalf("outcome = %s, want %s", outcome, want)
			}

			balance, _ := store.Balance(ctx, w.ID)
			if !balance.IsZero() {
				t.Fatalf("balance = %s, failure event must not credit", balance)
			}
		})
	}
}

func TestFailureAfterSettlementIsIgnored(t *testing.T) {
	svc, store, w := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Email: "o@example.com", Amount: decimal.RequireFromString("60.00")})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload, sig := signedEvent(t, EventChargeSuccess, res.Reference, 6000)
	if _, err := svc.HandleEvent(ctx, payload, sig); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// A late failure must never displace a success or touch the balance.
	payload, sig = signedEvent(t, EventChargeFailed, res.Reference, 6000)
	outcome, err := svc.HandleEvent(ctx, payload, sig)
	if err != nil {
		t.Fatalf("late failure: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", outcome)
	}

	entry, _ := store.FindByReference(ctx, res.Reference)
	if entry.Status != ledger.StatusSuccess {
		t.Fatalf("status = %s, want success to stick", entry.Status)
	}
	balance, _ := store.Balance(ctx, w.ID)
	if !balance.Equal(decimal.RequireFromString("60.00")) {
		t.Fatalf("balance = %s, want 60.00", balance)
	}
}

func TestUnknownReferenceAndEventAreAcknowledged(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	payload, sig := signedEvent(t, EventChargeSuccess, "dep_missing", 1000)
	outcome, err := svc.HandleEvent(ctx, payload, sig)
	if err != nil {
		t.Fatalf("unknown reference: %v", err)
	}
	if outcome != OutcomeUnknownReference {
		t.Fatalf("outcome = %s, want unknown_reference", outcome)
	}

	payload, sig = signedEvent(t, EventKind("transfer.success"), "dep_missing", 1000)
	outcome, err = svc.HandleEvent(ctx, payload, sig)
	if err != nil {
		t.Fatalf("unknown event: %v", err)
	}
	if outcome != OutcomeUnknownReference {
		t.Fatalf("outcome = %s, want unknown_reference for an unknown ref regardless of kind", outcome)
	}
}

func TestStatusReportsEntryState(t *testing.T) {
	svc, _, w := newTestService(t)
	ctx := context.Background()

	res, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Email: "o@example.com", Amount: decimal.RequireFromString("10.00")})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	status, err := svc.Status(ctx, res.Reference)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != ledger.StatusPending || status.WalletID != w.ID {
		t.Fatalf("status = %+v, want pending for %s", status, w.ID)
	}
}
