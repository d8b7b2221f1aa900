package deposit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/money"
	"github.com/kobovault/kobovault/internal/notification"
	"github.com/kobovault/kobovault/internal/wallet"
)

// ErrInvalidAmount indicates a deposit amount that is not a positive
// two-digit-exact value.
var ErrInvalidAmount = errors.New("invalid amount")

// Outcome classifies how the reconciler disposed of an inbound event.
// Every outcome except an infrastructure failure is acknowledged to the
// gateway with its success shape; these values exist for logging and tests.
type Outcome string

const (
	OutcomeSettled          Outcome = "settled"
	OutcomeMarkedFailed     Outcome = "marked_failed"
	OutcomeMarkedAbandoned  Outcome = "marked_abandoned"
	OutcomeBadSignature     Outcome = "bad_signature"
	OutcomeUnknownReference Outcome = "unknown_reference"
	OutcomeAlreadySettled   Outcome = "already_settled"
	OutcomeUnknownEvent     Outcome = "unknown_event"
	OutcomeIgnored          Outcome = "ignored"
)

// Service drives deposit initiation and the settlement state machine fed by
// gateway events.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	gateway  Gateway
	secret   []byte
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a deposit service.
func NewService(store ledger.Store, wallets *wallet.Service, gateway Gateway, webhookSecret string, notifier notification.Notifier, logger *slog.Logger) *Service {
	if gateway == nil {
		gateway = StaticGateway{}
	}
	return &Service{
		store:    store,
		wallets:  wallets,
		gateway:  gateway,
		secret:   []byte(webhookSecret),
		notifier: notifier,
		logger:   logger,
	}
}

// InitiateInput captures a deposit request from an authenticated caller.
type InitiateInput struct {
	WalletID string
	Email    string
	Amount   decimal.Decimal
}

// InitiateResult returns the deposit reference and the gateway handle the
// payer completes the charge at.
type InitiateResult struct {
	Reference        string
	AuthorizationURL string
	EntryID          string
}

// Initiate creates a pending deposit entry and obtains a payment handle
// from the gateway tagged with the same reference. If the gateway refuses,
// the pending entry is marked failed.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (InitiateResult, error) {
	if !money.IsPositive(input.Amount) || !money.IsValid(input.Amount) {
		return InitiateResult{}, ErrInvalidAmount
	}

	reference := newReference()
	entry, err := s.store.Append(ctx, ledger.Entry{
		WalletID:  input.WalletID,
		Kind:      ledger.KindDeposit,
		Amount:    input.Amount,
		Status:    ledger.StatusPending,
		Reference: reference,
	})
	if err != nil {
		return InitiateResult{}, err
	}

	handle, err := s.gateway.Initialize(ctx, InitializeInput{
		Reference:  reference,
		AmountKobo: money.ToKobo(input.Amount),
		Email:      input.Email,
	})
	if err != nil {
		if terr := s.store.Transition(ctx, entry.ID, ledger.StatusPending, ledger.StatusFailed); terr != nil {
			s.logger.Error("mark failed after gateway refusal", "reference", reference, "error", terr)
		}
		return InitiateResult{}, fmt.Errorf("initiate payment: %w", err)
	}

	return InitiateResult{
		Reference:        reference,
		AuthorizationURL: handle.AuthorizationURL,
		EntryID:          entry.ID,
	}, nil
}

// StatusResult is a deposit status snapshot for the reference.
type StatusResult struct {
	Reference string
	WalletID  string
	Status    ledger.Status
	Amount    decimal.Decimal
}

// Status reports the settlement state of a deposit reference.
func (s *Service) Status(ctx context.Context, reference string) (StatusResult, error) {
	entry, err := s.store.FindByReference(ctx, reference)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{Reference: entry.Reference, WalletID: entry.WalletID, Status: entry.Status, Amount: entry.Amount}, nil
}

// HandleEvent processes one inbound gateway event. A nil error means the
// event was disposed of and must be acknowledged with the gateway's success
// shape regardless of outcome — the gateway treats anything else as "retry".
// A non-nil error means the store failed mid-unit; nothing was partially
// applied and the gateway's redelivery will be absorbed by the transition
// guard, so surfacing it is safe and lets the gateway drive the retry.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if !VerifySignature(payload, signature, s.secret) {
		s.logger.Warn("gateway event rejected", "reason", "invalid signature")
		return OutcomeBadSignature, nil
	}

	kind := EventKind(gjson.GetBytes(payload, "event").String())
	reference := gjson.GetBytes(payload, "data.reference").String()
	amountKobo := gjson.GetBytes(payload, "data.amount").Int()

	if reference == "" {
		s.logger.Warn("gateway event rejected", "reason", "missing reference", "event", string(kind))
		return OutcomeUnknownReference, nil
	}

	entry, err := s.store.FindByReference(ctx, reference)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		// Not a deposit this system initiated. Acknowledge and drop.
		s.logger.Info("gateway event for unknown reference", "reference", reference, "event", string(kind))
		return OutcomeUnknownReference, nil
	}
	if err != nil {
		return "", err
	}

	switch kind {
	case EventChargeSuccess:
		return s.applySuccess(ctx, entry, money.FromKobo(amountKobo))
	case EventChargeFailed, EventChargeAbandoned:
		return s.applyFailure(ctx, entry, kind)
	default:
		s.logger.Info("unhandled gateway event", "event", string(kind), "reference", reference)
		return OutcomeUnknownEvent, nil
	}
}

func (s *Service) applySuccess(ctx context.Context, entry ledger.Entry, amount decimal.Decimal) (Outcome, error) {
	if entry.Status == ledger.StatusSuccess {
		// At-least-once delivery: the first copy already credited the wallet.
		s.logger.Info("duplicate settlement event", "reference", entry.Reference)
		return OutcomeAlreadySettled, nil
	}
	if _, ok := NextStatus(entry.Status, EventChargeSuccess); !ok {
		s.logger.Warn("settlement event for terminal entry", "reference", entry.Reference, "status", string(entry.Status))
		return OutcomeIgnored, nil
	}
	if !money.IsPositive(amount) {
		s.logger.Warn("settlement event with non-positive amount", "reference", entry.Reference, "amount", amount.String())
		return OutcomeIgnored, nil
	}
	// The gateway-reported amount wins over the initiated one to tolerate
	// partial settlement.
	if !entry.Amount.Equal(amount) {
		s.logger.Warn("settled amount differs from initiated amount",
			"reference", entry.Reference, "initiated", money.String(entry.Amount), "settled", money.String(amount))
	}

	result, err := s.store.Settle(ctx, entry.ID, amount)
	if errors.Is(err, ledger.ErrInvalidTransition) {
		// Lost the race to a concurrent delivery of the same event.
		s.logger.Info("settlement raced a concurrent delivery", "reference", entry.Reference)
		return OutcomeAlreadySettled, nil
	}
	if err != nil {
		return "", err
	}

	s.logger.Info("deposit settled", "reference", entry.Reference,
		"amount", money.String(amount), "balance", money.String(result.NewBalance))
	s.notifyOwner(ctx, entry.WalletID, notification.KindDepositSettled,
		fmt.Sprintf("Your deposit %s of %s has settled", entry.Reference, money.String(amount)))
	return OutcomeSettled, nil
}

func (s *Service) applyFailure(ctx context.Context, entry ledger.Entry, kind EventKind) (Outcome, error) {
	next, ok := NextStatus(entry.Status, kind)
	if !ok || next == entry.Status {
		return OutcomeIgnored, nil
	}
	err := s.store.Transition(ctx, entry.ID, entry.Status, next)
	if errors.Is(err, ledger.ErrInvalidTransition) || errors.Is(err, ledger.ErrEntryNotFound) {
		// A concurrent event moved the entry first; never a balance concern
		// since failure marks do not touch funds.
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("deposit closed without settlement", "reference", entry.Reference, "status", string(next))
	if kind == EventChargeFailed {
		return OutcomeMarkedFailed, nil
	}
	return OutcomeMarkedAbandoned, nil
}

func (s *Service) notifyOwner(ctx context.Context, walletID string, kind, body string) {
	if s.notifier == nil {
		return
	}
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: w.UserID, Body: body})
}

// newReference generates a deposit idempotency reference.
func newReference() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return "dep_" + hex.EncodeToString(buf)
}
