package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kobovault/kobovault/internal/money"
)

// maxCommitAttempts bounds internal retries of atomic units that fail on
// store-level contention. No partial state exists after such a failure, so
// the retry is transparent to the caller.
const maxCommitAttempts = 3

// PostgresStore persists balances and ledger entries in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Adjust applies delta to the wallet balance in a single UPDATE so the
// sufficient-funds check and the mutation share one atomic unit.
func (s *PostgresStore) Adjust(ctx context.Context, walletID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if delta.IsZero() {
		return s.Balance(ctx, walletID)
	}

	const query = `
        UPDATE wallets
        SET balance = balance + $2::numeric
        WHERE id = $1 AND balance + $2::numeric >= 0
        RETURNING balance::text`

	var balanceText string
	err := s.db.QueryRow(ctx, query, walletID, money.String(delta)).Scan(&balanceText)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if lookupErr := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists); lookupErr != nil {
			return decimal.Decimal{}, lookupErr
		}
		if !exists {
			return decimal.Decimal{}, ErrWalletNotFound
		}
		return decimal.Decimal{}, ErrInsufficientFunds
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(balanceText)
}

// Balance returns the persisted wallet balance.
func (s *PostgresStore) Balance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var balanceText string
	err := s.db.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, walletID).Scan(&balanceText)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(balanceText)
}

// Append inserts a new ledger entry. The unique constraint on reference is
// the idempotency boundary: a second append with the same reference fails
// with ErrDuplicateReference.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	const query = `
        INSERT INTO transactions (id, wallet_id, kind, amount, status, reference, counterparty_wallet_id, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.Exec(ctx, query,
		entry.ID, entry.WalletID, string(entry.Kind), money.String(entry.Amount), string(entry.Status),
		nullable(entry.Reference), nullable(entry.CounterpartyWalletID), nullable(entry.Metadata),
		entry.CreatedAt, entry.UpdatedAt)
	if isUniqueViolation(err) {
		return Entry{}, ErrDuplicateReference
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// FindByReference resolves an entry by its idempotency reference.
func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (Entry, error) {
	const query = `
        SELECT id, wallet_id, kind, amount::text, status, reference, counterparty_wallet_id, metadata, created_at, updated_at
        FROM transactions WHERE reference = $1`
	entry, err := scanEntry(s.db.QueryRow(ctx, query, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return entry, err
}

// Transition moves an entry between statuses. The status predicate in the
// UPDATE guards against two concurrent settlements of the same entry.
func (s *PostgresStore) Transition(ctx context.Context, entryID string, from, to Status) error {
	cmd, err := s.db.Exec(ctx,
		`UPDATE transactions SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		entryID, string(from), string(to))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var current string
		err := s.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, entryID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, current)
	}
	return nil
}

// ListByWallet returns the wallet's entries, newest first.
func (s *PostgresStore) ListByWallet(ctx context.Context, walletID string) ([]Entry, error) {
	const query = `
        SELECT id, wallet_id, kind, amount::text, status, reference, counterparty_wallet_id, metadata, created_at, updated_at
        FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Transfer moves funds between two wallets and records both legs in one
// transaction. Wallet rows are locked in identifier order so two opposing
// transfers cannot deadlock.
func (s *PostgresStore) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	var result TransferResult
	err := s.withRetry(ctx, func(tx pgx.Tx) error {
		first, second := input.FromWalletID, input.ToWalletID
		if second < first {
			first, second = second, first
		}
		if err := lockWallet(ctx, tx, first); err != nil {
			return err
		}
		if err := lockWallet(ctx, tx, second); err != nil {
			return err
		}

		fromBalance, err := walletBalance(ctx, tx, input.FromWalletID)
		if err != nil {
			return err
		}
		if fromBalance.LessThan(input.Amount) {
			return ErrInsufficientFunds
		}

		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance - $2::numeric WHERE id = $1`,
			input.FromWalletID, money.String(input.Amount)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $2::numeric WHERE id = $1`,
			input.ToWalletID, money.String(input.Amount)); err != nil {
			return err
		}

		now := time.Now().UTC()
		debitID, creditID := uuid.NewString(), uuid.NewString()

		const insert = `
            INSERT INTO transactions (id, wallet_id, kind, amount, status, reference, counterparty_wallet_id, created_at, updated_at)
            VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $8)`

		if _, err := tx.Exec(ctx, insert, debitID, input.FromWalletID, string(KindTransferDebit),
			money.String(input.Amount.Neg()), string(StatusSuccess), nullable(input.Reference), input.ToWalletID, now); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}
		if _, err := tx.Exec(ctx, insert, creditID, input.ToWalletID, string(KindTransferCredit),
			money.String(input.Amount), string(StatusSuccess), nullable(creditReference(input.Reference)), input.FromWalletID, now); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}

		fromAfter, err := walletBalance(ctx, tx, input.FromWalletID)
		if err != nil {
			return err
		}
		toAfter, err := walletBalance(ctx, tx, input.ToWalletID)
		if err != nil {
			return err
		}

		result = TransferResult{
			DebitEntryID:  debitID,
			CreditEntryID: creditID,
			FromBalance:   fromAfter,
			ToBalance:     toAfter,
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

// Settle flips a pending entry to success and credits its wallet with the
// settled amount. The transition predicate makes concurrent deliveries of
// the same event safe: only one of them updates the row, the others see
// ErrInvalidTransition and skip the credit.
func (s *PostgresStore) Settle(ctx context.Context, entryID string, amount decimal.Decimal) (SettleResult, error) {
	var result SettleResult
	err := s.withRetry(ctx, func(tx pgx.Tx) error {
		var walletID string
		err := tx.QueryRow(ctx, `
            UPDATE transactions
            SET status = $2, amount = $3::numeric, updated_at = now()
            WHERE id = $1 AND status = $4
            RETURNING wallet_id`,
			entryID, string(StatusSuccess), money.String(amount), string(StatusPending)).Scan(&walletID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidTransition
		}
		if err != nil {
			return err
		}

		var balanceText string
		if err := tx.QueryRow(ctx, `
            UPDATE wallets SET balance = balance + $2::numeric WHERE id = $1
            RETURNING balance::text`,
			walletID, money.String(amount)).Scan(&balanceText); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWalletNotFound
			}
			return err
		}
		balance, err := decimal.NewFromString(balanceText)
		if err != nil {
			return err
		}
		result = SettleResult{WalletID: walletID, NewBalance: balance}
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}
	return result, nil
}

// withRetry runs fn inside a transaction, retrying a bounded number of
// times when the commit loses to store-level contention.
func (s *PostgresStore) withRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("atomic unit failed after %d attempts: %w", maxCommitAttempts, lastErr)
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockWallet(ctx context.Context, tx pgx.Tx, walletID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrWalletNotFound
	}
	return err
}

func walletBalance(ctx context.Context, tx pgx.Tx, walletID string) (decimal.Decimal, error) {
	var balanceText string
	err := tx.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, walletID).Scan(&balanceText)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(balanceText)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry        Entry
		kind, status string
		amountText   string
		reference    *string
		counterparty *string
		metadata     *string
	)
	if err := row.Scan(&entry.ID, &entry.WalletID, &kind, &amountText, &status,
		&reference, &counterparty, &metadata, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return Entry{}, err
	}
	entry.Kind = Kind(kind)
	entry.Status = Status(status)
	entry.Amount = amount
	if reference != nil {
		entry.Reference = *reference
	}
	if counterparty != nil {
		entry.CounterpartyWalletID = *counterparty
	}
	if metadata != nil {
		entry.Metadata = *metadata
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

// creditReference derives the credit leg reference from the debit leg's so
// both rows satisfy the uniqueness constraint yet stay correlatable.
func creditReference(reference string) string {
	if reference == "" {
		return ""
	}
	return reference + ":credit"
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isRetryable reports whether the error is store-level contention
// (serialization failure or deadlock) that is safe to retry transparently.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
