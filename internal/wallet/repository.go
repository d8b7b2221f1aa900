package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no wallet matches the lookup.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByOwner(ctx context.Context, userID string) (Wallet, error)
	GetByNumber(ctx context.Context, number string) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record with a zero opening balance.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, wallet_number, created_at)
        VALUES ($1, $2, $3, $4)`, wallet.ID, wallet.UserID, wallet.Number, wallet.CreatedAt.UTC())
	return err
}

// Get fetches wallet metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	return r.one(ctx, `SELECT id, user_id, wallet_number, created_at FROM wallets WHERE id = $1`, id)
}

// GetByOwner fetches the wallet belonging to a user.
func (r *PostgresRepository) GetByOwner(ctx context.Context, userID string) (Wallet, error) {
	return r.one(ctx, `SELECT id, user_id, wallet_number, created_at FROM wallets WHERE user_id = $1`, userID)
}

// GetByNumber fetches a wallet by its externally facing number.
func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Wallet, error) {
	return r.one(ctx, `SELECT id, user_id, wallet_number, created_at FROM wallets WHERE wallet_number = $1`, number)
}

func (r *PostgresRepository) one(ctx context.Context, query string, arg any) (Wallet, error) {
	var (
		w         Wallet
		createdAt time.Time
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&w.ID, &w.UserID, &w.Number, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	if err != nil {
		return Wallet{}, err
	}
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
