package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kobovault/kobovault/internal/wallet"
)

// ErrNotFound indicates no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Repository persists users. CreateWithWallet provisions the user and their
// wallet in one atomic unit so no user ever exists without a wallet.
type Repository interface {
	CreateWithWallet(ctx context.Context, user User, w wallet.Wallet) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateWithWallet inserts the user and wallet rows in one transaction.
func (r *PostgresRepository) CreateWithWallet(ctx context.Context, user User, w wallet.Wallet) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO users (id, email, name, created_at)
        VALUES ($1, $2, $3, $4)`, user.ID, user.Email, user.Name, user.CreatedAt.UTC()); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (id, user_id, wallet_number, created_at)
        VALUES ($1, $2, $3, $4)`, w.ID, w.UserID, w.Number, w.CreatedAt.UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.one(ctx, `SELECT id, email, name, created_at FROM users WHERE id = $1`, id)
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, `SELECT id, email, name, created_at FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) one(ctx context.Context, query string, arg any) (User, error) {
	var (
		user      User
		name      *string
		createdAt time.Time
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Email, &name, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if name != nil {
		user.Name = *name
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
