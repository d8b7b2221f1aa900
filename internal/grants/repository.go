package grants

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists access grants. The uniqueness constraint on key_hash
// is storage-level; the engine depends on it for correct resolution.
type Repository interface {
	Create(ctx context.Context, grant AccessGrant) error
	Get(ctx context.Context, id, userID string) (AccessGrant, error)
	FindByHash(ctx context.Context, keyHash string) (AccessGrant, error)
	CountActive(ctx context.Context, userID string, now time.Time) (int, error)
	SetRevoked(ctx context.Context, id, userID string) error
	ListByUser(ctx context.Context, userID string) ([]AccessGrant, error)
}

// PostgresRepository stores grants in PostgreSQL. Permission sets are kept
// as a JSON array in a text column.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed grant repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const grantColumns = `id, user_id, key_hash, name, permissions, expires_at, revoked, created_at`

// Create inserts a grant record.
func (r *PostgresRepository) Create(ctx context.Context, grant AccessGrant) error {
	perms, err := json.Marshal(grant.Permissions)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO api_keys (`+grantColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		grant.ID, grant.UserID, grant.KeyHash, grant.Name, string(perms),
		grant.ExpiresAt.UTC(), grant.Revoked, grant.CreatedAt.UTC())
	return err
}

// Get fetches a grant owned by the given user.
func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (AccessGrant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+grantColumns+` FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
	return scanGrant(row)
}

// FindByHash resolves a grant by the hash of its secret.
func (r *PostgresRepository) FindByHash(ctx context.Context, keyHash string) (AccessGrant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+grantColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
	return scanGrant(row)
}

// CountActive counts the user's non-revoked, unexpired grants.
func (r *PostgresRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2`,
		userID, now.UTC()).Scan(&count)
	return count, err
}

// SetRevoked flips the revoked flag on a grant owned by the user.
func (r *PostgresRepository) SetRevoked(ctx context.Context, id, userID string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns all of a user's grants, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]AccessGrant, error) {
	rows, err := r.db.Query(ctx, `SELECT `+grantColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AccessGrant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, grant)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (AccessGrant, error) {
	var (
		grant     AccessGrant
		permsJSON string
	)
	err := row.Scan(&grant.ID, &grant.UserID, &grant.KeyHash, &grant.Name,
		&permsJSON, &grant.ExpiresAt, &grant.Revoked, &grant.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccessGrant{}, ErrNotFound
	}
	if err != nil {
		return AccessGrant{}, err
	}
	if err := json.Unmarshal([]byte(permsJSON), &grant.Permissions); err != nil {
		return AccessGrant{}, err
	}
	grant.ExpiresAt = grant.ExpiresAt.UTC()
	grant.CreatedAt = grant.CreatedAt.UTC()
	return grant, nil
}
