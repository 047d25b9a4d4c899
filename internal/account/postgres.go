package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches an account by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, currency, created_at, updated_at
        FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// Exists reports whether an account with the given id is stored.
func (r *PostgresRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, acc Account) (Account, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id, name, currency, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)`,
		acc.ID, acc.Name, acc.Currency, acc.CreatedAt.UTC(), acc.UpdatedAt.UTC())
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Save overwrites the account's mutable fields.
func (r *PostgresRepository) Save(ctx context.Context, acc Account) (Account, error) {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET name = $2, currency = $3, updated_at = $4
        WHERE id = $1`,
		acc.ID, acc.Name, acc.Currency, acc.UpdatedAt.UTC())
	if err != nil {
		return Account{}, err
	}
	if tag.RowsAffected() == 0 {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

// Delete removes the account record.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAll returns every account ordered by creation time.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, currency, created_at, updated_at
        FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc       Account
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&acc.ID, &acc.Name, &acc.Currency, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	acc.CreatedAt = createdAt.UTC()
	acc.UpdatedAt = updatedAt.UTC()
	return acc, nil
}
