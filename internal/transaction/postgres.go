package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, type, status, account_id, payload, created_at, updated_at, revision`

// PostgresRepository stores transactions in PostgreSQL. Payloads are kept as
// a JSONB tagged union, which the aggregate sum queries read directly.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches a transaction by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// GetForAccount fetches a transaction restricted to its owning account.
func (r *PostgresRepository) GetForAccount(ctx context.Context, id, accountID uuid.UUID) (Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE id = $1 AND account_id = $2`, id, accountID)
	return scanTransaction(row)
}

// ListByAccount returns the account's transactions ordered by creation time.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE account_id = $1 ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListByAccountAndStatus returns the account's transactions with the given status.
func (r *PostgresRepository) ListByAccountAndStatus(ctx context.Context, accountID uuid.UUID, status Status) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE account_id = $1 AND status = $2 ORDER BY created_at, id`, accountID, status)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListPendingBefore returns up to limit PENDING transactions created before
// the cutoff, oldest first.
func (r *PostgresRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE status = $1 AND created_at < $2
        ORDER BY created_at, id LIMIT $3`, StatusPending, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// Create inserts a transaction at revision 1.
func (r *PostgresRepository) Create(ctx context.Context, txn Transaction) (Transaction, error) {
	payload, err := MarshalPayload(txn.Payload)
	if err != nil {
		return Transaction{}, err
	}
	txn.Revision = 1
	_, err = r.db.Exec(ctx, `INSERT INTO transactions (id, type, status, account_id, payload, created_at, updated_at, revision)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID, txn.Type, txn.Status, txn.AccountID, payload, txn.CreatedAt.UTC(), txn.UpdatedAt.UTC(), txn.Revision)
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// Save overwrites a transaction, guarded by the optimistic revision check.
func (r *PostgresRepository) Save(ctx context.Context, txn Transaction) (Transaction, error) {
	payload, err := MarshalPayload(txn.Payload)
	if err != nil {
		return Transaction{}, err
	}

	tag, err := r.db.Exec(ctx, `UPDATE transactions
        SET type = $2, status = $3, payload = $4, updated_at = $5, revision = revision + 1
        WHERE id = $1 AND revision = $6`,
		txn.ID, txn.Type, txn.Status, payload, txn.UpdatedAt.UTC(), txn.Revision)
	if err != nil {
		return Transaction{}, err
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, txn.ID)
		if err != nil {
			return Transaction{}, err
		}
		if !exists {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, ErrRevisionConflict
	}
	txn.Revision++
	return txn, nil
}

// Delete removes the transaction record.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeByAccount drops the account's PENDING, EXECUTING and FAILED rows. DONE
// rows stay: completed transfers feed the destination account's sums.
func (r *PostgresRepository) PurgeByAccount(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM transactions WHERE account_id = $1 AND status <> $2`,
		accountID, StatusDone)
	return err
}

// SumDeposits totals DONE deposit amounts for the account.
func (r *PostgresRepository) SumDeposits(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByType(ctx, accountID, TypeDeposit)
}

// SumWithdrawals totals DONE withdrawal amounts for the account.
func (r *PostgresRepository) SumWithdrawals(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByType(ctx, accountID, TypeWithdraw)
}

// SumTransfersOut totals DONE outgoing transfer amounts for the account.
func (r *PostgresRepository) SumTransfersOut(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByType(ctx, accountID, TypeTransfer)
}

// SumTransfersIn totals DONE transfer amounts whose destination is the account.
func (r *PostgresRepository) SumTransfersIn(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM((payload->>'amount')::numeric), 0)::text
        FROM transactions
        WHERE status = $1
        AND type = $2
        AND (payload->>'destination_account_id')::uuid = $3`
	return r.sumQuery(ctx, query, StatusDone, TypeTransfer, accountID)
}

func (r *PostgresRepository) sumByType(ctx context.Context, accountID uuid.UUID, typ Type) (decimal.Decimal, error) {
	const query = `
        SELECT COALESCE(SUM((payload->>'amount')::numeric), 0)::text
        FROM transactions
        WHERE account_id = $1
        AND status = $2
        AND type = $3`
	return r.sumQuery(ctx, query, accountID, StatusDone, typ)
}

func (r *PostgresRepository) sumQuery(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var raw string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *PostgresRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		txn       Transaction
		payload   []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&txn.ID, &txn.Type, &txn.Status, &txn.AccountID, &payload, &createdAt, &updatedAt, &txn.Revision); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}

	decoded, err := UnmarshalPayload(json.RawMessage(payload))
	if err != nil {
		return Transaction{}, err
	}
	txn.Payload = decoded
	txn.CreatedAt = createdAt.UTC()
	txn.UpdatedAt = updatedAt.UTC()
	return txn, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}
