package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound occurs when a transaction does not exist, or does not
	// belong to the account it was requested for.
	ErrNotFound = errors.New("transaction not found")

	// ErrRevisionConflict indicates a save raced with a concurrent edit of
	// the same record.
	ErrRevisionConflict = errors.New("transaction revision conflict")
)

// Repository persists transactions and answers the aggregate sum queries the
// balance calculator is built on. Sums cover DONE transactions only.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	GetForAccount(ctx context.Context, id, accountID uuid.UUID) (Transaction, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Transaction, error)
	ListByAccountAndStatus(ctx context.Context, accountID uuid.UUID, status Status) ([]Transaction, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Transaction, error)
	Create(ctx context.Context, txn Transaction) (Transaction, error)
	Save(ctx context.Context, txn Transaction) (Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeByAccount(ctx context.Context, accountID uuid.UUID) error

	SumDeposits(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	SumWithdrawals(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	SumTransfersOut(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	SumTransfersIn(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}
