package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound occurs when the requested account does not exist.
var ErrNotFound = errors.New("account not found")

// Repository persists account records.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Create(ctx context.Context, acc Account) (Account, error)
	Save(ctx context.Context, acc Account) (Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]Account, error)
}
