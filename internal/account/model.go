package account

import (
	"time"

	"github.com/google/uuid"
)

// Account is a ledgered account. It carries no balance field: balances are
// always derived by summing the account's completed transactions.
type Account struct {
	ID        uuid.UUID
	Name      string
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
