// Package balance derives account balances from the ledger. Nothing here is
// cached: every call recomputes from the completed transactions committed at
// call time.
package balance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrAccountNotFound occurs when a balance is requested for a missing account.
var ErrAccountNotFound = errors.New("account not found")

// AccountSource answers account existence checks.
type AccountSource interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// LedgerSums exposes the aggregate sum queries over DONE transactions that
// the balance formula is built on.
type LedgerSums interface {
	SumDeposits(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	SumWithdrawals(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	SumTransfersOut(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	SumTransfersIn(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// Calculator computes derived balances.
type Calculator struct {
	accounts AccountSource
	ledger   LedgerSums
}

// NewCalculator builds a balance calculator over the given stores.
func NewCalculator(accounts AccountSource, ledger LedgerSums) *Calculator {
	return &Calculator{accounts: accounts, ledger: ledger}
}

// Balance returns deposits + incoming transfers - withdrawals - outgoing
// transfers across the account's DONE transactions.
func (c *Calculator) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	exists, err := c.accounts.Exists(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}

	deposits, err := c.ledger.SumDeposits(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	withdrawals, err := c.ledger.SumWithdrawals(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	outgoing, err := c.ledger.SumTransfersOut(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	incoming, err := c.ledger.SumTransfersIn(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	return deposits.Add(incoming).Sub(withdrawals).Sub(outgoing), nil
}
