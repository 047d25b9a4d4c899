package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletapp/walletapp/internal/balance"
)

const defaultCurrency = "USD"

var (
	// ErrNameRequired occurs when creating or updating an account without a name.
	ErrNameRequired = errors.New("account name is required")

	// ErrBalanceNotZero occurs when deleting an account whose derived
	// balance is not exactly zero.
	ErrBalanceNotZero = errors.New("cannot delete account with non-zero balance")
)

// BalanceSource computes the derived balance of an account.
type BalanceSource interface {
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// Locker grants mutually exclusive execution rights over a set of keys.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func() error) error
}

// LedgerPurger removes an account's inert transaction records when the
// account goes away.
type LedgerPurger interface {
	PurgeByAccount(ctx context.Context, accountID uuid.UUID) error
}

// Service exposes account operations.
type Service struct {
	repo     Repository
	balances BalanceSource
	ledger   LedgerPurger
	locks    Locker
}

// NewService builds an account service instance.
func NewService(repo Repository, balances BalanceSource, ledger LedgerPurger, locks Locker) *Service {
	return &Service{repo: repo, balances: balances, ledger: ledger, locks: locks}
}

// CreateInput captures data required to create an account.
type CreateInput struct {
	Name     string
	Currency string
}

// Create provisions an account. The currency defaults when omitted.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	if input.Name == "" {
		return Account{}, ErrNameRequired
	}

	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := time.Now().UTC()
	acc := Account{
		ID:        uuid.New(),
		Name:      input.Name,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.Create(ctx, acc)
}

// UpdateInput captures mutable account fields.
type UpdateInput struct {
	Name     string
	Currency string
}

// Update overwrites the account's mutable fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Account, error) {
	if input.Name == "" {
		return Account{}, ErrNameRequired
	}

	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}

	acc.Name = input.Name
	if input.Currency != "" {
		acc.Currency = input.Currency
	}
	acc.UpdatedAt = time.Now().UTC()
	return s.repo.Save(ctx, acc)
}

// Get retrieves an account.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.ListAll(ctx)
}

// Balance returns the account's derived balance.
func (s *Service) Balance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	bal, err := s.balances.Balance(ctx, id)
	if err != nil {
		if errors.Is(err, balance.ErrAccountNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, err
	}
	return bal, nil
}

// Delete removes an account whose derived balance is exactly zero. The
// zero-balance check and the removal run under the account's execution lock,
// so a racing transaction execution cannot commit between the check and the
// delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	return s.locks.WithLock(ctx, []string{id.String()}, func() error {
		bal, err := s.balances.Balance(ctx, id)
		if err != nil {
			if errors.Is(err, balance.ErrAccountNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !bal.IsZero() {
			return ErrBalanceNotZero
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		// Drop the account's PENDING and FAILED rows so the background
		// worker never picks up a transaction of a deleted account. DONE
		// rows survive: a completed transfer still counts toward the
		// destination account's balance.
		return s.ledger.PurgeByAccount(ctx, id)
	})
}
