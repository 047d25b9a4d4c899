package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletapp/walletapp/internal/notification"
)

var (
	// ErrInsufficientFunds occurs when executing a withdrawal or transfer
	// would drive the source account's balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCompletedImmutable occurs when a caller tries to update, delete or
	// otherwise mutate a DONE transaction.
	ErrCompletedImmutable = errors.New("cannot modify a completed transaction")

	// ErrDestinationNotFound occurs when a transfer's destination account is
	// gone at execution time.
	ErrDestinationNotFound = errors.New("destination account not found")
)

// BalanceSource computes the derived balance of an account.
type BalanceSource interface {
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// Locker grants mutually exclusive execution rights over a set of keys.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func() error) error
}

// Service drives transactions from PENDING to a terminal status and owns all
// non-read transaction operations.
type Service struct {
	repo      Repository
	validator *Validator
	balances  BalanceSource
	accounts  AccountDirectory
	locks     Locker
	notifier  notification.Notifier
}

// NewService wires the transaction executor.
func NewService(repo Repository, validator *Validator, balances BalanceSource, accounts AccountDirectory, locks Locker, notifier notification.Notifier) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		balances:  balances,
		accounts:  accounts,
		locks:     locks,
		notifier:  notifier,
	}
}

// Get returns the transaction scoped to the owning account.
func (s *Service) Get(ctx context.Context, id, accountID uuid.UUID) (Transaction, error) {
	return s.repo.GetForAccount(ctx, id, accountID)
}

// List returns the account's transactions, newest last.
func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]Transaction, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// ListByStatus returns the account's transactions filtered by status.
func (s *Service) ListByStatus(ctx context.Context, accountID uuid.UUID, status Status) ([]Transaction, error) {
	return s.repo.ListByAccountAndStatus(ctx, accountID, status)
}

// Submit validates the draft and stores it as PENDING. Submission never
// triggers execution.
func (s *Service) Submit(ctx context.Context, draft Draft) (Transaction, error) {
	if err := s.validator.Validate(ctx, draft); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:        uuid.New(),
		Type:      draft.Type,
		Status:    StatusPending,
		AccountID: draft.AccountID,
		Payload:   draft.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.repo.Create(ctx, txn)
}

// Update re-validates the draft and overwrites a still-pending or failed
// record. DONE transactions are immutable.
func (s *Service) Update(ctx context.Context, id, accountID uuid.UUID, draft Draft) (Transaction, error) {
	existing, err := s.repo.GetForAccount(ctx, id, accountID)
	if err != nil {
		return Transaction{}, err
	}
	if existing.Status == StatusDone {
		return Transaction{}, ErrCompletedImmutable
	}

	draft.AccountID = accountID
	if err := s.validator.Validate(ctx, draft); err != nil {
		return Transaction{}, err
	}

	existing.Type = draft.Type
	existing.Payload = draft.Payload
	existing.UpdatedAt = time.Now().UTC()
	return s.repo.Save(ctx, existing)
}

// Delete removes a still-pending or failed record. DONE transactions are
// immutable.
func (s *Service) Delete(ctx context.Context, id, accountID uuid.UUID) error {
	existing, err := s.repo.GetForAccount(ctx, id, accountID)
	if err != nil {
		return err
	}
	if existing.Status == StatusDone {
		return ErrCompletedImmutable
	}
	return s.repo.Delete(ctx, id)
}

// Execute drives the transaction to a terminal status. Executing an already
// DONE transaction returns its snapshot unchanged. FAILED transactions are
// re-executable: a second call re-runs the same rule application.
func (s *Service) Execute(ctx context.Context, id, accountID uuid.UUID) (Transaction, error) {
	txn, err := s.repo.GetForAccount(ctx, id, accountID)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status == StatusDone {
		return txn, nil
	}

	var out Transaction
	lockErr := s.locks.WithLock(ctx, executionKeys(txn), func() error {
		var execErr error
		out, execErr = s.executeLocked(ctx, id, accountID)
		return execErr
	})
	if lockErr != nil {
		return out, lockErr
	}
	return out, nil
}

// executionKeys returns the lock domain for a transaction: the owning account
// for deposits and withdrawals, the source/destination pair for transfers.
// The manager acquires pairs in canonical order. Holding the account lock
// also serializes double-executes of the same transaction, which the DONE
// re-check under the lock then short-circuits.
func executionKeys(txn Transaction) []string {
	if p, ok := txn.Payload.(TransferPayload); ok {
		return []string{txn.AccountID.String(), p.DestinationAccountID.String()}
	}
	return []string{txn.AccountID.String()}
}

func (s *Service) executeLocked(ctx context.Context, id, accountID uuid.UUID) (Transaction, error) {
	// Re-read under the lock: a racing caller may have finished first.
	txn, err := s.repo.GetForAccount(ctx, id, accountID)
	if err != nil {
		return Transaction{}, err
	}
	if txn.Status == StatusDone {
		return txn, nil
	}

	// Persist EXECUTING before applying rules so concurrent readers never
	// observe a stale PENDING view mid-flight.
	txn.Status = StatusExecuting
	txn.UpdatedAt = time.Now().UTC()
	txn, err = s.repo.Save(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}

	if applyErr := s.apply(ctx, txn); applyErr != nil {
		txn.Status = StatusFailed
		txn.UpdatedAt = time.Now().UTC()
		failed, saveErr := s.repo.Save(ctx, txn)
		if saveErr != nil {
			// Losing the FAILED write leaves the record stuck in
			// EXECUTING; nothing can recover it automatically.
			return Transaction{}, fmt.Errorf("fatal: persist FAILED status after %q: %w", applyErr, saveErr)
		}
		return failed, applyErr
	}

	// Applying the effect is the status flip itself: balances are derived
	// from DONE transactions, so no balance field is written anywhere.
	txn.Status = StatusDone
	txn.UpdatedAt = time.Now().UTC()
	txn, err = s.repo.Save(ctx, txn)
	if err != nil {
		return Transaction{}, err
	}

	s.notify(ctx, txn)
	return txn, nil
}

// apply enforces the type-specific execution rule. The payload union is
// matched exhaustively; a mismatch between type and payload cannot normally
// reach this point past the validator.
func (s *Service) apply(ctx context.Context, txn Transaction) error {
	switch p := txn.Payload.(type) {
	case DepositPayload:
		// Crediting can never drive a balance negative.
		return nil
	case WithdrawPayload:
		return s.checkFunds(ctx, txn.AccountID, p.Amount)
	case TransferPayload:
		exists, err := s.accounts.Exists(ctx, p.DestinationAccountID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrDestinationNotFound, p.DestinationAccountID)
		}
		return s.checkFunds(ctx, txn.AccountID, p.Amount)
	default:
		return fmt.Errorf("unsupported transaction type %q", txn.Type)
	}
}

func (s *Service) checkFunds(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	bal, err := s.balances.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	if bal.Sub(amount).IsNegative() {
		return ErrInsufficientFunds
	}
	return nil
}

func (s *Service) notify(ctx context.Context, txn Transaction) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransactionExecuted,
		Destination: txn.AccountID.String(),
		Body:        fmt.Sprintf("%s of %s completed", txn.Type, amountOf(txn.Payload)),
	})
}
