package transaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletapp/walletapp/internal/account"
	"github.com/walletapp/walletapp/internal/balance"
	"github.com/walletapp/walletapp/internal/locking"
)

type executorFixture struct {
	accounts account.Repository
	txns     Repository
	calc     *balance.Calculator
	svc      *Service
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	accounts := account.NewMemoryRepository()
	txns := NewMemoryRepository()
	calc := balance.NewCalculator(accounts, txns)
	svc := NewService(txns, NewValidator(accounts), calc, accounts, locking.NewManager(5*time.Second), nil)
	return &executorFixture{accounts: accounts, txns: txns, calc: calc, svc: svc}
}

func (f *executorFixture) balanceOf(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	bal, err := f.calc.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *executorFixture) submit(t *testing.T, draft Draft) Transaction {
	t.Helper()
	txn, err := f.svc.Submit(context.Background(), draft)
	if err != nil {
		t.Fatalf("submit %s: %v", draft.Type, err)
	}
	return txn
}

// deposit submits and executes a deposit so the account has funds.
func (f *executorFixture) deposit(t *testing.T, accountID uuid.UUID, amount string) {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: accountID, Payload: DepositPayload{Amount: amt}})
	if _, err := f.svc.Execute(context.Background(), txn.ID, accountID); err != nil {
		t.Fatalf("execute deposit: %v", err)
	}
}

func TestExecuteDepositIncreasesBalance(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.RequireFromString("100.00")}})
	if txn.Status != StatusPending {
		t.Fatalf("expected PENDING after submit, got %s", txn.Status)
	}
	if !f.balanceOf(t, a).IsZero() {
		t.Fatal("submit must not move funds")
	}

	done, err := f.svc.Execute(context.Background(), txn.ID, a)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if done.Status != StatusDone {
		t.Fatalf("expected DONE, got %s", done.Status)
	}
	if got := f.balanceOf(t, a); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("expected balance 100.00, got %s", got)
	}
}

func TestExecuteIsIdempotentOnceDone(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.NewFromInt(40)}})
	first, err := f.svc.Execute(context.Background(), txn.ID, a)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}

	second, err := f.svc.Execute(context.Background(), txn.ID, a)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if second.Status != StatusDone || second.Revision != first.Revision {
		t.Fatalf("expected identical terminal snapshot, got status=%s revision=%d (want %d)", second.Status, second.Revision, first.Revision)
	}
	if got := f.balanceOf(t, a); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("re-execution must not double-apply, balance %s", got)
	}
}

func TestExecuteWithdrawInsufficientFunds(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	f.deposit(t, a, "100.00")

	txn := f.submit(t, Draft{Type: TypeWithdraw, AccountID: a, Payload: WithdrawPayload{Amount: decimal.RequireFromString("150.00")}})
	failed, err := f.svc.Execute(context.Background(), txn.ID, a)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", failed.Status)
	}
	if got := f.balanceOf(t, a); !got.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("failed withdraw must not move funds, balance %s", got)
	}
}

func TestExecuteWithdrawExactBalanceSucceeds(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	f.deposit(t, a, "75.50")

	txn := f.submit(t, Draft{Type: TypeWithdraw, AccountID: a, Payload: WithdrawPayload{Amount: decimal.RequireFromString("75.50")}})
	done, err := f.svc.Execute(context.Background(), txn.ID, a)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if done.Status != StatusDone {
		t.Fatalf("expected DONE, got %s", done.Status)
	}
	if got := f.balanceOf(t, a); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	f.deposit(t, a, "100")

	first := f.submit(t, Draft{Type: TypeWithdraw, AccountID: a, Payload: WithdrawPayload{Amount: decimal.NewFromInt(60)}})
	second := f.submit(t, Draft{Type: TypeWithdraw, AccountID: a, Payload: WithdrawPayload{Amount: decimal.NewFromInt(60)}})

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, txn := range []Transaction{first, second} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.Execute(context.Background(), id, a)
		}(i, txn.ID)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success and one insufficient-funds failure, got %d/%d", succeeded, insufficient)
	}

	if got := f.balanceOf(t, a); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected final balance 40, got %s", got)
	}
}

func TestExecuteTransferMovesFundsAtomically(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	b := mustCreateAccount(t, f.accounts)
	f.deposit(t, a, "500.00")

	txn := f.submit(t, Draft{Type: TypeTransfer, AccountID: a, Payload: TransferPayload{DestinationAccountID: b, Amount: decimal.RequireFromString("200.00")}})
	done, err := f.svc.Execute(context.Background(), txn.ID, a)
	if err != nil {
		t.Fatalf("execute transfer: %v", err)
	}
	if done.Status != StatusDone {
		t.Fatalf("expected DONE, got %s", done.Status)
	}
	if got := f.balanceOf(t, a); !got.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected source balance 300.00, got %s", got)
	}
	if got := f.balanceOf(t, b); !got.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("expected destination balance 200.00, got %s", got)
	}
}

func TestExecuteTransferInsufficientFundsLeavesBothSidesUntouched(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	b := mustCreateAccount(t, f.accounts)
	f.deposit(t, a, "50")

	txn := f.submit(t, Draft{Type: TypeTransfer, AccountID: a, Payload: TransferPayload{DestinationAccountID: b, Amount: decimal.NewFromInt(80)}})
	failed, err := f.svc.Execute(context.Background(), txn.ID, a)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", failed.Status)
	}
	if got := f.balanceOf(t, a); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("source balance changed: %s", got)
	}
	if got := f.balanceOf(t, b); !got.IsZero() {
		t.Fatalf("destination balance changed: %s", got)
	}
}

func TestExecuteTransferDestinationGoneFails(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	b := mustCreateAccount(t, f.accounts)
	f.deposit(t, a, "100")

	txn := f.submit(t, Draft{Type: TypeTransfer, AccountID: a, Payload: TransferPayload{DestinationAccountID: b, Amount: decimal.NewFromInt(10)}})

	// Destination disappears between submission and execution.
	if err := f.accounts.Delete(context.Background(), b); err != nil {
		t.Fatalf("delete destination: %v", err)
	}

	failed, err := f.svc.Execute(context.Background(), txn.ID, a)
	if !errors.Is(err, ErrDestinationNotFound) {
		t.Fatalf("expected ErrDestinationNotFound, got %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", failed.Status)
	}
	if got := f.balanceOf(t, a); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("source balance changed: %s", got)
	}
}

func TestFailedTransactionIsReExecutable(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeWithdraw, AccountID: a, Payload: WithdrawPayload{Amount: decimal.NewFromInt(30)}})
	if _, err := f.svc.Execute(context.Background(), txn.ID, a); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected first execute to fail, got %v", err)
	}

	f.deposit(t, a, "30")

	done, err := f.svc.Execute(context.Background(), txn.ID, a)
	if err != nil {
		t.Fatalf("re-execute failed transaction: %v", err)
	}
	if done.Status != StatusDone {
		t.Fatalf("expected DONE after re-execution, got %s", done.Status)
	}
	if got := f.balanceOf(t, a); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
}

func TestExecuteUnknownTransaction(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	if _, err := f.svc.Execute(context.Background(), uuid.New(), a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExecuteScopedToOwningAccount(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	other := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.NewFromInt(5)}})
	if _, err := f.svc.Execute(context.Background(), txn.ID, other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign account, got %v", err)
	}
}

func TestSubmitRejectsInvalidDraftWithoutStoring(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	_, err := f.svc.Submit(context.Background(), Draft{
		Type:      TypeDeposit,
		AccountID: a,
		Payload:   WithdrawPayload{Amount: decimal.NewFromInt(10)},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	stored, err := f.svc.List(context.Background(), a)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected no stored transactions, got %d", len(stored))
	}
}

func TestUpdateRewritesPendingRecord(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.NewFromInt(10)}})
	updated, err := f.svc.Update(context.Background(), txn.ID, a, Draft{
		Type:    TypeWithdraw,
		Payload: WithdrawPayload{Amount: decimal.NewFromInt(20), Description: "corrected"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != TypeWithdraw {
		t.Fatalf("expected type WITHDRAW, got %s", updated.Type)
	}
	if updated.Revision <= txn.Revision {
		t.Fatalf("expected revision to advance past %d, got %d", txn.Revision, updated.Revision)
	}
	p, ok := updated.Payload.(WithdrawPayload)
	if !ok || !p.Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("payload not rewritten: %#v", updated.Payload)
	}
}

func TestUpdateAndDeleteRejectCompletedTransactions(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.NewFromInt(10)}})
	if _, err := f.svc.Execute(context.Background(), txn.ID, a); err != nil {
		t.Fatalf("execute: %v", err)
	}

	_, err := f.svc.Update(context.Background(), txn.ID, a, Draft{
		Type:    TypeDeposit,
		Payload: DepositPayload{Amount: decimal.NewFromInt(99)},
	})
	if !errors.Is(err, ErrCompletedImmutable) {
		t.Fatalf("expected ErrCompletedImmutable on update, got %v", err)
	}

	if err := f.svc.Delete(context.Background(), txn.ID, a); !errors.Is(err, ErrCompletedImmutable) {
		t.Fatalf("expected ErrCompletedImmutable on delete, got %v", err)
	}
}

func TestDeleteRemovesPendingRecord(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.NewFromInt(10)}})
	if err := f.svc.Delete(context.Background(), txn.ID, a); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), txn.ID, a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSaveDetectsRevisionConflict(t *testing.T) {
	f := newExecutorFixture(t)
	a := mustCreateAccount(t, f.accounts)
	ctx := context.Background()

	txn := f.submit(t, Draft{Type: TypeDeposit, AccountID: a, Payload: DepositPayload{Amount: decimal.NewFromInt(10)}})

	fresh, err := f.txns.Save(ctx, txn)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if fresh.Revision != txn.Revision+1 {
		t.Fatalf("expected revision bump, got %d", fresh.Revision)
	}

	// Saving with the stale revision must be rejected.
	if _, err := f.txns.Save(ctx, txn); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}
}
