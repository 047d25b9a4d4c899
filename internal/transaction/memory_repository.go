package transaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Transaction
}

// NewMemoryRepository constructs an in-memory transaction store for tests and
// database-less development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[uuid.UUID]Transaction)}
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	txn, ok := r.storage[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (r *memoryRepository) GetForAccount(_ context.Context, id, accountID uuid.UUID) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	txn, ok := r.storage[id]
	if !ok || txn.AccountID != accountID {
		return Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (r *memoryRepository) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, txn := range r.storage {
		if txn.AccountID == accountID {
			out = append(out, txn)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (r *memoryRepository) ListByAccountAndStatus(_ context.Context, accountID uuid.UUID, status Status) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, txn := range r.storage {
		if txn.AccountID == accountID && txn.Status == status {
			out = append(out, txn)
		}
	}
	sortByCreation(out)
	return out, nil
}

func (r *memoryRepository) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Transaction
	for _, txn := range r.storage {
		if txn.Status == StatusPending && txn.CreatedAt.Before(cutoff) {
			out = append(out, txn)
		}
	}
	sortByCreation(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) Create(_ context.Context, txn Transaction) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn.Revision = 1
	r.storage[txn.ID] = txn
	return txn, nil
}

func (r *memoryRepository) Save(_ context.Context, txn Transaction) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.storage[txn.ID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if current.Revision != txn.Revision {
		return Transaction{}, ErrRevisionConflict
	}
	txn.Revision++
	r.storage[txn.ID] = txn
	return txn, nil
}

func (r *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[id]; !ok {
		return ErrNotFound
	}
	delete(r.storage, id)
	return nil
}

// PurgeByAccount drops the account's PENDING, EXECUTING and FAILED rows. DONE
// rows stay: completed transfers feed the destination account's sums.
func (r *memoryRepository) PurgeByAccount(_ context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, txn := range r.storage {
		if txn.AccountID == accountID && txn.Status != StatusDone {
			delete(r.storage, id)
		}
	}
	return nil
}

func (r *memoryRepository) SumDeposits(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(func(txn Transaction) bool {
		return txn.Type == TypeDeposit && txn.AccountID == accountID
	}), nil
}

func (r *memoryRepository) SumWithdrawals(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(func(txn Transaction) bool {
		return txn.Type == TypeWithdraw && txn.AccountID == accountID
	}), nil
}

func (r *memoryRepository) SumTransfersOut(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(func(txn Transaction) bool {
		return txn.Type == TypeTransfer && txn.AccountID == accountID
	}), nil
}

func (r *memoryRepository) SumTransfersIn(_ context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(func(txn Transaction) bool {
		if txn.Type != TypeTransfer {
			return false
		}
		p, ok := txn.Payload.(TransferPayload)
		return ok && p.DestinationAccountID == accountID
	}), nil
}

// sum totals the amounts of DONE transactions matching the filter.
func (r *memoryRepository) sum(match func(Transaction) bool) decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, txn := range r.storage {
		if txn.Status == StatusDone && match(txn) {
			total = total.Add(amountOf(txn.Payload))
		}
	}
	return total
}

func sortByCreation(txns []Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].ID.String() < txns[j].ID.String()
		}
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
}
