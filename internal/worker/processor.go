// Package worker runs the automated execution trigger: pending transactions
// that sat past a grace period are picked up and executed in the background,
// so movements submitted without an explicit execute call still settle.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/walletapp/walletapp/internal/locking"
	"github.com/walletapp/walletapp/internal/transaction"
)

const batchSize = 25

// Executor drives a single transaction to a terminal status.
type Executor interface {
	Execute(ctx context.Context, id, accountID uuid.UUID) (transaction.Transaction, error)
}

// PendingSource lists transactions awaiting execution.
type PendingSource interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]transaction.Transaction, error)
}

// Processor periodically executes stale PENDING transactions.
type Processor struct {
	source   PendingSource
	executor Executor
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger
}

// NewProcessor builds the background processor. The grace period keeps the
// worker from racing callers that submit and immediately execute themselves.
func NewProcessor(source PendingSource, executor Executor, interval, grace time.Duration, logger *slog.Logger) *Processor {
	return &Processor{source: source, executor: executor, interval: interval, grace: grace, logger: logger}
}

// Run polls until the context is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("transaction processor started", "interval", p.interval.String(), "grace", p.grace.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transaction processor stopped")
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.grace)
	pending, err := p.source.ListPendingBefore(ctx, cutoff, batchSize)
	if err != nil {
		p.logger.Error("list pending transactions", "error", err)
		return
	}

	for _, txn := range pending {
		result, err := p.executor.Execute(ctx, txn.ID, txn.AccountID)
		switch {
		case err == nil:
			p.logger.Info("executed pending transaction", "transaction_id", txn.ID, "account_id", txn.AccountID, "status", result.Status)
		case errors.Is(err, transaction.ErrInsufficientFunds), errors.Is(err, transaction.ErrDestinationNotFound):
			// The executor already marked the record FAILED; no retry here.
			p.logger.Warn("pending transaction failed", "transaction_id", txn.ID, "error", err)
		case errors.Is(err, locking.ErrTimeout):
			// Contended account, leave it for the next tick.
			p.logger.Warn("execution lock busy", "transaction_id", txn.ID)
		case errors.Is(err, transaction.ErrNotFound):
			// Deleted between listing and execution.
		default:
			p.logger.Error("execute pending transaction", "transaction_id", txn.ID, "error", err)
		}

		if ctx.Err() != nil {
			return
		}
	}
}
