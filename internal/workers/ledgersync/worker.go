// Package ledgersync runs the fast reconciliation loop: the transaction
// projector folds the node's transaction log into per-address balances, then
// the withdrawal queue submits vetted pending withdrawals. Both run
// sequentially in one goroutine so lock events always precede submissions
// within a pass.
package ledgersync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// NodeClient is the slice of the wallet node API the fast loop drives.
type NodeClient interface {
	TxList(ctx context.Context, skip, count int) ([]beamnode.TxInfo, error)
	TxSend(ctx context.Context, req beamnode.TxSendRequest) (string, error)
	GetUTXO(ctx context.Context, assetID int64) ([]beamnode.UTXO, error)
}

// AddressStore reads and adjusts ledger addresses.
type AddressStore interface {
	GetByID(ctx context.Context, id string) (*entities.Address, error)
	ApplyBalanceDeltas(ctx context.Context, id string, deltas []entities.BalanceDelta) error
}

// TransactionStore persists the ledger's view of node transactions.
type TransactionStore interface {
	GetByID(ctx context.Context, txID string) (*entities.Transaction, error)
	Insert(ctx context.Context, tx *entities.Transaction) error
	UpdateObserved(ctx context.Context, tx *entities.Transaction) error
	MarkSuccess(ctx context.Context, txID string) error
}

// WithdrawalStore drives the pending withdrawal state machine.
type WithdrawalStore interface {
	ListPending(ctx context.Context) ([]*entities.PendingWithdrawal, error)
	ListBySender(ctx context.Context, sender string, statuses ...entities.WithdrawalStatus) ([]*entities.PendingWithdrawal, error)
	GetByTxID(ctx context.Context, txID string) (*entities.PendingWithdrawal, error)
	AcquireProcessing(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id, txID string) error
	SetStatus(ctx context.Context, id string, status entities.WithdrawalStatus) error
	SetStatusByTxID(ctx context.Context, txID string, status entities.WithdrawalStatus) (bool, error)
	CountByStatus(ctx context.Context, status entities.WithdrawalStatus) (int64, error)
}

// Alerter notifies operators about conditions needing attention.
type Alerter interface {
	Sendf(ctx context.Context, subject, format string, args ...interface{})
	WithdrawalFlagged(ctx context.Context, w *entities.PendingWithdrawal, violations []entities.ConsistencyViolation)
	WithdrawalSendFailed(ctx context.Context, w *entities.PendingWithdrawal, sendErr error)
}

// Config holds fast loop configuration
type Config struct {
	Interval              time.Duration
	PageSize              int
	ConfirmationThreshold int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:              5 * time.Second,
		PageSize:              100,
		ConfirmationThreshold: 5,
	}
}

// Worker owns the fast loop.
type Worker struct {
	config      Config
	projector   *Projector
	queue       *QueueProcessor
	withdrawals WithdrawalStore
	alerts      Alerter
	logger      *logger.Logger

	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewWorker creates a new ledger sync worker
func NewWorker(
	config Config,
	node NodeClient,
	addresses AddressStore,
	transactions TransactionStore,
	withdrawals WithdrawalStore,
	alerts Alerter,
	log *logger.Logger,
) *Worker {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	if config.ConfirmationThreshold < 1 {
		config.ConfirmationThreshold = DefaultConfig().ConfirmationThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		config:         config,
		projector:      NewProjector(node, addresses, transactions, withdrawals, config, log),
		queue:          NewQueueProcessor(node, addresses, transactions, withdrawals, alerts, log),
		withdrawals:    withdrawals,
		alerts:         alerts,
		logger:         log,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// Start begins the fast loop
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger sync worker", "interval", w.config.Interval)

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Shutdown gracefully stops the worker, letting the current pass finish.
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.logger.Info("Shutting down ledger sync worker", "timeout", timeout)
	w.shutdownCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Ledger sync worker shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Ledger sync worker stopped (context cancelled)")
			return
		case <-w.shutdownCtx.Done():
			w.logger.Info("Ledger sync worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes one full pass: projector, then withdrawal queue. Errors
// are logged and alerted, never fatal; the next tick retries from persisted
// state.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()

	if err := w.projector.Run(ctx); err != nil {
		w.logger.Error("Projector pass failed", "error", err)
		w.alerts.Sendf(ctx, "Projector pass failed", "🚨 Projector pass failed: %v", err)
	}

	if err := w.queue.Run(ctx); err != nil {
		w.logger.Error("Withdrawal queue pass failed", "error", err)
		w.alerts.Sendf(ctx, "Withdrawal queue pass failed", "🚨 Withdrawal queue pass failed: %v", err)
	}

	w.reportQueueDepth(ctx)
	metrics.LoopDuration.WithLabelValues("ledgersync").Observe(time.Since(start).Seconds())
}

func (w *Worker) reportQueueDepth(ctx context.Context) {
	for _, status := range []entities.WithdrawalStatus{
		entities.WithdrawalStatusPending,
		entities.WithdrawalStatusProcessing,
		entities.WithdrawalStatusSent,
		entities.WithdrawalStatusAdminCheck,
	} {
		count, err := w.withdrawals.CountByStatus(ctx, status)
		if err != nil {
			w.logger.Debug("Failed to count withdrawals", "status", status, "error", err)
			continue
		}
		metrics.WithdrawalsByStatus.WithLabelValues(string(status)).Set(float64(count))
	}
}
