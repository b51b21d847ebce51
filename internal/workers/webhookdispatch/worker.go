// Package webhookdispatch delivers transaction lifecycle events to registered
// consumer endpoints. Each cycle first replays dead-lettered deliveries, then
// scans the ledger for transactions still owing an event. The webhook_sent
// flags on the transaction are the idempotency boundary: a kind is marked only
// once a delivery lands, and a marked kind is never emitted again.
package webhookdispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
	"github.com/beampay-service/beampay_service/pkg/retry"
)

// TransactionStore supplies transactions owing events and records deliveries.
type TransactionStore interface {
	FindNeedingWebhook(ctx context.Context) ([]*entities.Transaction, error)
	MarkWebhookSent(ctx context.Context, txID string, kinds ...entities.EventKind) error
}

// AddressStore resolves whether a participant address belongs to the ledger.
type AddressStore interface {
	GetByID(ctx context.Context, id string) (*entities.Address, error)
}

// AssetStore supplies asset names and decimals for payload formatting.
type AssetStore interface {
	List(ctx context.Context) ([]*entities.Asset, error)
}

// WebhookStore holds registered endpoints and the dead letter queue.
type WebhookStore interface {
	URLsForEvent(ctx context.Context, kind entities.EventKind) ([]string, error)
	InsertFailed(ctx context.Context, failed *entities.FailedWebhook) error
	ListFailed(ctx context.Context) ([]*entities.FailedWebhook, error)
	HasFailed(ctx context.Context, url string, kind entities.EventKind, txID string) (bool, error)
	DeleteFailed(ctx context.Context, id primitive.ObjectID) error
	RecordFailedAttempt(ctx context.Context, id primitive.ObjectID) error
	CountFailed(ctx context.Context) (int64, error)
}

// Alerter notifies operators about dispatch problems.
type Alerter interface {
	Sendf(ctx context.Context, subject, format string, args ...interface{})
	WebhookDead(ctx context.Context, url, event, txID string)
}

// Config holds webhook dispatcher configuration
type Config struct {
	Interval              time.Duration
	PostTimeout           time.Duration
	MaxAttempts           int
	RetryBackoff          time.Duration
	ConfirmationThreshold int
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Interval:              10 * time.Second,
		PostTimeout:           5 * time.Second,
		MaxAttempts:           5,
		RetryBackoff:          20 * time.Second,
		ConfirmationThreshold: 5,
	}
}

func deliveryPolicy(config Config) retry.Policy {
	return retry.Policy{
		MaxRetries:     config.MaxAttempts - 1,
		InitialBackoff: config.RetryBackoff,
		MaxBackoff:     10 * time.Minute,
		Multiplier:     2.0,
	}
}

// Worker runs the webhook loop.
type Worker struct {
	config     Config
	dispatcher *Dispatcher
	webhooks   WebhookStore
	alerts     Alerter
	logger     *logger.Logger

	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewWorker creates a new webhook dispatch worker
func NewWorker(
	config Config,
	transactions TransactionStore,
	addresses AddressStore,
	assets AssetStore,
	webhooks WebhookStore,
	alerts Alerter,
	log *logger.Logger,
) *Worker {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PostTimeout <= 0 {
		config.PostTimeout = DefaultConfig().PostTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if config.ConfirmationThreshold <= 0 {
		config.ConfirmationThreshold = DefaultConfig().ConfirmationThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	sender := NewSender(config.PostTimeout, deliveryPolicy(config), log)

	return &Worker{
		config:         config,
		dispatcher:     NewDispatcher(transactions, addresses, assets, webhooks, sender, alerts, config, log),
		webhooks:       webhooks,
		alerts:         alerts,
		logger:         log,
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// Start begins the dispatch loop
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting webhook dispatch worker", "interval", w.config.Interval)

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Shutdown stops the worker and waits for the current cycle to finish
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.logger.Info("Shutting down webhook dispatch worker", "timeout", timeout)
	w.shutdownCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Webhook dispatch worker shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Webhook dispatch worker stopped")
			return
		case <-w.shutdownCtx.Done():
			w.logger.Info("Webhook dispatch worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single dispatch cycle.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()

	if err := w.dispatcher.Run(ctx); err != nil {
		w.logger.Error("Webhook pass failed", "error", err)
		w.alerts.Sendf(ctx, "Webhook pass failed", "🚨 Webhook pass failed: %v", err)
	}

	if count, err := w.webhooks.CountFailed(ctx); err == nil {
		metrics.DeadLetteredWebhooks.Set(float64(count))
	}

	metrics.LoopDuration.WithLabelValues("webhookdispatch").Observe(time.Since(start).Seconds())
}
