// Package metadatasync runs the slow maintenance loop: BEAM/USD price
// refresh, asset metadata and DEX rate sync, wallet address sync, and the
// balance audit comparing node totals against the ledger.
package metadatasync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/cache"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// NodeClient is the slice of the wallet node API the slow loop drives.
type NodeClient interface {
	AddrList(ctx context.Context, own bool) ([]beamnode.AddressInfo, error)
	EditAddress(ctx context.Context, address, expiration string) error
	AssetsList(ctx context.Context, refresh bool, height int64) ([]beamnode.AssetInfo, error)
	WalletStatus(ctx context.Context) (*beamnode.WalletStatus, error)
	InvokeContract(ctx context.Context, args string, createTx bool) (*beamnode.ContractResult, error)
}

// AddressStore mirrors node addresses into the ledger.
type AddressStore interface {
	Sync(ctx context.Context, address *entities.Address) error
	AggregateBalances(ctx context.Context, field entities.BalanceField) (map[string]int64, error)
}

// AssetStore persists asset metadata and exchange rates.
type AssetStore interface {
	Upsert(ctx context.Context, asset *entities.Asset) error
	UpdateRates(ctx context.Context, assetID int64, rateBeam, rateUSD float64) error
}

// PriceSource supplies the BEAM/USD anchor price.
type PriceSource interface {
	BeamUSD(ctx context.Context) (float64, error)
}

// Alerter notifies operators about audit findings.
type Alerter interface {
	BalanceMismatch(ctx context.Context, report *entities.AuditReport)
}

// Config holds slow loop configuration
type Config struct {
	Schedule       string
	PassTimeout    time.Duration
	DexContractID  string
	VerifiedAssets []int64
	SpamAssets     []int64
	RateCacheTTL   time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Schedule:     "@every 120s",
		PassTimeout:  5 * time.Minute,
		RateCacheTTL: 10 * time.Minute,
	}
}

// Worker owns the slow loop.
type Worker struct {
	config    Config
	price     PriceSource
	assets    *AssetSynchronizer
	addresses *AddressSynchronizer
	auditor   *Auditor
	alerts    Alerter
	cron      *cron.Cron
	logger    *logger.Logger

	wg sync.WaitGroup
}

// NewWorker creates a new metadata sync worker
func NewWorker(
	config Config,
	node NodeClient,
	addresses AddressStore,
	assets AssetStore,
	price PriceSource,
	rateCache cache.RedisClient,
	alerts Alerter,
	log *logger.Logger,
) *Worker {
	if config.Schedule == "" {
		config.Schedule = DefaultConfig().Schedule
	}
	if config.PassTimeout <= 0 {
		config.PassTimeout = DefaultConfig().PassTimeout
	}
	if config.RateCacheTTL <= 0 {
		config.RateCacheTTL = DefaultConfig().RateCacheTTL
	}

	return &Worker{
		config:    config,
		price:     price,
		assets:    NewAssetSynchronizer(node, assets, rateCache, config, log),
		addresses: NewAddressSynchronizer(node, addresses, log),
		auditor:   NewAuditor(node, addresses, log),
		alerts:    alerts,
		cron:      cron.New(),
		logger:    log,
	}
}

// Start schedules the loop and kicks an immediate first pass so balances and
// asset metadata are fresh right after boot.
func (w *Worker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		passCtx, cancel := context.WithTimeout(context.Background(), w.config.PassTimeout)
		defer cancel()

		w.RunOnce(passCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule metadata sync: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Starting metadata sync worker", "schedule", w.config.Schedule)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		passCtx, cancel := context.WithTimeout(context.Background(), w.config.PassTimeout)
		defer cancel()

		w.RunOnce(passCtx)
	}()

	return nil
}

// Shutdown stops the schedule and waits for any in-flight pass to finish.
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.logger.Info("Shutting down metadata sync worker", "timeout", timeout)
	stopCtx := w.cron.Stop()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		<-stopCtx.Done()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Metadata sync worker shutdown complete")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// RunOnce executes one full pass. Step failures are logged and the pass
// continues; nothing here is fatal.
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()

	beamUSD, err := w.price.BeamUSD(ctx)
	if err != nil {
		w.logger.Warn("Failed to fetch BEAM/USD price", "error", err)
		beamUSD = 0
	}

	if err := w.assets.Sync(ctx, beamUSD); err != nil {
		w.logger.Error("Asset sync failed", "error", err)
	}

	if err := w.addresses.Sync(ctx); err != nil {
		w.logger.Error("Address sync failed", "error", err)
	}

	report, err := w.auditor.Run(ctx)
	switch {
	case err != nil:
		w.logger.Error("Balance audit failed", "error", err)
	case !report.Clean():
		w.logger.Warn("Balance mismatch between node and ledger",
			"discrepancies", len(report.Discrepancies))
		w.alerts.BalanceMismatch(ctx, report)
	}

	metrics.LoopDuration.WithLabelValues("metadatasync").Observe(time.Since(start).Seconds())
}
