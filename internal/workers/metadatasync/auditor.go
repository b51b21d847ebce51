package metadatasync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// Auditor compares the wallet node's per-asset totals against the ledger's
// aggregated balances. The node counts funds still settling under receiving
// and sending, so those are folded into its locked side before comparing.
// The auditor only reports; it never corrects the ledger.
type Auditor struct {
	node      NodeClient
	addresses AddressStore
	logger    *logger.Logger
}

// NewAuditor creates a new balance auditor
func NewAuditor(node NodeClient, addresses AddressStore, log *logger.Logger) *Auditor {
	return &Auditor{
		node:      node,
		addresses: addresses,
		logger:    log,
	}
}

// Run performs one reconciliation pass and returns the report.
func (a *Auditor) Run(ctx context.Context) (*entities.AuditReport, error) {
	status, err := a.node.WalletStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet_status: %w", err)
	}

	ledgerAvailable, err := a.addresses.AggregateBalances(ctx, entities.BalanceAvailable)
	if err != nil {
		return nil, fmt.Errorf("aggregate available balances: %w", err)
	}
	ledgerLocked, err := a.addresses.AggregateBalances(ctx, entities.BalanceLocked)
	if err != nil {
		return nil, fmt.Errorf("aggregate locked balances: %w", err)
	}

	nodeAvailable := make(map[int64]int64, len(status.Totals))
	nodeLocked := make(map[int64]int64, len(status.Totals))
	for _, total := range status.Totals {
		nodeAvailable[total.AssetID] = total.AvailableAmount()
		nodeLocked[total.AssetID] = total.LockedAmount() +
			total.ReceivingRegularAmount() + total.SendingRegularAmount()
	}

	report := &entities.AuditReport{CheckedAt: time.Now().UTC()}
	for _, assetID := range checkedAssets(nodeAvailable, ledgerAvailable, ledgerLocked) {
		report.AssetsChecked++
		key := entities.AssetKey(assetID)
		label := strconv.FormatInt(assetID, 10)

		compare := func(field string, node, ledger int64) {
			metrics.BalanceDrift.WithLabelValues(label, field).Set(float64(node - ledger))
			if node != ledger {
				report.Discrepancies = append(report.Discrepancies, entities.BalanceDiscrepancy{
					AssetID:      assetID,
					Field:        field,
					NodeAmount:   node,
					LedgerAmount: ledger,
				})
			}
		}
		compare(entities.BalanceFieldAvailable, nodeAvailable[assetID], ledgerAvailable[key])
		compare(entities.BalanceFieldLocked, nodeLocked[assetID], ledgerLocked[key])
	}

	return report, nil
}

// checkedAssets returns the sorted union of asset ids seen on either side.
// Zero ledger entries for assets the node no longer reports are not worth
// checking, non-zero ones are.
func checkedAssets(node map[int64]int64, ledger ...map[string]int64) []int64 {
	set := map[int64]bool{}
	for assetID := range node {
		set[assetID] = true
	}
	for _, side := range ledger {
		for key, amount := range side {
			if amount == 0 {
				continue
			}
			assetID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			set[assetID] = true
		}
	}

	ids := make([]int64, 0, len(set))
	for assetID := range set {
		ids = append(ids, assetID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
