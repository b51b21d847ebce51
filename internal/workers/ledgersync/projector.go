package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// ledgerClass buckets the ledger's current knowledge of a transaction.
type ledgerClass uint8

const (
	ledgerAbsent      ledgerClass = iota // no row yet
	ledgerPlaceholder                    // row inserted by the queue, node status 0, nothing locked
	ledgerLocked                         // row whose balances were locked
)

// observedClass buckets the node's reported state.
type observedClass uint8

const (
	observedPending   observedClass = iota // status 0, not yet durable
	observedDurable                        // status 1 or 5
	observedCompleted                      // status 3 below the confirmation threshold
	observedFinal                          // status 3 at or above the threshold
	observedFailed                         // status 2 or 4
)

// plan is the action set for one (ledger, observed) pair.
type plan struct {
	insert   bool
	update   bool
	lock     bool
	finalize bool
	fail     bool
}

// transitions is the projector state machine. Locks fire exactly once, on
// the transition into a durable status; finalize and fail consume them.
var transitions = map[[2]uint8]plan{
	{uint8(ledgerAbsent), uint8(observedPending)}:   {},
	{uint8(ledgerAbsent), uint8(observedDurable)}:   {insert: true, lock: true},
	{uint8(ledgerAbsent), uint8(observedCompleted)}: {insert: true, lock: true},
	{uint8(ledgerAbsent), uint8(observedFinal)}:     {insert: true, lock: true, finalize: true},
	{uint8(ledgerAbsent), uint8(observedFailed)}:    {},

	{uint8(ledgerPlaceholder), uint8(observedPending)}:   {update: true},
	{uint8(ledgerPlaceholder), uint8(observedDurable)}:   {update: true, lock: true},
	{uint8(ledgerPlaceholder), uint8(observedCompleted)}: {update: true, lock: true},
	{uint8(ledgerPlaceholder), uint8(observedFinal)}:     {update: true, lock: true, finalize: true},
	{uint8(ledgerPlaceholder), uint8(observedFailed)}:    {update: true, fail: true},

	{uint8(ledgerLocked), uint8(observedPending)}:   {update: true},
	{uint8(ledgerLocked), uint8(observedDurable)}:   {update: true},
	{uint8(ledgerLocked), uint8(observedCompleted)}: {update: true},
	{uint8(ledgerLocked), uint8(observedFinal)}:     {update: true, finalize: true},
	{uint8(ledgerLocked), uint8(observedFailed)}:    {update: true, fail: true},
}

func classOfLedger(row *entities.Transaction) ledgerClass {
	switch {
	case row == nil:
		return ledgerAbsent
	case entities.DurableTxStatus(row.Status):
		return ledgerLocked
	default:
		return ledgerPlaceholder
	}
}

func classOfObserved(tx beamnode.TxInfo, threshold int) observedClass {
	switch {
	case entities.TerminalFailureStatus(tx.Status):
		return observedFailed
	case tx.Status == entities.TxStatusCompleted && tx.Confirmations >= threshold:
		return observedFinal
	case tx.Status == entities.TxStatusCompleted:
		return observedCompleted
	case entities.DurableTxStatus(tx.Status):
		return observedDurable
	default:
		return observedPending
	}
}

// Projector folds the node's transaction log into the ledger. It is the sole
// writer of balance fields and of the success flag.
type Projector struct {
	node         NodeClient
	addresses    AddressStore
	transactions TransactionStore
	withdrawals  WithdrawalStore
	threshold    int
	pageSize     int
	logger       *logger.Logger
}

// NewProjector creates a new transaction projector
func NewProjector(
	node NodeClient,
	addresses AddressStore,
	transactions TransactionStore,
	withdrawals WithdrawalStore,
	config Config,
	log *logger.Logger,
) *Projector {
	return &Projector{
		node:         node,
		addresses:    addresses,
		transactions: transactions,
		withdrawals:  withdrawals,
		threshold:    config.ConfirmationThreshold,
		pageSize:     config.PageSize,
		logger:       log,
	}
}

// Run pages through the node's transaction list and applies each record in
// create_time order, so a transaction's lock precedes its finalize even
// across passes.
func (p *Projector) Run(ctx context.Context) error {
	var all []beamnode.TxInfo
	for skip := 0; ; skip += p.pageSize {
		page, err := p.node.TxList(ctx, skip, p.pageSize)
		if err != nil {
			return fmt.Errorf("tx_list failed: %w", err)
		}
		all = append(all, page...)
		if len(page) < p.pageSize {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreateTime < all[j].CreateTime
	})

	var failed int
	for _, tx := range all {
		if err := p.processTx(ctx, tx); err != nil {
			failed++
			p.logger.Error("Failed to project transaction", "tx_id", tx.TxID, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("projector pass: %d of %d transactions failed", failed, len(all))
	}
	return nil
}

func (p *Projector) processTx(ctx context.Context, tx beamnode.TxInfo) error {
	ledger, err := p.transactions.GetByID(ctx, tx.TxID)
	if err != nil && !errors.Is(err, entities.ErrNotFound) {
		return fmt.Errorf("load ledger transaction %s: %w", tx.TxID, err)
	}

	// Terminal rows never move again
	if ledger != nil && ledger.Success {
		return nil
	}

	wasLocked := classOfLedger(ledger) == ledgerLocked
	step := transitions[[2]uint8{
		uint8(classOfLedger(ledger)),
		uint8(classOfObserved(tx, p.threshold)),
	}]

	row := rowFromNode(tx)

	if step.insert {
		if err := p.transactions.Insert(ctx, row); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.TxID, err)
		}
		metrics.TransactionsProjected.WithLabelValues("insert").Inc()
	}

	if step.update && ledger != nil &&
		(ledger.Status != tx.Status || ledger.Confirmations != tx.Confirmations) {
		if err := p.transactions.UpdateObserved(ctx, row); err != nil {
			return fmt.Errorf("update transaction %s: %w", tx.TxID, err)
		}
	}

	if step.lock {
		if err := p.lock(ctx, tx); err != nil {
			return fmt.Errorf("lock transaction %s: %w", tx.TxID, err)
		}
		metrics.TransactionsProjected.WithLabelValues("lock").Inc()
	}

	if step.finalize {
		return p.finalize(ctx, tx)
	}
	if step.fail {
		return p.fail(ctx, tx, wasLocked)
	}
	return nil
}

// lock commits a newly durable transaction against the ledger: outgoing
// value and fee move from available to locked on the sender, incoming value
// is locked on the receiver until confirmed.
func (p *Projector) lock(ctx context.Context, tx beamnode.TxInfo) error {
	value := tx.Value.Int64()
	fee := tx.Fee.Int64()

	senderOurs, err := p.isOurs(ctx, tx.Sender)
	if err != nil {
		return err
	}
	if senderOurs {
		deltas := []entities.BalanceDelta{
			{AssetID: tx.AssetID, Field: entities.BalanceAvailable, Amount: -value},
			{AssetID: tx.AssetID, Field: entities.BalanceLocked, Amount: value},
			{AssetID: 0, Field: entities.BalanceAvailable, Amount: -fee},
			{AssetID: 0, Field: entities.BalanceLocked, Amount: fee},
		}
		if err := p.addresses.ApplyBalanceDeltas(ctx, tx.Sender, deltas); err != nil {
			return fmt.Errorf("lock sender %s: %w", tx.Sender, err)
		}
	}

	receiverOurs, err := p.isOurs(ctx, tx.Receiver)
	if err != nil {
		return err
	}
	if receiverOurs {
		deltas := []entities.BalanceDelta{
			{AssetID: tx.AssetID, Field: entities.BalanceLocked, Amount: value},
		}
		if err := p.addresses.ApplyBalanceDeltas(ctx, tx.Receiver, deltas); err != nil {
			return fmt.Errorf("lock receiver %s: %w", tx.Receiver, err)
		}
	}

	return nil
}

// finalize settles a confirmed transaction: the sender's locks are consumed,
// the receiver's locked value becomes available, and any matching pending
// withdrawal is closed out.
func (p *Projector) finalize(ctx context.Context, tx beamnode.TxInfo) error {
	value := tx.Value.Int64()
	fee := tx.Fee.Int64()

	senderOurs, err := p.isOurs(ctx, tx.Sender)
	if err != nil {
		return err
	}
	if senderOurs {
		deltas := []entities.BalanceDelta{
			{AssetID: tx.AssetID, Field: entities.BalanceLocked, Amount: -value},
			{AssetID: 0, Field: entities.BalanceLocked, Amount: -fee},
		}
		if err := p.addresses.ApplyBalanceDeltas(ctx, tx.Sender, deltas); err != nil {
			return fmt.Errorf("finalize sender %s: %w", tx.Sender, err)
		}
	}

	receiverOurs, err := p.isOurs(ctx, tx.Receiver)
	if err != nil {
		return err
	}
	if receiverOurs {
		deltas := []entities.BalanceDelta{
			{AssetID: tx.AssetID, Field: entities.BalanceAvailable, Amount: value},
			{AssetID: tx.AssetID, Field: entities.BalanceLocked, Amount: -value},
		}
		if err := p.addresses.ApplyBalanceDeltas(ctx, tx.Receiver, deltas); err != nil {
			return fmt.Errorf("finalize receiver %s: %w", tx.Receiver, err)
		}
	}

	if moved, err := p.withdrawals.SetStatusByTxID(ctx, tx.TxID, entities.WithdrawalStatusSentConfirmed); err != nil {
		return fmt.Errorf("confirm withdrawal for tx %s: %w", tx.TxID, err)
	} else if moved {
		p.logger.Info("Withdrawal confirmed", "tx_id", tx.TxID)
	}

	if err := p.transactions.MarkSuccess(ctx, tx.TxID); err != nil {
		return fmt.Errorf("mark transaction %s success: %w", tx.TxID, err)
	}

	metrics.TransactionsProjected.WithLabelValues("finalize").Inc()
	return nil
}

// fail settles a cancelled or failed transaction. Refunds only undo locks
// that were actually taken: a placeholder that never went durable has
// nothing to release.
func (p *Projector) fail(ctx context.Context, tx beamnode.TxInfo, wasLocked bool) error {
	value := tx.Value.Int64()
	fee := tx.Fee.Int64()

	withdrawal, err := p.withdrawals.GetByTxID(ctx, tx.TxID)
	if err != nil && !errors.Is(err, entities.ErrNotFound) {
		return fmt.Errorf("load withdrawal for tx %s: %w", tx.TxID, err)
	}

	switch {
	case withdrawal != nil:
		if wasLocked {
			refund := []entities.BalanceDelta{
				{AssetID: tx.AssetID, Field: entities.BalanceAvailable, Amount: value},
				{AssetID: tx.AssetID, Field: entities.BalanceLocked, Amount: -value},
				{AssetID: 0, Field: entities.BalanceAvailable, Amount: fee},
				{AssetID: 0, Field: entities.BalanceLocked, Amount: -fee},
			}
			if err := p.addresses.ApplyBalanceDeltas(ctx, withdrawal.Sender, refund); err != nil {
				return fmt.Errorf("refund sender %s: %w", withdrawal.Sender, err)
			}
		}
		if _, err := p.withdrawals.SetStatusByTxID(ctx, tx.TxID, entities.WithdrawalStatusFailed); err != nil {
			return fmt.Errorf("fail withdrawal for tx %s: %w", tx.TxID, err)
		}
		p.logger.Warn("Withdrawal failed on chain",
			"tx_id", tx.TxID,
			"withdrawal_id", withdrawal.ID,
			"reason", tx.FailureReason)

	default:
		receiverOurs, err := p.isOurs(ctx, tx.Receiver)
		if err != nil {
			return err
		}
		if receiverOurs && wasLocked {
			deltas := []entities.BalanceDelta{
				{AssetID: tx.AssetID, Field: entities.BalanceLocked, Amount: -value},
			}
			if err := p.addresses.ApplyBalanceDeltas(ctx, tx.Receiver, deltas); err != nil {
				return fmt.Errorf("unlock receiver %s: %w", tx.Receiver, err)
			}
		}
	}

	if err := p.transactions.MarkSuccess(ctx, tx.TxID); err != nil {
		return fmt.Errorf("mark transaction %s success: %w", tx.TxID, err)
	}

	metrics.TransactionsProjected.WithLabelValues("fail").Inc()
	return nil
}

func (p *Projector) isOurs(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, nil
	}
	_, err := p.addresses.GetByID(ctx, address)
	if err != nil {
		if errors.Is(err, entities.ErrAddressNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("look up address %s: %w", address, err)
	}
	return true, nil
}

func rowFromNode(tx beamnode.TxInfo) *entities.Transaction {
	return tx.Transaction()
}
