package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// QueueProcessor drains pending withdrawals into the node. Each candidate
// passes a consistency gate and a UTXO gate, takes the status lease, and only
// then hits tx_send. Nothing here moves balances; the projector does that
// once the node reports the transaction.
type QueueProcessor struct {
	node         NodeClient
	addresses    AddressStore
	transactions TransactionStore
	withdrawals  WithdrawalStore
	alerts       Alerter
	logger       *logger.Logger
}

// NewQueueProcessor creates a new withdrawal queue processor
func NewQueueProcessor(
	node NodeClient,
	addresses AddressStore,
	transactions TransactionStore,
	withdrawals WithdrawalStore,
	alerts Alerter,
	log *logger.Logger,
) *QueueProcessor {
	return &QueueProcessor{
		node:         node,
		addresses:    addresses,
		transactions: transactions,
		withdrawals:  withdrawals,
		alerts:       alerts,
		logger:       log,
	}
}

// Run processes all pending withdrawals oldest first.
func (q *QueueProcessor) Run(ctx context.Context) error {
	pending, err := q.withdrawals.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending withdrawals: %w", err)
	}

	var failed int
	for _, w := range pending {
		if err := q.process(ctx, w); err != nil {
			failed++
			q.logger.Error("Failed to process withdrawal", "withdrawal_id", w.ID, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("withdrawal queue pass: %d of %d requests failed", failed, len(pending))
	}
	return nil
}

func (q *QueueProcessor) process(ctx context.Context, w *entities.PendingWithdrawal) error {
	sender, err := q.addresses.GetByID(ctx, w.Sender)
	if err != nil {
		return fmt.Errorf("load sender %s: %w", w.Sender, err)
	}

	violations, err := q.checkConsistency(ctx, w, sender)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		if err := q.withdrawals.SetStatus(ctx, w.ID, entities.WithdrawalStatusAdminCheck); err != nil {
			return fmt.Errorf("flag withdrawal %s: %w", w.ID, err)
		}
		q.alerts.WithdrawalFlagged(ctx, w, violations)
		metrics.WithdrawalsProcessed.WithLabelValues("flagged").Inc()
		return nil
	}

	if err := q.checkUTXOs(ctx, w); err != nil {
		if !errors.Is(err, entities.ErrInsufficientUTXO) {
			return err
		}
		// The row stays pending and is retried next pass.
		q.logger.Debug("Withdrawal deferred on UTXO shortage",
			"withdrawal_id", w.ID,
			"asset_id", w.AssetID,
			"value", w.Value,
			"error", err)
		metrics.WithdrawalsProcessed.WithLabelValues("deferred").Inc()
		return nil
	}

	acquired, err := q.withdrawals.AcquireProcessing(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("acquire lease for %s: %w", w.ID, err)
	}
	if !acquired {
		// Another processor instance took the row
		return nil
	}

	txID, err := q.node.TxSend(ctx, beamnode.TxSendRequest{
		Value:   w.Value.Int64(),
		Fee:     w.Fee.Int64(),
		Address: w.Receiver,
		From:    w.Sender,
		AssetID: w.AssetID,
		Comment: w.Comment,
	})
	if err != nil {
		// Put the row back; no balances were touched yet
		if revertErr := q.withdrawals.SetStatus(ctx, w.ID, entities.WithdrawalStatusPending); revertErr != nil {
			q.logger.Error("Failed to revert withdrawal lease",
				"withdrawal_id", w.ID,
				"error", revertErr)
		}
		q.alerts.WithdrawalSendFailed(ctx, w, err)
		metrics.WithdrawalsProcessed.WithLabelValues("failed").Inc()
		return fmt.Errorf("tx_send for %s: %w", w.ID, err)
	}

	if err := q.withdrawals.MarkSent(ctx, w.ID, txID); err != nil {
		return fmt.Errorf("mark withdrawal %s sent: %w", w.ID, err)
	}

	// Seed the ledger so the projector owns this transaction from its next
	// pass onward.
	placeholder := &entities.Transaction{
		ID:           txID,
		Status:       entities.TxStatusPending,
		StatusString: "pending",
		Income:       false,
		AssetID:      w.AssetID,
		Value:        w.Value,
		Fee:          w.Fee,
		Sender:       w.Sender,
		Receiver:     w.Receiver,
		Comment:      w.Comment,
		CreateTime:   time.Now().Unix(),
	}
	if err := q.transactions.Insert(ctx, placeholder); err != nil {
		return fmt.Errorf("insert placeholder for tx %s: %w", txID, err)
	}

	q.logger.Info("Withdrawal submitted",
		"withdrawal_id", w.ID,
		"tx_id", txID,
		"asset_id", w.AssetID,
		"value", w.Value,
		"fee", w.Fee)
	metrics.WithdrawalsProcessed.WithLabelValues("sent").Inc()
	return nil
}

// checkConsistency verifies that the sender's locked balances equal exactly
// what the already submitted, unfinished withdrawals owe. A mismatch means
// the ledger and the queue disagree, and nothing more may be submitted for
// this row until a human looks at it.
func (q *QueueProcessor) checkConsistency(ctx context.Context, w *entities.PendingWithdrawal, sender *entities.Address) ([]entities.ConsistencyViolation, error) {
	submitted, err := q.withdrawals.ListBySender(ctx, w.Sender,
		entities.WithdrawalStatusProcessing, entities.WithdrawalStatusSent)
	if err != nil {
		return nil, fmt.Errorf("list submitted withdrawals for %s: %w", w.Sender, err)
	}

	var pendingBeam, pendingAsset int64
	for _, s := range submitted {
		if s.AssetID == 0 {
			pendingBeam += s.Value.Int64() + s.Fee.Int64()
		} else {
			pendingBeam += s.Fee.Int64()
			if s.AssetID == w.AssetID {
				pendingAsset += s.Value.Int64()
			}
		}
	}

	var violations []entities.ConsistencyViolation

	lockedBeam := sender.Balance.LockedFor(0)
	if lockedBeam != pendingBeam {
		violations = append(violations, entities.ConsistencyViolation{
			Address:  w.Sender,
			AssetID:  0,
			Locked:   lockedBeam,
			Expected: pendingBeam,
		})
	}

	if w.AssetID != 0 {
		lockedAsset := sender.Balance.LockedFor(w.AssetID)
		if lockedAsset != pendingAsset {
			violations = append(violations, entities.ConsistencyViolation{
				Address:  w.Sender,
				AssetID:  w.AssetID,
				Locked:   lockedAsset,
				Expected: pendingAsset,
			})
		}
	}

	return violations, nil
}

// checkUTXOs confirms the node holds enough unlocked outputs to fund the
// withdrawal. For non-native assets the fee needs its own check against
// native outputs.
func (q *QueueProcessor) checkUTXOs(ctx context.Context, w *entities.PendingWithdrawal) error {
	need := w.Value.Int64()
	if w.AssetID == 0 {
		need += w.Fee.Int64()
	}

	sum, err := q.spendableSum(ctx, w.AssetID)
	if err != nil {
		return err
	}
	if sum < need {
		return fmt.Errorf("asset %d: have %d, need %d: %w", w.AssetID, sum, need, entities.ErrInsufficientUTXO)
	}

	if w.AssetID != 0 {
		beamSum, err := q.spendableSum(ctx, 0)
		if err != nil {
			return err
		}
		if beamSum < w.Fee.Int64() {
			return fmt.Errorf("fee: have %d, need %d: %w", beamSum, w.Fee.Int64(), entities.ErrInsufficientUTXO)
		}
	}

	return nil
}

func (q *QueueProcessor) spendableSum(ctx context.Context, assetID int64) (int64, error) {
	utxos, err := q.node.GetUTXO(ctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("get_utxo for asset %d: %w", assetID, err)
	}

	var sum int64
	for _, u := range utxos {
		if u.Status == beamnode.UTXOStatusAvailable && u.AssetID == assetID {
			sum += u.Amount.Int64()
		}
	}
	return sum, nil
}
