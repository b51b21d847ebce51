package webhookdispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// Dispatcher decides which lifecycle events a transaction still owes and
// delivers them. Deposit kinds describe the receiver, withdraw kinds the
// sender; a transfer between two ledger addresses collapses both confirmed
// kinds into a single internal_transfer_confirmed once it finalizes.
type Dispatcher struct {
	transactions TransactionStore
	addresses    AddressStore
	assets       AssetStore
	webhooks     WebhookStore
	sender       *Sender
	alerts       Alerter
	threshold    int
	maxAttempts  int
	logger       *logger.Logger
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(
	transactions TransactionStore,
	addresses AddressStore,
	assets AssetStore,
	webhooks WebhookStore,
	sender *Sender,
	alerts Alerter,
	config Config,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		transactions: transactions,
		addresses:    addresses,
		assets:       assets,
		webhooks:     webhooks,
		sender:       sender,
		alerts:       alerts,
		threshold:    config.ConfirmationThreshold,
		maxAttempts:  config.MaxAttempts,
		logger:       log,
	}
}

// Run executes one dispatch cycle: replay the dead letter queue, then emit
// whatever the monitor query still owes.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.replayFailed(ctx); err != nil {
		d.logger.Error("Dead letter replay failed", "error", err)
	}

	txs, err := d.transactions.FindNeedingWebhook(ctx)
	if err != nil {
		return fmt.Errorf("find transactions needing webhook: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}

	catalog, err := d.assetCatalog(ctx)
	if err != nil {
		d.logger.Warn("Failed to load asset catalog, using fallback names", "error", err)
	}

	var failed int
	for _, tx := range txs {
		if err := d.processTx(ctx, tx, catalog); err != nil {
			failed++
			d.logger.Error("Failed to dispatch transaction events",
				"tx_id", tx.ID,
				"status", tx.Status,
				"error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("webhook pass: %d of %d transactions failed", failed, len(txs))
	}
	return nil
}

func (d *Dispatcher) processTx(ctx context.Context, tx *entities.Transaction, catalog map[int64]*entities.Asset) error {
	receiverOurs, err := d.isOurs(ctx, tx.Receiver)
	if err != nil {
		return err
	}
	senderOurs, err := d.isOurs(ctx, tx.Sender)
	if err != nil {
		return err
	}
	internal := senderOurs && receiverOurs

	// Receiver chain: deposits.
	switch {
	case pendingStatus(tx.Status) && receiverOurs && !tx.WebhookSentFor(entities.EventDepositPending):
		if err := d.emit(ctx, tx, entities.EventDepositPending, catalog); err != nil {
			return err
		}
	case tx.Status == entities.TxStatusCompleted && receiverOurs && !internal &&
		tx.Confirmations >= d.threshold && !tx.WebhookSentFor(entities.EventDepositConfirmed):
		if err := d.emit(ctx, tx, entities.EventDepositConfirmed, catalog); err != nil {
			return err
		}
	}

	// Sender chain: withdrawals, then the terminal failure kinds. Failed and
	// cancelled need no participant check, every ledger row involves the
	// wallet.
	switch {
	case inFlightStatus(tx.Status) && senderOurs && !tx.WebhookSentFor(entities.EventWithdrawPending):
		if err := d.emit(ctx, tx, entities.EventWithdrawPending, catalog); err != nil {
			return err
		}
	case tx.Status == entities.TxStatusCompleted && senderOurs && !internal &&
		!tx.WebhookSentFor(entities.EventWithdrawConfirmed):
		if err := d.emit(ctx, tx, entities.EventWithdrawConfirmed, catalog); err != nil {
			return err
		}
	case tx.Status == entities.TxStatusFailed && !tx.WebhookSentFor(entities.EventFailed):
		if err := d.emit(ctx, tx, entities.EventFailed, catalog); err != nil {
			return err
		}
	case tx.Status == entities.TxStatusCancelled && !tx.WebhookSentFor(entities.EventCancelled):
		if err := d.emit(ctx, tx, entities.EventCancelled, catalog); err != nil {
			return err
		}
	}

	// Internal transfers emit one event for both sides once finalized.
	if internal && tx.Status == entities.TxStatusCompleted &&
		tx.Confirmations >= d.threshold && !tx.WebhookSentFor(entities.EventInternalTransferConfirmed) {
		if err := d.emit(ctx, tx, entities.EventInternalTransferConfirmed, catalog,
			entities.EventDepositConfirmed, entities.EventWithdrawConfirmed); err != nil {
			return err
		}
	}

	return nil
}

// emit delivers one event kind to every subscribed endpoint and marks the
// kind (plus any alsoMark kinds) once at least one delivery lands. Endpoints
// that already have a dead letter row for this event are skipped, the replay
// path owns them.
func (d *Dispatcher) emit(ctx context.Context, tx *entities.Transaction, kind entities.EventKind, catalog map[int64]*entities.Asset, alsoMark ...entities.EventKind) error {
	urls, err := d.webhooks.URLsForEvent(ctx, kind)
	if err != nil {
		return fmt.Errorf("list endpoints for %s: %w", kind, err)
	}

	payload := d.payloadFor(tx, kind, catalog)

	delivered := false
	for _, url := range urls {
		dead, err := d.webhooks.HasFailed(ctx, url, kind, tx.ID)
		if err != nil {
			return fmt.Errorf("check dead letters for %s: %w", url, err)
		}
		if dead {
			continue
		}

		if err := d.sender.Deliver(ctx, url, payload); err != nil {
			d.logger.Error("Webhook delivery exhausted retries",
				"url", url,
				"event", kind,
				"tx_id", tx.ID,
				"error", err)

			row := &entities.FailedWebhook{
				URL:         url,
				EventType:   kind,
				Data:        *payload,
				LastAttempt: time.Now(),
				Attempts:    d.maxAttempts,
			}
			if err := d.webhooks.InsertFailed(ctx, row); err != nil {
				return fmt.Errorf("dead letter webhook for %s: %w", url, err)
			}
			d.alerts.WebhookDead(ctx, url, string(kind), tx.ID)
			continue
		}

		delivered = true
		d.logger.Info("Webhook delivered", "url", url, "event", kind, "tx_id", tx.ID)
	}

	// With no subscribers the event is vacuously delivered; leaving the flag
	// unset would make the monitor rescan the row forever.
	if delivered || len(urls) == 0 {
		kinds := append([]entities.EventKind{kind}, alsoMark...)
		if err := d.transactions.MarkWebhookSent(ctx, tx.ID, kinds...); err != nil {
			return fmt.Errorf("mark %s sent: %w", kind, err)
		}
	}

	return nil
}

// replayFailed gives every dead lettered delivery one more attempt. Success
// deletes the row and marks the transaction; failure just bumps the counter
// so the row waits for the next cycle.
func (d *Dispatcher) replayFailed(ctx context.Context) error {
	rows, err := d.webhooks.ListFailed(ctx)
	if err != nil {
		return fmt.Errorf("list failed webhooks: %w", err)
	}

	for _, row := range rows {
		payload := row.Data
		if err := d.sender.DeliverOnce(ctx, row.URL, &payload); err != nil {
			d.logger.Debug("Dead letter replay still failing",
				"url", row.URL,
				"event", row.EventType,
				"attempts", row.Attempts,
				"error", err)
			if err := d.webhooks.RecordFailedAttempt(ctx, row.ID); err != nil {
				d.logger.Error("Failed to record replay attempt", "url", row.URL, "error", err)
			}
			continue
		}

		if err := d.webhooks.DeleteFailed(ctx, row.ID); err != nil {
			d.logger.Error("Failed to delete replayed webhook", "url", row.URL, "error", err)
		}
		if err := d.transactions.MarkWebhookSent(ctx, payload.TxID, row.EventType); err != nil {
			d.logger.Error("Failed to mark replayed event", "tx_id", payload.TxID, "error", err)
		}
		d.logger.Info("Replayed dead lettered webhook",
			"url", row.URL,
			"event", row.EventType,
			"tx_id", payload.TxID)
	}

	return nil
}

func (d *Dispatcher) payloadFor(tx *entities.Transaction, kind entities.EventKind, catalog map[int64]*entities.Asset) *entities.WebhookPayload {
	name := fmt.Sprintf("ASSET-%d", tx.AssetID)
	decimals := entities.DefaultAssetDecimals
	if asset, ok := catalog[tx.AssetID]; ok {
		name = asset.Name()
		decimals = asset.Decimals
	}

	payload := &entities.WebhookPayload{
		Event:          kind,
		TxID:           tx.ID,
		Amount:         tx.Value,
		ValueFormatted: tx.Value.Format(decimals),
		AssetID:        tx.AssetID,
		AssetName:      name,
	}

	switch kind {
	case entities.EventDepositPending, entities.EventDepositConfirmed, entities.EventInternalTransferConfirmed:
		payload.Address = tx.Receiver
		payload.Comment = tx.Comment
		payload.Kernel = tx.Kernel
	case entities.EventWithdrawPending, entities.EventWithdrawConfirmed:
		payload.Address = tx.Sender
		payload.Comment = tx.Comment
		payload.Kernel = tx.Kernel
	case entities.EventFailed:
		payload.Address = tx.Sender
		payload.Reason = tx.FailureReason
		if payload.Reason == "" {
			payload.Reason = "unknown error"
		}
	case entities.EventCancelled:
		payload.Address = tx.Sender
	}

	return payload
}

func (d *Dispatcher) assetCatalog(ctx context.Context) (map[int64]*entities.Asset, error) {
	assets, err := d.assets.List(ctx)
	if err != nil {
		return nil, err
	}

	catalog := make(map[int64]*entities.Asset, len(assets))
	for _, asset := range assets {
		catalog[asset.ID] = asset
	}
	return catalog, nil
}

func (d *Dispatcher) isOurs(ctx context.Context, address string) (bool, error) {
	if address == "" {
		return false, nil
	}
	_, err := d.addresses.GetByID(ctx, address)
	if err != nil {
		if errors.Is(err, entities.ErrAddressNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("look up address %s: %w", address, err)
	}
	return true, nil
}

// pendingStatus matches the statuses that announce an incoming deposit.
func pendingStatus(status int) bool {
	return status == entities.TxStatusPending ||
		status == entities.TxStatusInProgress ||
		status == entities.TxStatusRegistering
}

// inFlightStatus matches the statuses that announce an outgoing withdrawal.
// Registering is excluded, the node only reports it for incoming sides.
func inFlightStatus(status int) bool {
	return status == entities.TxStatusPending ||
		status == entities.TxStatusInProgress
}
