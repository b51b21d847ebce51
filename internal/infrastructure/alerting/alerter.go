// Package alerting fans operator alerts out to the configured sinks.
// Delivery is best effort: a sink failure is logged and never propagated
// back into the loop that raised the alert.
package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

const sendTimeout = 15 * time.Second

// Sink delivers one alert message to a single channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// Alerter broadcasts alerts to every configured sink.
type Alerter struct {
	sinks  []Sink
	logger *logger.Logger
}

// New creates an alerter over the given sinks. With no sinks every alert
// still lands in the log.
func New(log *logger.Logger, sinks ...Sink) *Alerter {
	return &Alerter{
		sinks:  sinks,
		logger: log,
	}
}

// Sendf formats and broadcasts a free-form alert
func (a *Alerter) Sendf(ctx context.Context, subject, format string, args ...interface{}) {
	a.send(ctx, subject, fmt.Sprintf(format, args...))
}

// WithdrawalFlagged reports a withdrawal parked in admin_check by the
// consistency gate.
func (a *Alerter) WithdrawalFlagged(ctx context.Context, w *entities.PendingWithdrawal, violations []entities.ConsistencyViolation) {
	var b strings.Builder
	fmt.Fprintf(&b, "Withdrawal %s parked for review.\n", w.ID)
	fmt.Fprintf(&b, "Sender: %s\nAsset: %d\nValue: %d groth (fee %d)\n", w.Sender, w.AssetID, int64(w.Value), int64(w.Fee))
	for _, v := range violations {
		fmt.Fprintf(&b, "Locked mismatch on %s asset %d: locked %d, expected %d\n",
			v.Address, v.AssetID, v.Locked, v.Expected)
	}
	a.send(ctx, "Withdrawal flagged", b.String())
}

// WithdrawalSendFailed reports a tx_send rejection for a vetted withdrawal
func (a *Alerter) WithdrawalSendFailed(ctx context.Context, w *entities.PendingWithdrawal, sendErr error) {
	body := fmt.Sprintf("Withdrawal %s failed to submit.\nSender: %s\nReceiver: %s\nAsset: %d\nValue: %d groth\nError: %v",
		w.ID, w.Sender, w.Receiver, w.AssetID, int64(w.Value), sendErr)
	a.send(ctx, "Withdrawal submission failed", body)
}

// BalanceMismatch reports auditor discrepancies between node and ledger totals
func (a *Alerter) BalanceMismatch(ctx context.Context, report *entities.AuditReport) {
	var b strings.Builder
	fmt.Fprintf(&b, "Balance audit found %d discrepancies across %d assets.\n", len(report.Discrepancies), report.AssetsChecked)
	for _, d := range report.Discrepancies {
		fmt.Fprintf(&b, "Asset %d %s: node %d, ledger %d (diff %d)\n",
			d.AssetID, d.Field, d.NodeAmount, d.LedgerAmount, d.Difference())
	}
	a.send(ctx, "Balance audit mismatch", b.String())
}

// WebhookDead reports a webhook delivery abandoned after exhausting retries
func (a *Alerter) WebhookDead(ctx context.Context, url, event, txID string) {
	body := fmt.Sprintf("Webhook delivery to %s gave up.\nEvent: %s\nTx: %s", url, event, txID)
	a.send(ctx, "Webhook dead-lettered", body)
}

func (a *Alerter) send(ctx context.Context, subject, body string) {
	a.logger.Warn("Operator alert", "subject", subject, "body", body)

	if len(a.sinks) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	for _, sink := range a.sinks {
		if err := sink.Send(ctx, subject, body); err != nil {
			a.logger.Error("Alert sink failed", "sink", sink.Name(), "subject", subject, "error", err)
		}
	}
}
