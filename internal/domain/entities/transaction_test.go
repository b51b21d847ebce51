package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurableTxStatusSkipsPending(t *testing.T) {
	assert.False(t, DurableTxStatus(TxStatusPending))
	assert.True(t, DurableTxStatus(TxStatusInProgress))
	assert.True(t, DurableTxStatus(TxStatusRegistering))
	assert.True(t, DurableTxStatus(TxStatusCompleted))
	assert.False(t, DurableTxStatus(TxStatusCancelled))
	assert.False(t, DurableTxStatus(TxStatusFailed))
}

func TestTerminalFailureStatusRefundsBothWays(t *testing.T) {
	assert.True(t, TerminalFailureStatus(TxStatusCancelled))
	assert.True(t, TerminalFailureStatus(TxStatusFailed))
	assert.False(t, TerminalFailureStatus(TxStatusCompleted))
	assert.False(t, TerminalFailureStatus(TxStatusInProgress))
}

func TestEventKindValid(t *testing.T) {
	assert.True(t, EventDepositConfirmed.Valid())
	assert.True(t, EventWithdrawPending.Valid())
	assert.True(t, EventCancelled.Valid())
	assert.False(t, EventKind("deposit_exploded").Valid())
	assert.False(t, EventKind("").Valid())
}

func TestWebhookSentFor(t *testing.T) {
	tx := Transaction{WebhookSent: map[string]bool{"deposit_pending": true}}

	assert.True(t, tx.WebhookSentFor(EventDepositPending))
	assert.False(t, tx.WebhookSentFor(EventDepositConfirmed))

	var empty Transaction
	assert.False(t, empty.WebhookSentFor(EventDepositPending))
}
