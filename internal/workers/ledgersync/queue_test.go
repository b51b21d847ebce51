package ledgersync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

func newTestQueue(node *fakeNode, addresses *fakeAddressStore, txs *fakeTransactionStore, ws *fakeWithdrawalStore, alerts *fakeAlerter) *QueueProcessor {
	return NewQueueProcessor(node, addresses, txs, ws, alerts, logger.New("debug", "test"))
}

func TestQueueSubmitsPendingWithdrawal(t *testing.T) {
	node := &fakeNode{
		nextTxID: "node-tx-1",
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(1000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(&entities.PendingWithdrawal{
		ID:       "w-1",
		Sender:   "sender-addr",
		Receiver: "external-addr",
		AssetID:  0,
		Value:    entities.Groth(500),
		Fee:      entities.Groth(100),
		Comment:  "invoice 42",
		Status:   entities.WithdrawalStatusPending,
	})
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	require.NoError(t, q.Run(context.Background()))

	require.Len(t, node.sent, 1)
	sent := node.sent[0]
	assert.Equal(t, int64(500), sent.Value)
	assert.Equal(t, int64(100), sent.Fee)
	assert.Equal(t, "external-addr", sent.Address)
	assert.Equal(t, "sender-addr", sent.From)
	assert.Equal(t, "invoice 42", sent.Comment)

	assert.Equal(t, entities.WithdrawalStatusSent, ws.rows["w-1"].Status)
	assert.Equal(t, "node-tx-1", ws.rows["w-1"].TxID)

	// The queue seeds the ledger so the projector can take over
	require.Contains(t, txs.rows, "node-tx-1")
	placeholder := txs.rows["node-tx-1"]
	assert.Equal(t, entities.TxStatusPending, placeholder.Status)
	assert.False(t, placeholder.Income)
	assert.Equal(t, entities.Groth(500), placeholder.Value)
	assert.Equal(t, "sender-addr", placeholder.Sender)
}

func TestQueueFlagsLockedBalanceMismatch(t *testing.T) {
	node := &fakeNode{
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(10000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	// Locked funds with no submitted withdrawal to account for them
	addresses.addresses["sender-addr"].Balance.Locked["0"] = 500
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(&entities.PendingWithdrawal{
		ID:       "w-1",
		Sender:   "sender-addr",
		Receiver: "external-addr",
		AssetID:  0,
		Value:    entities.Groth(200),
		Fee:      entities.Groth(100),
		Status:   entities.WithdrawalStatusPending,
	})
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	require.NoError(t, q.Run(context.Background()))

	assert.Empty(t, node.sent)
	assert.Equal(t, entities.WithdrawalStatusAdminCheck, ws.rows["w-1"].Status)
	require.Len(t, alerts.flagged, 1)
	assert.Equal(t, "w-1", alerts.flagged[0].ID)
}

func TestQueueAcceptsInFlightLocks(t *testing.T) {
	node := &fakeNode{
		nextTxID: "node-tx-2",
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(10000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	// One withdrawal already on the wire holds value 300 plus fee 100
	addresses.addresses["sender-addr"].Balance.Locked["0"] = 400
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(
		&entities.PendingWithdrawal{
			ID:         "w-sent",
			Sender:     "sender-addr",
			Receiver:   "somewhere",
			AssetID:    0,
			Value:      entities.Groth(300),
			Fee:        entities.Groth(100),
			Status:     entities.WithdrawalStatusSent,
			TxID:       "node-tx-1",
			CreateTime: 1,
		},
		&entities.PendingWithdrawal{
			ID:         "w-next",
			Sender:     "sender-addr",
			Receiver:   "external-addr",
			AssetID:    0,
			Value:      entities.Groth(200),
			Fee:        entities.Groth(100),
			Status:     entities.WithdrawalStatusPending,
			CreateTime: 2,
		},
	)
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	require.NoError(t, q.Run(context.Background()))

	assert.Empty(t, alerts.flagged)
	assert.Equal(t, entities.WithdrawalStatusSent, ws.rows["w-next"].Status)
	require.Len(t, node.sent, 1)
	assert.Equal(t, int64(200), node.sent[0].Value)
}

func TestQueueDefersOnUTXOShortage(t *testing.T) {
	node := &fakeNode{
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(300), Status: beamnode.UTXOStatusAvailable},
			// Locked outputs do not count toward spendable funds
			{ID: 2, AssetID: 0, Amount: entities.Groth(400), Status: 2},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(&entities.PendingWithdrawal{
		ID:       "w-1",
		Sender:   "sender-addr",
		Receiver: "external-addr",
		AssetID:  0,
		Value:    entities.Groth(500),
		Fee:      entities.Groth(100),
		Status:   entities.WithdrawalStatusPending,
	})
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	require.NoError(t, q.Run(context.Background()))

	// The request waits for change to mature; nothing is flagged or sent
	assert.Empty(t, node.sent)
	assert.Empty(t, alerts.flagged)
	assert.Equal(t, entities.WithdrawalStatusPending, ws.rows["w-1"].Status)
}

func TestQueueNonNativeAssetNeedsNativeFeeOutputs(t *testing.T) {
	node := &fakeNode{
		nextTxID: "node-tx-1",
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 7, Amount: entities.Groth(5000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(&entities.PendingWithdrawal{
		ID:       "w-1",
		Sender:   "sender-addr",
		Receiver: "external-addr",
		AssetID:  7,
		Value:    entities.Groth(2000),
		Fee:      entities.Groth(100),
		Status:   entities.WithdrawalStatusPending,
	})
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	// Plenty of the asset but no native outputs to pay the fee
	require.NoError(t, q.Run(context.Background()))
	assert.Empty(t, node.sent)
	assert.Equal(t, entities.WithdrawalStatusPending, ws.rows["w-1"].Status)

	node.utxos = append(node.utxos, beamnode.UTXO{
		ID: 2, AssetID: 0, Amount: entities.Groth(100), Status: beamnode.UTXOStatusAvailable,
	})
	require.NoError(t, q.Run(context.Background()))

	require.Len(t, node.sent, 1)
	assert.Equal(t, int64(7), node.sent[0].AssetID)
	assert.Equal(t, entities.WithdrawalStatusSent, ws.rows["w-1"].Status)
}

func TestQueueRevertsLeaseOnSendFailure(t *testing.T) {
	node := &fakeNode{
		sendErr: errors.New("node unavailable"),
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(1000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(&entities.PendingWithdrawal{
		ID:       "w-1",
		Sender:   "sender-addr",
		Receiver: "external-addr",
		AssetID:  0,
		Value:    entities.Groth(500),
		Fee:      entities.Groth(100),
		Status:   entities.WithdrawalStatusPending,
	})
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	err := q.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 requests failed")

	// The row goes back to the queue for the next pass
	assert.Equal(t, entities.WithdrawalStatusPending, ws.rows["w-1"].Status)
	require.Len(t, alerts.sendFailed, 1)
	assert.Equal(t, "w-1", alerts.sendFailed[0].ID)
	assert.Empty(t, txs.rows)
}

func TestQueueSkipsRowWhenLeaseLost(t *testing.T) {
	node := &fakeNode{
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(1000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(&entities.PendingWithdrawal{
		ID:       "w-1",
		Sender:   "sender-addr",
		Receiver: "external-addr",
		AssetID:  0,
		Value:    entities.Groth(500),
		Fee:      entities.Groth(100),
		Status:   entities.WithdrawalStatusPending,
	})
	ws.denyAcquire = true
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	require.NoError(t, q.Run(context.Background()))

	assert.Empty(t, node.sent)
	assert.Empty(t, txs.rows)
}

func TestQueueProcessesOldestFirst(t *testing.T) {
	node := &fakeNode{
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(100000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-a", "sender-b")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(
		&entities.PendingWithdrawal{
			ID: "w-new", Sender: "sender-b", Receiver: "r1", AssetID: 0,
			Value: entities.Groth(100), Fee: entities.Groth(10),
			Status: entities.WithdrawalStatusPending, CreateTime: 200,
		},
		&entities.PendingWithdrawal{
			ID: "w-old", Sender: "sender-a", Receiver: "r2", AssetID: 0,
			Value: entities.Groth(200), Fee: entities.Groth(10),
			Status: entities.WithdrawalStatusPending, CreateTime: 100,
		},
	)
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	require.NoError(t, q.Run(context.Background()))

	require.Len(t, node.sent, 2)
	assert.Equal(t, int64(200), node.sent[0].Value)
	assert.Equal(t, int64(100), node.sent[1].Value)
}

func TestQueueSerializesSameSenderUntilLockLands(t *testing.T) {
	node := &fakeNode{
		nextTxID: "node-tx-1",
		utxos: []beamnode.UTXO{
			{ID: 1, AssetID: 0, Amount: entities.Groth(100000), Status: beamnode.UTXOStatusAvailable},
		},
	}
	addresses := newFakeAddressStore("sender-addr")
	txs := newFakeTransactionStore()
	ws := newFakeWithdrawalStore(
		&entities.PendingWithdrawal{
			ID: "w-1", Sender: "sender-addr", Receiver: "r1", AssetID: 0,
			Value: entities.Groth(300), Fee: entities.Groth(100),
			Status: entities.WithdrawalStatusPending, CreateTime: 100,
		},
		&entities.PendingWithdrawal{
			ID: "w-2", Sender: "sender-addr", Receiver: "r2", AssetID: 0,
			Value: entities.Groth(200), Fee: entities.Groth(100),
			Status: entities.WithdrawalStatusPending, CreateTime: 200,
		},
	)
	alerts := &fakeAlerter{}
	q := newTestQueue(node, addresses, txs, ws, alerts)

	// First row submits; the second sees its sums in flight with nothing
	// locked yet and is parked for review
	require.NoError(t, q.Run(context.Background()))

	require.Len(t, node.sent, 1)
	assert.Equal(t, int64(300), node.sent[0].Value)
	assert.Equal(t, entities.WithdrawalStatusSent, ws.rows["w-1"].Status)
	assert.Equal(t, entities.WithdrawalStatusAdminCheck, ws.rows["w-2"].Status)
	require.Len(t, alerts.flagged, 1)
	assert.Equal(t, "w-2", alerts.flagged[0].ID)
}
