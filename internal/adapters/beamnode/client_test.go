package beamnode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rpcServer(t *testing.T, handler func(method string, params json.RawMessage) (string, bool)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string          `json:"jsonrpc"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		payload, isAssets := handler(req.Method, req.Params)
		key := "result"
		if isAssets {
			key = "assets"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"` + key + `":` + payload + `}`))
	}))
}

func TestWalletStatus(t *testing.T) {
	server := rpcServer(t, func(method string, _ json.RawMessage) (string, bool) {
		assert.Equal(t, "wallet_status", method)
		return `{
			"current_height": 1000,
			"totals": [
				{"asset_id": 0, "available_str": "500000000", "locked_str": "100000", "receiving_regular_str": "0", "sending_regular_str": "200"},
				{"asset_id": 7, "available": 42, "locked": 0}
			]
		}`, false
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	status, err := client.WalletStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1000), status.CurrentHeight)
	require.Len(t, status.Totals, 2)
	assert.Equal(t, int64(500000000), status.Totals[0].AvailableAmount())
	assert.Equal(t, int64(100000), status.Totals[0].LockedAmount())
	assert.Equal(t, int64(200), status.Totals[0].SendingRegularAmount())
	assert.Equal(t, int64(42), status.Totals[1].AvailableAmount())
}

func TestTxList(t *testing.T) {
	t.Run("decodes string and numeric amounts", func(t *testing.T) {
		server := rpcServer(t, func(method string, params json.RawMessage) (string, bool) {
			assert.Equal(t, "tx_list", method)
			var p map[string]int
			require.NoError(t, json.Unmarshal(params, &p))
			assert.Equal(t, 20, p["skip"])
			assert.Equal(t, 100, p["count"])
			return `[
				{"txId": "t1", "status": 1, "income": true, "asset_id": 7, "value": "500", "fee": 100000, "receiver": "addrA", "create_time": 10, "confirmations": 0},
				{"txId": "t2", "status": 3, "income": false, "asset_id": 0, "value": 1000000, "fee": "100000", "sender": "addrB", "create_time": 11, "confirmations": 6}
			]`, false
		})
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
		txs, err := client.TxList(context.Background(), 20, 100)

		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, int64(500), txs[0].Value.Int64())
		assert.Equal(t, int64(100000), txs[0].Fee.Int64())
		assert.Equal(t, int64(1000000), txs[1].Value.Int64())
		assert.Equal(t, int64(100000), txs[1].Fee.Int64())
	})

	t.Run("surfaces node errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32003,"message":"invalid params"}}`))
		}))
		defer server.Close()

		client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
		_, err := client.TxList(context.Background(), 0, 100)

		require.Error(t, err)
		rpcErr, ok := AsRPCError(err)
		require.True(t, ok)
		assert.Equal(t, -32003, rpcErr.Code)
		assert.Equal(t, "invalid params", rpcErr.Message)
	})
}

func TestTxSend(t *testing.T) {
	server := rpcServer(t, func(method string, params json.RawMessage) (string, bool) {
		assert.Equal(t, "tx_send", method)
		var p map[string]interface{}
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, float64(500), p["value"])
		assert.Equal(t, float64(100000), p["fee"])
		assert.Equal(t, "receiver-token", p["address"])
		assert.Equal(t, "sender-addr", p["from"])
		assert.Equal(t, float64(7), p["asset_id"])
		return `{"txId": "sent-tx-1"}`, false
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	txID, err := client.TxSend(context.Background(), TxSendRequest{
		Value:   500,
		Fee:     100000,
		Address: "receiver-token",
		From:    "sender-addr",
		AssetID: 7,
	})

	require.NoError(t, err)
	assert.Equal(t, "sent-tx-1", txID)
}

func TestGetUTXO(t *testing.T) {
	server := rpcServer(t, func(method string, params json.RawMessage) (string, bool) {
		assert.Equal(t, "get_utxo", method)
		var p map[string]interface{}
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, true, p["assets"])
		filter := p["filter"].(map[string]interface{})
		assert.Equal(t, float64(7), filter["asset_id"])
		return `[
			{"id": 1, "amount": 300, "asset_id": 7, "status": 1},
			{"id": 2, "amount": 200, "asset_id": 7, "status": 2}
		]`, false
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	utxos, err := client.GetUTXO(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, UTXOStatusAvailable, utxos[0].Status)
	assert.Equal(t, int64(300), utxos[0].Amount.Int64())
}

func TestAssetsList(t *testing.T) {
	server := rpcServer(t, func(method string, params json.RawMessage) (string, bool) {
		assert.Equal(t, "assets_list", method)
		var p map[string]interface{}
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, true, p["refresh"])
		return `[{"asset_id": 7, "metadata": "STD:N=Token;SN=TKN;UN=TKN;NTH_RATIO=1000000"}]`, true
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	assets, err := client.AssetsList(context.Background(), true, 0)

	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, int64(7), assets[0].AssetID)
	assert.Contains(t, assets[0].Metadata, "NTH_RATIO=1000000")
}

func TestValidateAddress(t *testing.T) {
	server := rpcServer(t, func(method string, params json.RawMessage) (string, bool) {
		assert.Equal(t, "validate_address", method)
		return `{"is_valid": true, "is_mine": false, "type": "offline"}`, false
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	validation, err := client.ValidateAddress(context.Background(), "some-token")

	require.NoError(t, err)
	assert.True(t, validation.IsValid)
	assert.False(t, validation.IsMine)
	assert.Equal(t, "offline", validation.Type)
}

func TestBlockDetails(t *testing.T) {
	server := rpcServer(t, func(method string, params json.RawMessage) (string, bool) {
		assert.Equal(t, "block_details", method)
		var p map[string]int64
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, int64(1234), p["height"])
		return `{"height": 1234, "block_hash": "abcd", "timestamp": 1700000000}`, false
	})
	defer server.Close()

	client := NewClient(Config{RPCURL: server.URL}, zap.NewNop())
	block, err := client.BlockDetails(context.Background(), 1234)

	require.NoError(t, err)
	assert.Equal(t, "abcd", block.BlockHash)
	assert.Equal(t, int64(1700000000), block.Timestamp)
}
