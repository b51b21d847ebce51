package beamnode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
)

// Config represents wallet node client configuration
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// Client is a JSON-RPC 2.0 client for the BEAM wallet node. It keeps no
// mutable state and is safe for concurrent use; callers own retry policy.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a new wallet node client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "beam-node",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// call performs one JSON-RPC round trip and decodes the result (or assets)
// payload into out.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RPCURL, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("node request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read node response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("node returned status %d: %s", resp.StatusCode, string(body))
		}
		return body, nil
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.NodeRequestDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(raw.([]byte), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal node response: %w", err)
	}

	if envelope.Error != nil {
		c.logger.Debug("node rejected rpc call",
			zap.String("method", method),
			zap.Int("code", envelope.Error.Code),
			zap.String("message", envelope.Error.Message),
		)
		return envelope.Error
	}

	if out == nil {
		return nil
	}

	switch {
	case envelope.Result != nil:
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	case envelope.Assets != nil:
		if err := json.Unmarshal(envelope.Assets, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s assets: %w", method, err)
		}
	default:
		return fmt.Errorf("empty %s response from node", method)
	}

	return nil
}

// CreateAddress creates a new receive address on the node.
func (c *Client) CreateAddress(ctx context.Context, params CreateAddressParams) (string, error) {
	if params.Type == "" {
		params.Type = "regular"
	}
	if params.Expiration == "" {
		params.Expiration = "never"
	}
	var address string
	if err := c.call(ctx, "create_address", params, &address); err != nil {
		return "", fmt.Errorf("create_address failed: %w", err)
	}
	return address, nil
}

// ValidateAddress checks an address and reports its wallet type.
func (c *Client) ValidateAddress(ctx context.Context, address string) (*AddressValidation, error) {
	var result AddressValidation
	params := map[string]string{"address": address}
	if err := c.call(ctx, "validate_address", params, &result); err != nil {
		return nil, fmt.Errorf("validate_address failed: %w", err)
	}
	return &result, nil
}

// AddrList returns the node's addresses. own=true restricts to addresses
// the wallet holds keys for.
func (c *Client) AddrList(ctx context.Context, own bool) ([]AddressInfo, error) {
	var result []AddressInfo
	params := map[string]bool{"own": own}
	if err := c.call(ctx, "addr_list", params, &result); err != nil {
		return nil, fmt.Errorf("addr_list failed: %w", err)
	}
	return result, nil
}

// EditAddress updates an address's expiration on the node.
func (c *Client) EditAddress(ctx context.Context, address, expiration string) error {
	params := map[string]string{
		"address":    address,
		"expiration": expiration,
	}
	if err := c.call(ctx, "edit_address", params, nil); err != nil {
		return fmt.Errorf("edit_address failed: %w", err)
	}
	return nil
}

// WalletStatus returns chain height and per-asset wallet totals.
func (c *Client) WalletStatus(ctx context.Context) (*WalletStatus, error) {
	var result WalletStatus
	if err := c.call(ctx, "wallet_status", struct{}{}, &result); err != nil {
		return nil, fmt.Errorf("wallet_status failed: %w", err)
	}
	return &result, nil
}

// TxList pages through the node's transaction history.
func (c *Client) TxList(ctx context.Context, skip, count int) ([]TxInfo, error) {
	var result []TxInfo
	params := map[string]int{
		"skip":  skip,
		"count": count,
	}
	if err := c.call(ctx, "tx_list", params, &result); err != nil {
		return nil, fmt.Errorf("tx_list failed: %w", err)
	}
	return result, nil
}

// TxSend submits a transfer and returns the node-assigned transaction id.
func (c *Client) TxSend(ctx context.Context, req TxSendRequest) (string, error) {
	var result txSendResult
	if err := c.call(ctx, "tx_send", req, &result); err != nil {
		return "", fmt.Errorf("tx_send failed: %w", err)
	}
	return result.TxID, nil
}

// TxStatus fetches one transaction by id.
func (c *Client) TxStatus(ctx context.Context, txID string) (*TxInfo, error) {
	var result TxInfo
	params := map[string]string{"txId": txID}
	if err := c.call(ctx, "tx_status", params, &result); err != nil {
		return nil, fmt.Errorf("tx_status failed: %w", err)
	}
	return &result, nil
}

// TxCancel asks the node to cancel an in-flight transaction.
func (c *Client) TxCancel(ctx context.Context, txID string) error {
	params := map[string]string{"txId": txID}
	if err := c.call(ctx, "tx_cancel", params, nil); err != nil {
		return fmt.Errorf("tx_cancel failed: %w", err)
	}
	return nil
}

// GetUTXO lists the wallet's outputs for one asset, all pages.
func (c *Client) GetUTXO(ctx context.Context, assetID int64) ([]UTXO, error) {
	var result []UTXO
	params := map[string]interface{}{
		"count": 0,
		"skip":  0,
		"sort": map[string]string{
			"field":     "amount",
			"direction": "asc",
		},
		"assets": true,
		"filter": map[string]int64{"asset_id": assetID},
	}
	if err := c.call(ctx, "get_utxo", params, &result); err != nil {
		return nil, fmt.Errorf("get_utxo failed: %w", err)
	}
	return result, nil
}

// AssetsList returns the registered asset registry. refresh=true forces the
// node to re-read confirmed state; height limits the view when non-zero.
func (c *Client) AssetsList(ctx context.Context, refresh bool, height int64) ([]AssetInfo, error) {
	var result []AssetInfo
	params := map[string]interface{}{"refresh": refresh}
	if height > 0 {
		params["height"] = height
	}
	if err := c.call(ctx, "assets_list", params, &result); err != nil {
		return nil, fmt.Errorf("assets_list failed: %w", err)
	}
	return result, nil
}

// InvokeContract runs a shader view call on the node.
func (c *Client) InvokeContract(ctx context.Context, args string, createTx bool) (*ContractResult, error) {
	var result ContractResult
	params := map[string]interface{}{
		"args":      args,
		"create_tx": createTx,
	}
	if err := c.call(ctx, "invoke_contract", params, &result); err != nil {
		return nil, fmt.Errorf("invoke_contract failed: %w", err)
	}
	return &result, nil
}

// BlockDetails fetches block metadata by height.
func (c *Client) BlockDetails(ctx context.Context, height int64) (*BlockDetails, error) {
	var result BlockDetails
	params := map[string]int64{"height": height}
	if err := c.call(ctx, "block_details", params, &result); err != nil {
		return nil, fmt.Errorf("block_details failed: %w", err)
	}
	return &result, nil
}

// Config returns the client configuration
func (c *Client) Config() Config {
	return c.config
}
