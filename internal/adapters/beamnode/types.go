package beamnode

import (
	"encoding/json"
	"strconv"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
)

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcEnvelope is the response envelope. The node answers with either a
// result payload, an assets payload (assets_list only) or an error object.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Assets  json.RawMessage `json:"assets,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// CreateAddressParams configures create_address.
type CreateAddressParams struct {
	Type       string `json:"type,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Expiration string `json:"expiration,omitempty"`
}

// AddressValidation is the validate_address result. The type field drives
// the fee policy for withdrawals.
type AddressValidation struct {
	IsValid  bool   `json:"is_valid"`
	IsMine   bool   `json:"is_mine"`
	Type     string `json:"type"`
	Payments int    `json:"payments"`
}

// AddressInfo is one addr_list entry.
type AddressInfo struct {
	Address    string `json:"address"`
	Comment    string `json:"comment"`
	Category   string `json:"category"`
	CreateTime int64  `json:"create_time"`
	Duration   int64  `json:"duration"`
	Expired    bool   `json:"expired"`
	Identity   string `json:"identity"`
	OwnID      int64  `json:"own_id"`
	OwnIDStr   string `json:"own_id_str"`
	WalletID   string `json:"wallet_id"`
	Own        bool   `json:"own"`
	Type       string `json:"type"`
}

// AssetTotal is one wallet_status totals entry. Depending on the node build
// amounts arrive as integers, strings or both; the *_str fields win when set.
type AssetTotal struct {
	AssetID             int64          `json:"asset_id"`
	Available           entities.Groth `json:"available"`
	AvailableStr        string         `json:"available_str"`
	Locked              entities.Groth `json:"locked"`
	LockedStr           string         `json:"locked_str"`
	ReceivingRegular    entities.Groth `json:"receiving_regular"`
	ReceivingRegularStr string         `json:"receiving_regular_str"`
	SendingRegular      entities.Groth `json:"sending_regular"`
	SendingRegularStr   string         `json:"sending_regular_str"`
}

func amountOf(str string, fallback entities.Groth) int64 {
	if str != "" {
		if v, err := strconv.ParseInt(str, 10, 64); err == nil {
			return v
		}
	}
	return fallback.Int64()
}

// AvailableAmount resolves the available total in groth.
func (t AssetTotal) AvailableAmount() int64 {
	return amountOf(t.AvailableStr, t.Available)
}

// LockedAmount resolves the locked total in groth.
func (t AssetTotal) LockedAmount() int64 {
	return amountOf(t.LockedStr, t.Locked)
}

// ReceivingRegularAmount resolves incoming in-flight funds in groth.
func (t AssetTotal) ReceivingRegularAmount() int64 {
	return amountOf(t.ReceivingRegularStr, t.ReceivingRegular)
}

// SendingRegularAmount resolves outgoing in-flight funds in groth.
func (t AssetTotal) SendingRegularAmount() int64 {
	return amountOf(t.SendingRegularStr, t.SendingRegular)
}

// WalletStatus is the wallet_status result.
type WalletStatus struct {
	CurrentHeight    int64        `json:"current_height"`
	CurrentStateHash string       `json:"current_state_hash"`
	Available        int64        `json:"available"`
	Receiving        int64        `json:"receiving"`
	Sending          int64        `json:"sending"`
	Maturing         int64        `json:"maturing"`
	Totals           []AssetTotal `json:"totals"`
}

// TxInfo is one node transaction record as returned by tx_list/tx_status.
type TxInfo struct {
	TxID             string         `json:"txId"`
	Status           int            `json:"status"`
	StatusString     string         `json:"status_string"`
	Income           bool           `json:"income"`
	TxType           int            `json:"tx_type"`
	TxTypeString     string         `json:"tx_type_string"`
	AssetID          int64          `json:"asset_id"`
	Value            entities.Groth `json:"value"`
	Fee              entities.Groth `json:"fee"`
	Sender           string         `json:"sender"`
	Receiver         string         `json:"receiver"`
	SenderIdentity   string         `json:"sender_identity"`
	ReceiverIdentity string         `json:"receiver_identity"`
	Comment          string         `json:"comment"`
	CreateTime       int64          `json:"create_time"`
	Confirmations    int            `json:"confirmations"`
	Kernel           string         `json:"kernel"`
	FailureReason    string         `json:"failure_reason"`
	Height           int64          `json:"height"`
}

// Transaction converts the node record into a ledger row. Observation-side
// fields like webhook flags start zeroed.
func (t TxInfo) Transaction() *entities.Transaction {
	return &entities.Transaction{
		ID:               t.TxID,
		Status:           t.Status,
		StatusString:     t.StatusString,
		Income:           t.Income,
		TxType:           t.TxType,
		TxTypeString:     t.TxTypeString,
		AssetID:          t.AssetID,
		Value:            t.Value,
		Fee:              t.Fee,
		Sender:           t.Sender,
		Receiver:         t.Receiver,
		SenderIdentity:   t.SenderIdentity,
		ReceiverIdentity: t.ReceiverIdentity,
		Comment:          t.Comment,
		CreateTime:       t.CreateTime,
		Confirmations:    t.Confirmations,
		Kernel:           t.Kernel,
		FailureReason:    t.FailureReason,
		Height:           t.Height,
	}
}

// TxSendRequest carries tx_send parameters. The node expects numeric
// amounts, a "from" sender and the receiver under "address".
type TxSendRequest struct {
	Value   int64  `json:"value"`
	Fee     int64  `json:"fee"`
	Address string `json:"address"`
	From    string `json:"from,omitempty"`
	AssetID int64  `json:"asset_id"`
	Comment string `json:"comment,omitempty"`
	Offline bool   `json:"offline,omitempty"`
}

type txSendResult struct {
	TxID string `json:"txId"`
}

// UTXO is one get_utxo entry. Status 1 means unlocked and spendable.
type UTXO struct {
	ID           int64          `json:"id"`
	Amount       entities.Groth `json:"amount"`
	AssetID      int64          `json:"asset_id"`
	Maturity     int64          `json:"maturity"`
	Type         string         `json:"type"`
	CreateTxID   string         `json:"createTxId"`
	SpentTxID    string         `json:"spentTxId"`
	Status       int            `json:"status"`
	StatusString string         `json:"status_string"`
}

// UTXOStatusAvailable is the node's status code for a spendable output.
const UTXOStatusAvailable = 1

// AssetInfo is one assets_list entry.
type AssetInfo struct {
	AssetID       int64          `json:"asset_id"`
	Metadata      string         `json:"metadata"`
	Emission      entities.Groth `json:"emission"`
	IsOwned       bool           `json:"isOwned"`
	LockHeight    int64          `json:"lockHeight"`
	OwnerID       string         `json:"ownerId"`
	RefreshHeight int64          `json:"refreshHeight"`
}

// ContractResult is the invoke_contract result. Output carries the
// contract's JSON response as a string.
type ContractResult struct {
	Output string `json:"output"`
	TxID   string `json:"txid"`
}

// BlockDetails is the block_details result.
type BlockDetails struct {
	Height    int64  `json:"height"`
	BlockHash string `json:"block_hash"`
	Timestamp int64  `json:"timestamp"`
}
