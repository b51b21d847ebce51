package entities

// Transaction status codes as reported by the wallet node.
const (
	TxStatusPending     = 0
	TxStatusInProgress  = 1
	TxStatusCancelled   = 2
	TxStatusCompleted   = 3
	TxStatusFailed      = 4
	TxStatusRegistering = 5
)

// DurableTxStatus reports whether a node transaction in this status is worth
// recording. Status 0 transactions are not yet durable on the node side and
// are skipped until they progress.
func DurableTxStatus(status int) bool {
	return status == TxStatusInProgress ||
		status == TxStatusCompleted ||
		status == TxStatusRegistering
}

// TerminalFailureStatus reports whether the status releases locked funds.
// Cancelled and failed transactions both refund the sender.
func TerminalFailureStatus(status int) bool {
	return status == TxStatusCancelled || status == TxStatusFailed
}

// EventKind is a webhook lifecycle event emitted for a transaction.
type EventKind string

const (
	EventDepositPending            EventKind = "deposit_pending"
	EventDepositConfirmed          EventKind = "deposit_confirmed"
	EventWithdrawPending           EventKind = "withdraw_pending"
	EventWithdrawConfirmed         EventKind = "withdraw_confirmed"
	EventInternalTransferConfirmed EventKind = "internal_transfer_confirmed"
	EventFailed                    EventKind = "failed"
	EventCancelled                 EventKind = "cancelled"
)

// Valid reports whether the kind is one the dispatcher actually emits.
func (k EventKind) Valid() bool {
	switch k {
	case EventDepositPending, EventDepositConfirmed,
		EventWithdrawPending, EventWithdrawConfirmed,
		EventInternalTransferConfirmed, EventFailed, EventCancelled:
		return true
	default:
		return false
	}
}

// Transaction is the ledger's view of one node transaction. Created when the
// node first reports a durable status, then mutated only through targeted
// field updates until Success pins it terminal.
type Transaction struct {
	ID               string          `json:"txId" bson:"_id"`
	Status           int             `json:"status" bson:"status"`
	StatusString     string          `json:"status_string" bson:"status_string"`
	Income           bool            `json:"income" bson:"income"`
	TxType           int             `json:"tx_type" bson:"tx_type"`
	TxTypeString     string          `json:"tx_type_string,omitempty" bson:"tx_type_string,omitempty"`
	AssetID          int64           `json:"asset_id" bson:"asset_id"`
	Value            Groth           `json:"value" bson:"value"`
	Fee              Groth           `json:"fee" bson:"fee"`
	Sender           string          `json:"sender" bson:"sender"`
	Receiver         string          `json:"receiver" bson:"receiver"`
	SenderIdentity   string          `json:"sender_identity,omitempty" bson:"sender_identity,omitempty"`
	ReceiverIdentity string          `json:"receiver_identity,omitempty" bson:"receiver_identity,omitempty"`
	Comment          string          `json:"comment,omitempty" bson:"comment,omitempty"`
	CreateTime       int64           `json:"create_time" bson:"create_time"`
	Confirmations    int             `json:"confirmations" bson:"confirmations"`
	Kernel           string          `json:"kernel,omitempty" bson:"kernel,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	Height           int64           `json:"height,omitempty" bson:"height,omitempty"`
	Success          bool            `json:"success" bson:"success"`
	WebhookSent      map[string]bool `json:"webhook_sent,omitempty" bson:"webhook_sent,omitempty"`
}

// WebhookSentFor reports whether the given event kind was already delivered.
func (t Transaction) WebhookSentFor(kind EventKind) bool {
	return t.WebhookSent[string(kind)]
}
