package entities

import "fmt"

// WithdrawalStatus tracks a pending withdrawal through the queue.
type WithdrawalStatus string

const (
	// WithdrawalStatusPending awaits pickup by the queue processor.
	WithdrawalStatusPending WithdrawalStatus = "pending"
	// WithdrawalStatusProcessing is the short-lived lease held while the
	// node submission is in flight.
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	// WithdrawalStatusSent means the node accepted the transaction.
	WithdrawalStatusSent WithdrawalStatus = "sent"
	// WithdrawalStatusSentConfirmed means the transaction finalized on chain.
	WithdrawalStatusSentConfirmed WithdrawalStatus = "sent_confirmed"
	// WithdrawalStatusFailed means the transaction failed or was cancelled
	// and the sender was refunded.
	WithdrawalStatusFailed WithdrawalStatus = "failed"
	// WithdrawalStatusAdminCheck parks a request whose sums disagree with
	// the ledger's locked balances. Requires human intervention.
	WithdrawalStatusAdminCheck WithdrawalStatus = "admin_check"
)

// Validate checks if the status is known.
func (s WithdrawalStatus) Validate() error {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusProcessing, WithdrawalStatusSent,
		WithdrawalStatusSentConfirmed, WithdrawalStatusFailed, WithdrawalStatusAdminCheck:
		return nil
	default:
		return fmt.Errorf("invalid withdrawal status: %s", s)
	}
}

// IsTerminal reports whether the queue will never touch the row again.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusSentConfirmed ||
		s == WithdrawalStatusFailed ||
		s == WithdrawalStatusAdminCheck
}

// PendingWithdrawal is a user-requested outgoing transfer awaiting submission
// to the node. The status field doubles as the submission lease.
type PendingWithdrawal struct {
	ID         string           `json:"id" bson:"_id"`
	Sender     string           `json:"sender" bson:"sender"`
	Receiver   string           `json:"receiver" bson:"receiver"`
	AssetID    int64            `json:"asset_id" bson:"asset_id"`
	Value      Groth            `json:"value" bson:"value"`
	Fee        Groth            `json:"fee" bson:"fee"`
	Comment    string           `json:"comment,omitempty" bson:"comment,omitempty"`
	CreateTime int64            `json:"create_time" bson:"create_time"`
	Status     WithdrawalStatus `json:"status" bson:"status"`
	TxID       string           `json:"tx_id,omitempty" bson:"tx_id,omitempty"`
}
