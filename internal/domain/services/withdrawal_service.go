package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// ReceiverValidator is the node surface the withdrawal flow needs to vet a
// destination address.
type ReceiverValidator interface {
	ValidateAddress(ctx context.Context, address string) (*beamnode.AddressValidation, error)
}

// WithdrawalStore persists withdrawal requests for the submission queue.
type WithdrawalStore interface {
	Create(ctx context.Context, withdrawal *entities.PendingWithdrawal) error
	GetByID(ctx context.Context, id string) (*entities.PendingWithdrawal, error)
}

// WithdrawalFees is the kernel fee schedule in groth. The receiver's address
// type decides which rate applies, the client cannot choose its own fee.
type WithdrawalFees struct {
	Regular int64
	Offline int64
}

// WithdrawalParams carries a client withdrawal request.
type WithdrawalParams struct {
	Sender   string
	Receiver string
	AssetID  int64
	Value    entities.Groth
	Comment  string
}

// WithdrawalService validates withdrawal requests and enqueues them for node
// submission. It only reads balances, locking happens in the ledger projector
// once the node reports the outgoing transaction.
type WithdrawalService struct {
	node        ReceiverValidator
	addresses   AddressStore
	withdrawals WithdrawalStore
	fees        WithdrawalFees
	logger      *logger.Logger
}

// NewWithdrawalService creates a withdrawal service
func NewWithdrawalService(
	node ReceiverValidator,
	addresses AddressStore,
	withdrawals WithdrawalStore,
	fees WithdrawalFees,
	log *logger.Logger,
) *WithdrawalService {
	if fees.Regular <= 0 {
		fees.Regular = 100_000
	}
	if fees.Offline <= 0 {
		fees.Offline = 1_100_000
	}
	return &WithdrawalService{
		node:        node,
		addresses:   addresses,
		withdrawals: withdrawals,
		fees:        fees,
		logger:      log,
	}
}

// Initiate validates a withdrawal request and persists it as pending. The
// queue worker submits pending rows to the node in create_time order.
func (s *WithdrawalService) Initiate(ctx context.Context, params WithdrawalParams) (*entities.PendingWithdrawal, error) {
	if params.Sender == "" {
		return nil, entities.NewValidationError("sender", "is required")
	}
	if params.Receiver == "" {
		return nil, entities.NewValidationError("receiver", "is required")
	}
	if params.Value <= 0 {
		return nil, entities.NewValidationError("value", "must be positive")
	}
	if params.AssetID < 0 {
		return nil, entities.NewValidationError("asset_id", "must not be negative")
	}
	if params.Sender == params.Receiver {
		return nil, entities.ErrSelfSend
	}

	sender, err := s.addresses.GetByID(ctx, params.Sender)
	if err != nil {
		return nil, err
	}

	validation, err := s.node.ValidateAddress(ctx, params.Receiver)
	if err != nil {
		return nil, fmt.Errorf("validate receiver: %w", err)
	}
	if !validation.IsValid {
		return nil, entities.NewValidationError("receiver", "is not a valid address")
	}

	// The fee is always paid in the native asset. Regular SBBS addresses
	// settle with the cheap kernel, everything else pays the offline rate.
	fee := s.fees.Offline
	if entities.AddressType(validation.Type).IsRegular() {
		fee = s.fees.Regular
	}

	value := params.Value.Int64()
	if params.AssetID == entities.NativeAssetID {
		if sender.Balance.AvailableFor(entities.NativeAssetID) < value+fee {
			return nil, entities.ErrInsufficientFunds
		}
	} else {
		if sender.Balance.AvailableFor(params.AssetID) < value {
			return nil, entities.ErrInsufficientFunds
		}
		if sender.Balance.AvailableFor(entities.NativeAssetID) < fee {
			return nil, entities.ErrInsufficientFunds
		}
	}

	withdrawal := &entities.PendingWithdrawal{
		ID:         uuid.New().String(),
		Sender:     params.Sender,
		Receiver:   params.Receiver,
		AssetID:    params.AssetID,
		Value:      params.Value,
		Fee:        entities.Groth(fee),
		Comment:    params.Comment,
		CreateTime: time.Now().Unix(),
		Status:     entities.WithdrawalStatusPending,
	}

	if err := s.withdrawals.Create(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("enqueue withdrawal: %w", err)
	}

	s.logger.Info("Withdrawal queued",
		"withdrawal_id", withdrawal.ID,
		"sender", withdrawal.Sender,
		"receiver", withdrawal.Receiver,
		"asset_id", withdrawal.AssetID,
		"value", withdrawal.Value,
		"fee", withdrawal.Fee)

	return withdrawal, nil
}

// Get returns a withdrawal by its request id.
func (s *WithdrawalService) Get(ctx context.Context, id string) (*entities.PendingWithdrawal, error) {
	if id == "" {
		return nil, entities.NewValidationError("id", "is required")
	}
	return s.withdrawals.GetByID(ctx, id)
}
