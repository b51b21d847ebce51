package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/database"
)

// WithdrawalRepository handles pending withdrawal persistence
type WithdrawalRepository struct {
	collection *mongo.Collection
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *mongo.Database) *WithdrawalRepository {
	return &WithdrawalRepository{collection: db.Collection(database.CollectionPendingWithdrawals)}
}

// Create creates a new withdrawal request
func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *entities.PendingWithdrawal) error {
	_, err := r.collection.InsertOne(ctx, withdrawal)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}

	return nil
}

// GetByID retrieves a withdrawal by id
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*entities.PendingWithdrawal, error) {
	var withdrawal entities.PendingWithdrawal
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&withdrawal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}

	return &withdrawal, nil
}

// GetByTxID retrieves the withdrawal that produced a node transaction
func (r *WithdrawalRepository) GetByTxID(ctx context.Context, txID string) (*entities.PendingWithdrawal, error) {
	var withdrawal entities.PendingWithdrawal
	err := r.collection.FindOne(ctx, bson.M{"tx_id": txID}).Decode(&withdrawal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal by tx id: %w", err)
	}

	return &withdrawal, nil
}

// ListPending retrieves unsubmitted withdrawals oldest first
func (r *WithdrawalRepository) ListPending(ctx context.Context) ([]*entities.PendingWithdrawal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "create_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"status": entities.WithdrawalStatusPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}

	var withdrawals []*entities.PendingWithdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals: %w", err)
	}

	return withdrawals, nil
}

// ListBySender retrieves a sender's withdrawals in the given statuses,
// oldest first. An empty status list matches all.
func (r *WithdrawalRepository) ListBySender(ctx context.Context, sender string, statuses ...entities.WithdrawalStatus) ([]*entities.PendingWithdrawal, error) {
	filter := bson.M{"sender": sender}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "create_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals by sender: %w", err)
	}

	var withdrawals []*entities.PendingWithdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals: %w", err)
	}

	return withdrawals, nil
}

// ListByStatus retrieves withdrawals in one status with pagination, oldest first
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status entities.WithdrawalStatus, page, pageSize int) ([]*entities.PendingWithdrawal, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "create_time", Value: 1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals by status: %w", err)
	}

	var withdrawals []*entities.PendingWithdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, fmt.Errorf("failed to decode withdrawals: %w", err)
	}

	return withdrawals, nil
}

// AcquireProcessing leases a pending withdrawal for submission. The transition
// is a conditional update on the status field; false means another worker
// already holds the row.
func (r *WithdrawalRepository) AcquireProcessing(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": entities.WithdrawalStatusPending},
		bson.M{"$set": bson.M{"status": entities.WithdrawalStatusProcessing}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to acquire withdrawal: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

// MarkSent records the node transaction id after a successful submission
func (r *WithdrawalRepository) MarkSent(ctx context.Context, id, txID string) error {
	update := bson.M{"$set": bson.M{
		"status": entities.WithdrawalStatusSent,
		"tx_id":  txID,
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal sent: %w", err)
	}

	return nil
}

// SetStatus moves a withdrawal to the given status
func (r *WithdrawalRepository) SetStatus(ctx context.Context, id string, status entities.WithdrawalStatus) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("failed to set withdrawal status: %w", err)
	}

	return nil
}

// SetStatusByTxID moves the withdrawal owning a node transaction to the given
// status, reporting whether such a withdrawal exists. Rows already in a
// terminal status are left alone so a replayed projector pass cannot reopen
// a finished withdrawal.
func (r *WithdrawalRepository) SetStatusByTxID(ctx context.Context, txID string, status entities.WithdrawalStatus) (bool, error) {
	filter := bson.M{
		"tx_id": txID,
		"status": bson.M{"$nin": []entities.WithdrawalStatus{
			entities.WithdrawalStatusSentConfirmed,
			entities.WithdrawalStatusFailed,
			entities.WithdrawalStatusAdminCheck,
		}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return false, fmt.Errorf("failed to set withdrawal status by tx id: %w", err)
	}

	return result.MatchedCount == 1, nil
}

// Requeue returns an admin_check withdrawal to the pending queue. The filter
// is conditional so only parked rows can be requeued.
func (r *WithdrawalRepository) Requeue(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": entities.WithdrawalStatusAdminCheck},
		bson.M{"$set": bson.M{"status": entities.WithdrawalStatusPending}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to requeue withdrawal: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

// CountByStatus returns the number of withdrawals in one status
func (r *WithdrawalRepository) CountByStatus(ctx context.Context, status entities.WithdrawalStatus) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count withdrawals: %w", err)
	}

	return count, nil
}
