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
	"github.com/beampay-service/beampay_service/pkg/tracing"
)

// TransactionRepository handles ledger transaction persistence
type TransactionRepository struct {
	collection *mongo.Collection
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{collection: db.Collection(database.CollectionTransactions)}
}

// Insert records a transaction the first time it is observed
func (r *TransactionRepository) Insert(ctx context.Context, tx *entities.Transaction) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation:  "insert",
		Collection: database.CollectionTransactions,
	})

	_, err := r.collection.InsertOne(ctx, tx)
	tracing.EndDBSpan(span, err, 1)

	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its node transaction id
func (r *TransactionRepository) GetByID(ctx context.Context, txID string) (*entities.Transaction, error) {
	var tx entities.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": txID}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// UpdateFields applies a partial $set of observed node fields
func (r *TransactionRepository) UpdateFields(ctx context.Context, txID string, fields bson.M) error {
	if len(fields) == 0 {
		return nil
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": txID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	return nil
}

// UpdateObserved refreshes the node-reported fields on an existing row. The
// projector-owned fields (success, balances) are never touched here.
func (r *TransactionRepository) UpdateObserved(ctx context.Context, tx *entities.Transaction) error {
	set := bson.M{
		"status":        tx.Status,
		"status_string": tx.StatusString,
		"confirmations": tx.Confirmations,
	}
	if tx.Kernel != "" {
		set["kernel"] = tx.Kernel
	}
	if tx.FailureReason != "" {
		set["failure_reason"] = tx.FailureReason
	}
	if tx.Height != 0 {
		set["height"] = tx.Height
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": tx.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update observed transaction fields: %w", err)
	}

	return nil
}

// MarkSuccess pins a transaction terminal so later observations short-circuit
func (r *TransactionRepository) MarkSuccess(ctx context.Context, txID string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": txID}, bson.M{"$set": bson.M{"success": true}})
	if err != nil {
		return fmt.Errorf("failed to mark transaction success: %w", err)
	}

	return nil
}

// MarkWebhookSent records delivered event kinds on the transaction
func (r *TransactionRepository) MarkWebhookSent(ctx context.Context, txID string, kinds ...entities.EventKind) error {
	if len(kinds) == 0 {
		return nil
	}

	set := bson.M{}
	for _, kind := range kinds {
		set["webhook_sent."+string(kind)] = true
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": txID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to mark webhook sent: %w", err)
	}

	return nil
}

// FindNeedingWebhook returns transactions that may still owe a lifecycle
// event: non-terminal ones, finalized ones whose matching confirmed flag is
// unset, and terminal failures without a failed or cancelled flag.
func (r *TransactionRepository) FindNeedingWebhook(ctx context.Context) ([]*entities.Transaction, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation:  "find",
		Collection: database.CollectionTransactions,
	})

	filter := bson.M{"$or": bson.A{
		bson.M{"status": bson.M{"$in": bson.A{
			entities.TxStatusPending, entities.TxStatusInProgress, entities.TxStatusRegistering,
		}}},
		bson.M{"status": entities.TxStatusCompleted, "$or": bson.A{
			bson.M{"income": true, "webhook_sent.deposit_confirmed": bson.M{"$ne": true}},
			bson.M{"income": false, "webhook_sent.withdraw_confirmed": bson.M{"$ne": true}},
		}},
		bson.M{"status": entities.TxStatusFailed, "webhook_sent.failed": bson.M{"$ne": true}},
		bson.M{"status": entities.TxStatusCancelled, "webhook_sent.cancelled": bson.M{"$ne": true}},
	}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		tracing.EndDBSpan(span, err, -1)
		return nil, fmt.Errorf("failed to find transactions needing webhook: %w", err)
	}

	var txs []*entities.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		tracing.EndDBSpan(span, err, -1)
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	tracing.EndDBSpan(span, nil, int64(len(txs)))
	return txs, nil
}

// TransactionFilter narrows List queries
type TransactionFilter struct {
	Address  string
	Receiver string
	Status   *int
	AssetIDs []int64
}

// List retrieves transactions matching the filter, newest first
func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter, page, pageSize int) ([]*entities.Transaction, error) {
	query := bson.M{}
	if filter.Address != "" {
		query["$or"] = bson.A{
			bson.M{"sender": filter.Address},
			bson.M{"receiver": filter.Address},
		}
	}
	if filter.Receiver != "" {
		query["receiver"] = filter.Receiver
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if len(filter.AssetIDs) > 0 {
		query["asset_id"] = bson.M{"$in": filter.AssetIDs}
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "create_time", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var txs []*entities.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return txs, nil
}

// ListByAddress retrieves transactions where the address appears as sender
// or receiver, newest first
func (r *TransactionRepository) ListByAddress(ctx context.Context, address string, page, pageSize int) ([]*entities.Transaction, error) {
	return r.List(ctx, TransactionFilter{Address: address}, page, pageSize)
}

// ListDeposits retrieves transactions paying into the address, newest first
func (r *TransactionRepository) ListDeposits(ctx context.Context, receiver string, page, pageSize int) ([]*entities.Transaction, error) {
	return r.List(ctx, TransactionFilter{Receiver: receiver}, page, pageSize)
}

// CountInFlight counts transactions not yet pinned terminal
func (r *TransactionRepository) CountInFlight(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"success": bson.M{"$ne": true},
		"status":  bson.M{"$ne": entities.TxStatusFailed},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count in-flight transactions: %w", err)
	}

	return count, nil
}

// Count returns the total number of ledger transactions
func (r *TransactionRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}
