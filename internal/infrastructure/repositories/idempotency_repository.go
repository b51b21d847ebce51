package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/database"
	"github.com/beampay-service/beampay_service/pkg/tracing"
)

// IdempotencyRepository handles idempotency key operations. Expiry is enforced
// by a TTL index on created_at rather than an application sweep.
type IdempotencyRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *mongo.Database, logger *zap.Logger) *IdempotencyRepository {
	return &IdempotencyRepository{
		collection: db.Collection(database.CollectionIdempotencyKeys),
		logger:     logger,
	}
}

// Get retrieves an idempotency record
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*entities.IdempotencyRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation:  "find",
		Collection: database.CollectionIdempotencyKeys,
	})

	var record entities.IdempotencyRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&record)

	if errors.Is(err, mongo.ErrNoDocuments) {
		tracing.EndDBSpan(span, nil, 0)
		return nil, nil // Not found is not an error
	}

	tracing.EndDBSpan(span, err, 1)

	if err != nil {
		r.logger.Error("Failed to get idempotency key",
			zap.String("key", key),
			zap.Error(err))
		return nil, err
	}

	return &record, nil
}

// Create stores a new idempotency record
func (r *IdempotencyRepository) Create(ctx context.Context, record *entities.IdempotencyRecord) error {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation:  "insert",
		Collection: database.CollectionIdempotencyKeys,
	})

	_, err := r.collection.InsertOne(ctx, record)
	tracing.EndDBSpan(span, err, 1)

	if err != nil {
		r.logger.Error("Failed to create idempotency key",
			zap.String("key", record.Key),
			zap.Error(err))
		return err
	}

	return nil
}
