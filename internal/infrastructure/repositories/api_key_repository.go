package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/database"
)

// APIKeyRepository handles API key persistence
type APIKeyRepository struct {
	collection *mongo.Collection
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *mongo.Database) *APIKeyRepository {
	return &APIKeyRepository{collection: db.Collection(database.CollectionAPIKeys)}
}

// Create stores a new API key record
func (r *APIKeyRepository) Create(ctx context.Context, key *entities.APIKey) error {
	_, err := r.collection.InsertOne(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

// GetByID retrieves an API key by its public id
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*entities.APIKey, error) {
	var key entities.APIKey
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&key)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &key, nil
}

// List retrieves all API key records
func (r *APIKeyRepository) List(ctx context.Context) ([]*entities.APIKey, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}

	var keys []*entities.APIKey
	if err := cursor.All(ctx, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode api keys: %w", err)
	}

	return keys, nil
}

// Disable revokes an API key without deleting its audit trail
func (r *APIKeyRepository) Disable(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"disabled": true}})
	if err != nil {
		return false, fmt.Errorf("failed to disable api key: %w", err)
	}

	return result.MatchedCount == 1, nil
}
