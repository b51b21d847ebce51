package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/database"
)

// WebhookRepository handles registered endpoints and dead-lettered deliveries
type WebhookRepository struct {
	endpoints *mongo.Collection
	failed    *mongo.Collection
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *mongo.Database) *WebhookRepository {
	return &WebhookRepository{
		endpoints: db.Collection(database.CollectionWebhookEndpoints),
		failed:    db.Collection(database.CollectionFailedWebhooks),
	}
}

// RegisterEndpoint upserts a delivery target keyed by (url, event_type)
func (r *WebhookRepository) RegisterEndpoint(ctx context.Context, url, eventType string) error {
	update := bson.M{
		"$set":         bson.M{"url": url, "event_type": eventType},
		"$setOnInsert": bson.M{"created_at": time.Now()},
	}

	_, err := r.endpoints.UpdateOne(ctx,
		bson.M{"url": url, "event_type": eventType},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to register webhook endpoint: %w", err)
	}

	return nil
}

// RemoveEndpoint deletes a registered delivery target
func (r *WebhookRepository) RemoveEndpoint(ctx context.Context, url, eventType string) (bool, error) {
	result, err := r.endpoints.DeleteOne(ctx, bson.M{"url": url, "event_type": eventType})
	if err != nil {
		return false, fmt.Errorf("failed to remove webhook endpoint: %w", err)
	}

	return result.DeletedCount == 1, nil
}

// ListEndpoints retrieves all registered delivery targets
func (r *WebhookRepository) ListEndpoints(ctx context.Context) ([]*entities.WebhookEndpoint, error) {
	cursor, err := r.endpoints.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook endpoints: %w", err)
	}

	var endpoints []*entities.WebhookEndpoint
	if err := cursor.All(ctx, &endpoints); err != nil {
		return nil, fmt.Errorf("failed to decode webhook endpoints: %w", err)
	}

	return endpoints, nil
}

// URLsForEvent returns registered URLs subscribed to the event kind,
// including endpoints registered for all kinds.
func (r *WebhookRepository) URLsForEvent(ctx context.Context, kind entities.EventKind) ([]string, error) {
	filter := bson.M{"event_type": bson.M{"$in": bson.A{string(kind), entities.WebhookEventAll}}}

	cursor, err := r.endpoints.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find webhook endpoints: %w", err)
	}

	var endpoints []*entities.WebhookEndpoint
	if err := cursor.All(ctx, &endpoints); err != nil {
		return nil, fmt.Errorf("failed to decode webhook endpoints: %w", err)
	}

	urls := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		urls = append(urls, endpoint.URL)
	}

	return urls, nil
}

// InsertFailed dead-letters a delivery after retry exhaustion
func (r *WebhookRepository) InsertFailed(ctx context.Context, failed *entities.FailedWebhook) error {
	_, err := r.failed.InsertOne(ctx, failed)
	if err != nil {
		return fmt.Errorf("failed to insert failed webhook: %w", err)
	}

	return nil
}

// ListFailed retrieves dead-lettered deliveries, oldest attempt first
func (r *WebhookRepository) ListFailed(ctx context.Context) ([]*entities.FailedWebhook, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_attempt", Value: 1}})

	cursor, err := r.failed.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed webhooks: %w", err)
	}

	var failed []*entities.FailedWebhook
	if err := cursor.All(ctx, &failed); err != nil {
		return nil, fmt.Errorf("failed to decode failed webhooks: %w", err)
	}

	return failed, nil
}

// HasFailed reports whether a delivery for (url, kind, tx) is already
// dead-lettered, in which case the replay path owns it.
func (r *WebhookRepository) HasFailed(ctx context.Context, url string, kind entities.EventKind, txID string) (bool, error) {
	count, err := r.failed.CountDocuments(ctx, bson.M{
		"url":        url,
		"event_type": kind,
		"data.tx_id": txID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check failed webhooks: %w", err)
	}

	return count > 0, nil
}

// DeleteFailed removes a dead-lettered delivery after a successful replay
func (r *WebhookRepository) DeleteFailed(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.failed.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete failed webhook: %w", err)
	}

	return nil
}

// RecordFailedAttempt bumps the attempt counter after an unsuccessful replay
func (r *WebhookRepository) RecordFailedAttempt(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{"last_attempt": time.Now()},
	}

	_, err := r.failed.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to record webhook attempt: %w", err)
	}

	return nil
}

// CountFailed returns the number of dead-lettered deliveries
func (r *WebhookRepository) CountFailed(ctx context.Context) (int64, error) {
	count, err := r.failed.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count failed webhooks: %w", err)
	}

	return count, nil
}
