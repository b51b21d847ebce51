package database

import (
	"context"
	"fmt"
	"time"

	"github.com/beampay-service/beampay_service/internal/infrastructure/config"
	"github.com/sony/gobreaker"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names used across the repositories.
const (
	CollectionAddresses          = "addresses"
	CollectionTransactions       = "transactions"
	CollectionAssets             = "assets"
	CollectionPendingWithdrawals = "pending_withdrawals"
	CollectionFailedWebhooks     = "failed_webhooks"
	CollectionWebhookEndpoints   = "webhook_endpoints"
	CollectionAPIKeys            = "api_keys"
	CollectionIdempotencyKeys    = "idempotency_keys"
)

var circuitBreaker *gobreaker.CircuitBreaker

func init() {
	settings := gobreaker.Settings{
		Name:        "database",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	circuitBreaker = gobreaker.NewCircuitBreaker(settings)
}

// NewConnection connects to MongoDB and verifies the connection before returning
// a handle to the configured database.
func NewConnection(cfg config.DatabaseConfig) (*mongo.Database, error) {
	var db *mongo.Database

	_, cbErr := circuitBreaker.Execute(func() (interface{}, error) {
		connectTimeout := cfg.ConnectTimeout
		if connectTimeout == 0 {
			connectTimeout = 10
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(connectTimeout)*time.Second)
		defer cancel()

		clientOpts := options.Client().
			ApplyURI(cfg.URI).
			SetMaxPoolSize(25).
			SetMinPoolSize(5).
			SetMaxConnIdleTime(5 * time.Minute)

		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		db = client.Database(cfg.Name)
		return db, nil
	})

	if cbErr != nil {
		return nil, fmt.Errorf("circuit breaker: %w", cbErr)
	}

	return db, nil
}

// EnsureIndexes creates the indexes the query paths rely on. Index creation is
// idempotent so this runs on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionTransactions: {
			{Keys: bson.D{{Key: "create_time", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "asset_id", Value: 1}}},
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "create_time", Value: -1}}},
			{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "create_time", Value: -1}}},
		},
		CollectionPendingWithdrawals: {
			{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "create_time", Value: 1}}},
		},
		CollectionAddresses: {
			{Keys: bson.D{{Key: "own_id", Value: 1}}},
			{Keys: bson.D{{Key: "wallet_id", Value: 1}}},
		},
		CollectionFailedWebhooks: {
			{Keys: bson.D{{Key: "last_attempt", Value: 1}}},
		},
		CollectionIdempotencyKeys: {
			{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(86400),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}

// HealthCheck checks if the database is accessible
func HealthCheck(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
