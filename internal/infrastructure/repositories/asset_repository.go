package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/database"
)

// AssetRepository handles asset metadata persistence
type AssetRepository struct {
	collection *mongo.Collection
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *mongo.Database) *AssetRepository {
	return &AssetRepository{collection: db.Collection(database.CollectionAssets)}
}

// Upsert stores or refreshes an asset's metadata by id
func (r *AssetRepository) Upsert(ctx context.Context, asset *entities.Asset) error {
	update := bson.M{"$set": bson.M{
		"metadata":    asset.Metadata,
		"meta":        asset.Meta,
		"decimals":    asset.Decimals,
		"is_verified": asset.IsVerified,
		"is_spam":     asset.IsSpam,
		"updated_at":  time.Now(),
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": asset.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	return nil
}

// UpdateRates stores derived exchange rates for an asset. A non-positive
// rateUSD means the anchor price was unavailable; the stored USD rate keeps
// its previous value.
func (r *AssetRepository) UpdateRates(ctx context.Context, assetID int64, rateBeam, rateUSD float64) error {
	fields := bson.M{
		"rate_beam":  rateBeam,
		"updated_at": time.Now(),
	}
	if rateUSD > 0 {
		fields["rate_usd"] = rateUSD
	}
	update := bson.M{"$set": fields}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": assetID}, update)
	if err != nil {
		return fmt.Errorf("failed to update asset rates: %w", err)
	}

	return nil
}

// GetByID retrieves one asset
func (r *AssetRepository) GetByID(ctx context.Context, assetID int64) (*entities.Asset, error) {
	var asset entities.Asset
	err := r.collection.FindOne(ctx, bson.M{"_id": assetID}).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return &asset, nil
}

// List retrieves all known assets ordered by id
func (r *AssetRepository) List(ctx context.Context) ([]*entities.Asset, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	var assets []*entities.Asset
	if err := cursor.All(ctx, &assets); err != nil {
		return nil, fmt.Errorf("failed to decode assets: %w", err)
	}

	return assets, nil
}
