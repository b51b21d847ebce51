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

// AddressRepository handles address and balance persistence
type AddressRepository struct {
	collection *mongo.Collection
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *mongo.Database) *AddressRepository {
	return &AddressRepository{collection: db.Collection(database.CollectionAddresses)}
}

// Create inserts a freshly generated address with empty balances
func (r *AddressRepository) Create(ctx context.Context, address *entities.Address) error {
	if address.Balance.Available == nil || address.Balance.Locked == nil {
		address.Balance = entities.NewBalance()
	}

	_, err := r.collection.InsertOne(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}

	return nil
}

// Sync upserts an address observed on the node. Metadata fields reported by
// the node are refreshed on every pass; balances are only seeded on insert so
// running totals are never clobbered.
func (r *AddressRepository) Sync(ctx context.Context, address *entities.Address) error {
	update := bson.M{
		"$setOnInsert": bson.M{
			"type":        address.Type,
			"comment":     address.Comment,
			"create_time": address.CreateTime,
			"balance":     entities.NewBalance(),
		},
		"$set": bson.M{
			"own_id":    address.OwnID,
			"wallet_id": address.WalletID,
			"identity":  address.Identity,
			"expired":   address.Expired,
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": address.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to sync address: %w", err)
	}

	return nil
}

// GetByID retrieves an address by its wallet address string
func (r *AddressRepository) GetByID(ctx context.Context, id string) (*entities.Address, error) {
	var address entities.Address
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&address)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}

	return &address, nil
}

// FindByComment retrieves addresses created with a given label
func (r *AddressRepository) FindByComment(ctx context.Context, comment string) ([]*entities.Address, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"comment": comment})
	if err != nil {
		return nil, fmt.Errorf("failed to find addresses: %w", err)
	}

	var addresses []*entities.Address
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}

	return addresses, nil
}

// List retrieves addresses with pagination, newest first
func (r *AddressRepository) List(ctx context.Context, page, pageSize int) ([]*entities.Address, error) {
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

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	var addresses []*entities.Address
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}

	return addresses, nil
}

// Count returns the number of tracked addresses
func (r *AddressRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}

	return count, nil
}

// ApplyBalanceDeltas applies signed balance adjustments to one address as a
// single atomic update. Deltas hitting the same field are merged so the
// resulting document has one $inc per key.
func (r *AddressRepository) ApplyBalanceDeltas(ctx context.Context, id string, deltas []entities.BalanceDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	inc := bson.M{}
	for _, delta := range deltas {
		key := fmt.Sprintf("balance.%s.%s", delta.Field, entities.AssetKey(delta.AssetID))
		if existing, ok := inc[key]; ok {
			inc[key] = existing.(int64) + delta.Amount
		} else {
			inc[key] = delta.Amount
		}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": inc})
	if err != nil {
		return fmt.Errorf("failed to apply balance deltas: %w", err)
	}
	if result.MatchedCount == 0 {
		return entities.ErrAddressNotFound
	}

	return nil
}

// AggregateBalances sums one side of the balance maps across all addresses,
// returning per-asset totals keyed by asset id string.
func (r *AddressRepository) AggregateBalances(ctx context.Context, field entities.BalanceField) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$project": bson.M{"entries": bson.M{"$objectToArray": "$balance." + string(field)}}},
		{"$unwind": "$entries"},
		{"$group": bson.M{"_id": "$entries.k", "total": bson.M{"$sum": "$entries.v"}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate balances: %w", err)
	}

	var rows []struct {
		AssetKey string `bson:"_id"`
		Total    int64  `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode balance aggregation: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.AssetKey] = row.Total
	}

	return totals, nil
}
