package metadatasync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/cache"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// dexPools is the pools_view output of the DEX contract. k1_2 prices aid1 in
// units of aid2, k2_1 the other way around.
type dexPools struct {
	Res []dexPool `json:"res"`
}

type dexPool struct {
	Aid1 int64   `json:"aid1"`
	Aid2 int64   `json:"aid2"`
	K12  float64 `json:"k1_2"`
	K21  float64 `json:"k2_1"`
}

type assetRates struct {
	RateBeam float64 `json:"rate_beam"`
	RateUSD  float64 `json:"rate_usd"`
}

// AssetSynchronizer mirrors the node's asset registry into the ledger and
// derives BEAM and USD exchange rates from DEX pools.
type AssetSynchronizer struct {
	node     NodeClient
	assets   AssetStore
	cache    cache.RedisClient
	verified map[int64]bool
	spam     map[int64]bool
	dexCID   string
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewAssetSynchronizer creates a new asset synchronizer
func NewAssetSynchronizer(node NodeClient, assets AssetStore, rateCache cache.RedisClient, config Config, log *logger.Logger) *AssetSynchronizer {
	return &AssetSynchronizer{
		node:     node,
		assets:   assets,
		cache:    rateCache,
		verified: assetSet(config.VerifiedAssets),
		spam:     assetSet(config.SpamAssets),
		dexCID:   config.DexContractID,
		cacheTTL: config.RateCacheTTL,
		logger:   log,
	}
}

func assetSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Sync refreshes the asset registry from the node. beamUSD of zero means the
// anchor price is unavailable and USD rates keep their previous values.
func (s *AssetSynchronizer) Sync(ctx context.Context, beamUSD float64) error {
	native := entities.NewNativeAsset()
	if err := s.assets.Upsert(ctx, &native); err != nil {
		return fmt.Errorf("upsert native asset: %w", err)
	}
	if beamUSD > 0 {
		if err := s.storeRates(ctx, entities.NativeAssetID, 1, beamUSD); err != nil {
			s.logger.Error("Failed to store native asset rates", "error", err)
		}
	}

	infos, err := s.node.AssetsList(ctx, true, 0)
	if err != nil {
		return fmt.Errorf("assets_list: %w", err)
	}

	var failed int
	for _, info := range infos {
		meta := entities.ParseAssetMetadata(info.Metadata)
		asset := &entities.Asset{
			ID:         info.AssetID,
			Metadata:   info.Metadata,
			Meta:       meta,
			Decimals:   entities.DecimalsFromMeta(meta),
			IsVerified: s.verified[info.AssetID],
			IsSpam:     s.spam[info.AssetID],
		}
		if err := s.assets.Upsert(ctx, asset); err != nil {
			failed++
			s.logger.Error("Failed to upsert asset", "asset_id", info.AssetID, "error", err)
		}
	}

	if s.dexCID != "" {
		if err := s.syncRates(ctx, beamUSD); err != nil {
			s.logger.Warn("DEX rate sync failed", "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("asset sync: %d of %d assets failed", failed, len(infos))
	}
	return nil
}

// syncRates reads the DEX pools and stores a BEAM rate for every asset that
// has a pool against the native asset. Pools without a native leg carry no
// usable anchor and are skipped.
func (s *AssetSynchronizer) syncRates(ctx context.Context, beamUSD float64) error {
	args := fmt.Sprintf("role=manager,action=pools_view,cid=%s", s.dexCID)
	result, err := s.node.InvokeContract(ctx, args, false)
	if err != nil {
		return fmt.Errorf("pools_view: %w", err)
	}

	var pools dexPools
	if err := json.Unmarshal([]byte(result.Output), &pools); err != nil {
		return fmt.Errorf("parse pools_view output: %w", err)
	}

	for _, pool := range pools.Res {
		var assetID int64
		var rateBeam float64
		switch {
		case pool.Aid1 == entities.NativeAssetID && pool.Aid2 != entities.NativeAssetID:
			assetID, rateBeam = pool.Aid2, pool.K21
		case pool.Aid2 == entities.NativeAssetID && pool.Aid1 != entities.NativeAssetID:
			assetID, rateBeam = pool.Aid1, pool.K12
		default:
			continue
		}
		if rateBeam <= 0 {
			continue
		}

		if err := s.storeRates(ctx, assetID, rateBeam, rateBeam*beamUSD); err != nil {
			s.logger.Error("Failed to store asset rates", "asset_id", assetID, "error", err)
		}
	}
	return nil
}

func (s *AssetSynchronizer) storeRates(ctx context.Context, assetID int64, rateBeam, rateUSD float64) error {
	if err := s.assets.UpdateRates(ctx, assetID, rateBeam, rateUSD); err != nil {
		return err
	}

	if s.cache != nil {
		key := fmt.Sprintf("rates:asset:%d", assetID)
		rates := assetRates{RateBeam: rateBeam, RateUSD: rateUSD}
		if err := s.cache.Set(ctx, key, rates, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache asset rates", "asset_id", assetID, "error", err)
		}
	}
	return nil
}
