package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// WalletNodeClient is the node surface for address provisioning and
// transaction passthrough.
type WalletNodeClient interface {
	CreateAddress(ctx context.Context, params beamnode.CreateAddressParams) (string, error)
	TxStatus(ctx context.Context, txID string) (*beamnode.TxInfo, error)
	TxCancel(ctx context.Context, txID string) error
}

// AddressStore persists gateway-owned deposit addresses.
type AddressStore interface {
	Create(ctx context.Context, address *entities.Address) error
	GetByID(ctx context.Context, id string) (*entities.Address, error)
	List(ctx context.Context, page, pageSize int) ([]*entities.Address, error)
	Count(ctx context.Context) (int64, error)
}

// TransactionStore reads the observed transaction ledger.
type TransactionStore interface {
	GetByID(ctx context.Context, txID string) (*entities.Transaction, error)
	ListByAddress(ctx context.Context, address string, page, pageSize int) ([]*entities.Transaction, error)
	ListDeposits(ctx context.Context, receiver string, page, pageSize int) ([]*entities.Transaction, error)
}

// AssetCatalog reads the known asset registry.
type AssetCatalog interface {
	List(ctx context.Context) ([]*entities.Asset, error)
}

// AssetBalance is one asset's position on an address, with display amounts
// shifted by the asset's decimals.
type AssetBalance struct {
	AssetID            int64          `json:"asset_id"`
	AssetName          string         `json:"asset_name"`
	Available          entities.Groth `json:"available"`
	AvailableFormatted string         `json:"available_formatted"`
	Locked             entities.Groth `json:"locked"`
	LockedFormatted    string         `json:"locked_formatted"`
}

// WalletService manages deposit addresses and exposes the ledger views the
// public API serves.
type WalletService struct {
	node         WalletNodeClient
	addresses    AddressStore
	transactions TransactionStore
	assets       AssetCatalog
	logger       *logger.Logger
}

// NewWalletService creates a wallet service
func NewWalletService(
	node WalletNodeClient,
	addresses AddressStore,
	transactions TransactionStore,
	assets AssetCatalog,
	log *logger.Logger,
) *WalletService {
	return &WalletService{
		node:         node,
		addresses:    addresses,
		transactions: transactions,
		assets:       assets,
		logger:       log,
	}
}

// CreateWallet provisions a wallet id together with its first deposit
// address. The label becomes the address comment so operators can find it in
// the node's own tooling too.
func (s *WalletService) CreateWallet(ctx context.Context, label string) (string, *entities.Address, error) {
	walletID := uuid.New().String()
	address, err := s.CreateAddress(ctx, "", label, walletID)
	if err != nil {
		return "", nil, err
	}
	return walletID, address, nil
}

// CreateAddress provisions a fresh address on the node and registers it in
// the ledger with zero balances. Addresses never expire, deposits can arrive
// months after provisioning.
func (s *WalletService) CreateAddress(ctx context.Context, addrType entities.AddressType, comment, walletID string) (*entities.Address, error) {
	if addrType != "" {
		if err := addrType.Validate(); err != nil {
			return nil, entities.NewValidationError("type", err.Error())
		}
	}

	id, err := s.node.CreateAddress(ctx, beamnode.CreateAddressParams{
		Type:       string(addrType),
		Comment:    comment,
		Expiration: "never",
	})
	if err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	address := &entities.Address{
		ID:         id,
		Type:       addrType,
		Comment:    comment,
		WalletID:   walletID,
		CreateTime: time.Now().Unix(),
		Balance:    entities.NewBalance(),
	}
	if err := s.addresses.Create(ctx, address); err != nil {
		return nil, fmt.Errorf("register address: %w", err)
	}

	s.logger.Info("Address created",
		"address", address.ID,
		"type", address.Type,
		"wallet_id", address.WalletID,
		"comment", address.Comment)

	return address, nil
}

// Address returns a ledger address by id.
func (s *WalletService) Address(ctx context.Context, id string) (*entities.Address, error) {
	if id == "" {
		return nil, entities.NewValidationError("address", "is required")
	}
	return s.addresses.GetByID(ctx, id)
}

// Addresses returns a page of ledger addresses and the total count.
func (s *WalletService) Addresses(ctx context.Context, page, pageSize int) ([]*entities.Address, int64, error) {
	addresses, err := s.addresses.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.addresses.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return addresses, total, nil
}

// Balances returns the address's per-asset balances, one row per asset the
// ledger has ever credited or locked, sorted by asset id.
func (s *WalletService) Balances(ctx context.Context, addressID string) ([]AssetBalance, error) {
	address, err := s.Address(ctx, addressID)
	if err != nil {
		return nil, err
	}

	catalog := s.assetIndex(ctx)

	seen := map[int64]bool{}
	var ids []int64
	collect := func(keys map[string]int64) {
		for key := range keys {
			assetID, err := strconv.ParseInt(key, 10, 64)
			if err != nil || seen[assetID] {
				continue
			}
			seen[assetID] = true
			ids = append(ids, assetID)
		}
	}
	collect(address.Balance.Available)
	collect(address.Balance.Locked)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	balances := make([]AssetBalance, 0, len(ids))
	for _, assetID := range ids {
		name := "ASSET-" + strconv.FormatInt(assetID, 10)
		decimals := entities.DefaultAssetDecimals
		if asset, ok := catalog[assetID]; ok {
			name = asset.Name()
			decimals = asset.Decimals
		}
		available := entities.Groth(address.Balance.AvailableFor(assetID))
		locked := entities.Groth(address.Balance.LockedFor(assetID))
		balances = append(balances, AssetBalance{
			AssetID:            assetID,
			AssetName:          name,
			Available:          available,
			AvailableFormatted: available.Format(decimals),
			Locked:             locked,
			LockedFormatted:    locked.Format(decimals),
		})
	}

	return balances, nil
}

// Deposits returns incoming transactions for the address, newest first.
func (s *WalletService) Deposits(ctx context.Context, addressID string, page, pageSize int) ([]*entities.Transaction, error) {
	if _, err := s.Address(ctx, addressID); err != nil {
		return nil, err
	}
	return s.transactions.ListDeposits(ctx, addressID, page, pageSize)
}

// Transactions returns transactions touching the address on either side,
// newest first.
func (s *WalletService) Transactions(ctx context.Context, addressID string, page, pageSize int) ([]*entities.Transaction, error) {
	if _, err := s.Address(ctx, addressID); err != nil {
		return nil, err
	}
	return s.transactions.ListByAddress(ctx, addressID, page, pageSize)
}

// Transaction returns a ledger transaction, falling back to a live node
// lookup for transactions the sync loop has not observed yet.
func (s *WalletService) Transaction(ctx context.Context, txID string) (*entities.Transaction, error) {
	if txID == "" {
		return nil, entities.NewValidationError("txid", "is required")
	}

	tx, err := s.transactions.GetByID(ctx, txID)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, entities.ErrNotFound) {
		return nil, err
	}

	info, err := s.node.TxStatus(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("tx_status: %w", err)
	}
	return info.Transaction(), nil
}

// CancelTransaction asks the node to cancel an in-flight transaction. The
// node rejects the call once the transaction is past the point of no return.
func (s *WalletService) CancelTransaction(ctx context.Context, txID string) error {
	if txID == "" {
		return entities.NewValidationError("txid", "is required")
	}
	if err := s.node.TxCancel(ctx, txID); err != nil {
		return fmt.Errorf("tx_cancel: %w", err)
	}
	s.logger.Info("Transaction cancel requested", "tx_id", txID)
	return nil
}

// Assets returns the known asset registry.
func (s *WalletService) Assets(ctx context.Context) ([]*entities.Asset, error) {
	return s.assets.List(ctx)
}

// assetIndex loads the asset registry keyed by id. A failed load only costs
// display names, so it degrades to an empty index.
func (s *WalletService) assetIndex(ctx context.Context) map[int64]*entities.Asset {
	assets, err := s.assets.List(ctx)
	if err != nil {
		s.logger.Warn("Failed to load asset registry, using fallback names", "error", err)
		return nil
	}
	index := make(map[int64]*entities.Asset, len(assets))
	for _, asset := range assets {
		index[asset.ID] = asset
	}
	return index
}
