package entities

import (
	"fmt"
	"strconv"
)

// AddressType mirrors the wallet node's address kinds.
type AddressType string

const (
	AddressTypeRegular       AddressType = "regular"
	AddressTypeRegularNew    AddressType = "regular_new"
	AddressTypeOffline       AddressType = "offline"
	AddressTypePublicOffline AddressType = "public_offline"
	AddressTypeMaxPrivacy    AddressType = "max_privacy"
)

// Validate checks if the address type is one the node can create.
func (t AddressType) Validate() error {
	switch t {
	case AddressTypeRegular, AddressTypeRegularNew, AddressTypeOffline,
		AddressTypePublicOffline, AddressTypeMaxPrivacy:
		return nil
	default:
		return fmt.Errorf("invalid address type: %s", t)
	}
}

// IsRegular reports whether transfers to this address type settle with the
// cheaper regular fee.
func (t AddressType) IsRegular() bool {
	return t == AddressTypeRegular || t == AddressTypeRegularNew
}

// AssetKey converts an asset id into the string key used by the balance maps.
func AssetKey(assetID int64) string {
	return strconv.FormatInt(assetID, 10)
}

// Balance holds per-asset available and locked amounts for one address,
// keyed by asset id rendered as a decimal string.
type Balance struct {
	Available map[string]int64 `json:"available" bson:"available"`
	Locked    map[string]int64 `json:"locked" bson:"locked"`
}

// NewBalance returns an empty balance with both maps allocated.
func NewBalance() Balance {
	return Balance{
		Available: map[string]int64{},
		Locked:    map[string]int64{},
	}
}

// AvailableFor returns the available amount for an asset, missing keys read as 0.
func (b Balance) AvailableFor(assetID int64) int64 {
	return b.Available[AssetKey(assetID)]
}

// LockedFor returns the locked amount for an asset, missing keys read as 0.
func (b Balance) LockedFor(assetID int64) int64 {
	return b.Locked[AssetKey(assetID)]
}

// Address is a node-owned receive address mirrored into the ledger together
// with its running per-asset balances.
type Address struct {
	ID         string      `json:"address" bson:"_id"`
	Type       AddressType `json:"type" bson:"type"`
	Comment    string      `json:"comment,omitempty" bson:"comment,omitempty"`
	CreateTime int64       `json:"create_time" bson:"create_time"`
	Expired    bool        `json:"expired" bson:"expired"`
	Identity   string      `json:"identity,omitempty" bson:"identity,omitempty"`
	OwnID      int64       `json:"own_id,omitempty" bson:"own_id,omitempty"`
	WalletID   string      `json:"wallet_id,omitempty" bson:"wallet_id,omitempty"`
	Balance    Balance     `json:"balance" bson:"balance"`
}

// BalanceDelta describes one signed adjustment to an address balance field.
// Positive amounts credit, negative amounts debit.
type BalanceDelta struct {
	AssetID int64
	Field   BalanceField
	Amount  int64
}

// BalanceField selects which side of the balance a delta applies to.
type BalanceField string

const (
	BalanceAvailable BalanceField = "available"
	BalanceLocked    BalanceField = "locked"
)
