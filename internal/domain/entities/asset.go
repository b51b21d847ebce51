package entities

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NativeAssetID identifies the chain's native coin, used for fees.
const NativeAssetID int64 = 0

// DefaultAssetDecimals applies when asset metadata carries no NTH_RATIO.
const DefaultAssetDecimals = 8

// NativeAssetMetadata is the fixed metadata blob for asset 0, which the node
// never reports through assets_list.
const NativeAssetMetadata = "STD:N=BEAM;SN=BEAM;UN=GROTH;NTH_RATIO=100000000"

// Asset is a confidential asset known to the gateway. Asset 0 always exists.
type Asset struct {
	ID         int64             `json:"asset_id" bson:"_id"`
	Metadata   string            `json:"metadata" bson:"metadata"`
	Meta       map[string]string `json:"meta" bson:"meta"`
	Decimals   int               `json:"decimals" bson:"decimals"`
	IsVerified bool              `json:"is_verified" bson:"is_verified"`
	IsSpam     bool              `json:"is_spam" bson:"is_spam"`
	RateBeam   float64           `json:"rate_beam,omitempty" bson:"rate_beam,omitempty"`
	RateUSD    float64           `json:"rate_usd,omitempty" bson:"rate_usd,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at" bson:"updated_at"`
}

// Name returns the asset's display name from metadata, falling back to its id.
func (a Asset) Name() string {
	if n, ok := a.Meta["N"]; ok && n != "" {
		return n
	}
	if n, ok := a.Meta["SN"]; ok && n != "" {
		return n
	}
	return "ASSET-" + strconv.FormatInt(a.ID, 10)
}

// UnitName returns the smallest-unit name, defaulting to GROTH.
func (a Asset) UnitName() string {
	if u, ok := a.Meta["UN"]; ok && u != "" {
		return u
	}
	return "GROTH"
}

// ParseAssetMetadata splits a `K1=V1;K2=V2` metadata string into a map.
// Entries without `=` and empty segments are dropped.
func ParseAssetMetadata(metadata string) map[string]string {
	meta := map[string]string{}
	for _, pair := range strings.Split(metadata, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return meta
}

// DecimalsFromMeta derives the asset's decimals from its NTH_RATIO entry,
// defaulting to 8 when the ratio is missing or malformed.
func DecimalsFromMeta(meta map[string]string) int {
	ratio, ok := meta["NTH_RATIO"]
	if !ok {
		return DefaultAssetDecimals
	}
	n, err := strconv.ParseInt(ratio, 10, 64)
	if err != nil || n <= 0 {
		return DefaultAssetDecimals
	}
	return int(math.Round(math.Log10(float64(n))))
}

// NewNativeAsset returns the fixed asset 0 record.
func NewNativeAsset() Asset {
	meta := ParseAssetMetadata(NativeAssetMetadata)
	return Asset{
		ID:         NativeAssetID,
		Metadata:   NativeAssetMetadata,
		Meta:       meta,
		Decimals:   DefaultAssetDecimals,
		IsVerified: true,
		UpdatedAt:  time.Now().UTC(),
	}
}
