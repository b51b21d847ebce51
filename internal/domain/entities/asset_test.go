package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAssetMetadata(t *testing.T) {
	meta := ParseAssetMetadata("STD:N=Beam Coin;SN=BEAM;UN=GROTH;NTH_RATIO=100000000")

	assert.Equal(t, "Beam Coin", meta["N"])
	assert.Equal(t, "BEAM", meta["SN"])
	assert.Equal(t, "GROTH", meta["UN"])
	assert.Equal(t, "100000000", meta["NTH_RATIO"])
}

func TestParseAssetMetadataDropsMalformedSegments(t *testing.T) {
	meta := ParseAssetMetadata("N=Token;;garbage; SN = TKN ;")

	assert.Equal(t, "Token", meta["N"])
	assert.Equal(t, "TKN", meta["SN"])
	assert.NotContains(t, meta, "garbage")
	assert.Len(t, meta, 2)
}

func TestDecimalsFromMeta(t *testing.T) {
	assert.Equal(t, 8, DecimalsFromMeta(map[string]string{"NTH_RATIO": "100000000"}))
	assert.Equal(t, 6, DecimalsFromMeta(map[string]string{"NTH_RATIO": "1000000"}))
	assert.Equal(t, 0, DecimalsFromMeta(map[string]string{"NTH_RATIO": "1"}))

	// Missing or unusable ratios fall back to the native precision.
	assert.Equal(t, 8, DecimalsFromMeta(map[string]string{}))
	assert.Equal(t, 8, DecimalsFromMeta(map[string]string{"NTH_RATIO": "soon"}))
	assert.Equal(t, 8, DecimalsFromMeta(map[string]string{"NTH_RATIO": "0"}))
}

func TestAssetNameFallbacks(t *testing.T) {
	named := Asset{ID: 7, Meta: map[string]string{"N": "Token", "SN": "TKN"}}
	assert.Equal(t, "Token", named.Name())

	shortOnly := Asset{ID: 7, Meta: map[string]string{"SN": "TKN"}}
	assert.Equal(t, "TKN", shortOnly.Name())

	bare := Asset{ID: 7, Meta: map[string]string{}}
	assert.Equal(t, "ASSET-7", bare.Name())
	assert.Equal(t, "GROTH", bare.UnitName())
}

func TestNewNativeAsset(t *testing.T) {
	native := NewNativeAsset()

	assert.Equal(t, NativeAssetID, native.ID)
	assert.Equal(t, "BEAM", native.Name())
	assert.Equal(t, 8, native.Decimals)
	assert.True(t, native.IsVerified)
}
