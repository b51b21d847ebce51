package entities

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// GrothPerBeam is the number of smallest units in one native coin.
const GrothPerBeam = 100_000_000

// Groth is a monetary amount in the smallest unit of an asset. The node
// reports amounts either as JSON numbers or as decimal strings, and the
// ledger persists them as strings; Groth absorbs both representations while
// keeping int64 arithmetic everywhere in the service.
type Groth int64

// Int64 returns the raw amount.
func (g Groth) Int64() int64 {
	return int64(g)
}

func (g Groth) String() string {
	return strconv.FormatInt(int64(g), 10)
}

// Format renders the amount shifted by the asset's decimals for display.
func (g Groth) Format(decimals int) string {
	return decimal.NewFromInt(int64(g)).Shift(int32(-decimals)).String()
}

// MarshalJSON renders the amount as a decimal string.
func (g Groth) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(g.String())), nil
}

// UnmarshalJSON accepts both `"123"` and `123`.
func (g *Groth) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*g = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	if s == "" {
		*g = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some node builds emit large amounts in scientific notation.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid groth amount %q: %w", s, err)
		}
		v = int64(f)
	}
	*g = Groth(v)
	return nil
}

// MarshalBSONValue persists the amount as a string, matching the ledger's
// on-disk layout.
func (g Groth) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.String, bsoncore.AppendString(nil, g.String()), nil
}

// UnmarshalBSONValue reads string, int32, int64 or double representations.
func (g *Groth) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.String:
		s, _, ok := bsoncore.ReadString(data)
		if !ok {
			return fmt.Errorf("invalid bson string for groth amount")
		}
		if s == "" {
			*g = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid groth amount %q: %w", s, err)
		}
		*g = Groth(v)
	case bsontype.Int64:
		v, _, ok := bsoncore.ReadInt64(data)
		if !ok {
			return fmt.Errorf("invalid bson int64 for groth amount")
		}
		*g = Groth(v)
	case bsontype.Int32:
		v, _, ok := bsoncore.ReadInt32(data)
		if !ok {
			return fmt.Errorf("invalid bson int32 for groth amount")
		}
		*g = Groth(v)
	case bsontype.Double:
		v, _, ok := bsoncore.ReadDouble(data)
		if !ok {
			return fmt.Errorf("invalid bson double for groth amount")
		}
		*g = Groth(int64(v))
	case bsontype.Null:
		*g = 0
	default:
		return fmt.Errorf("cannot decode bson type %s into groth amount", t)
	}
	return nil
}
