package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/walletscope/pkg/chain"
)

type Bucket string

const (
	BucketEmpty  Bucket = "empty"
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
	BucketWhale  Bucket = "whale"
)

// Upper bounds (inclusive) of the non-empty buckets, in native units. This is
// a policy table, not a property of any chain.
var bucketBounds = []struct {
	max    decimal.Decimal
	bucket Bucket
}{
	{decimal.RequireFromString("0.1"), BucketLow},
	{decimal.RequireFromString("10"), BucketMedium},
	{decimal.RequireFromString("1000"), BucketHigh},
}

// Features is the scoring oracle's input for one wallet.
type Features struct {
	Bucket      Bucket   `json:"balance_bucket"`
	Chain       chain.ID `json:"chain"`
	DerivedText string   `json:"derived_text"`
}

// BucketFor classifies a native amount.
func BucketFor(amount decimal.Decimal) Bucket {
	if !amount.IsPositive() {
		return BucketEmpty
	}
	for _, b := range bucketBounds {
		if amount.LessThanOrEqual(b.max) {
			return b.bucket
		}
	}
	return BucketWhale
}

// Extract derives scoring features from a resolved balance. It is pure and
// deterministic.
func Extract(id chain.ID, symbol string, amount decimal.Decimal) Features {
	b := BucketFor(amount)
	return Features{
		Bucket: b,
		Chain:  id,
		DerivedText: fmt.Sprintf("Analyze risk profile for a %s wallet holding %s %s (%s balance tier)",
			id, amount.String(), symbol, b),
	}
}
