package bridgecore

import (
	"math/big"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the precision bridge amounts are rounded to.
const AmountPlaces = 8

// sampleAmount draws uniformly from [min, max] and rounds to AmountPlaces.
func sampleAmount(r *rand.Rand, min, max decimal.Decimal) decimal.Decimal {
	if max.LessThanOrEqual(min) {
		return min.Round(AmountPlaces)
	}
	span := max.Sub(min)
	return min.Add(span.Mul(decimal.NewFromFloat(r.Float64()))).Round(AmountPlaces)
}

// sampleDelay draws whole seconds from [min, max]; max == 0 means no delay.
func sampleDelay(r *rand.Rand, min, max int) time.Duration {
	if max <= 0 {
		return 0
	}
	if min < 0 {
		min = 0
	}
	if max <= min {
		return time.Duration(min) * time.Second
	}
	return time.Duration(min+r.Intn(max-min+1)) * time.Second
}

// ToWei converts a native-coin amount to wei, truncating below 1 wei.
func ToWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(18).BigInt()
}
