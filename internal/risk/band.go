package risk

import (
	"github.com/shopspring/decimal"
)

// Band is a coarse label for a probability shown next to the percentage.
type Band string

const (
	BandLow      Band = "LOW"
	BandMedium   Band = "MEDIUM"
	BandHigh     Band = "HIGH"
	BandCritical Band = "CRITICAL"
)

// BandFor maps a probability in [0,1] to its band.
func BandFor(probability float64) Band {
	switch {
	case probability >= 0.80:
		return BandCritical
	case probability >= 0.60:
		return BandHigh
	case probability >= 0.35:
		return BandMedium
	default:
		return BandLow
	}
}

// Percent renders a probability as a percentage with one decimal, e.g. 0.2 -> "20.0%".
func Percent(probability float64) string {
	return decimal.NewFromFloat(probability).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

// round3 rounds half away from zero to three decimals.
func round3(p float64) float64 {
	return decimal.NewFromFloat(p).Round(3).InexactFloat64()
}
