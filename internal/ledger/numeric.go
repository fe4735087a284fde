package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// Epsilon is the quantity below which a position is considered flat.
const Epsilon = 1e-10

const (
	moneyPlaces    = 2
	quantityPlaces = 8
)

// ToFiniteOrZero maps NaN and ±Inf to 0 so surfaced figures always render.
func ToFiniteOrZero(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// IsPositiveFinite reports whether x is a usable quantity or price.
func IsPositiveFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}

// Round rounds half away from zero to the given number of decimal places.
func Round(x float64, places int32) float64 {
	x = ToFiniteOrZero(x)
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}

// RoundMoney rounds a USD amount to cents.
func RoundMoney(x float64) float64 {
	return Round(x, moneyPlaces)
}

// RoundQty rounds a coin quantity to 8 decimals.
func RoundQty(x float64) float64 {
	return Round(x, quantityPlaces)
}

func finitePtr(x float64) *float64 {
	v := ToFiniteOrZero(x)
	return &v
}
