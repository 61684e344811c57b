package domain

import "github.com/shopspring/decimal"

// MaxQuantity caps stock, restock and cart quantities.
const MaxQuantity = 1_000_000_000

const (
	maxAmountScale    = 8
	maxAmountExponent = 12
	// 10^20 fits in 67 bits: twelve integer digits plus eight decimals.
	maxAmountBits = 67
	// Sale totals are sums of quantity×price lines.
	maxTotalBits = 128
)

// MaxAmount is the largest price, cost or expense amount accepted.
var MaxAmount = decimal.New(1, maxAmountExponent)

// ValidAmount reports whether d is a non-negative amount of at most
// MaxAmount with no more than eight decimal places. Exponent and coefficient
// size are checked before any comparison, since comparing or printing a
// decimal expands it to its full exponent.
func ValidAmount(d decimal.Decimal) bool {
	if !withinWindow(d, maxAmountBits) {
		return false
	}
	return !d.IsNegative() && d.LessThanOrEqual(MaxAmount)
}

// BoundedTotal reports whether d is small enough to be a sale total.
func BoundedTotal(d decimal.Decimal) bool {
	return withinWindow(d, maxTotalBits)
}

func withinWindow(d decimal.Decimal, maxBits int) bool {
	exp := d.Exponent()
	if exp < -maxAmountScale || exp > maxAmountExponent {
		return false
	}
	return d.Coefficient().BitLen() <= maxBits
}
