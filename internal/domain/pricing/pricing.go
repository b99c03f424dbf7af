// Package pricing derives monetary totals from cart state. All functions are
// pure: they read the lines they are given and never cache, so a result can
// never go stale against the cart it came from.
//
// Rounding is half-away-from-zero via decimal.Round. Sums accumulate at full
// precision and round once at the end, so per-line rounding error cannot
// compound across a large cart.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/tillpoint/internal/domain/cart"
)

// Subtotal returns the line's unit price times quantity, rounded to cents.
func Subtotal(l cart.Line) decimal.Decimal {
	return extended(l).Round(2)
}

// Total returns the sum of unit price times quantity over all lines,
// rounded to cents once after summation.
func Total(lines []cart.Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(extended(l))
	}
	return sum.Round(2)
}

// ItemCount returns the number of units across all lines, not the number of
// distinct lines. Used for display badges.
func ItemCount(lines []cart.Line) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// extended is the unrounded unit price times quantity.
func extended(l cart.Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
