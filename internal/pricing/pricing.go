// Package pricing handles the increment-aware price and quantity arithmetic.
// All of it runs on decimals: instruments whose quote increment is not a
// power of ten make float string-juggling unsafe.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AggressiveAsk nudges a buy limit one quote increment below the quoted ask,
// giving the order queue priority while staying non-marketable. The decimal
// subtraction carries across the integer boundary (90.00 at 0.01 -> 89.99).
func AggressiveAsk(ask, quoteIncrement float64) (float64, error) {
	inc := decimal.NewFromFloat(quoteIncrement)
	if inc.Sign() <= 0 {
		return 0, fmt.Errorf("quote increment must be positive, got %v", quoteIncrement)
	}
	price := decimal.NewFromFloat(ask).Sub(inc)
	if price.Sign() <= 0 {
		return 0, fmt.Errorf("ask %v is not above one increment %v", ask, quoteIncrement)
	}
	return price.InexactFloat64(), nil
}

// AggressiveBid nudges a sell limit one quote increment above the quoted
// bid, the mirror of AggressiveAsk (89.99 at 0.01 -> 90.00).
func AggressiveBid(bid, quoteIncrement float64) (float64, error) {
	inc := decimal.NewFromFloat(quoteIncrement)
	if inc.Sign() <= 0 {
		return 0, fmt.Errorf("quote increment must be positive, got %v", quoteIncrement)
	}
	if bid <= 0 {
		return 0, fmt.Errorf("bid must be positive, got %v", bid)
	}
	return decimal.NewFromFloat(bid).Add(inc).InexactFloat64(), nil
}

// RoundToIncrement floors value to a whole number of increments, the
// tradable precision for order quantities.
func RoundToIncrement(value, increment float64) float64 {
	if increment <= 0 {
		return value
	}
	inc := decimal.NewFromFloat(increment)
	return decimal.NewFromFloat(value).Div(inc).Floor().Mul(inc).InexactFloat64()
}

// FormatPrice renders a price with the number of decimals implied by the
// increment, the form the exchange expects in order payloads.
func FormatPrice(value, increment float64) string {
	places := int32(0)
	if increment > 0 {
		places = -decimal.NewFromFloat(increment).Exponent()
	}
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(value).StringFixed(places)
}
