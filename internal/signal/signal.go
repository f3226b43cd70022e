// Package signal computes the per-symbol, per-tick derived view the decision
// engines act on. Everything here is a pure function of the quote snapshot
// and the ledger contents; a Signal never outlives one decision cycle.
package signal

import (
	"math"

	"gemini-dca-bot-go/internal/models"
)

// Signal is the derived view for one symbol at one tick.
type Signal struct {
	Symbol string
	Quote  models.Quote

	// PercentageDip is how far the current ask has fallen below the 24h high.
	PercentageDip float64

	// LowestOutstandingLot is the open lot with the minimum cost, nil when
	// the ledger is empty.
	LowestOutstandingLot *models.Lot

	// ClosenessToLowestTrade is how far the current ask has fallen below the
	// lowest outstanding lot's cost. Zero when the ledger is empty.
	ClosenessToLowestTrade float64

	TotalAmount   float64
	TotalQuantity float64
	AvgCost       float64

	// PercentageUp is how far the current bid has risen above the average
	// cost. Only meaningful when the ledger is non-empty.
	PercentageUp float64

	// PercentageUpFromLastTrade is PercentageUp measured against the lowest
	// outstanding lot's cost instead of the aggregate average.
	PercentageUpFromLastTrade float64

	// BreakEven is the gain needed from the current bid to reach the average
	// cost. Same ratio as PercentageUp with the arguments swapped.
	BreakEven float64

	// SellAt and BuyAt are display-only target prices.
	SellAt float64
	BuyAt  float64
}

// PercentageDip reports how much b has dipped below a, as a percent of a,
// rounded to 4 decimals. A zero reference is a degenerate input (the callers
// pass historical highs or lot costs, both positive) and yields 0.
func PercentageDip(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return round4(((a - b) / a) * 100)
}

// PercentageBreakEven reports how much a must gain to reach b, as a percent
// of a, rounded to 4 decimals. Zero a yields 0.
func PercentageBreakEven(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return round4(((b - a) / a) * 100)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// LowestOutstandingLot returns the open lot with the minimum cost. Ties keep
// the first-encountered lot so the result is deterministic.
func LowestOutstandingLot(lots []models.Lot) *models.Lot {
	var lowest *models.Lot
	for i := range lots {
		if lowest == nil || lots[i].Cost < lowest.Cost {
			lowest = &lots[i]
		}
	}
	if lowest == nil {
		return nil
	}
	lot := *lowest
	return &lot
}

// Aggregate sums the ledger. avgCost is 0 for an empty ledger.
func Aggregate(lots []models.Lot) (totalAmount, totalQuantity, avgCost float64) {
	for i := range lots {
		totalAmount += lots[i].Amount
		totalQuantity += lots[i].Quantity
	}
	if totalQuantity > 0 {
		avgCost = totalAmount / totalQuantity
	}
	return totalAmount, totalQuantity, avgCost
}

// Evaluate builds the full Signal for one symbol. closenessPct and
// volatilityPct come from the schedule at the current ledger depth and are
// only used for the display targets.
func Evaluate(symbol string, quote models.Quote, lots []models.Lot, closenessPct, volatilityPct float64) *Signal {
	sig := &Signal{
		Symbol:        symbol,
		Quote:         quote,
		PercentageDip: PercentageDip(quote.High, quote.Ask),
	}

	sig.LowestOutstandingLot = LowestOutstandingLot(lots)
	if sig.LowestOutstandingLot != nil {
		sig.ClosenessToLowestTrade = PercentageDip(sig.LowestOutstandingLot.Cost, quote.Ask)
		sig.PercentageUpFromLastTrade = PercentageBreakEven(sig.LowestOutstandingLot.Cost, quote.Bid)
	}

	sig.TotalAmount, sig.TotalQuantity, sig.AvgCost = Aggregate(lots)
	if len(lots) > 0 {
		sig.PercentageUp = PercentageBreakEven(sig.AvgCost, quote.Bid)
		sig.BreakEven = PercentageBreakEven(quote.Bid, sig.AvgCost)
	}

	sig.SellAt = sig.AvgCost * (1.0 + volatilityPct/100.0)
	if sig.LowestOutstandingLot != nil {
		sig.BuyAt = sig.LowestOutstandingLot.Cost * (1.0 - closenessPct/100.0)
	} else {
		sig.BuyAt = quote.High * (1.0 - closenessPct/100.0)
	}

	return sig
}
