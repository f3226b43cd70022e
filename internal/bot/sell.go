package bot

import (
	"fmt"

	"gemini-dca-bot-go/internal/exchange"
	"gemini-dca-bot-go/internal/metrics"
	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/pricing"
	"gemini-dca-bot-go/internal/signal"
)

// SellAction is the explicit outcome of one sell decision.
type SellAction int

const (
	SellHeld SellAction = iota
	SellPurged
	SellSuppressedDryRun
	SellCancelled
	SellFilled
)

// SellOutcome reports what the sell engine did for one symbol this tick.
// Remainder is the lot re-inserted after a partial fill, if any.
type SellOutcome struct {
	Action    SellAction
	Order     *models.Order
	Remainder *models.Lot
}

// runSell is one pass of the sell decision engine. At or below the strategy
// threshold depth the whole position is sold against its aggregate average
// cost; above it only the lowest-cost lot is sold, against its own cost.
func (b *Bot) runSell(symbol string) (*SellOutcome, error) {
	lots := b.ledger.Lots(symbol)
	depth := len(lots)
	if depth == 0 {
		return &SellOutcome{Action: SellHeld}, nil
	}

	quote, err := b.exchange.GetQuote(symbol)
	if err != nil {
		return nil, fmt.Errorf("sell %s: quote: %w", symbol, err)
	}
	volatility := b.schedule.SellVolatility(depth)
	_, threshold := b.schedule.NextTradeParams(depth)
	sig := signal.Evaluate(symbol, *quote, lots, threshold, volatility)

	if depth <= b.cfg.SellStrategyThresholdDepth {
		return b.sellAll(symbol, sig, volatility)
	}
	return b.sellLowestLot(symbol, sig, volatility, depth)
}

// sellAll liquidates the entire exchange position when the bid has risen
// past the aggregate average cost by more than the volatility threshold.
func (b *Bot) sellAll(symbol string, sig *signal.Signal, volatility float64) (*SellOutcome, error) {
	position, err := b.exchange.GetPosition(symbol)
	if err != nil {
		return nil, fmt.Errorf("sell %s: position: %w", symbol, err)
	}
	held := 0.0
	if position != nil {
		held = position.Available
		if !floatsClose(position.Amount, position.Available) {
			b.logger.Warnw("Position partially on hold",
				"symbol", symbol, "amount", position.Amount, "available", position.Available)
		}
	}
	if floatsClose(held, 0) {
		// The exchange holds nothing for this symbol; the ledger is stale.
		b.logger.Warnw("Ledger has lots but exchange position is zero, purging",
			"symbol", symbol, "ledger_quantity", sig.TotalQuantity)
		if err := b.ledger.Purge(symbol); err != nil {
			return nil, fmt.Errorf("sell %s: %w", symbol, err)
		}
		return &SellOutcome{Action: SellPurged}, nil
	}

	if sig.PercentageUp <= volatility {
		return &SellOutcome{Action: SellHeld}, nil
	}

	if !floatsClose(held, sig.TotalQuantity) {
		b.logger.Warnw("Ledger quantity differs from exchange position, selling position",
			"symbol", symbol, "ledger_quantity", sig.TotalQuantity, "position", held)
	}
	b.logger.Infow("Sell triggered, liquidating position",
		"symbol", symbol, "quantity", held, "avg_cost", sig.AvgCost,
		"bid", sig.Quote.Bid, "up", sig.PercentageUp, "volatility", volatility)
	return b.executeSell(symbol, held, sig.Quote.Bid, nil)
}

// sellLowestLot sells only the cheapest held lot when the bid has risen past
// that lot's cost by more than the volatility threshold.
func (b *Bot) sellLowestLot(symbol string, sig *signal.Signal, volatility float64, depth int) (*SellOutcome, error) {
	target := sig.LowestOutstandingLot
	if target == nil {
		return &SellOutcome{Action: SellHeld}, nil
	}
	if sig.PercentageUpFromLastTrade <= volatility {
		return &SellOutcome{Action: SellHeld}, nil
	}

	quantity := target.Quantity
	if depth == 1 {
		// A single lot should clear the whole position, dust included.
		position, err := b.exchange.GetPosition(symbol)
		if err != nil {
			return nil, fmt.Errorf("sell %s: position: %w", symbol, err)
		}
		if position != nil && position.Available > quantity {
			quantity = position.Available
		}
	}

	b.logger.Infow("Sell triggered, selling lowest-cost lot",
		"symbol", symbol, "quantity", quantity, "lot_cost", target.Cost,
		"bid", sig.Quote.Bid, "up", sig.PercentageUpFromLastTrade, "volatility", volatility)
	return b.executeSell(symbol, quantity, sig.Quote.Bid, target)
}

// executeSell places an aggressive maker sell and reconciles the ledger with
// the fill. target nil means the whole position: every lot for the symbol is
// dropped. A partial fill above the exchange minimum is re-lotted at the
// original cost basis so the unsold remainder stays tracked.
func (b *Bot) executeSell(symbol string, quantity, bid float64, target *models.Lot) (*SellOutcome, error) {
	detail, err := b.exchange.GetSymbolDetail(symbol)
	if err != nil {
		return nil, fmt.Errorf("sell %s: symbol detail: %w", symbol, err)
	}
	price, err := pricing.AggressiveBid(bid, detail.QuoteIncrement)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", symbol, err)
	}

	if b.cfg.DryRun {
		b.logger.Infow("Dry run, sell order suppressed",
			"symbol", symbol, "quantity", quantity, "price", price)
		return &SellOutcome{Action: SellSuppressedDryRun}, nil
	}

	order, err := b.executor.Execute(symbol, quantity, price, exchange.SideSell)
	if err != nil {
		return nil, err
	}
	if order.ExecutedAmount <= 0 {
		return &SellOutcome{Action: SellCancelled, Order: order}, nil
	}

	var costBasis float64
	if target != nil {
		costBasis = target.Cost
		if err := b.ledger.Remove(symbol, *target); err != nil {
			return nil, fmt.Errorf("sell %s: %w", symbol, err)
		}
	} else {
		_, _, avgCost := signal.Aggregate(b.ledger.Lots(symbol))
		costBasis = avgCost
		if err := b.ledger.Purge(symbol); err != nil {
			return nil, fmt.Errorf("sell %s: %w", symbol, err)
		}
	}

	outcome := &SellOutcome{Action: SellFilled, Order: order}
	if !floatsClose(quantity, order.ExecutedAmount) && order.RemainingAmount > detail.MinOrderSize {
		remainder := models.Lot{
			Symbol:        symbol,
			OrderID:       order.OrderID,
			ClientOrderID: order.ClientOrderID,
			Quantity:      order.RemainingAmount,
			Cost:          costBasis,
			Amount:        order.RemainingAmount * costBasis,
			Created:       order.Timestamp,
			CreatedMs:     order.TimestampMs,
		}
		if err := b.ledger.Insert(remainder); err != nil {
			return nil, fmt.Errorf("sell %s: %w", symbol, err)
		}
		outcome.Remainder = &remainder
		b.logger.Infow("Partial sell fill, remainder re-lotted at cost basis",
			"symbol", symbol, "executed", order.ExecutedAmount,
			"remainder", order.RemainingAmount, "cost", costBasis)
	}

	metrics.SellsTotal.WithLabelValues(symbol).Inc()
	return outcome, nil
}
