package bot

import (
	"fmt"

	"gemini-dca-bot-go/internal/exchange"
	"gemini-dca-bot-go/internal/metrics"
	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/pricing"
	"gemini-dca-bot-go/internal/signal"
)

// BuyAction is the explicit outcome of one buy decision. Expected
// non-trades (no trigger, insufficient funds) are values here, not errors.
type BuyAction int

const (
	BuyHeld BuyAction = iota
	BuySkippedFunds
	BuySuppressedDryRun
	BuyCancelled
	BuyFilled
)

// BuyOutcome reports what the buy engine did for one symbol this tick.
type BuyOutcome struct {
	Action BuyAction
	Lot    *models.Lot
	Order  *models.Order
}

// runBuy is one pass of the buy decision engine: read the schedule rung for
// the current ledger depth, evaluate the signal, and buy when price has
// dipped past the rung's threshold from the reference high (empty ledger)
// or from the lowest held lot (non-empty, below the capacity cap).
func (b *Bot) runBuy(symbol string) (*BuyOutcome, error) {
	lots := b.ledger.Lots(symbol)
	depth := len(lots)
	amount, threshold := b.schedule.NextTradeParams(depth)

	quote, err := b.exchange.GetQuote(symbol)
	if err != nil {
		return nil, fmt.Errorf("buy %s: quote: %w", symbol, err)
	}
	sig := signal.Evaluate(symbol, *quote, lots, threshold, b.schedule.SellVolatility(depth))

	buy := false
	if sig.LowestOutstandingLot == nil && sig.PercentageDip > threshold {
		buy = true
	}
	if sig.LowestOutstandingLot != nil &&
		sig.ClosenessToLowestTrade > threshold &&
		depth < b.cfg.MaxOutstandingTrades {
		buy = true
	}
	if !buy {
		return &BuyOutcome{Action: BuyHeld}, nil
	}

	available, err := b.availableCash(symbol)
	if err != nil {
		return nil, fmt.Errorf("buy %s: balance: %w", symbol, err)
	}
	if amount > available {
		// Expected and non-fatal: wait for funds, try again next tick.
		b.logger.Infow("Buy skipped, insufficient funds",
			"symbol", symbol, "trading_amount", amount,
			"available", available, "ask", sig.Quote.Ask)
		metrics.SkipsTotal.WithLabelValues(symbol, "insufficient_funds").Inc()
		return &BuyOutcome{Action: BuySkippedFunds}, nil
	}

	detail, err := b.exchange.GetSymbolDetail(symbol)
	if err != nil {
		return nil, fmt.Errorf("buy %s: symbol detail: %w", symbol, err)
	}

	price, err := pricing.AggressiveAsk(sig.Quote.Ask, detail.QuoteIncrement)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", symbol, err)
	}
	quantity := pricing.RoundToIncrement(amount/price, detail.TickSize)
	if quantity < detail.MinOrderSize {
		// Clamping up may spend slightly more than the rung's amount.
		quantity = detail.MinOrderSize
	}

	if sig.LowestOutstandingLot != nil {
		b.logger.Infow("Buy triggered from held lot",
			"symbol", symbol, "lowest_cost", sig.LowestOutstandingLot.Cost,
			"closeness", sig.ClosenessToLowestTrade, "threshold", threshold)
	} else {
		b.logger.Infow("Buy triggered from reference high",
			"symbol", symbol, "high", sig.Quote.High,
			"dip", sig.PercentageDip, "threshold", threshold)
	}

	if b.cfg.DryRun {
		b.logger.Infow("Dry run, buy order suppressed",
			"symbol", symbol, "quantity", quantity, "price", price)
		return &BuyOutcome{Action: BuySuppressedDryRun}, nil
	}

	order, err := b.executor.Execute(symbol, quantity, price, exchange.SideBuy)
	if err != nil {
		return nil, err
	}
	if order.ExecutedAmount <= 0 {
		// Fully cancelled before any fill; nothing to record.
		return &BuyOutcome{Action: BuyCancelled, Order: order}, nil
	}

	lot := models.Lot{
		Symbol:        symbol,
		OrderID:       order.OrderID,
		ClientOrderID: order.ClientOrderID,
		Quantity:      order.ExecutedAmount,
		Cost:          order.AvgExecutionPrice,
		Amount:        order.ExecutedAmount * order.AvgExecutionPrice,
		Created:       order.Timestamp,
		CreatedMs:     order.TimestampMs,
	}
	if err := b.ledger.Insert(lot); err != nil {
		return nil, fmt.Errorf("buy %s: %w", symbol, err)
	}

	metrics.BuysTotal.WithLabelValues(symbol).Inc()
	return &BuyOutcome{Action: BuyFilled, Lot: &lot, Order: order}, nil
}

// availableCash returns the quote-currency balance usable for a buy,
// logging when part of it is on hold.
func (b *Bot) availableCash(symbol string) (float64, error) {
	detail, err := b.exchange.GetSymbolDetail(symbol)
	if err != nil {
		return 0, err
	}
	balance, err := b.exchange.GetBalance(detail.QuoteCurrency)
	if err != nil {
		return 0, err
	}
	if balance == nil {
		return 0, nil
	}
	if !floatsClose(balance.Amount, balance.Available) {
		b.logger.Warnw("Account balance partially on hold",
			"currency", balance.Currency, "amount", balance.Amount, "available", balance.Available)
	}
	return balance.Available, nil
}
