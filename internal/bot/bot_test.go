package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-dca-bot-go/internal/models"
)

func TestRunOnceContinuesPastSymbolErrors(t *testing.T) {
	ex := newFakeExchange()
	ex.quoteErr = errors.New("ticker unavailable")
	cfg := testConfig()
	cfg.Symbols = []string{"btcusd", "ethusd"}
	b := newTestBot(t, cfg, ex)

	// Both symbols fail on the quote; the run itself still succeeds.
	assert.NoError(t, b.RunOnce())
}

func TestRunOnceAbortsOnUnknownOrderState(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	ex.placeFn = func(c placedCall) (*models.Order, error) {
		return &models.Order{OrderID: "broken", IsLive: false, ExecutedAmount: 0, RemainingAmount: 0, OriginalAmount: c.quantity}, nil
	}
	b := newTestBot(t, testConfig(), ex)

	err := b.RunOnce()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOrderState)
}

func TestTradeSymbolBuysThenSells(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	b := newTestBot(t, testConfig(), ex)

	// The dip triggers a buy; the fresh lot is not up enough to sell.
	require.NoError(t, b.TradeSymbol("btcusd"))
	assert.Equal(t, 1, b.ledger.Depth("btcusd"))
	require.Len(t, ex.placed, 1)

	// Price recovers past the volatility threshold; the position is sold.
	ex.quote = models.Quote{Bid: 95, Ask: 95.5, High: 100}
	ex.positions["btcusd"] = &models.Balance{Currency: "btc", Amount: 0.0556, Available: 0.0556}
	require.NoError(t, b.TradeSymbol("btcusd"))
	assert.Zero(t, b.ledger.Depth("btcusd"))
	require.Len(t, ex.placed, 2)
	assert.Equal(t, "sell", ex.placed[1].side)
}
