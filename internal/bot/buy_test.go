package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-dca-bot-go/internal/exchange"
	"gemini-dca-bot-go/internal/models"
)

func TestRunBuyHeldWhenDipTooSmall(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 97, Ask: 98, High: 100} // dip 2, threshold 3
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	b := newTestBot(t, testConfig(), ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuyHeld, outcome.Action)
	assert.Empty(t, ex.placed)
}

func TestRunBuyFromReferenceHigh(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100} // dip 10 > threshold 3
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	b := newTestBot(t, testConfig(), ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuyFilled, outcome.Action)

	require.Len(t, ex.placed, 1)
	call := ex.placed[0]
	assert.Equal(t, exchange.SideBuy, call.side)
	assert.InDelta(t, 89.99, call.price, 1e-9)
	// Rung 0 spends $5 at the aggressive price.
	assert.InDelta(t, 5.0/89.99, call.quantity, 1e-7)

	require.NotNil(t, outcome.Lot)
	assert.InDelta(t, 89.99, outcome.Lot.Cost, 1e-9)
	assert.InDelta(t, 5.0, outcome.Lot.Amount, 1e-3)
	assert.Equal(t, 1, b.ledger.Depth("btcusd"))
}

func TestRunBuyFromLowestLot(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 94, Ask: 95, High: 96} // dip 1.0417 only
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	b := newTestBot(t, testConfig(), ex)
	require.NoError(t, b.ledger.Insert(models.Lot{
		Symbol: "btcusd", OrderID: "1", Quantity: 0.05, Cost: 100, Amount: 5,
	}))

	// Ask 95 is 5% below the lowest held cost 100, threshold 3.
	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuyFilled, outcome.Action)
	assert.Equal(t, 2, b.ledger.Depth("btcusd"))

	// Rung 1 spends $10.
	require.Len(t, ex.placed, 1)
	assert.InDelta(t, 10.0/94.99, ex.placed[0].quantity, 1e-7)
}

func TestRunBuyHeldAtMaxOutstandingTrades(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 94, Ask: 95, High: 96}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	cfg := testConfig()
	b := newTestBot(t, cfg, ex)
	for i := 0; i < cfg.MaxOutstandingTrades; i++ {
		require.NoError(t, b.ledger.Insert(models.Lot{
			Symbol: "btcusd", OrderID: string(rune('1' + i)), Quantity: 0.05, Cost: 100, Amount: 5,
		}))
	}

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuyHeld, outcome.Action)
	assert.Empty(t, ex.placed)
}

func TestRunBuySkipsOnInsufficientFunds(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 2, Available: 2}
	b := newTestBot(t, testConfig(), ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuySkippedFunds, outcome.Action)
	assert.Empty(t, ex.placed)
}

func TestRunBuyTreatsMissingBalanceAsZero(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	b := newTestBot(t, testConfig(), ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuySkippedFunds, outcome.Action)
}

func TestRunBuyDryRunSuppressesOrder(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	cfg := testConfig()
	cfg.DryRun = true
	b := newTestBot(t, cfg, ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuySuppressedDryRun, outcome.Action)
	assert.Empty(t, ex.placed)
	assert.Zero(t, b.ledger.Depth("btcusd"))
}

func TestRunBuyClampsQuantityToMinOrderSize(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	ex.detail.MinOrderSize = 0.1 // $5 at ~$90 buys far less than this
	b := newTestBot(t, testConfig(), ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuyFilled, outcome.Action)
	require.Len(t, ex.placed, 1)
	assert.Equal(t, 0.1, ex.placed[0].quantity)
}

func TestRunBuyCancelledOrderRecordsNothing(t *testing.T) {
	ex := newFakeExchange()
	ex.quote = models.Quote{Bid: 89, Ask: 90, High: 100}
	ex.balances["usd"] = &models.Balance{Currency: "usd", Amount: 1000, Available: 1000}
	ex.placeFn = func(c placedCall) (*models.Order, error) {
		// Maker-or-cancel rejected at the venue.
		return &models.Order{OrderID: "x", IsCancelled: true, OriginalAmount: c.quantity}, nil
	}
	b := newTestBot(t, testConfig(), ex)

	outcome, err := b.runBuy("btcusd")
	require.NoError(t, err)
	assert.Equal(t, BuyCancelled, outcome.Action)
	assert.Zero(t, b.ledger.Depth("btcusd"))
}
