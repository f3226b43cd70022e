package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-dca-bot-go/internal/models"
)

func TestPercentageDip(t *testing.T) {
	assert.Equal(t, 10.0, PercentageDip(100, 90))
	assert.Equal(t, 0.0, PercentageDip(100, 100))
	assert.Equal(t, -10.0, PercentageDip(100, 110))
	assert.Equal(t, 0.0, PercentageDip(0, 50))

	// Rounded to 4 decimals.
	assert.Equal(t, 33.3333, PercentageDip(3, 2))
}

func TestPercentageBreakEven(t *testing.T) {
	assert.Equal(t, 10.0, PercentageBreakEven(100, 110))
	assert.Equal(t, -10.0, PercentageBreakEven(100, 90))
	assert.Equal(t, 0.0, PercentageBreakEven(100, 100))
	assert.Equal(t, 0.0, PercentageBreakEven(0, 50))

	// The two ratios are mirrors around their arguments, not negations.
	assert.Equal(t, PercentageDip(100, 90), -PercentageBreakEven(100, 90))
}

func TestLowestOutstandingLot(t *testing.T) {
	assert.Nil(t, LowestOutstandingLot(nil))

	lots := []models.Lot{
		{OrderID: "1", Cost: 30},
		{OrderID: "2", Cost: 10},
		{OrderID: "3", Cost: 20},
	}
	lowest := LowestOutstandingLot(lots)
	require.NotNil(t, lowest)
	assert.Equal(t, "2", lowest.OrderID)

	// Ties keep the first lot encountered.
	lots = append(lots, models.Lot{OrderID: "4", Cost: 10})
	assert.Equal(t, "2", LowestOutstandingLot(lots).OrderID)

	// The result is a copy, not a pointer into the slice.
	lowest.Cost = 999
	assert.Equal(t, 10.0, lots[1].Cost)
}

func TestAggregate(t *testing.T) {
	amount, quantity, avgCost := Aggregate(nil)
	assert.Zero(t, amount)
	assert.Zero(t, quantity)
	assert.Zero(t, avgCost)

	lots := []models.Lot{
		{Amount: 10, Quantity: 1},
		{Amount: 20, Quantity: 1},
	}
	amount, quantity, avgCost = Aggregate(lots)
	assert.Equal(t, 30.0, amount)
	assert.Equal(t, 2.0, quantity)
	assert.Equal(t, 15.0, avgCost)
}

func TestEvaluateEmptyLedger(t *testing.T) {
	quote := models.Quote{Symbol: "btcusd", Bid: 89, Ask: 90, High: 100}
	sig := Evaluate("btcusd", quote, nil, 3, 4)

	assert.Equal(t, 10.0, sig.PercentageDip)
	assert.Nil(t, sig.LowestOutstandingLot)
	assert.Zero(t, sig.ClosenessToLowestTrade)
	assert.Zero(t, sig.PercentageUp)
	assert.Zero(t, sig.AvgCost)

	// With nothing held, the buy target hangs off the reference high.
	assert.InDelta(t, 97.0, sig.BuyAt, 1e-9)
}

func TestEvaluateWithLots(t *testing.T) {
	lots := []models.Lot{
		{OrderID: "1", Cost: 100, Quantity: 0.1, Amount: 10},
		{OrderID: "2", Cost: 80, Quantity: 0.25, Amount: 20},
	}
	quote := models.Quote{Symbol: "ethusd", Bid: 90, Ask: 91, High: 120}
	sig := Evaluate("ethusd", quote, lots, 2, 5)

	require.NotNil(t, sig.LowestOutstandingLot)
	assert.Equal(t, "2", sig.LowestOutstandingLot.OrderID)

	// Ask 91 against the lowest cost 80: negative closeness, price is above.
	assert.Equal(t, -13.75, sig.ClosenessToLowestTrade)

	assert.Equal(t, 30.0, sig.TotalAmount)
	assert.InDelta(t, 0.35, sig.TotalQuantity, 1e-9)
	assert.InDelta(t, 85.7143, sig.AvgCost, 1e-4)

	// Bid 90 over avg cost ~85.71.
	assert.InDelta(t, 5.0, sig.PercentageUp, 1e-4)
	// Bid 90 over the lowest lot's cost 80.
	assert.Equal(t, 12.5, sig.PercentageUpFromLastTrade)

	assert.InDelta(t, sig.AvgCost*1.05, sig.SellAt, 1e-9)
	assert.InDelta(t, 80*0.98, sig.BuyAt, 1e-9)
}
