package bot

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gemini-dca-bot-go/internal/ledger"
	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/persistence"
	"gemini-dca-bot-go/internal/schedule"
)

type placedCall struct {
	symbol        string
	quantity      float64
	price         float64
	side          string
	options       []string
	clientOrderID string
}

// fakeExchange is a scriptable Exchange. PlaceOrder fills fully at the limit
// price unless placeFn overrides it; GetOrderStatus walks statusSeq.
type fakeExchange struct {
	quote     models.Quote
	quoteErr  error
	balances  map[string]*models.Balance
	positions map[string]*models.Balance
	detail    models.SymbolDetail

	placed    []placedCall
	placeFn   func(c placedCall) (*models.Order, error)
	statusSeq []*models.Order
	statusIdx int

	cancelCount int
	cancelFn    func(orderID string) (*models.Order, error)
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		balances:  map[string]*models.Balance{},
		positions: map[string]*models.Balance{},
		detail: models.SymbolDetail{
			Symbol:         "btcusd",
			BaseCurrency:   "btc",
			QuoteCurrency:  "usd",
			MinOrderSize:   0.00001,
			QuoteIncrement: 0.01,
			TickSize:       1e-8,
		},
	}
}

func (f *fakeExchange) GetQuote(symbol string) (*models.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	q := f.quote
	q.Symbol = symbol
	return &q, nil
}

func (f *fakeExchange) GetBalance(currency string) (*models.Balance, error) {
	return f.balances[currency], nil
}

func (f *fakeExchange) GetPosition(symbol string) (*models.Balance, error) {
	return f.positions[symbol], nil
}

func (f *fakeExchange) GetSymbolDetail(symbol string) (*models.SymbolDetail, error) {
	d := f.detail
	d.Symbol = symbol
	return &d, nil
}

func (f *fakeExchange) PlaceOrder(symbol string, quantity, price float64, side string, options []string, clientOrderID string) (*models.Order, error) {
	call := placedCall{symbol, quantity, price, side, options, clientOrderID}
	f.placed = append(f.placed, call)
	if f.placeFn != nil {
		return f.placeFn(call)
	}
	return filledOrder(symbol, side, quantity, price), nil
}

func (f *fakeExchange) GetOrderStatus(orderID string) (*models.Order, error) {
	if len(f.statusSeq) == 0 {
		return nil, fmt.Errorf("no scripted status for order %s", orderID)
	}
	if f.statusIdx >= len(f.statusSeq) {
		return f.statusSeq[len(f.statusSeq)-1], nil
	}
	o := f.statusSeq[f.statusIdx]
	f.statusIdx++
	return o, nil
}

func (f *fakeExchange) CancelOrder(orderID string) (*models.Order, error) {
	f.cancelCount++
	if f.cancelFn != nil {
		return f.cancelFn(orderID)
	}
	return &models.Order{OrderID: orderID, IsCancelled: true}, nil
}

func filledOrder(symbol, side string, quantity, price float64) *models.Order {
	now := time.Now()
	return &models.Order{
		OrderID:           fmt.Sprintf("o%d", now.UnixNano()),
		ClientOrderID:     fmt.Sprintf("c%d", now.UnixNano()),
		Symbol:            symbol,
		Side:              side,
		Price:             price,
		AvgExecutionPrice: price,
		ExecutedAmount:    quantity,
		RemainingAmount:   0,
		OriginalAmount:    quantity,
		IsLive:            false,
		Timestamp:         now.Unix(),
		TimestampMs:       now.UnixMilli(),
	}
}

func restingOrder(symbol, side string, quantity, price float64) *models.Order {
	return &models.Order{
		OrderID:         "resting-1",
		ClientOrderID:   "c-resting-1",
		Symbol:          symbol,
		Side:            side,
		Price:           price,
		ExecutedAmount:  0,
		RemainingAmount: quantity,
		OriginalAmount:  quantity,
		IsLive:          true,
	}
}

func testConfig() *models.Config {
	return &models.Config{
		Symbols:                    []string{"btcusd"},
		MaxOutstandingTrades:       3,
		PurchaseAmounts:            []float64{5, 10, 15},
		Percentages:                []float64{3, 3, 3},
		SellPercentages:            []float64{4, 4, 4},
		SellStrategyThresholdDepth: 2,
		MaxRetries:                 3,
		PollIntervalMs:             0,
		TickIntervalMs:             1000,
	}
}

func newTestBot(t *testing.T, cfg *models.Config, ex *fakeExchange) *Bot {
	t.Helper()
	log := zap.NewNop().Sugar()
	led, err := ledger.Open(persistence.NewMemoryRepository(), log)
	require.NoError(t, err)
	sched, err := schedule.New(cfg)
	require.NoError(t, err)
	b := New(cfg, ex, led, sched, nil, nil, nil, log)
	b.executor.sleep = func(time.Duration) {}
	return b
}
