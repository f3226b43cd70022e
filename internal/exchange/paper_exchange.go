package exchange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gemini-dca-bot-go/internal/models"

	"go.uber.org/zap"
)

// highWindow is how many candles the rolling reference high spans; with 1m
// candles this approximates the exchange's 24h high.
const highWindow = 1440

// PaperExchange simulates the exchange in-process for dry runs and
// backtests. Resting maker orders fill against the open->low->high->close
// path of each candle; price-crossing maker-or-cancel orders are rejected
// the way the live venue rejects them. Fills are always whole: the simulator
// has no book depth to split against.
type PaperExchange struct {
	logger *zap.SugaredLogger

	mu        sync.Mutex
	cash      float64
	positions map[string]float64 // base currency -> quantity

	quotes map[string]models.Quote
	highs  map[string][]float64

	orders map[string]*models.Order
	nextID int64
	clock  time.Time
}

// NewPaperExchange starts a simulator holding the given quote-currency cash.
func NewPaperExchange(initialBalance float64, logger *zap.SugaredLogger) *PaperExchange {
	if initialBalance <= 0 {
		initialBalance = 10000
	}
	return &PaperExchange{
		logger:    logger,
		cash:      initialBalance,
		positions: make(map[string]float64),
		quotes:    make(map[string]models.Quote),
		highs:     make(map[string][]float64),
		orders:    make(map[string]*models.Order),
		nextID:    1,
		clock:     time.Now(),
	}
}

// SetCandle advances the simulation by one candle: the quote snapshot is
// refreshed and every resting order is checked against the candle's price
// path.
func (e *PaperExchange) SetCandle(symbol string, open, high, low, close float64, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clock = ts

	highs := append(e.highs[symbol], high)
	if len(highs) > highWindow {
		highs = highs[len(highs)-highWindow:]
	}
	e.highs[symbol] = highs

	refHigh := highs[0]
	for _, h := range highs[1:] {
		if h > refHigh {
			refHigh = h
		}
	}

	e.quotes[symbol] = models.Quote{
		Symbol: symbol,
		Bid:    close,
		Ask:    close,
		High:   refHigh,
		Low:    low,
		Open:   open,
		Close:  close,
	}

	for _, price := range []float64{open, low, high, close} {
		e.fillRestingOrders(symbol, price)
	}
}

// Cash returns the remaining quote-currency balance.
func (e *PaperExchange) Cash() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash
}

func (e *PaperExchange) fillRestingOrders(symbol string, price float64) {
	ids := make([]string, 0, len(e.orders))
	for id := range e.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		order := e.orders[id]
		if order.Symbol != symbol || !order.IsLive {
			continue
		}
		crossed := (order.Side == SideBuy && price <= order.Price) ||
			(order.Side == SideSell && price >= order.Price)
		if crossed {
			e.fill(order)
		}
	}
}

// fill executes a resting order in full at its limit price.
func (e *PaperExchange) fill(order *models.Order) {
	base := baseCurrency(order.Symbol)
	notional := order.RemainingAmount * order.Price

	if order.Side == SideBuy {
		e.cash -= notional
		e.positions[base] += order.RemainingAmount
	} else {
		e.cash += notional
		e.positions[base] -= order.RemainingAmount
	}

	order.ExecutedAmount = order.OriginalAmount
	order.RemainingAmount = 0
	order.AvgExecutionPrice = order.Price
	order.IsLive = false

	e.logger.Debugw("Paper fill",
		"symbol", order.Symbol, "side", order.Side,
		"price", order.Price, "quantity", order.ExecutedAmount)
}

func baseCurrency(symbol string) string {
	return strings.TrimSuffix(symbol, "usd")
}

// --- Exchange interface ---

func (e *PaperExchange) GetQuote(symbol string) (*models.Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	quote, ok := e.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("paper exchange has no candle data for %s yet", symbol)
	}
	return &quote, nil
}

func (e *PaperExchange) GetBalance(currency string) (*models.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if strings.EqualFold(currency, "usd") {
		return &models.Balance{Currency: "usd", Amount: e.cash, Available: e.cash}, nil
	}
	qty := e.positions[strings.ToLower(currency)]
	return &models.Balance{Currency: strings.ToLower(currency), Amount: qty, Available: qty}, nil
}

func (e *PaperExchange) GetPosition(symbol string) (*models.Balance, error) {
	return e.GetBalance(baseCurrency(symbol))
}

func (e *PaperExchange) GetSymbolDetail(symbol string) (*models.SymbolDetail, error) {
	// All USD pairs share one set of rules in the simulator; no network call.
	return &models.SymbolDetail{
		Symbol:         symbol,
		BaseCurrency:   baseCurrency(symbol),
		QuoteCurrency:  "usd",
		MinOrderSize:   0.00001,
		QuoteIncrement: 0.01,
		TickSize:       0.00000001,
	}, nil
}

func (e *PaperExchange) PlaceOrder(symbol string, quantity, price float64, side string, options []string, clientOrderID string) (*models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	quote, ok := e.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("paper exchange has no candle data for %s yet", symbol)
	}

	order := &models.Order{
		OrderID:         strconv.FormatInt(e.nextID, 10),
		ClientOrderID:   clientOrderID,
		Symbol:          symbol,
		Side:            side,
		Price:           price,
		OriginalAmount:  quantity,
		RemainingAmount: quantity,
		IsLive:          true,
		Timestamp:       e.clock.Unix(),
		TimestampMs:     e.clock.UnixMilli(),
	}
	e.nextID++
	e.orders[order.OrderID] = order

	if hasOption(options, OptionMakerOrCancel) {
		crossing := (side == SideBuy && price >= quote.Ask) ||
			(side == SideSell && price <= quote.Bid)
		if crossing {
			order.IsLive = false
			order.IsCancelled = true
			copied := *order
			return &copied, nil
		}
	}

	// A resting order may still fill inside the current candle's range.
	if side == SideBuy && quote.Low <= price {
		e.fill(order)
	} else if side == SideSell && quote.High >= price {
		e.fill(order)
	}

	copied := *order
	return &copied, nil
}

func hasOption(options []string, want string) bool {
	for _, o := range options {
		if o == want {
			return true
		}
	}
	return false
}

func (e *PaperExchange) GetOrderStatus(orderID string) (*models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("paper order %s not found", orderID)
	}
	copied := *order
	return &copied, nil
}

func (e *PaperExchange) CancelOrder(orderID string) (*models.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("paper order %s not found", orderID)
	}
	if order.IsLive {
		order.IsLive = false
		order.IsCancelled = true
	}
	copied := *order
	return &copied, nil
}
