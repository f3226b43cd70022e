package bot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gemini-dca-bot-go/internal/exchange"
	"gemini-dca-bot-go/internal/models"

	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// OrderState is the decision engines' view of an order's lifecycle:
// PLACED -> {PARTIAL_FILLED <-> PLACED} -> FILLED or CANCELLED. UNKNOWN is a
// contract violation, not a state to wait out.
type OrderState int

const (
	StatePlaced OrderState = iota
	StatePartialFilled
	StateFilled
	StateCancelled
	StateUnknown
)

func (s OrderState) String() string {
	switch s {
	case StatePlaced:
		return "PLACED"
	case StatePartialFilled:
		return "PARTIAL_FILLED"
	case StateFilled:
		return "FILLED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ErrUnknownOrderState marks a status record matching none of the defined
// field combinations. The caller must treat it as fatal: it means the
// exchange broke its contract or we misread it, and trading on top of that
// is worse than stopping.
var ErrUnknownOrderState = errors.New("order status matches no known state")

// floatsClose compares quantities the way the exchange does: relative
// tolerance for real magnitudes, tiny absolute tolerance so zero compares
// equal to float noise.
func floatsClose(a, b float64) bool {
	diff := math.Abs(a - b)
	return diff <= 1e-9*math.Max(math.Abs(a), math.Abs(b)) || diff <= 1e-12
}

// ClassifyOrderState maps a status record onto the lifecycle.
func ClassifyOrderState(o *models.Order) OrderState {
	switch {
	case o.IsCancelled:
		return StateCancelled
	case o.IsLive &&
		floatsClose(o.ExecutedAmount, 0) &&
		floatsClose(o.RemainingAmount, o.OriginalAmount):
		return StatePlaced
	case o.IsLive &&
		o.RemainingAmount > 0 &&
		o.ExecutedAmount > 0 &&
		!floatsClose(o.RemainingAmount, o.OriginalAmount) &&
		!floatsClose(o.ExecutedAmount, o.OriginalAmount):
		return StatePartialFilled
	case !o.IsLive &&
		floatsClose(o.RemainingAmount, 0) &&
		floatsClose(o.ExecutedAmount, o.OriginalAmount):
		return StateFilled
	default:
		return StateUnknown
	}
}

// OrderExecutor drives one order from placement to a terminal state:
// place, poll at a fixed interval, and issue a cancel every maxRetries
// polls until the exchange reports FILLED or CANCELLED.
type OrderExecutor struct {
	exchange     exchange.Exchange
	maxRetries   int
	pollInterval time.Duration
	logger       *zap.SugaredLogger

	// sleep is swapped for a no-op in tests so the poll loop can be driven
	// with a fake clock.
	sleep func(time.Duration)
}

// NewOrderExecutor builds an executor with the given retry/poll policy.
func NewOrderExecutor(ex exchange.Exchange, maxRetries int, pollInterval time.Duration, logger *zap.SugaredLogger) *OrderExecutor {
	return &OrderExecutor{
		exchange:     ex,
		maxRetries:   maxRetries,
		pollInterval: pollInterval,
		logger:       logger,
		sleep:        time.Sleep,
	}
}

// newClientOrderID returns a compact unique id for traceability. The single
// decision thread guarantees nanosecond timestamps do not repeat.
func newClientOrderID() string {
	return "dca" + string(base62.FormatInt(time.Now().UnixNano()))
}

// Execute places a maker-or-cancel limit order and blocks until it reaches
// FILLED or CANCELLED. The returned record carries the executed amount and
// average price; zero executed amount means nothing traded.
func (x *OrderExecutor) Execute(symbol string, quantity, price float64, side string) (*models.Order, error) {
	order, err := x.exchange.PlaceOrder(symbol, quantity, price, side,
		[]string{exchange.OptionMakerOrCancel}, newClientOrderID())
	if err != nil {
		return nil, fmt.Errorf("place %s order for %s: %w", side, symbol, err)
	}

	x.logger.Infow("Order placed",
		"symbol", symbol, "side", side, "order_id", order.OrderID,
		"quantity", quantity, "price", price)

	attempts := 0
	for {
		switch state := ClassifyOrderState(order); state {
		case StateFilled, StateCancelled:
			x.logger.Infow("Order reached terminal state",
				"symbol", symbol, "side", side, "order_id", order.OrderID,
				"state", state.String(), "executed", order.ExecutedAmount)
			return order, nil

		case StatePlaced, StatePartialFilled:
			attempts++
			if attempts%x.maxRetries == 0 {
				x.logger.Infow("Order still resting, requesting cancel",
					"symbol", symbol, "side", side, "order_id", order.OrderID,
					"state", state.String(), "attempts", attempts)
				cancelled, err := x.exchange.CancelOrder(order.OrderID)
				if err != nil {
					// The next status poll settles whether the order filled
					// or died anyway.
					x.logger.Warnw("Cancel request failed",
						"symbol", symbol, "order_id", order.OrderID, "error", err)
				} else {
					order = cancelled
					continue
				}
			}

		default:
			return order, fmt.Errorf("%w: order %s live=%v cancelled=%v executed=%v remaining=%v original=%v",
				ErrUnknownOrderState, order.OrderID, order.IsLive, order.IsCancelled,
				order.ExecutedAmount, order.RemainingAmount, order.OriginalAmount)
		}

		x.sleep(x.pollInterval)

		refreshed, err := x.exchange.GetOrderStatus(order.OrderID)
		if err != nil {
			return nil, fmt.Errorf("refresh status of order %s: %w", order.OrderID, err)
		}
		order = refreshed
	}
}
