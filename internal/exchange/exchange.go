package exchange

import "gemini-dca-bot-go/internal/models"

// Exchange is the capability set the decision engines consume. Implemented
// by the live Gemini client and by the paper exchange used for dry runs and
// backtests.
type Exchange interface {
	// GetQuote returns the current ticker snapshot for a symbol.
	GetQuote(symbol string) (*models.Quote, error)

	// GetBalance returns the account balance for one currency, nil when the
	// account holds none of it.
	GetBalance(currency string) (*models.Balance, error)

	// GetPosition returns the balance of the symbol's base currency.
	GetPosition(symbol string) (*models.Balance, error)

	// GetSymbolDetail returns the instrument's trading rules.
	GetSymbolDetail(symbol string) (*models.SymbolDetail, error)

	// PlaceOrder submits a limit order and returns its initial status.
	PlaceOrder(symbol string, quantity, price float64, side string, options []string, clientOrderID string) (*models.Order, error)

	// GetOrderStatus refreshes the status of a previously placed order.
	GetOrderStatus(orderID string) (*models.Order, error)

	// CancelOrder requests cancellation and returns the resulting status.
	// Cancelling an order that just filled is not an error; the returned
	// status reflects whichever outcome won.
	CancelOrder(orderID string) (*models.Order, error)
}

// Order sides and the maker-or-cancel option understood by PlaceOrder.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OptionMakerOrCancel = "maker-or-cancel"
)
