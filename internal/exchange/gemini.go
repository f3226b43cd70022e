package exchange

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/pricing"

	"go.uber.org/zap"
)

// GeminiExchange talks to the Gemini REST API. Private endpoints use the
// payload-signing scheme: the JSON request body is base64 encoded, signed
// with HMAC-SHA384 and sent in headers alongside an empty POST body.
type GeminiExchange struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
	nonce      atomic.Int64

	mu      sync.Mutex
	details map[string]*models.SymbolDetail
}

// NewGeminiExchange builds a live exchange client.
func NewGeminiExchange(apiKey, secretKey, baseURL string, logger *zap.SugaredLogger) *GeminiExchange {
	e := &GeminiExchange{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		details:    make(map[string]*models.SymbolDetail),
	}
	// Nonces must be strictly increasing per API key across restarts.
	e.nonce.Store(time.Now().UnixNano())
	return e
}

func (e *GeminiExchange) nextNonce() string {
	return strconv.FormatInt(e.nonce.Add(1), 10)
}

// doPublic performs an unauthenticated GET and decodes the response.
func (e *GeminiExchange) doPublic(endpoint string, out interface{}) error {
	resp, err := e.httpClient.Get(e.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response of %s: %w", endpoint, err)
	}
	if err := checkAPIError(resp.StatusCode, body, endpoint); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// doPrivate performs a signed POST. The request path rides inside the
// payload, together with the nonce and any endpoint parameters.
func (e *GeminiExchange) doPrivate(endpoint string, params map[string]interface{}, out interface{}) error {
	payload := map[string]interface{}{
		"request": endpoint,
		"nonce":   e.nextNonce(),
	}
	for k, v := range params {
		payload[k] = v
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", endpoint, err)
	}
	encoded := base64.StdEncoding.EncodeToString(payloadJSON)

	mac := hmac.New(sha512.New384, []byte(e.secretKey))
	mac.Write([]byte(encoded))
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, e.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Content-Length", "0")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-GEMINI-APIKEY", e.apiKey)
	req.Header.Set("X-GEMINI-PAYLOAD", encoded)
	req.Header.Set("X-GEMINI-SIGNATURE", signature)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response of %s: %w", endpoint, err)
	}
	if err := checkAPIError(resp.StatusCode, body, endpoint); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func checkAPIError(statusCode int, body []byte, endpoint string) error {
	if statusCode == http.StatusOK {
		return nil
	}
	var apiErr models.APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Result == "error" {
		return &apiErr
	}
	return fmt.Errorf("%s: status %d: %s", endpoint, statusCode, string(body))
}

// geminiTicker is the /v2/ticker wire shape; every number arrives a string.
type geminiTicker struct {
	Symbol string `json:"symbol"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
}

func (e *GeminiExchange) GetQuote(symbol string) (*models.Quote, error) {
	var t geminiTicker
	if err := e.doPublic("/v2/ticker/"+symbol, &t); err != nil {
		return nil, err
	}

	quote := &models.Quote{Symbol: symbol}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"bid", t.Bid, &quote.Bid},
		{"ask", t.Ask, &quote.Ask},
		{"high", t.High, &quote.High},
		{"low", t.Low, &quote.Low},
		{"open", t.Open, &quote.Open},
		{"close", t.Close, &quote.Close},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("ticker %s: malformed %s %q: %w", symbol, f.name, f.raw, err)
		}
		*f.dst = v
	}
	return quote, nil
}

type geminiBalance struct {
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Available string `json:"available"`
}

func (e *GeminiExchange) getBalances() ([]models.Balance, error) {
	var raw []geminiBalance
	if err := e.doPrivate("/v1/balances", nil, &raw); err != nil {
		return nil, err
	}

	balances := make([]models.Balance, 0, len(raw))
	for _, b := range raw {
		amount, err := strconv.ParseFloat(b.Amount, 64)
		if err != nil {
			return nil, fmt.Errorf("balance %s: malformed amount %q: %w", b.Currency, b.Amount, err)
		}
		available, err := strconv.ParseFloat(b.Available, 64)
		if err != nil {
			return nil, fmt.Errorf("balance %s: malformed available %q: %w", b.Currency, b.Available, err)
		}
		balances = append(balances, models.Balance{
			Currency:  strings.ToLower(b.Currency),
			Amount:    amount,
			Available: available,
		})
	}
	return balances, nil
}

func (e *GeminiExchange) GetBalance(currency string) (*models.Balance, error) {
	balances, err := e.getBalances()
	if err != nil {
		return nil, err
	}
	currency = strings.ToLower(currency)
	for i := range balances {
		if balances[i].Currency == currency {
			return &balances[i], nil
		}
	}
	return nil, nil
}

func (e *GeminiExchange) GetPosition(symbol string) (*models.Balance, error) {
	detail, err := e.GetSymbolDetail(symbol)
	if err != nil {
		return nil, err
	}
	return e.GetBalance(detail.BaseCurrency)
}

type geminiSymbolDetail struct {
	Symbol         string      `json:"symbol"`
	BaseCurrency   string      `json:"base_currency"`
	QuoteCurrency  string      `json:"quote_currency"`
	TickSize       json.Number `json:"tick_size"`
	QuoteIncrement json.Number `json:"quote_increment"`
	MinOrderSize   json.Number `json:"min_order_size"`
	Status         string      `json:"status"`
}

// GetSymbolDetail fetches the trading rules once per symbol and caches them;
// increments and minimum sizes do not change mid-session.
func (e *GeminiExchange) GetSymbolDetail(symbol string) (*models.SymbolDetail, error) {
	e.mu.Lock()
	if detail, ok := e.details[symbol]; ok {
		e.mu.Unlock()
		return detail, nil
	}
	e.mu.Unlock()

	var raw geminiSymbolDetail
	if err := e.doPublic("/v1/symbols/details/"+symbol, &raw); err != nil {
		return nil, err
	}

	tickSize, err := raw.TickSize.Float64()
	if err != nil {
		return nil, fmt.Errorf("symbol %s: malformed tick_size %q: %w", symbol, raw.TickSize, err)
	}
	quoteIncrement, err := raw.QuoteIncrement.Float64()
	if err != nil {
		return nil, fmt.Errorf("symbol %s: malformed quote_increment %q: %w", symbol, raw.QuoteIncrement, err)
	}
	minOrderSize, err := raw.MinOrderSize.Float64()
	if err != nil {
		return nil, fmt.Errorf("symbol %s: malformed min_order_size %q: %w", symbol, raw.MinOrderSize, err)
	}

	detail := &models.SymbolDetail{
		Symbol:         symbol,
		BaseCurrency:   strings.ToLower(raw.BaseCurrency),
		QuoteCurrency:  strings.ToLower(raw.QuoteCurrency),
		MinOrderSize:   minOrderSize,
		QuoteIncrement: quoteIncrement,
		TickSize:       tickSize,
	}

	e.mu.Lock()
	e.details[symbol] = detail
	e.mu.Unlock()
	return detail, nil
}

// geminiOrder is the order status wire shape shared by order/new,
// order/status and order/cancel.
type geminiOrder struct {
	OrderID           string `json:"order_id"`
	ClientOrderID     string `json:"client_order_id"`
	Symbol            string `json:"symbol"`
	Side              string `json:"side"`
	Price             string `json:"price"`
	AvgExecutionPrice string `json:"avg_execution_price"`
	ExecutedAmount    string `json:"executed_amount"`
	RemainingAmount   string `json:"remaining_amount"`
	OriginalAmount    string `json:"original_amount"`
	IsLive            bool   `json:"is_live"`
	IsCancelled       bool   `json:"is_cancelled"`
	Timestamp         string `json:"timestamp"`
	TimestampMs       int64  `json:"timestampms"`
}

func parseOrder(raw *geminiOrder) (*models.Order, error) {
	order := &models.Order{
		OrderID:       raw.OrderID,
		ClientOrderID: raw.ClientOrderID,
		Symbol:        raw.Symbol,
		Side:          raw.Side,
		IsLive:        raw.IsLive,
		IsCancelled:   raw.IsCancelled,
		TimestampMs:   raw.TimestampMs,
	}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"price", raw.Price, &order.Price},
		{"avg_execution_price", raw.AvgExecutionPrice, &order.AvgExecutionPrice},
		{"executed_amount", raw.ExecutedAmount, &order.ExecutedAmount},
		{"remaining_amount", raw.RemainingAmount, &order.RemainingAmount},
		{"original_amount", raw.OriginalAmount, &order.OriginalAmount},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("order %s: malformed %s %q: %w", raw.OrderID, f.name, f.raw, err)
		}
		*f.dst = v
	}

	if raw.Timestamp != "" {
		ts, err := strconv.ParseInt(raw.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("order %s: malformed timestamp %q: %w", raw.OrderID, raw.Timestamp, err)
		}
		order.Timestamp = ts
	}
	return order, nil
}

func (e *GeminiExchange) PlaceOrder(symbol string, quantity, price float64, side string, options []string, clientOrderID string) (*models.Order, error) {
	detail, err := e.GetSymbolDetail(symbol)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{
		"symbol": symbol,
		"amount": pricing.FormatPrice(quantity, detail.TickSize),
		"price":  pricing.FormatPrice(price, detail.QuoteIncrement),
		"side":   side,
		"type":   "exchange limit",
	}
	if len(options) > 0 {
		params["options"] = options
	}
	if clientOrderID != "" {
		params["client_order_id"] = clientOrderID
	}

	var raw geminiOrder
	if err := e.doPrivate("/v1/order/new", params, &raw); err != nil {
		e.logger.Errorw("Order placement failed", "symbol", symbol, "side", side, "error", err)
		return nil, err
	}
	return parseOrder(&raw)
}

func (e *GeminiExchange) GetOrderStatus(orderID string) (*models.Order, error) {
	var raw geminiOrder
	if err := e.doPrivate("/v1/order/status", map[string]interface{}{"order_id": orderID}, &raw); err != nil {
		return nil, err
	}
	return parseOrder(&raw)
}

func (e *GeminiExchange) CancelOrder(orderID string) (*models.Order, error) {
	var raw geminiOrder
	if err := e.doPrivate("/v1/order/cancel", map[string]interface{}{"order_id": orderID}, &raw); err != nil {
		return nil, err
	}
	return parseOrder(&raw)
}
