package models

import "fmt"

// Config holds every knob the bot reads at startup. Policy values
// (purchase amounts, thresholds) live here as data, not in code.
type Config struct {
	DBPath string `json:"db_path"`

	APIBaseURL string `json:"api_base_url"`
	WSBaseURL  string `json:"ws_base_url"`

	DryRun  bool     `json:"dry_run"`
	Symbols []string `json:"symbols"`

	MaxOutstandingTrades int       `json:"max_outstanding_trades"`
	PurchaseAmounts      []float64 `json:"purchase_amounts"`
	Percentages          []float64 `json:"percentages"`
	// SellPercentages is optional. When empty, sell thresholds are sourced
	// from Percentages (the schedule-shared variant).
	SellPercentages []float64 `json:"sell_percentages,omitempty"`

	// SellStrategyThresholdDepth separates sell-all (depth <= N) from
	// sell-lowest-lot-only (depth > N).
	SellStrategyThresholdDepth int `json:"sell_strategy_threshold_depth"`

	MaxRetries     int `json:"max_retries"`
	PollIntervalMs int `json:"poll_interval_ms"`
	TickIntervalMs int `json:"tick_interval_ms"`

	// ReportEveryNRuns controls how often the full state tables are printed.
	ReportEveryNRuns int `json:"report_every_n_runs"`

	MetricsAddr string `json:"metrics_addr,omitempty"`

	LogConfig LogConfig     `json:"log"`
	Notion    *NotionConfig `json:"notion,omitempty"`

	// Backtest-only parameters.
	InitialBalance float64 `json:"initial_balance,omitempty"`
}

// LogConfig mirrors the zap/lumberjack setup.
type LogConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"` // "console", "file" or "both"
	File       string `json:"file"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

// NotionConfig maps symbols to the dashboard pages that mirror their stats.
// The API key comes from the NOTION_API_KEY environment variable.
type NotionConfig struct {
	PageIDs map[string]string `json:"page_ids"`
}

// Lot is one completed (or partially completed) purchase. It is created only
// from a confirmed buy fill, or as the unsold remainder of a partial sell
// re-lotted at the original cost basis, and removed only when fully sold.
type Lot struct {
	Symbol        string  `json:"symbol"`
	OrderID       string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	Quantity      float64 `json:"quantity"`
	Cost          float64 `json:"cost"`   // per-unit average execution price
	Amount        float64 `json:"amount"` // quantity * cost, the dollar outlay
	Created       int64   `json:"created"`
	CreatedMs     int64   `json:"created_ms"`
}

// Quote is a point-in-time ticker snapshot.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	High   float64
	Low    float64
	Open   float64
	Close  float64
}

// Balance is the exchange-reported holding for one currency.
type Balance struct {
	Currency  string
	Amount    float64
	Available float64
}

// SymbolDetail carries the trading rules the engines need: the minimum
// order size, the price increment (quote currency) and the quantity
// increment (base currency).
type SymbolDetail struct {
	Symbol         string
	BaseCurrency   string
	QuoteCurrency  string
	MinOrderSize   float64
	QuoteIncrement float64
	TickSize       float64
}

// Order is a validated order status record. The exchange boundary parses
// Gemini's string-typed fields into floats and rejects malformed responses,
// so everything past that boundary works with typed values.
type Order struct {
	OrderID           string
	ClientOrderID     string
	Symbol            string
	Side              string
	Price             float64
	AvgExecutionPrice float64
	ExecutedAmount    float64
	RemainingAmount   float64
	OriginalAmount    float64
	IsLive            bool
	IsCancelled       bool
	Timestamp         int64
	TimestampMs       int64
}

// APIError is the error payload Gemini returns in place of a result.
type APIError struct {
	Result  string `json:"result"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: %s: %s", e.Reason, e.Message)
}
