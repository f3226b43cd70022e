// Package dashboard mirrors per-symbol stats to Notion pages. Updates are
// best effort; a dashboard failure never interrupts trading.
package dashboard

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/signal"
)

const (
	notionBaseURL = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// Client updates one Notion page per symbol with the latest signal values.
type Client struct {
	http    *resty.Client
	pageIDs map[string]string
	logger  *zap.SugaredLogger
}

// New builds a Client from config. The API key comes from the NOTION_API_KEY
// environment variable; a missing key or empty page map disables the client
// (nil return).
func New(cfg *models.NotionConfig, logger *zap.SugaredLogger) *Client {
	if cfg == nil || len(cfg.PageIDs) == 0 {
		return nil
	}
	key := os.Getenv("NOTION_API_KEY")
	if key == "" {
		logger.Warn("NOTION_API_KEY not set, dashboard sync disabled")
		return nil
	}
	http := resty.New().
		SetBaseURL(notionBaseURL).
		SetTimeout(10 * time.Second).
		SetAuthToken(key).
		SetHeader("Notion-Version", notionVersion)
	return &Client{http: http, pageIDs: cfg.PageIDs, logger: logger}
}

type numberProperty struct {
	Number float64 `json:"number"`
}

type updateRequest struct {
	Properties map[string]numberProperty `json:"properties"`
}

// Sync pushes one symbol's signal to its page, if one is configured.
func (c *Client) Sync(sig *signal.Signal) {
	pageID, ok := c.pageIDs[sig.Symbol]
	if !ok {
		return
	}

	body := updateRequest{Properties: map[string]numberProperty{
		"Total $":        {Number: sig.TotalAmount},
		"Total Quantity": {Number: sig.TotalQuantity},
		"Avg. Cost":      {Number: sig.AvgCost},
		"Bid":            {Number: sig.Quote.Bid},
		"Ask":            {Number: sig.Quote.Ask},
		"Sell @":         {Number: sig.SellAt},
		"Buy @":          {Number: sig.BuyAt},
		"Break Even":     {Number: sig.BreakEven},
	}}

	resp, err := c.http.R().
		SetBody(body).
		Patch(fmt.Sprintf("/pages/%s", pageID))
	if err != nil {
		c.logger.Warnw("Dashboard update failed", "symbol", sig.Symbol, "error", err)
		return
	}
	if resp.IsError() {
		c.logger.Warnw("Dashboard update rejected",
			"symbol", sig.Symbol, "status", resp.StatusCode(), "body", resp.String())
	}
}
