package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gemini-dca-bot-go/internal/models"
)

// Load reads the JSON config file, applies defaults and validates the
// parts the decision engines depend on. A config that fails validation is
// rejected at startup rather than surfacing mid-trade.
func Load(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &models.Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "data/ledger"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.gemini.com"
	}
	if cfg.WSBaseURL == "" {
		cfg.WSBaseURL = "wss://api.gemini.com"
	}
	if cfg.SellStrategyThresholdDepth == 0 {
		cfg.SellStrategyThresholdDepth = 6
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 100
	}
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = 200
	}
	if cfg.TickIntervalMs == 0 {
		cfg.TickIntervalMs = 1000
	}
	if cfg.ReportEveryNRuns == 0 {
		cfg.ReportEveryNRuns = 10
	}
}

func validate(cfg *models.Config) error {
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	for _, s := range cfg.Symbols {
		if s != strings.ToLower(s) {
			return fmt.Errorf("symbol %q must be lower case", s)
		}
	}
	if len(cfg.PurchaseAmounts) == 0 {
		return fmt.Errorf("purchase_amounts must not be empty")
	}
	if len(cfg.PurchaseAmounts) != len(cfg.Percentages) {
		return fmt.Errorf("purchase_amounts and percentages must have equal length, got %d and %d",
			len(cfg.PurchaseAmounts), len(cfg.Percentages))
	}
	if len(cfg.SellPercentages) > 0 && len(cfg.SellPercentages) != len(cfg.Percentages) {
		return fmt.Errorf("sell_percentages must be empty or match percentages length, got %d and %d",
			len(cfg.SellPercentages), len(cfg.Percentages))
	}
	for i, v := range cfg.PurchaseAmounts {
		if v <= 0 {
			return fmt.Errorf("purchase_amounts[%d] must be positive, got %f", i, v)
		}
	}
	for i, v := range cfg.Percentages {
		if v <= 0 {
			return fmt.Errorf("percentages[%d] must be positive, got %f", i, v)
		}
	}
	for i, v := range cfg.SellPercentages {
		if v <= 0 {
			return fmt.Errorf("sell_percentages[%d] must be positive, got %f", i, v)
		}
	}
	if cfg.MaxOutstandingTrades <= 0 {
		return fmt.Errorf("max_outstanding_trades must be positive, got %d", cfg.MaxOutstandingTrades)
	}
	return nil
}
