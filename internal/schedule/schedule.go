// Package schedule maps ledger depth to the next trade's dollar size and
// percentage thresholds. The tables are static configuration; depths past
// the end of a table reuse its last rung indefinitely.
package schedule

import (
	"fmt"

	"gemini-dca-bot-go/internal/models"
)

// Schedule holds the depth-indexed sizing and threshold tables.
type Schedule struct {
	purchaseAmounts []float64
	percentages     []float64
	// sellPercentages may alias percentages when no dedicated sell table is
	// configured (the schedule-shared variant).
	sellPercentages []float64
}

// New validates the tables and builds a Schedule. PurchaseAmounts and
// Percentages must be non-empty, equal length and positive; SellPercentages
// is optional and falls back to Percentages.
func New(cfg *models.Config) (*Schedule, error) {
	if len(cfg.PurchaseAmounts) == 0 || len(cfg.PurchaseAmounts) != len(cfg.Percentages) {
		return nil, fmt.Errorf("schedule tables must be non-empty and of equal length, got %d and %d",
			len(cfg.PurchaseAmounts), len(cfg.Percentages))
	}

	sell := cfg.SellPercentages
	if len(sell) == 0 {
		sell = cfg.Percentages
	} else if len(sell) != len(cfg.Percentages) {
		return nil, fmt.Errorf("sell percentage table length %d does not match %d", len(sell), len(cfg.Percentages))
	}

	for i := range cfg.PurchaseAmounts {
		if cfg.PurchaseAmounts[i] <= 0 || cfg.Percentages[i] <= 0 || sell[i] <= 0 {
			return nil, fmt.Errorf("schedule values must be positive at index %d", i)
		}
	}

	return &Schedule{
		purchaseAmounts: cfg.PurchaseAmounts,
		percentages:     cfg.Percentages,
		sellPercentages: sell,
	}, nil
}

// Len returns the table length.
func (s *Schedule) Len() int {
	return len(s.purchaseAmounts)
}

// NextTradeParams returns the dollar size and dip threshold for the next buy
// at the given ledger depth, clamping to the last rung for deep ladders.
func (s *Schedule) NextTradeParams(depth int) (amount, thresholdPct float64) {
	i := clamp(depth, len(s.purchaseAmounts))
	return s.purchaseAmounts[i], s.percentages[i]
}

// SellVolatility returns the recovery threshold a sell must clear at the
// given ledger depth. The threshold belongs to the rung that produced the
// newest lot, so the index is depth-1, clamped like NextTradeParams.
func (s *Schedule) SellVolatility(depth int) float64 {
	return s.sellPercentages[clamp(depth-1, len(s.sellPercentages))]
}

func clamp(i, length int) int {
	if i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}
