package ledger

import (
	"fmt"

	"gemini-dca-bot-go/internal/models"
	"gemini-dca-bot-go/internal/persistence"

	"go.uber.org/zap"
)

// Ledger owns the per-symbol lists of open lots. It is not safe for
// concurrent use: the single decision loop is its only writer and reader.
//
// Every mutation persists synchronously before returning, and a failed save
// rolls the in-memory state back so the ledger never diverges from what a
// restart would recover.
type Ledger struct {
	repo   persistence.Repository
	lots   map[string][]models.Lot
	logger *zap.SugaredLogger
}

// Open loads the persisted ledger, starting empty when nothing was saved yet.
func Open(repo persistence.Repository, logger *zap.SugaredLogger) (*Ledger, error) {
	lots, err := repo.LoadLots()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if lots == nil {
		lots = make(map[string][]models.Lot)
	}

	open := 0
	for _, symbolLots := range lots {
		open += len(symbolLots)
	}
	logger.Infof("Ledger loaded: %d open lots across %d symbols", open, len(lots))

	return &Ledger{repo: repo, lots: lots, logger: logger}, nil
}

// Lots returns a copy of the open lots for symbol. A missing symbol is an
// empty list.
func (l *Ledger) Lots(symbol string) []models.Lot {
	lots := l.lots[symbol]
	out := make([]models.Lot, len(lots))
	copy(out, lots)
	return out
}

// Depth returns the number of open lots for symbol.
func (l *Ledger) Depth(symbol string) int {
	return len(l.lots[symbol])
}

// Symbols returns every symbol that currently has at least one open lot.
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.lots))
	for s, lots := range l.lots {
		if len(lots) > 0 {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Insert appends a lot and persists. On save failure the lot is removed
// again and the error returned.
func (l *Ledger) Insert(lot models.Lot) error {
	l.lots[lot.Symbol] = append(l.lots[lot.Symbol], lot)

	if err := l.repo.SaveLots(l.lots); err != nil {
		lots := l.lots[lot.Symbol]
		l.lots[lot.Symbol] = lots[:len(lots)-1]
		return fmt.Errorf("persist lot insert for %s: %w", lot.Symbol, err)
	}

	l.logger.Infow("Lot recorded",
		"symbol", lot.Symbol,
		"order_id", lot.OrderID,
		"quantity", lot.Quantity,
		"cost", lot.Cost,
		"amount", lot.Amount)
	return nil
}

// Remove deletes the lot matching by order id and persists. Removing a lot
// that is not present is an error: the sell engine only retires lots it just
// read from this ledger.
func (l *Ledger) Remove(symbol string, lot models.Lot) error {
	lots := l.lots[symbol]
	idx := -1
	for i := range lots {
		if lots[i].OrderID == lot.OrderID && lots[i].ClientOrderID == lot.ClientOrderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("lot %s not found in ledger for %s", lot.OrderID, symbol)
	}

	removed := lots[idx]
	l.lots[symbol] = append(lots[:idx:idx], lots[idx+1:]...)

	if err := l.repo.SaveLots(l.lots); err != nil {
		restored := make([]models.Lot, 0, len(lots))
		restored = append(restored, lots[:idx]...)
		restored = append(restored, removed)
		restored = append(restored, lots[idx+1:]...)
		l.lots[symbol] = restored
		return fmt.Errorf("persist lot removal for %s: %w", symbol, err)
	}

	l.logger.Infow("Lot retired", "symbol", symbol, "order_id", removed.OrderID, "quantity", removed.Quantity)
	return nil
}

// Purge drops every lot for symbol and persists. Used when the whole
// position was sold in one batch, or to clean up after a balance desync.
func (l *Ledger) Purge(symbol string) error {
	previous, ok := l.lots[symbol]
	if !ok {
		return nil
	}
	delete(l.lots, symbol)

	if err := l.repo.SaveLots(l.lots); err != nil {
		l.lots[symbol] = previous
		return fmt.Errorf("persist ledger purge for %s: %w", symbol, err)
	}

	l.logger.Infow("Ledger entry purged", "symbol", symbol, "lots", len(previous))
	return nil
}

// TotalOutlay sums the dollar amount of every open lot across all symbols.
func (l *Ledger) TotalOutlay() float64 {
	total := 0.0
	for _, lots := range l.lots {
		for i := range lots {
			total += lots[i].Amount
		}
	}
	return total
}
