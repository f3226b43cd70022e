package persistence

import "gemini-dca-bot-go/internal/models"

// memoryRepository keeps the ledger snapshot in process memory. Backtests use
// it so a replay never touches the live database.
type memoryRepository struct {
	lots map[string][]models.Lot
}

func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) SaveLots(lots map[string][]models.Lot) error {
	snapshot := make(map[string][]models.Lot, len(lots))
	for symbol, symbolLots := range lots {
		snapshot[symbol] = append([]models.Lot(nil), symbolLots...)
	}
	r.lots = snapshot
	return nil
}

func (r *memoryRepository) LoadLots() (map[string][]models.Lot, error) {
	return r.lots, nil
}

func (r *memoryRepository) Close() error {
	return nil
}
