package persistence

import "gemini-dca-bot-go/internal/models"

// Repository abstracts the durable store for the outstanding-lot ledger.
// The ledger saves the full lot map on every mutation, so a save must be
// atomic: either the whole new snapshot is stored or the old one survives.
type Repository interface {
	// SaveLots atomically replaces the stored ledger snapshot.
	SaveLots(lots map[string][]models.Lot) error

	// LoadLots returns the stored snapshot, or (nil, nil) when no state
	// has been saved yet.
	LoadLots() (map[string][]models.Lot, error)

	// Close releases the underlying store.
	Close() error
}
