package persistence

import (
	"encoding/json"
	"errors"

	"gemini-dca-bot-go/internal/models"

	"github.com/dgraph-io/badger/v3"
)

// badgerRepository stores the ledger as a single JSON document in BadgerDB.
type badgerRepository struct {
	db      *badger.DB
	lotsKey []byte
}

// NewBadgerRepository opens (or creates) the database at dbPath.
func NewBadgerRepository(dbPath string) (Repository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Badger's own logging is noisy; errors still come back from the calls.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &badgerRepository{
		db:      db,
		lotsKey: []byte("outstanding_lots"),
	}, nil
}

func (r *badgerRepository) SaveLots(lots map[string][]models.Lot) error {
	data, err := json.Marshal(lots)
	if err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.lotsKey, data)
	})
}

func (r *badgerRepository) LoadLots() (map[string][]models.Lot, error) {
	var lots map[string][]models.Lot

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.lotsKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("ledger value is empty in database")
			}
			return json.Unmarshal(val, &lots)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil // first run, nothing persisted yet
	}
	if err != nil {
		return nil, err
	}
	return lots, nil
}

func (r *badgerRepository) Close() error {
	return r.db.Close()
}
