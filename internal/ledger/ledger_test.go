package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gemini-dca-bot-go/internal/models"
)

// stubRepo records saves and can be told to fail the next one.
type stubRepo struct {
	saved    map[string][]models.Lot
	loadErr  error
	saveErr  error
	saveCall int
}

func (r *stubRepo) SaveLots(lots map[string][]models.Lot) error {
	r.saveCall++
	if r.saveErr != nil {
		return r.saveErr
	}
	snapshot := make(map[string][]models.Lot, len(lots))
	for s, l := range lots {
		snapshot[s] = append([]models.Lot(nil), l...)
	}
	r.saved = snapshot
	return nil
}

func (r *stubRepo) LoadLots() (map[string][]models.Lot, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.saved, nil
}

func (r *stubRepo) Close() error { return nil }

func newTestLedger(t *testing.T, repo *stubRepo) *Ledger {
	t.Helper()
	led, err := Open(repo, zap.NewNop().Sugar())
	require.NoError(t, err)
	return led
}

func lot(symbol, orderID string, quantity, cost float64) models.Lot {
	return models.Lot{
		Symbol:        symbol,
		OrderID:       orderID,
		ClientOrderID: "c" + orderID,
		Quantity:      quantity,
		Cost:          cost,
		Amount:        quantity * cost,
	}
}

func TestOpenStartsEmpty(t *testing.T) {
	led := newTestLedger(t, &stubRepo{})
	assert.Empty(t, led.Lots("btcusd"))
	assert.Zero(t, led.Depth("btcusd"))
	assert.Empty(t, led.Symbols())
}

func TestOpenLoadError(t *testing.T) {
	_, err := Open(&stubRepo{loadErr: errors.New("disk gone")}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestInsertPersists(t *testing.T) {
	repo := &stubRepo{}
	led := newTestLedger(t, repo)

	require.NoError(t, led.Insert(lot("btcusd", "1", 0.1, 100)))
	require.NoError(t, led.Insert(lot("btcusd", "2", 0.2, 90)))

	assert.Equal(t, 2, led.Depth("btcusd"))
	assert.Len(t, repo.saved["btcusd"], 2)
	assert.InDelta(t, 0.1*100+0.2*90, led.TotalOutlay(), 1e-9)
}

func TestInsertRollsBackOnSaveFailure(t *testing.T) {
	repo := &stubRepo{}
	led := newTestLedger(t, repo)
	require.NoError(t, led.Insert(lot("btcusd", "1", 0.1, 100)))

	repo.saveErr = errors.New("write failed")
	err := led.Insert(lot("btcusd", "2", 0.2, 90))
	assert.Error(t, err)

	// In-memory state matches what a restart would recover.
	assert.Equal(t, 1, led.Depth("btcusd"))
	assert.Len(t, repo.saved["btcusd"], 1)
}

func TestRemove(t *testing.T) {
	repo := &stubRepo{}
	led := newTestLedger(t, repo)
	first := lot("btcusd", "1", 0.1, 100)
	second := lot("btcusd", "2", 0.2, 90)
	require.NoError(t, led.Insert(first))
	require.NoError(t, led.Insert(second))

	require.NoError(t, led.Remove("btcusd", first))
	remaining := led.Lots("btcusd")
	require.Len(t, remaining, 1)
	assert.Equal(t, "2", remaining[0].OrderID)

	// Removing a lot the ledger does not hold is a hard error.
	assert.Error(t, led.Remove("btcusd", first))
}

func TestRemoveRollsBackOnSaveFailure(t *testing.T) {
	repo := &stubRepo{}
	led := newTestLedger(t, repo)
	first := lot("btcusd", "1", 0.1, 100)
	second := lot("btcusd", "2", 0.2, 90)
	require.NoError(t, led.Insert(first))
	require.NoError(t, led.Insert(second))

	repo.saveErr = errors.New("write failed")
	assert.Error(t, led.Remove("btcusd", first))

	lots := led.Lots("btcusd")
	require.Len(t, lots, 2)
	assert.Equal(t, "1", lots[0].OrderID)
	assert.Equal(t, "2", lots[1].OrderID)
}

func TestPurge(t *testing.T) {
	repo := &stubRepo{}
	led := newTestLedger(t, repo)
	require.NoError(t, led.Insert(lot("btcusd", "1", 0.1, 100)))
	require.NoError(t, led.Insert(lot("ethusd", "2", 1, 50)))

	require.NoError(t, led.Purge("btcusd"))
	assert.Zero(t, led.Depth("btcusd"))
	assert.Equal(t, 1, led.Depth("ethusd"))
	assert.Equal(t, []string{"ethusd"}, led.Symbols())

	// Purging an absent symbol is a no-op, not an error.
	calls := repo.saveCall
	require.NoError(t, led.Purge("dogeusd"))
	assert.Equal(t, calls, repo.saveCall)
}

func TestPurgeRollsBackOnSaveFailure(t *testing.T) {
	repo := &stubRepo{}
	led := newTestLedger(t, repo)
	require.NoError(t, led.Insert(lot("btcusd", "1", 0.1, 100)))

	repo.saveErr = errors.New("write failed")
	assert.Error(t, led.Purge("btcusd"))
	assert.Equal(t, 1, led.Depth("btcusd"))
}

func TestLotsReturnsCopy(t *testing.T) {
	led := newTestLedger(t, &stubRepo{})
	require.NoError(t, led.Insert(lot("btcusd", "1", 0.1, 100)))

	lots := led.Lots("btcusd")
	lots[0].Quantity = 999
	assert.Equal(t, 0.1, led.Lots("btcusd")[0].Quantity)
}
