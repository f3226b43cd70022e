package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggressiveAsk(t *testing.T) {
	price, err := AggressiveAsk(90.00, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 89.99, price, 1e-12)

	// Carry across the integer boundary.
	price, err = AggressiveAsk(100.00, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 99.99, price, 1e-12)

	price, err = AggressiveAsk(0.00001234, 0.00000001)
	require.NoError(t, err)
	assert.InDelta(t, 0.00001233, price, 1e-15)

	_, err = AggressiveAsk(0.01, 0.01)
	assert.Error(t, err)
	_, err = AggressiveAsk(90, 0)
	assert.Error(t, err)
}

func TestAggressiveBid(t *testing.T) {
	price, err := AggressiveBid(89.99, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 90.00, price, 1e-12)

	price, err = AggressiveBid(0.00001233, 0.00000001)
	require.NoError(t, err)
	assert.InDelta(t, 0.00001234, price, 1e-15)

	_, err = AggressiveBid(0, 0.01)
	assert.Error(t, err)
	_, err = AggressiveBid(90, -1)
	assert.Error(t, err)
}

func TestRoundToIncrement(t *testing.T) {
	// Floors, never rounds up.
	assert.InDelta(t, 0.055, RoundToIncrement(0.0557, 0.005), 1e-12)
	assert.InDelta(t, 0.0557, RoundToIncrement(0.0557, 0.0001), 1e-12)
	assert.InDelta(t, 1.0, RoundToIncrement(1.999, 1), 1e-12)

	// Degenerate increment passes the value through.
	assert.Equal(t, 0.5, RoundToIncrement(0.5, 0))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "89.99", FormatPrice(89.99, 0.01))
	assert.Equal(t, "90.00", FormatPrice(90, 0.01))
	assert.Equal(t, "0.00001234", FormatPrice(0.00001234, 0.00000001))
	assert.Equal(t, "3", FormatPrice(3.4, 1))
}
