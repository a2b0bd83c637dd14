package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusPurchased))
	assert.True(t, CanTransition(StatusPending, StatusNoCart))
	assert.True(t, CanTransition(StatusPending, StatusOutOfStock))

	// Terminal states accept nothing, including each other.
	for _, from := range []Status{StatusPurchased, StatusNoCart, StatusOutOfStock} {
		for _, to := range []Status{StatusPending, StatusPurchased, StatusNoCart, StatusOutOfStock} {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusPurchased.Terminal())
	assert.True(t, StatusNoCart.Terminal())
	assert.True(t, StatusOutOfStock.Terminal())
}

func TestFailureStatus(t *testing.T) {
	st, ok := FailureStatus("no_sc_found")
	require.True(t, ok)
	assert.Equal(t, StatusNoCart, st)

	st, ok = FailureStatus("not_enough_in_stock")
	require.True(t, ok)
	assert.Equal(t, StatusOutOfStock, st)

	_, ok = FailureStatus("disk_on_fire")
	assert.False(t, ok)
}
