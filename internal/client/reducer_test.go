package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-companion/internal/domain"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func TestReducer_DebounceDropsCloseUpdates(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	r := NewReducer("mint", 0, clk.Now)

	_, ok := r.Apply(&domain.TokenUpdate{Price: 1})
	require.True(t, ok)

	clk.now = clk.now.Add(100 * time.Millisecond)
	state, ok := r.Apply(&domain.TokenUpdate{Price: 2})
	assert.False(t, ok)
	assert.Equal(t, 1.0, state.Price)

	// Dropped updates do not move the window.
	clk.now = clk.now.Add(400 * time.Millisecond)
	state, ok = r.Apply(&domain.TokenUpdate{Price: 3})
	assert.True(t, ok)
	assert.Equal(t, 3.0, state.Price)
}

func TestReducer_MergeAndMarketCap(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	r := NewReducer("mint", time.Millisecond, clk.Now)

	_, ok := r.Apply(&domain.TokenUpdate{Price: 2, Supply: 1000, Decimals: 6, Symbol: "AAA", Name: "Alpha", MarketCap: 1, Timestamp: 42})
	require.True(t, ok)

	clk.now = clk.now.Add(time.Second)
	state, ok := r.Apply(&domain.TokenUpdate{Price: 3, Change24h: -4})
	require.True(t, ok)

	assert.Equal(t, domain.TokenState{
		Address:     "mint",
		Supply:      1000,
		Decimals:    6,
		Price:       3,
		MarketCap:   3000,
		Change24h:   -4,
		Name:        "Alpha",
		Symbol:      "AAA",
		LastUpdated: clk.now.UnixMilli(),
	}, state)
}

func TestReducer_ChangeAndVolumeCanReturnToZero(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	r := NewReducer("mint", time.Millisecond, clk.Now)

	_, ok := r.Apply(&domain.TokenUpdate{Price: 2, Supply: 10, Change24h: 5.2, Volume24h: 1200})
	require.True(t, ok)

	clk.now = clk.now.Add(time.Second)
	state, ok := r.Apply(&domain.TokenUpdate{Price: 2, Change24h: 0, Volume24h: 0})
	require.True(t, ok)

	assert.Zero(t, state.Change24h)
	assert.Zero(t, state.Volume24h)
	assert.Equal(t, 2.0, state.Price)
	assert.Equal(t, 10.0, state.Supply)
	assert.Equal(t, 20.0, state.MarketCap)
}

func TestReducer_MarketCapZeroWithoutSupply(t *testing.T) {
	r := NewReducer("mint", time.Millisecond, nil)
	state, ok := r.Apply(&domain.TokenUpdate{Price: 2, MarketCap: 999})
	require.True(t, ok)
	assert.Zero(t, state.MarketCap)
}

func TestReducer_Reset(t *testing.T) {
	clk := &manualClock{now: time.Unix(1700000000, 0)}
	r := NewReducer("a", 0, clk.Now)

	_, ok := r.Apply(&domain.TokenUpdate{Price: 1, Symbol: "A"})
	require.True(t, ok)

	r.Reset("b")
	_, has := r.State()
	assert.False(t, has)

	state, ok := r.Apply(&domain.TokenUpdate{Price: 5})
	require.True(t, ok, "reset clears the debounce timestamp")
	assert.Equal(t, "b", state.Address)
	assert.Empty(t, state.Symbol)
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	base := time.Unix(0, 0)

	_, ok := h.DeltaRatio()
	assert.False(t, ok)

	h.Add(base, 1)
	h.Add(base.Add(time.Second), 0) // ignored
	h.Add(base.Add(2*time.Second), 2)
	h.Add(base.Add(3*time.Second), 4)
	h.Add(base.Add(4*time.Second), 5)

	pts := h.Points()
	require.Len(t, pts, 3)
	assert.Equal(t, 2.0, pts[0].Price)

	ratio, ok := h.DeltaRatio()
	require.True(t, ok)
	assert.InDelta(t, 0.25, ratio, 1e-9)

	h.Reset()
	assert.Zero(t, h.Len())
}
