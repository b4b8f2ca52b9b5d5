package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-companion/internal/cache"
	"token-companion/internal/domain"
	"token-companion/internal/provider"
	"token-companion/internal/solana"
)

type stubPairs struct {
	pairs []domain.PairData
	err   error
	calls int
}

func (s *stubPairs) Pairs(context.Context, string) ([]domain.PairData, error) {
	s.calls++
	return s.pairs, s.err
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newChart(pairs PairSource, meta MetadataReader) (*ChartService, *testClock) {
	clk := &testClock{now: time.Unix(1700000000, 0)}
	c := cache.NewMemory[domain.ChartSnapshot](cache.Options{Now: clk.Now})
	svc := NewChartService(pairs, meta, c, nil)
	svc.now = clk.Now
	return svc, clk
}

var topPair = domain.PairData{
	PairAddress: "pair1",
	BaseToken:   domain.PairToken{Address: "mint", Name: "Alpha", Symbol: "AAA"},
	QuoteToken:  domain.PairToken{Address: "sol", Symbol: "SOL"},
	PriceUsd:    0.5,
	Fdv:         500,
	PriceChange: domain.PeriodValues{H24: -35},
	Volume:      domain.PeriodValues{H24: 42},
	ImageURL:    "https://img/a.png",
}

func TestChartService_Snapshot(t *testing.T) {
	pairs := &stubPairs{pairs: []domain.PairData{topPair}}
	svc, _ := newChart(pairs, &stubMetadata{meta: &solana.MintMetadata{Decimals: 6, Supply: 7}})

	snap, err := svc.Snapshot(context.Background(), "mint")
	require.NoError(t, err)

	assert.Equal(t, "mint", snap.Address)
	assert.Equal(t, 0.5, snap.Price)
	assert.Equal(t, 1000.0, snap.Supply)
	assert.Equal(t, 500.0, snap.MarketCap)
	assert.Equal(t, 6, snap.Decimals)
	assert.Equal(t, -35.0, snap.Change24h)
	assert.Equal(t, "AAA", snap.Symbol)
	assert.Equal(t, "https://img/a.png", snap.LogoURI)
	assert.Equal(t, domain.SourceDexScreener, snap.Source)
	require.NotNil(t, snap.PairData)
	assert.Equal(t, "pair1", snap.PairData.PairAddress)
	assert.False(t, snap.Stale)
}

func TestChartService_CachedForTTL(t *testing.T) {
	pairs := &stubPairs{pairs: []domain.PairData{topPair}}
	svc, clk := newChart(pairs, nil)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, "mint")
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Second)
	_, err = svc.Snapshot(ctx, "mint")
	require.NoError(t, err)
	assert.Equal(t, 1, pairs.calls)

	clk.now = clk.now.Add(5 * time.Second)
	_, err = svc.Snapshot(ctx, "mint")
	require.NoError(t, err)
	assert.Equal(t, 2, pairs.calls)
}

func TestChartService_Errors(t *testing.T) {
	svc, _ := newChart(&stubPairs{err: fmt.Errorf("dexscreener: %w", provider.ErrNoPairs)}, nil)
	_, err := svc.Snapshot(context.Background(), "mint")
	assert.ErrorIs(t, err, provider.ErrNoPairs)

	zero := topPair
	zero.PriceUsd = 0
	svc, _ = newChart(&stubPairs{pairs: []domain.PairData{zero}}, nil)
	_, err = svc.Snapshot(context.Background(), "mint")
	assert.ErrorIs(t, err, ErrZeroPrice)

	svc, _ = newChart(&stubPairs{err: provider.ErrRateLimited}, nil)
	_, err = svc.Snapshot(context.Background(), "mint")
	assert.ErrorIs(t, err, provider.ErrRateLimited)
}

func TestChartService_StaleOnFailure(t *testing.T) {
	pairs := &stubPairs{pairs: []domain.PairData{topPair}}
	svc, clk := newChart(pairs, nil)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, "mint")
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Minute)
	pairs.err = fmt.Errorf("dexscreener: %w", provider.ErrRateLimited)

	snap, err := svc.Snapshot(ctx, "mint")
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	assert.True(t, snap.RateLimited)
	assert.Equal(t, 0.5, snap.Price)
}
