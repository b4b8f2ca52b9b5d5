package aggregator

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
)

type stubResolver struct {
	result domain.PriceResult
	err    error
	calls  int
}

func (s *stubResolver) Resolve(context.Context, string) (domain.PriceResult, error) {
	s.calls++
	return s.result, s.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(r Resolver) (*Service, *clock) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	c := cache.NewMemory[domain.PriceResult](cache.Options{Now: clk.Now})
	return NewService(r, c, nil), clk
}

func TestService_FreshHitSkipsUpstream(t *testing.T) {
	r := &stubResolver{result: domain.PriceResult{Success: true, Price: 2, Source: domain.SourceJupiter}}
	svc, clk := newService(r)
	ctx := context.Background()

	_, err := svc.Price(ctx, "mint")
	require.NoError(t, err)
	clk.now = clk.now.Add(4 * time.Second)

	res, err := svc.Price(ctx, "mint")
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Price)
	assert.Equal(t, 1, r.calls)

	clk.now = clk.now.Add(2 * time.Second)
	_, err = svc.Price(ctx, "mint")
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestService_NoDataNotCached(t *testing.T) {
	r := &stubResolver{result: domain.NoData()}
	svc, _ := newService(r)
	ctx := context.Background()

	res, err := svc.Price(ctx, "mint")
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, _ = svc.Price(ctx, "mint")
	assert.Equal(t, 2, r.calls)
	assert.Zero(t, svc.CacheLen(ctx))
}

func TestService_StaleOnRateLimit(t *testing.T) {
	r := &stubResolver{result: domain.PriceResult{Success: true, Price: 5}}
	svc, clk := newService(r)
	ctx := context.Background()

	_, err := svc.Price(ctx, "mint")
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Hour)
	r.result, r.err = domain.NoData(), fmt.Errorf("all: %w", provider.ErrRateLimited)

	res, err := svc.Price(ctx, "mint")
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Price)
	assert.True(t, res.Stale)
	assert.True(t, res.RateLimited)
}

func TestService_StaleOnUnavailable(t *testing.T) {
	r := &stubResolver{result: domain.PriceResult{Success: true, Price: 5}}
	svc, clk := newService(r)
	ctx := context.Background()

	_, _ = svc.Price(ctx, "mint")
	clk.now = clk.now.Add(10 * time.Second)
	r.result, r.err = domain.NoData(), provider.ErrUnavailable

	res, err := svc.Price(ctx, "mint")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.False(t, res.RateLimited)
}

func TestService_FailureWithoutCache(t *testing.T) {
	r := &stubResolver{result: domain.NoData(), err: provider.ErrRateLimited}
	svc, _ := newService(r)

	res, err := svc.Price(context.Background(), "mint")
	assert.ErrorIs(t, err, provider.ErrRateLimited)
	assert.False(t, res.Success)
}

func TestService_StaleWhenLaterProviderRateLimitedAfterNoPairs(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, nil, fmt.Errorf("dexscreener: %w", provider.ErrNoPairs))
	jup := adapter(domain.SourceJupiter, &domain.Snapshot{Price: 2}, nil)
	svc, clk := newService(New(nil, dex, jup))
	ctx := context.Background()

	res, err := svc.Price(ctx, "mint")
	require.NoError(t, err)
	require.True(t, res.Success)

	clk.now = clk.now.Add(time.Minute)
	jup.err = fmt.Errorf("jupiter: %w", provider.ErrRateLimited)

	res, err = svc.Price(ctx, "mint")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2.0, res.Price)
	assert.True(t, res.Stale)
	assert.True(t, res.RateLimited)
}

func TestService_NoPairsEverywhereIsNoData(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, nil, provider.ErrNoPairs)
	jup := adapter(domain.SourceJupiter, &domain.Snapshot{}, nil)
	svc, _ := newService(New(nil, dex, jup))

	res, err := svc.Price(context.Background(), "mint")
	require.NoError(t, err)
	assert.Equal(t, domain.NoData(), res)
}
