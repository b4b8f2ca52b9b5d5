package aggregator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-companion/internal/domain"
	"token-companion/internal/provider"
)

type fakeAdapter struct {
	source  domain.Source
	enabled bool
	snap    *domain.Snapshot
	err     error
	calls   int
}

func (f *fakeAdapter) Source() domain.Source { return f.source }
func (f *fakeAdapter) Enabled() bool         { return f.enabled }

func (f *fakeAdapter) Fetch(context.Context, string) (*domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := *f.snap
	s.Source = f.source
	return &s, nil
}

func adapter(source domain.Source, snap *domain.Snapshot, err error) *fakeAdapter {
	return &fakeAdapter{source: source, enabled: true, snap: snap, err: err}
}

func TestResolve_FirstValidWins(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, &domain.Snapshot{Price: 1.5, Change24h: 12.5, Volume24h: 100, Symbol: "AAA", Name: "Alpha"}, nil)
	jup := adapter(domain.SourceJupiter, &domain.Snapshot{Price: 9}, nil)

	res, err := New(nil, dex, jup).Resolve(context.Background(), "mint")
	require.NoError(t, err)

	assert.Equal(t, domain.PriceResult{
		Success: true, Price: 1.5, Change24h: 12.5, Volume24h: 100,
		TokenSymbol: "AAA", TokenName: "Alpha", Source: domain.SourceDexScreener,
	}, res)
	assert.Zero(t, jup.calls)
}

func TestResolve_BackfillsNamesFromEarlierAdapter(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, &domain.Snapshot{Symbol: "AAA", Name: "Alpha", Supply: 1000}, nil)
	jup := adapter(domain.SourceJupiter, &domain.Snapshot{Price: 0.0001234}, nil)

	res, err := New(nil, dex, jup).Resolve(context.Background(), "mint")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, domain.SourceJupiter, res.Source)
	assert.Equal(t, 0.0001234, res.Price)
	assert.Equal(t, "AAA", res.TokenSymbol)
	assert.Equal(t, "Alpha", res.TokenName)
	assert.Equal(t, 1000.0, res.Supply)
}

func TestResolve_WinnerNamesTakePrecedence(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, &domain.Snapshot{Symbol: "OLD"}, nil)
	bird := adapter(domain.SourceBirdeye, &domain.Snapshot{Price: 2, Symbol: "NEW"}, nil)

	res, err := New(nil, dex, bird).Resolve(context.Background(), "mint")
	require.NoError(t, err)
	assert.Equal(t, "NEW", res.TokenSymbol)
}

func TestResolve_SkipsDisabled(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, nil, provider.ErrNoPairs)
	bird := adapter(domain.SourceBirdeye, &domain.Snapshot{Price: 3}, nil)
	bird.enabled = false

	res, err := New(nil, dex, bird).Resolve(context.Background(), "mint")
	require.NoError(t, err)
	assert.Equal(t, domain.NoData(), res)
	assert.Zero(t, bird.calls)
}

func TestResolve_NoDataIsNotAnError(t *testing.T) {
	dex := adapter(domain.SourceDexScreener, nil, provider.ErrNoPairs)
	jup := adapter(domain.SourceJupiter, &domain.Snapshot{Price: 0}, nil)

	res, err := New(nil, dex, jup).Resolve(context.Background(), "mint")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Price)
	assert.Zero(t, res.Change24h)
	assert.Zero(t, res.Volume24h)
}

func TestResolve_AllFailed(t *testing.T) {
	limited := fmt.Errorf("x: %w", provider.ErrRateLimited)
	down := fmt.Errorf("x: %w", provider.ErrUnavailable)

	tests := []struct {
		name string
		errs []error
		want error
	}{
		{"all rate limited", []error{limited, limited}, provider.ErrRateLimited},
		{"any rate limited", []error{down, limited}, provider.ErrRateLimited},
		{"all unavailable", []error{down, down}, provider.ErrUnavailable},
		{"no pairs then rate limited", []error{provider.ErrNoPairs, limited}, provider.ErrRateLimited},
		{"no pairs then malformed", []error{provider.ErrNoPairs, fmt.Errorf("x: %w", provider.ErrMalformedResponse)}, provider.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(nil,
				adapter(domain.SourceDexScreener, nil, tt.errs[0]),
				adapter(domain.SourceJupiter, nil, tt.errs[1]),
			)
			res, err := a.Resolve(context.Background(), "mint")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, domain.NoData(), res)
		})
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dex := adapter(domain.SourceDexScreener, &domain.Snapshot{Price: 1}, nil)
	_, err := New(nil, dex).Resolve(ctx, "mint")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dex.calls)
}
