package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/cache"
	"token-companion/internal/domain"
	"token-companion/internal/observability"
	"token-companion/internal/provider"
)

const chartCacheName = "chart"

// ChartService serves the /chart token snapshot built from the most liquid
// DexScreener pair.
type ChartService struct {
	pairs    PairSource
	metadata MetadataReader // optional
	cache    cache.Cache[domain.ChartSnapshot]
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewChartService creates a chart service. metadata may be nil.
func NewChartService(pairs PairSource, metadata MetadataReader, c cache.Cache[domain.ChartSnapshot], log logrus.FieldLogger) *ChartService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ChartService{
		pairs:    pairs,
		metadata: metadata,
		cache:    c,
		log:      log.WithField("component", "chart"),
		now:      time.Now,
	}
}

// Snapshot returns the chart snapshot for address.
//
// Errors: provider.ErrNoPairs when the token has no pairs, ErrZeroPrice when
// the top pair price is 0. On any other upstream failure the last cached
// snapshot is returned with Stale set; without one the upstream error is
// returned.
func (s *ChartService) Snapshot(ctx context.Context, address string) (domain.ChartSnapshot, error) {
	if snap, ok := s.cache.Get(ctx, address); ok {
		observability.RecordCacheLookup(chartCacheName, "hit")
		return snap, nil
	}
	observability.RecordCacheLookup(chartCacheName, "miss")

	pairs, err := s.pairs.Pairs(ctx, address)
	switch {
	case errors.Is(err, provider.ErrNoPairs):
		return domain.ChartSnapshot{}, err
	case err != nil:
		return s.stale(ctx, address, err)
	}

	top := pairs[0]
	if top.PriceUsd == 0 {
		return domain.ChartSnapshot{}, fmt.Errorf("%w: pair %s", ErrZeroPrice, top.PairAddress)
	}

	snap := s.build(ctx, address, top)
	s.cache.Put(ctx, address, snap)
	return snap, nil
}

func (s *ChartService) build(ctx context.Context, address string, pair domain.PairData) domain.ChartSnapshot {
	tok := pair.BaseToken
	if strings.EqualFold(pair.QuoteToken.Address, address) && !strings.EqualFold(pair.BaseToken.Address, address) {
		tok = pair.QuoteToken
	}

	snap := domain.ChartSnapshot{
		TokenState: domain.TokenState{
			Address:     address,
			Price:       pair.PriceUsd,
			Change24h:   pair.PriceChange.H24,
			Volume24h:   pair.Volume.H24,
			Name:        tok.Name,
			Symbol:      tok.Symbol,
			LogoURI:     pair.ImageURL,
			LastUpdated: s.now().UnixMilli(),
		},
		Source:   domain.SourceDexScreener,
		PairData: &pair,
	}

	switch {
	case pair.Fdv > 0:
		snap.Supply = pair.Fdv / pair.PriceUsd
	case pair.MarketCap > 0:
		snap.Supply = pair.MarketCap / pair.PriceUsd
	}

	if s.metadata != nil {
		meta, err := s.metadata.MintMetadata(ctx, address)
		if err != nil {
			s.log.WithError(err).WithField("address", address).Debug("mint metadata unavailable")
		} else {
			snap.Decimals = meta.Decimals
			if snap.Supply == 0 {
				snap.Supply = meta.Supply
			}
		}
	}

	snap.RecomputeMarketCap()
	return snap
}

func (s *ChartService) stale(ctx context.Context, address string, cause error) (domain.ChartSnapshot, error) {
	entry, ok := s.cache.GetStale(ctx, address)
	if !ok {
		return domain.ChartSnapshot{}, cause
	}

	observability.RecordCacheLookup(chartCacheName, "stale")
	s.log.WithError(cause).WithField("address", address).Warn("serving stale chart snapshot")

	snap := entry.Value
	snap.Stale = true
	snap.RateLimited = errors.Is(cause, provider.ErrRateLimited)
	return snap, nil
}
