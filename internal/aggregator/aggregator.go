// Package aggregator resolves a token price by trying provider adapters in
// priority order and merging their partial fields.
package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"token-companion/internal/domain"
	"token-companion/internal/observability"
	"token-companion/internal/provider"
)

// Aggregator tries adapters strictly in the order given.
type Aggregator struct {
	adapters []provider.Adapter
	log      logrus.FieldLogger
}

// New creates an aggregator. The usual order is DexScreener, Jupiter, Birdeye.
func New(log logrus.FieldLogger, adapters ...provider.Adapter) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{
		adapters: adapters,
		log:      log.WithField("component", "aggregator"),
	}
}

// Resolve returns the first adapter result with a positive price.
//
// Symbol, name, logo and supply reported by earlier adapters are carried
// forward when the winner lacks them. When no adapter yields a price the
// result is domain.NoData(). The error is nil only when every attempted
// adapter answered without a price (no pairs, zero price). If any of them
// failed in transport the error wraps provider.ErrRateLimited when at least
// one was rate limited, otherwise provider.ErrUnavailable, so callers can
// fall back to a cached value.
func (a *Aggregator) Resolve(ctx context.Context, address string) (domain.PriceResult, error) {
	var (
		carried     domain.Snapshot
		attempted   int
		failed      int
		rateLimited int
	)

	for _, ad := range a.adapters {
		if !ad.Enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return domain.NoData(), err
		}

		attempted++
		log := a.log.WithFields(logrus.Fields{"source": ad.Source(), "address": address})

		snap, err := ad.Fetch(ctx, address)
		if err != nil {
			switch {
			case errors.Is(err, provider.ErrNoPairs):
				log.Debug("provider has no pairs")
			case errors.Is(err, provider.ErrRateLimited):
				failed++
				rateLimited++
				log.WithError(err).Warn("provider rate limited")
			default:
				failed++
				log.WithError(err).Warn("provider fetch failed")
			}
			continue
		}

		backfill(&carried, snap)

		if !snap.Valid() {
			log.Debug("provider returned no price")
			continue
		}

		result := toResult(snap, &carried)
		observability.RecordAggregate(string(result.Source))
		return result, nil
	}

	observability.RecordAggregate("")

	if err := ctx.Err(); err != nil {
		return domain.NoData(), err
	}
	if failed == 0 {
		return domain.NoData(), nil
	}
	if rateLimited > 0 {
		return domain.NoData(), fmt.Errorf("%d of %d providers failed: %w", failed, attempted, provider.ErrRateLimited)
	}
	return domain.NoData(), fmt.Errorf("%d of %d providers failed: %w", failed, attempted, provider.ErrUnavailable)
}

// backfill records the first non-empty descriptive fields seen.
func backfill(carried, snap *domain.Snapshot) {
	if carried.Symbol == "" {
		carried.Symbol = snap.Symbol
	}
	if carried.Name == "" {
		carried.Name = snap.Name
	}
	if carried.LogoURI == "" {
		carried.LogoURI = snap.LogoURI
	}
	if carried.Supply == 0 {
		carried.Supply = snap.Supply
	}
}

func toResult(snap, carried *domain.Snapshot) domain.PriceResult {
	r := domain.PriceResult{
		Success:     true,
		Price:       snap.Price,
		Change24h:   snap.Change24h,
		Volume24h:   snap.Volume24h,
		TokenSymbol: snap.Symbol,
		TokenName:   snap.Name,
		Source:      snap.Source,
		LogoURI:     snap.LogoURI,
		Supply:      snap.Supply,
	}
	if r.TokenSymbol == "" {
		r.TokenSymbol = carried.Symbol
	}
	if r.TokenName == "" {
		r.TokenName = carried.Name
	}
	if r.LogoURI == "" {
		r.LogoURI = carried.LogoURI
	}
	if r.Supply == 0 {
		r.Supply = carried.Supply
	}
	return r
}
