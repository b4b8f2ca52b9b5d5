package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/cache"
	"token-companion/internal/domain"
	"token-companion/internal/observability"
	"token-companion/internal/provider"
)

const cacheName = "price"

// Resolver is implemented by Aggregator.
type Resolver interface {
	Resolve(ctx context.Context, address string) (domain.PriceResult, error)
}

// Service is a read-through cache in front of a Resolver.
//
// A fresh cache hit skips the upstream calls. Successful results are cached;
// no-data results are not. When resolution fails the last cached result is
// returned with Stale set (and RateLimited on 429) regardless of its age.
type Service struct {
	resolver Resolver
	cache    cache.Cache[domain.PriceResult]
	log      logrus.FieldLogger
}

// NewService creates a caching price service.
func NewService(resolver Resolver, c cache.Cache[domain.PriceResult], log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		resolver: resolver,
		cache:    c,
		log:      log.WithField("component", "price-service"),
	}
}

// Price returns the aggregated price for address.
// The error is non-nil only when resolution failed and nothing is cached.
func (s *Service) Price(ctx context.Context, address string) (domain.PriceResult, error) {
	if r, ok := s.cache.Get(ctx, address); ok {
		observability.RecordCacheLookup(cacheName, "hit")
		return r, nil
	}
	observability.RecordCacheLookup(cacheName, "miss")

	result, err := s.resolver.Resolve(ctx, address)
	if err == nil {
		if result.Success {
			s.cache.Put(ctx, address, result)
			observability.UpdateCacheEntries(s.cache.Len(ctx))
		}
		return result, nil
	}

	entry, ok := s.cache.GetStale(ctx, address)
	if !ok {
		return result, err
	}

	observability.RecordCacheLookup(cacheName, "stale")
	s.log.WithError(err).WithFields(logrus.Fields{
		"address": address,
		"age":     time.Since(entry.StoredAt).Round(time.Millisecond).String(),
	}).Warn("serving stale price")

	stale := entry.Value
	stale.Stale = true
	stale.RateLimited = errors.Is(err, provider.ErrRateLimited)
	return stale, nil
}

// CacheLen reports the number of cached prices.
func (s *Service) CacheLen(ctx context.Context) int {
	return s.cache.Len(ctx)
}
