package market

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/domain"
)

// Feed produces the stream update for one poll of a token.
type Feed struct {
	prices   PriceSource
	metadata MetadataReader // optional
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewFeed creates a feed. metadata may be nil.
func NewFeed(prices PriceSource, metadata MetadataReader, log logrus.FieldLogger) *Feed {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Feed{
		prices:   prices,
		metadata: metadata,
		log:      log.WithField("component", "feed"),
		now:      time.Now,
	}
}

// Update resolves the current price for address and fills decimals and,
// when the providers did not report it, supply from the mint account.
// A no-data result is returned as ErrNoPrice.
func (f *Feed) Update(ctx context.Context, address string) (*domain.TokenUpdate, error) {
	res, err := f.prices.Price(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("resolve price: %w", err)
	}
	if !res.Success {
		return nil, ErrNoPrice
	}

	u := &domain.TokenUpdate{
		Price:     res.Price,
		Supply:    res.Supply,
		Change24h: res.Change24h,
		Volume24h: res.Volume24h,
		Symbol:    res.TokenSymbol,
		Name:      res.TokenName,
		LogoURI:   res.LogoURI,
		Source:    res.Source,
		Timestamp: f.now().UnixMilli(),
	}

	if f.metadata != nil {
		meta, err := f.metadata.MintMetadata(ctx, address)
		if err != nil {
			f.log.WithError(err).WithField("address", address).Debug("mint metadata unavailable")
		} else {
			u.Decimals = meta.Decimals
			if u.Supply == 0 {
				u.Supply = meta.Supply
			}
			if u.Symbol == "" {
				u.Symbol = meta.Symbol
			}
			if u.Name == "" {
				u.Name = meta.Name
			}
		}
	}

	if u.Price > 0 && u.Supply > 0 {
		u.MarketCap = u.Price * u.Supply
	}
	return u, nil
}
