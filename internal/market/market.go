// Package market builds token views on top of the price service, the
// DexScreener pair list and on-chain mint metadata.
package market

import (
	"context"
	"errors"

	"token-companion/internal/domain"
	"token-companion/internal/solana"
)

// Market errors.
var (
	// ErrNoPrice is returned when no provider yields a price for a token.
	ErrNoPrice = errors.New("no price data available")

	// ErrZeroPrice is returned when the selected pair reports a price of exactly 0.
	ErrZeroPrice = errors.New("resolved price is zero")
)

// PriceSource is implemented by aggregator.Service.
type PriceSource interface {
	Price(ctx context.Context, address string) (domain.PriceResult, error)
}

// PairSource is implemented by provider.DexScreener.
type PairSource interface {
	Pairs(ctx context.Context, address string) ([]domain.PairData, error)
}

// MetadataReader is implemented by solana.MetadataSource.
type MetadataReader interface {
	MintMetadata(ctx context.Context, mint string) (*solana.MintMetadata, error)
}
