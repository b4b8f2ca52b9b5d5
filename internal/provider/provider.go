// Package provider implements the upstream price adapters.
//
// Every adapter normalizes its provider's JSON into a domain.Snapshot.
// Network failures, non-2xx statuses and malformed bodies are all returned
// as errors; adapters never panic past their boundary.
package provider

import (
	"context"
	"errors"

	"token-companion/internal/domain"
)

// Adapter errors.
var (
	// ErrRateLimited is returned when the provider answers HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable covers network failures, timeouts and non-2xx statuses.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse is returned when the body does not match the expected shape.
	// Callers treat it the same as ErrUnavailable.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoPairs is returned by DexScreener when the token has no trading pairs.
	ErrNoPairs = errors.New("no pairs found")
)

// Adapter fetches and normalizes a price snapshot from one provider.
//
// Fetch may return a non-nil snapshot with Price == 0 and a nil error when the
// provider knows the token (name, symbol) but has no usable price for it.
type Adapter interface {
	// Source identifies the provider.
	Source() domain.Source

	// Enabled reports whether the adapter should be attempted at all.
	Enabled() bool

	// Fetch retrieves the current snapshot for a token address.
	Fetch(ctx context.Context, address string) (*domain.Snapshot, error)
}
