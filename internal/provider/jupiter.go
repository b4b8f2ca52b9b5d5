package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"token-companion/internal/domain"
)

// DefaultJupiterURL is the public Jupiter API base.
const DefaultJupiterURL = "https://api.jup.ag"

// Jupiter queries the price-by-id endpoint.
type Jupiter struct {
	baseURL string
	client  *Client
}

// NewJupiter creates a Jupiter adapter.
func NewJupiter(baseURL string, opts ...ClientOption) *Jupiter {
	if baseURL == "" {
		baseURL = DefaultJupiterURL
	}
	return &Jupiter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  NewClient(string(domain.SourceJupiter), opts...),
	}
}

var _ Adapter = (*Jupiter)(nil)

// Source identifies the provider.
func (j *Jupiter) Source() domain.Source { return domain.SourceJupiter }

// Enabled is always true; Jupiter needs no credentials.
func (j *Jupiter) Enabled() bool { return true }

type jupiterResponse struct {
	Data map[string]*jupiterPrice `json:"data"`
}

type jupiterPrice struct {
	ID    string           `json:"id"`
	Type  string           `json:"type"`
	Price *decimal.Decimal `json:"price"`
}

// Fetch returns the token price. Jupiter reports no change, volume or names.
// A token Jupiter cannot price yields a zero-price snapshot and a nil error.
func (j *Jupiter) Fetch(ctx context.Context, address string) (*domain.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/price/v2?ids=%s", j.baseURL, url.QueryEscape(address))

	var resp jupiterResponse
	if err := j.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("jupiter: %w", err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("jupiter: %w: missing data", ErrMalformedResponse)
	}

	entry, ok := resp.Data[address]
	if !ok {
		return nil, fmt.Errorf("jupiter: %w: token missing from data", ErrMalformedResponse)
	}
	// A null entry is Jupiter's answer for a token it cannot price.
	if entry == nil || entry.Price == nil {
		return &domain.Snapshot{Source: domain.SourceJupiter}, nil
	}

	return &domain.Snapshot{
		Source: domain.SourceJupiter,
		Price:  floatOf(entry.Price),
	}, nil
}
