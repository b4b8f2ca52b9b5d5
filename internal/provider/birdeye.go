package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"token-companion/internal/domain"
)

// DefaultBirdeyeURL is the public Birdeye API base.
const DefaultBirdeyeURL = "https://public-api.birdeye.so"

// Birdeye requires an API key. Without one it is disabled and never attempted.
type Birdeye struct {
	baseURL string
	apiKey  string
	client  *Client
}

// NewBirdeye creates a Birdeye adapter for the Solana chain.
func NewBirdeye(baseURL, apiKey string, opts ...ClientOption) *Birdeye {
	if baseURL == "" {
		baseURL = DefaultBirdeyeURL
	}
	opts = append([]ClientOption{
		WithHeader("X-API-KEY", apiKey),
		WithHeader("x-chain", "solana"),
	}, opts...)
	return &Birdeye{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  NewClient(string(domain.SourceBirdeye), opts...),
	}
}

var _ Adapter = (*Birdeye)(nil)

// Source identifies the provider.
func (b *Birdeye) Source() domain.Source { return domain.SourceBirdeye }

// Enabled reports whether an API key is configured.
func (b *Birdeye) Enabled() bool { return b.apiKey != "" }

type birdeyePriceResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Value          *float64 `json:"value"`
		UpdateUnixTime int64    `json:"updateUnixTime"`
		PriceChange24h float64  `json:"priceChange24h"`
	} `json:"data"`
}

type birdeyeOverviewResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Symbol                string  `json:"symbol"`
		Name                  string  `json:"name"`
		LogoURI               string  `json:"logoURI"`
		PriceChange24hPercent float64 `json:"priceChange24hPercent"`
		V24hUSD               float64 `json:"v24hUSD"`
		Supply                float64 `json:"supply"`
		CirculatingSupply     float64 `json:"circulatingSupply"`
	} `json:"data"`
}

// Fetch returns the price from /defi/price and, best-effort, change, volume
// and names from /defi/token_overview.
func (b *Birdeye) Fetch(ctx context.Context, address string) (*domain.Snapshot, error) {
	if !b.Enabled() {
		return nil, fmt.Errorf("birdeye: %w: no api key", ErrUnavailable)
	}

	q := url.QueryEscape(address)

	var price birdeyePriceResponse
	if err := b.client.GetJSON(ctx, fmt.Sprintf("%s/defi/price?address=%s", b.baseURL, q), &price); err != nil {
		return nil, fmt.Errorf("birdeye: %w", err)
	}
	if !price.Success || price.Data == nil || price.Data.Value == nil {
		return nil, fmt.Errorf("birdeye: %w: missing price value", ErrMalformedResponse)
	}

	snap := &domain.Snapshot{
		Source:    domain.SourceBirdeye,
		Price:     *price.Data.Value,
		Change24h: price.Data.PriceChange24h,
	}

	// Overview failures never fail the price fetch.
	var overview birdeyeOverviewResponse
	err := b.client.GetJSON(ctx, fmt.Sprintf("%s/defi/token_overview?address=%s", b.baseURL, q), &overview)
	if err == nil && overview.Success && overview.Data != nil {
		o := overview.Data
		snap.Change24h = o.PriceChange24hPercent
		snap.Volume24h = o.V24hUSD
		snap.Symbol = o.Symbol
		snap.Name = o.Name
		snap.LogoURI = o.LogoURI
		if o.CirculatingSupply > 0 {
			snap.Supply = o.CirculatingSupply
		} else {
			snap.Supply = o.Supply
		}
	}

	return snap, nil
}
