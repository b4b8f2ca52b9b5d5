package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"token-companion/internal/domain"
)

// DefaultDexScreenerURL is the public DexScreener API base.
const DefaultDexScreenerURL = "https://api.dexscreener.com"

// DexScreener queries all pairs for a token and uses the most liquid one.
type DexScreener struct {
	baseURL string
	client  *Client
}

// NewDexScreener creates a DexScreener adapter.
func NewDexScreener(baseURL string, opts ...ClientOption) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  NewClient(string(domain.SourceDexScreener), opts...),
	}
}

var _ Adapter = (*DexScreener)(nil)

// Source identifies the provider.
func (d *DexScreener) Source() domain.Source { return domain.SourceDexScreener }

// Enabled is always true; DexScreener needs no credentials.
func (d *DexScreener) Enabled() bool { return true }

// dexScreenerResponse is the raw response of /latest/dex/tokens/{address}.
type dexScreenerResponse struct {
	SchemaVersion string    `json:"schemaVersion"`
	Pairs         []dexPair `json:"pairs"`
}

type dexPair struct {
	ChainID       string           `json:"chainId"`
	DexID         string           `json:"dexId"`
	URL           string           `json:"url"`
	PairAddress   string           `json:"pairAddress"`
	BaseToken     dexToken         `json:"baseToken"`
	QuoteToken    dexToken         `json:"quoteToken"`
	PriceNative   string           `json:"priceNative"`
	PriceUsd      *decimal.Decimal `json:"priceUsd"`
	Txns          dexTxns          `json:"txns"`
	Volume        dexPeriods       `json:"volume"`
	PriceChange   dexPeriods       `json:"priceChange"`
	Liquidity     *dexLiquidity    `json:"liquidity"`
	Fdv           float64          `json:"fdv"`
	MarketCap     float64          `json:"marketCap"`
	PairCreatedAt int64            `json:"pairCreatedAt"`
	Info          *dexInfo         `json:"info"`
}

type dexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type dexPeriods struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type dexTxns struct {
	H24 struct {
		Buys  int `json:"buys"`
		Sells int `json:"sells"`
	} `json:"h24"`
}

type dexInfo struct {
	ImageURL string `json:"imageUrl"`
}

func (p *dexPair) liquidityUsd() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.Usd
}

// token returns the pair side describing address, defaulting to the base token.
func (p *dexPair) token(address string) dexToken {
	if strings.EqualFold(p.QuoteToken.Address, address) && !strings.EqualFold(p.BaseToken.Address, address) {
		return p.QuoteToken
	}
	return p.BaseToken
}

func (p *dexPair) toPairData() domain.PairData {
	pd := domain.PairData{
		ChainID:      p.ChainID,
		DexID:        p.DexID,
		URL:          p.URL,
		PairAddress:  p.PairAddress,
		BaseToken:    domain.PairToken(p.BaseToken),
		QuoteToken:   domain.PairToken(p.QuoteToken),
		PriceNative:  p.PriceNative,
		PriceUsd:     floatOf(p.PriceUsd),
		LiquidityUsd: p.liquidityUsd(),
		Fdv:          p.Fdv,
		MarketCap:    p.MarketCap,
		PriceChange:  domain.PeriodValues(p.PriceChange),
		Volume:       domain.PeriodValues(p.Volume),
		Txns24h:      domain.TxnSummary{Buys: p.Txns.H24.Buys, Sells: p.Txns.H24.Sells},
		CreatedAt:    p.PairCreatedAt,
	}
	if p.Info != nil {
		pd.ImageURL = p.Info.ImageURL
	}
	return pd
}

// fetchPairs returns raw pairs sorted by USD liquidity, highest first.
// Ties keep the provider's order.
func (d *DexScreener) fetchPairs(ctx context.Context, address string) ([]dexPair, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, url.PathEscape(address))

	var resp dexScreenerResponse
	if err := d.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: %w", err)
	}
	if len(resp.Pairs) == 0 {
		return nil, fmt.Errorf("dexscreener: %w", ErrNoPairs)
	}

	pairs := resp.Pairs
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].liquidityUsd() > pairs[j].liquidityUsd()
	})
	return pairs, nil
}

// Pairs returns the normalized pairs for a token, most liquid first.
func (d *DexScreener) Pairs(ctx context.Context, address string) ([]domain.PairData, error) {
	raw, err := d.fetchPairs(ctx, address)
	if err != nil {
		return nil, err
	}
	pairs := make([]domain.PairData, len(raw))
	for i := range raw {
		pairs[i] = raw[i].toPairData()
	}
	return pairs, nil
}

// Fetch selects the most liquid pair and normalizes it.
// A pair without priceUsd yields a zero-price snapshot that still carries
// the token name and symbol.
func (d *DexScreener) Fetch(ctx context.Context, address string) (*domain.Snapshot, error) {
	pairs, err := d.fetchPairs(ctx, address)
	if err != nil {
		return nil, err
	}

	top := pairs[0]
	tok := top.token(address)
	pair := top.toPairData()

	snap := &domain.Snapshot{
		Source:    domain.SourceDexScreener,
		Change24h: top.PriceChange.H24,
		Volume24h: top.Volume.H24,
		Symbol:    tok.Symbol,
		Name:      tok.Name,
		Liquidity: top.liquidityUsd(),
		LogoURI:   pair.ImageURL,
		Pair:      &pair,
	}

	if top.PriceUsd == nil || !top.PriceUsd.IsPositive() {
		return snap, nil
	}

	snap.Price = floatOf(top.PriceUsd)
	if top.Fdv > 0 {
		snap.Supply = supplyFrom(top.Fdv, *top.PriceUsd)
	} else {
		snap.Supply = supplyFrom(top.MarketCap, *top.PriceUsd)
	}
	return snap, nil
}
