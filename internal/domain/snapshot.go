package domain

// Snapshot is the normalized result of a single provider fetch.
// A snapshot with Price == 0 is a failed fetch and is never cached or forwarded.
type Snapshot struct {
	Source    Source
	Price     float64 // USD
	Change24h float64 // percent, signed
	Volume24h float64 // USD
	Symbol    string  // empty when the provider did not report it
	Name      string
	LogoURI   string
	Supply    float64   // 0 when the provider cannot derive it
	Liquidity float64   // USD liquidity of the selected pair
	Pair      *PairData // DexScreener only
}

// Valid reports whether the snapshot carries a usable price.
func (s *Snapshot) Valid() bool {
	return s != nil && s.Price > 0
}

// PriceResult is the aggregated answer for one token address.
// Success == false with zero numerics is the "no data" outcome, not an error.
type PriceResult struct {
	Success     bool    `json:"success"`
	Price       float64 `json:"price"`
	Change24h   float64 `json:"change24h"`
	Volume24h   float64 `json:"volume24h"`
	TokenSymbol string  `json:"tokenSymbol,omitempty"`
	TokenName   string  `json:"tokenName,omitempty"`
	Source      Source  `json:"source,omitempty"`
	LogoURI     string  `json:"logoURI,omitempty"`
	Supply      float64 `json:"supply,omitempty"`
	Stale       bool    `json:"stale,omitempty"`
	RateLimited bool    `json:"rateLimited,omitempty"`
}

// NoData returns the sentinel result used when no provider yields a price.
func NoData() PriceResult {
	return PriceResult{Success: false}
}

// PairData summarizes the DexScreener pair selected for a token.
type PairData struct {
	ChainID      string       `json:"chainId"`
	DexID        string       `json:"dexId"`
	URL          string       `json:"url"`
	PairAddress  string       `json:"pairAddress"`
	BaseToken    PairToken    `json:"baseToken"`
	QuoteToken   PairToken    `json:"quoteToken"`
	PriceNative  string       `json:"priceNative"`
	PriceUsd     float64      `json:"priceUsd"`
	LiquidityUsd float64      `json:"liquidityUsd"`
	Fdv          float64      `json:"fdv"`
	MarketCap    float64      `json:"marketCap"`
	PriceChange  PeriodValues `json:"priceChange"`
	Volume       PeriodValues `json:"volume"`
	Txns24h      TxnSummary   `json:"txns24h"`
	CreatedAt    int64        `json:"pairCreatedAt,omitempty"` // ms
	ImageURL     string       `json:"imageUrl,omitempty"`
}

// PairToken is one side of a trading pair.
type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// PeriodValues holds a metric over DexScreener's rolling windows.
type PeriodValues struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// TxnSummary contains buy and sell counts.
type TxnSummary struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}
