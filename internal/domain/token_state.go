package domain

// TokenState is the accumulated view of one token as rendered by a client.
// Created on the first successful aggregation, mutated in place by every
// accepted update and discarded when the tracked address changes.
type TokenState struct {
	Address     string  `json:"address"`
	Supply      float64 `json:"supply"`
	Decimals    int     `json:"decimals"`
	Price       float64 `json:"price"`
	MarketCap   float64 `json:"marketCap"`
	Change24h   float64 `json:"change24h"`
	Volume24h   float64 `json:"volume24h"`
	Name        string  `json:"name,omitempty"`
	Symbol      string  `json:"symbol,omitempty"`
	LogoURI     string  `json:"logoURI,omitempty"`
	LastUpdated int64   `json:"lastUpdated"` // ms
}

// RecomputeMarketCap sets MarketCap = Price * Supply, or 0 when either is 0.
func (s *TokenState) RecomputeMarketCap() {
	if s.Price > 0 && s.Supply > 0 {
		s.MarketCap = s.Price * s.Supply
		return
	}
	s.MarketCap = 0
}

// TokenUpdate is the payload of a stream "update" event.
type TokenUpdate struct {
	Price     float64 `json:"price"`
	Supply    float64 `json:"supply"`
	Decimals  int     `json:"decimals"`
	Change24h float64 `json:"change24h"`
	Volume24h float64 `json:"volume24h"`
	MarketCap float64 `json:"marketCap"`
	Symbol    string  `json:"symbol,omitempty"`
	Name      string  `json:"name,omitempty"`
	LogoURI   string  `json:"logoURI,omitempty"`
	Source    Source  `json:"source,omitempty"`
	Timestamp int64   `json:"timestamp"` // ms
}

// Changed reports whether u differs from prev on the fields that drive a push.
// A nil prev always counts as changed.
func (u *TokenUpdate) Changed(prev *TokenUpdate) bool {
	if prev == nil {
		return true
	}
	return u.Price != prev.Price || u.Supply != prev.Supply || u.Decimals != prev.Decimals
}

// ChartSnapshot is the /chart response body.
type ChartSnapshot struct {
	TokenState
	Source      Source    `json:"source"`
	PairData    *PairData `json:"pairData"`
	Stale       bool      `json:"stale,omitempty"`
	RateLimited bool      `json:"rateLimited,omitempty"`
}
