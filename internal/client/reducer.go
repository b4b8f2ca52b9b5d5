package client

import (
	"sync"
	"time"

	"token-companion/internal/domain"
)

// DefaultDebounce is the minimum spacing between accepted updates.
const DefaultDebounce = 500 * time.Millisecond

// Reducer merges stream updates into a TokenState.
//
// Updates arriving less than the debounce window after the last accepted one
// are dropped, never queued. A zero price, supply or decimals and empty
// strings do not clobber known values. Change24h and Volume24h are always
// taken as sent. MarketCap is always recomputed from price and supply.
type Reducer struct {
	window time.Duration
	now    func() time.Time

	mu           sync.Mutex
	address      string
	state        *domain.TokenState
	lastAccepted time.Time
}

// NewReducer creates a reducer for address. A window <= 0 uses
// DefaultDebounce; a nil now uses time.Now.
func NewReducer(address string, window time.Duration, now func() time.Time) *Reducer {
	if window <= 0 {
		window = DefaultDebounce
	}
	if now == nil {
		now = time.Now
	}
	return &Reducer{window: window, now: now, address: address}
}

// Apply merges u and reports whether it was accepted.
func (r *Reducer) Apply(u *domain.TokenUpdate) (domain.TokenState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u == nil {
		return r.current(), false
	}

	now := r.now()
	if !r.lastAccepted.IsZero() && now.Sub(r.lastAccepted) < r.window {
		return r.current(), false
	}
	r.lastAccepted = now

	if r.state == nil {
		r.state = &domain.TokenState{Address: r.address}
	}
	merge(r.state, u)

	r.state.LastUpdated = u.Timestamp
	if r.state.LastUpdated == 0 {
		r.state.LastUpdated = now.UnixMilli()
	}
	r.state.RecomputeMarketCap()

	return *r.state, true
}

func merge(s *domain.TokenState, u *domain.TokenUpdate) {
	if u.Price > 0 {
		s.Price = u.Price
	}
	if u.Supply > 0 {
		s.Supply = u.Supply
	}
	if u.Decimals > 0 {
		s.Decimals = u.Decimals
	}
	// Always on the wire, so 0 is a real reading.
	s.Change24h = u.Change24h
	s.Volume24h = u.Volume24h
	if u.Name != "" {
		s.Name = u.Name
	}
	if u.Symbol != "" {
		s.Symbol = u.Symbol
	}
	if u.LogoURI != "" {
		s.LogoURI = u.LogoURI
	}
}

// State returns the current state, false before the first accepted update.
func (r *Reducer) State() (domain.TokenState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current(), r.state != nil
}

func (r *Reducer) current() domain.TokenState {
	if r.state == nil {
		return domain.TokenState{Address: r.address}
	}
	return *r.state
}

// Reset discards state and debounce timing and tracks a new address.
func (r *Reducer) Reset(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.address = address
	r.state = nil
	r.lastAccepted = time.Time{}
}
