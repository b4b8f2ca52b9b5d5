package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/domain"
	"token-companion/internal/observability"
)

// Default intervals.
const (
	DefaultPollInterval      = 5 * time.Second
	DefaultKeepaliveInterval = 30 * time.Second
)

// ErrSessionClosed is returned by Run on a session that was already closed.
var ErrSessionClosed = errors.New("session closed")

// Updater produces the current update for a token.
// Implemented by market.Feed.
type Updater interface {
	Update(ctx context.Context, address string) (*domain.TokenUpdate, error)
}

// Config holds session timing.
type Config struct {
	PollInterval      time.Duration
	KeepaliveInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = DefaultKeepaliveInterval
	}
	return c
}

// State is the lifecycle state of a session.
type State int32

// Session states.
const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the polling loop for one client connection.
//
// The poll loop and the keepalive loop run in separate goroutines so a hung
// upstream call never delays keepalives. Close cancels both and returns only
// after they have exited.
type Session struct {
	ID      string
	Address string

	feed Updater
	emit Emitter
	cfg  Config
	log  logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	startMu sync.Mutex
	wg      sync.WaitGroup
	state   atomic.Int32
	closed  atomic.Bool

	// lastSent is owned by the poll loop.
	lastSent *domain.TokenUpdate
}

func newSession(id, address string, feed Updater, emit Emitter, cfg Config, log logrus.FieldLogger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:      id,
		Address: address,
		feed:    feed,
		emit:    emit,
		cfg:     cfg.withDefaults(),
		log:     log.WithFields(logrus.Fields{"session": id, "address": address}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run sends the connected event, starts the poll and keepalive loops, and
// blocks until ctx is done, the transport fails, or Close is called.
func (s *Session) Run(ctx context.Context) error {
	s.startMu.Lock()
	if s.closed.Load() {
		s.startMu.Unlock()
		return ErrSessionClosed
	}

	if err := s.send(Event{Type: EventConnected, Token: s.Address}); err != nil {
		s.startMu.Unlock()
		s.Close()
		return err
	}

	s.state.Store(int32(StateActive))
	s.wg.Add(2)
	go s.pollLoop()
	go s.keepaliveLoop()
	s.startMu.Unlock()

	s.log.Debug("session active")

	select {
	case <-ctx.Done():
	case <-s.ctx.Done():
	}
	s.Close()
	return nil
}

// Close stops both loops and waits for them. Safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.state.Store(int32(StateClosed))
	s.cancel()

	// Holding startMu orders this wait after a concurrent Run's wg.Add.
	s.startMu.Lock()
	s.wg.Wait()
	s.startMu.Unlock()
	s.log.Debug("session closed")
}

func (s *Session) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.poll()

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) poll() {
	u, err := s.feed.Update(s.ctx, s.Address)
	if s.ctx.Err() != nil {
		return
	}

	if err != nil {
		s.log.WithError(err).Warn("poll failed")
		s.sendOrStop(Event{Type: EventError, Token: s.Address, Message: err.Error()})
		return
	}

	u = carrySticky(u, s.lastSent)
	if !u.Changed(s.lastSent) {
		return
	}

	if s.sendOrStop(Event{Type: EventUpdate, Token: s.Address, Data: u}) {
		s.lastSent = u
	}
}

// carrySticky keeps the previous supply and decimals when a provider did
// not report them. Market cap follows the carried supply.
func carrySticky(u, prev *domain.TokenUpdate) *domain.TokenUpdate {
	if prev == nil {
		return u
	}
	out := *u
	if out.Supply == 0 && prev.Supply > 0 {
		out.Supply = prev.Supply
		if out.Price > 0 {
			out.MarketCap = out.Price * out.Supply
		}
	}
	if out.Decimals == 0 && prev.Decimals > 0 {
		out.Decimals = prev.Decimals
	}
	return &out
}

func (s *Session) keepaliveLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sendOrStop(Event{Type: EventKeepalive, Token: s.Address})
		}
	}
}

// sendOrStop emits ev and cancels the session when the transport is gone.
func (s *Session) sendOrStop(ev Event) bool {
	if s.ctx.Err() != nil {
		return false
	}
	if err := s.send(ev); err != nil {
		s.log.WithError(err).Info("client transport failed, stopping session")
		s.cancel()
		return false
	}
	return true
}

func (s *Session) send(ev Event) error {
	if err := s.emit.Emit(ev); err != nil {
		return err
	}
	observability.RecordStreamEvent(string(ev.Type))
	return nil
}
