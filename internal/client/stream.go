// Package client is the consumer side of the token stream: a reconnecting
// stream client, a debouncing state reducer and a rolling price history.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"token-companion/internal/stream"
)

// ErrRetriesExhausted is returned by Run after MaxAttempts failed reconnects.
var ErrRetriesExhausted = errors.New("stream reconnect attempts exhausted")

// Handler receives delivered events.
type Handler func(stream.Event)

// Stream keeps one connection to the token stream alive.
//
// Reconnects are sequential. A connection that delivered at least one update
// event resets the attempt counter; connected and keepalive frames alone do
// not, so a server that accepts and then drops keeps backing off. Once Close is called no further reconnects are
// made and no further events are delivered, even from an in-flight read.
type Stream struct {
	source Source
	token  string
	sleep  Sleeper
	log    logrus.FieldLogger

	closed atomic.Bool
	mu     sync.Mutex
	cancel context.CancelFunc
}

// StreamOption configures Stream.
type StreamOption func(*Stream)

// WithSleeper replaces the real-timer sleeper.
func WithSleeper(s Sleeper) StreamOption {
	return func(st *Stream) {
		st.sleep = s
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) StreamOption {
	return func(st *Stream) {
		st.log = log
	}
}

// NewStream creates a stream client for token.
func NewStream(source Source, token string, opts ...StreamOption) *Stream {
	s := &Stream{
		source: source,
		token:  token,
		sleep:  SleepContext,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "stream-client", "token": token})
	return s
}

// Run connects and delivers events to h until ctx is done, Close is called,
// or the retry budget is exhausted. Returns nil after Close.
func (s *Stream) Run(ctx context.Context, h Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	attempt := 0
	for {
		if s.closed.Load() {
			return nil
		}

		updated, err := s.consume(ctx, h)

		if s.closed.Load() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if updated {
			attempt = 0
		}
		if attempt >= MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
		}

		delay := Backoff(attempt)
		attempt++
		s.log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("stream disconnected, reconnecting")

		if err := s.sleep(ctx, delay); err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}
	}
}

// consume reads one connection until it fails and reports whether it
// carried at least one update.
func (s *Stream) consume(ctx context.Context, h Handler) (bool, error) {
	r, err := s.source.Open(ctx, s.token)
	if err != nil {
		return false, err
	}
	defer r.Close()

	updated := false
	for {
		ev, err := r.Next()
		if err != nil {
			return updated, err
		}
		if s.closed.Load() {
			return updated, nil
		}
		if ev.Type == stream.EventUpdate {
			updated = true
		}
		h(ev)
	}
}

// Close stops reconnecting and suppresses further delivery. Safe to call
// more than once.
func (s *Stream) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
