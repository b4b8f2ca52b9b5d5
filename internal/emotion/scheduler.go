package emotion

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/observability"
)

// MinInterval is the floor between two announced messages.
const MinInterval = 5 * time.Second

// DefaultGenerateTimeout bounds one message generation call.
const DefaultGenerateTimeout = 10 * time.Second

// Request describes the market context for a message.
type Request struct {
	Emotion     Emotion `json:"emotion"`
	Change24h   float64 `json:"change24h"`
	Price       float64 `json:"price"`
	TokenSymbol string  `json:"tokenSymbol"`
}

// Generator produces a chat message for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Announcement is a message delivered to the UI.
type Announcement struct {
	Emotion  Emotion
	Message  string
	Fallback bool // canned line used
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Scheduler debounces emotion changes into at most one announcement per
// MinInterval.
//
// A change to an emotion other than the last announced one is announced
// immediately when MinInterval has passed and no timer is pending. Otherwise
// it becomes the pending emotion and a timer is armed for the rest of the
// interval. When the timer fires the then-pending emotion is announced
// unless it equals the last announced one.
type Scheduler struct {
	clock    Clock
	gen      Generator
	announce func(Announcement)
	lines    map[Emotion][]string
	pick     func(n int) int
	timeout  time.Duration
	log      logrus.FieldLogger

	mu            sync.Mutex
	lastAnnounced Emotion
	lastAt        time.Time
	pending       *Request
	timer         Timer
	stopped       bool

	inflight sync.WaitGroup
}

// SchedulerOption configures Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the real clock.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLines replaces the canned line pool.
func WithLines(lines map[Emotion][]string) SchedulerOption {
	return func(s *Scheduler) {
		s.lines = lines
	}
}

// WithPicker replaces the uniform random line picker.
func WithPicker(pick func(n int) int) SchedulerOption {
	return func(s *Scheduler) {
		s.pick = pick
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// NewScheduler creates a scheduler. gen may be nil, in which case canned
// lines are always used. announce is called once per announcement from a
// separate goroutine.
func NewScheduler(gen Generator, announce func(Announcement), opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:    realClock{},
		gen:      gen,
		announce: announce,
		lines:    DefaultLines,
		pick:     rand.IntN,
		timeout:  DefaultGenerateTimeout,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "emotion-scheduler")
	return s
}

// Observe records the current desired emotion and market context.
func (s *Scheduler) Observe(req Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if req.Emotion == s.lastAnnounced {
		if s.pending != nil {
			s.pending = &req
		}
		return
	}

	now := s.clock.Now()
	elapsed := now.Sub(s.lastAt)
	if s.timer == nil && (s.lastAt.IsZero() || elapsed >= MinInterval) {
		s.announceLocked(req, now)
		return
	}

	s.pending = &req
	if s.timer == nil {
		s.timer = s.clock.AfterFunc(MinInterval-elapsed, s.fire)
	}
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer = nil
	p := s.pending
	s.pending = nil
	if s.stopped || p == nil || p.Emotion == s.lastAnnounced {
		return
	}
	s.announceLocked(*p, s.clock.Now())
}

func (s *Scheduler) announceLocked(req Request, now time.Time) {
	s.lastAnnounced = req.Emotion
	s.lastAt = now
	s.pending = nil

	s.inflight.Add(1)
	go s.deliver(req)
}

// deliver generates the message and falls back to a canned line on any error.
func (s *Scheduler) deliver(req Request) {
	defer s.inflight.Done()

	a := Announcement{Emotion: req.Emotion}
	if s.gen != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		msg, err := s.gen.Generate(ctx, req)
		cancel()
		if err == nil && msg != "" {
			a.Message = msg
			observability.RecordMessageGeneration("generated")
		} else {
			s.log.WithError(err).WithField("emotion", req.Emotion).Debug("message generation failed, using canned line")
		}
	}

	if a.Message == "" {
		a.Message = s.cannedLine(req.Emotion)
		a.Fallback = true
		observability.RecordMessageGeneration("fallback")
	}

	if s.announce != nil {
		s.announce(a)
	}
}

func (s *Scheduler) cannedLine(e Emotion) string {
	lines := s.lines[e]
	if len(lines) == 0 {
		lines = DefaultLines[e]
	}
	if len(lines) == 0 {
		return ""
	}
	return lines[s.pick(len(lines))]
}

// LastAnnounced returns the last announced emotion, empty before the first.
func (s *Scheduler) LastAnnounced() Emotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnnounced
}

// Stop cancels any pending timer and waits for in-flight announcements.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()

	s.inflight.Wait()
}
