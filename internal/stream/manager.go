package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"token-companion/internal/observability"
)

// ErrShuttingDown is returned by Open after CloseAll.
var ErrShuttingDown = errors.New("stream manager shutting down")

// Manager tracks open sessions. Sessions share no state with each other.
type Manager struct {
	feed Updater
	cfg  Config
	log  logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a session manager.
func NewManager(feed Updater, cfg Config, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		feed:     feed,
		cfg:      cfg.withDefaults(),
		log:      log.WithField("component", "stream"),
		sessions: make(map[string]*Session),
	}
}

// Open registers a new session for address.
func (m *Manager) Open(address string, emit Emitter) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShuttingDown
	}

	s := newSession(uuid.NewString(), address, m.feed, emit, m.cfg, m.log)
	m.sessions[s.ID] = s
	observability.SessionOpened()
	m.log.WithFields(logrus.Fields{"session": s.ID, "address": address}).Info("session opened")
	return s, nil
}

// Remove closes and forgets a session. Unknown ids are ignored.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	observability.SessionClosed()
	m.log.WithField("session", id).Info("session removed")
}

// Serve opens a session, runs it until ctx is done or the transport fails,
// and removes it.
func (m *Manager) Serve(ctx context.Context, address string, emit Emitter) error {
	s, err := m.Open(address, emit)
	if err != nil {
		return err
	}
	defer m.Remove(s.ID)
	return s.Run(ctx)
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session and rejects new ones.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		observability.SessionClosed()
	}
	m.log.WithField("count", len(sessions)).Info("all sessions closed")
}
