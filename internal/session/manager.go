// Package session owns the registry of live browser sessions.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/internal/browser/automation"
	"github.com/nkratz/pagepilot/internal/browser/override"
	"github.com/nkratz/pagepilot/internal/config"
)

var (
	// ErrTooManySessions is returned by Start when the registry is at capacity.
	ErrTooManySessions = errors.New("session limit reached")
	// ErrSessionNotFound is returned for lookups of unknown or ended sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrManagerClosed is returned once CloseAll has run.
	ErrManagerClosed = errors.New("session manager is closed")
)

// Session is one live browser session. Page is the protocol-override facade,
// so every handler interacting with it gets the overridden goto/click paths.
type Session struct {
	ID   string
	Page automation.Page

	cleanup func()

	mu       sync.Mutex
	lastUsed time.Time
}

// Touch marks the session as recently used, deferring idle reclamation.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// Manager tracks live sessions, enforces the session cap, and reclaims
// sessions that sit idle past the configured timeout.
type Manager struct {
	cfg     config.SessionConfig
	factory PageFactory
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager creates the registry and starts the idle sweeper.
func NewManager(cfg config.SessionConfig, factory PageFactory, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		factory:  factory,
		logger:   logger.Named("session"),
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}

	if cfg.SweepInterval > 0 && cfg.IdleTimeout > 0 {
		m.wg.Add(1)
		go m.sweep()
	}
	return m
}

// Start launches a new browser session and registers it.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.mu.Unlock()

	// Launching a browser is slow; do it outside the lock.
	page, cleanup, err := m.factory(ctx)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:       uuid.NewString(),
		Page:     override.NewPageFacade(page, m.logger),
		cleanup:  cleanup,
		lastUsed: time.Now(),
	}

	m.mu.Lock()
	// Re-check under the lock: another Start may have raced us to the cap,
	// or CloseAll may have run while the browser was launching.
	if m.closed {
		m.mu.Unlock()
		cleanup()
		return nil, ErrManagerClosed
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		cleanup()
		return nil, ErrTooManySessions
	}
	m.sessions[sess.ID] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.Int("active", count))
	return sess, nil
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.Touch()
	return sess, nil
}

// End removes a session from the registry and tears its browser down.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.cleanup()
	m.logger.Info("session ended", zap.String("session_id", id))
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll stops the sweeper and tears down every live session. The manager
// rejects new sessions afterwards.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	remaining := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		remaining = append(remaining, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	close(m.stop)
	m.wg.Wait()

	for _, sess := range remaining {
		sess.cleanup()
	}
	if len(remaining) > 0 {
		m.logger.Info("all sessions closed", zap.Int("count", len(remaining)))
	}
}

func (m *Manager) sweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			for _, id := range m.expired(now) {
				m.logger.Info("reclaiming idle session", zap.String("session_id", id))
				if err := m.End(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
					m.logger.Warn("failed to reclaim session",
						zap.String("session_id", id), zap.Error(err))
				}
			}
		}
	}
}

func (m *Manager) expired(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, sess := range m.sessions {
		if sess.idleSince(now) > m.cfg.IdleTimeout {
			ids = append(ids, id)
		}
	}
	return ids
}
