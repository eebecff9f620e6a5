// internal/browser/override/session.go
package override

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nkratz/pagepilot/internal/browser/automation"
)

// SessionManager owns the single protocol session shared by all intercepted
// calls on one facade. The session is created on first use and kept for the
// facade's lifetime; if the underlying tab dies the facade is not repaired,
// a fresh facade must be constructed.
type SessionManager struct {
	page automation.Page

	group singleflight.Group
	mu    sync.RWMutex
	sess  automation.ProtocolSession
}

// NewSessionManager binds a manager to the native page that supplies
// protocol sessions.
func NewSessionManager(page automation.Page) *SessionManager {
	return &SessionManager{page: page}
}

// Get returns the memoized protocol session, creating it on first call.
// Concurrent first calls are collapsed into a single creation; a failed
// creation is not cached, so a later call may attempt again.
func (m *SessionManager) Get(ctx context.Context) (automation.ProtocolSession, error) {
	m.mu.RLock()
	sess := m.sess
	m.mu.RUnlock()
	if sess != nil {
		return sess, nil
	}

	v, err, _ := m.group.Do("session", func() (interface{}, error) {
		// Re-check under the group: a concurrent winner may have stored it.
		m.mu.RLock()
		existing := m.sess
		m.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		created, err := m.page.NewProtocolSession(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.sess = created
		m.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(automation.ProtocolSession), nil
}
