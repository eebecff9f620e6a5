package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/nkratz/pagepilot/internal/browser/automation"
	"github.com/nkratz/pagepilot/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubPage satisfies automation.Page without a browser. The manager never
// drives page operations itself, so the zero embedded interface is enough.
type stubPage struct {
	automation.Page
}

// countingFactory builds stub pages and tracks outstanding cleanups.
type countingFactory struct {
	mu       sync.Mutex
	created  int
	cleaned  int
	err      error
	blockFor time.Duration
}

func (f *countingFactory) factory() PageFactory {
	return func(ctx context.Context) (automation.Page, func(), error) {
		f.mu.Lock()
		err := f.err
		delay := f.blockFor
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, nil, err
		}

		f.mu.Lock()
		f.created++
		f.mu.Unlock()

		return &stubPage{}, func() {
			f.mu.Lock()
			f.cleaned++
			f.mu.Unlock()
		}, nil
	}
}

func (f *countingFactory) counts() (created, cleaned int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.cleaned
}

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		MaxSessions: 2,
		IdleTimeout: time.Minute,
		// No sweeper by default; sweeper tests opt in.
		SweepInterval: 0,
	}
}

func TestManagerStartAndGet(t *testing.T) {
	f := &countingFactory{}
	m := NewManager(testSessionConfig(), f.factory(), zap.NewNop())
	defer m.CloseAll()

	sess, err := m.Start(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess.Page)
	assert.NotEmpty(t, sess.ID)

	got, err := m.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, m.Len())
}

func TestManagerGetUnknownSession(t *testing.T) {
	m := NewManager(testSessionConfig(), (&countingFactory{}).factory(), zap.NewNop())
	defer m.CloseAll()

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerEnforcesSessionCap(t *testing.T) {
	f := &countingFactory{}
	m := NewManager(testSessionConfig(), f.factory(), zap.NewNop())
	defer m.CloseAll()

	_, err := m.Start(context.Background())
	require.NoError(t, err)
	_, err = m.Start(context.Background())
	require.NoError(t, err)

	_, err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, m.Len())
}

func TestManagerEndReleasesTheSlot(t *testing.T) {
	f := &countingFactory{}
	m := NewManager(testSessionConfig(), f.factory(), zap.NewNop())
	defer m.CloseAll()

	sess, err := m.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.End(sess.ID))
	_, cleaned := f.counts()
	assert.Equal(t, 1, cleaned, "ending a session must run its cleanup")

	_, err = m.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The slot is free again.
	_, err = m.Start(context.Background())
	assert.NoError(t, err)
}

func TestManagerEndUnknownSession(t *testing.T) {
	m := NewManager(testSessionConfig(), (&countingFactory{}).factory(), zap.NewNop())
	defer m.CloseAll()

	assert.ErrorIs(t, m.End("nope"), ErrSessionNotFound)
}

func TestManagerFactoryErrorIsNotRegistered(t *testing.T) {
	wantErr := errors.New("chrome missing")
	f := &countingFactory{err: wantErr}
	m := NewManager(testSessionConfig(), f.factory(), zap.NewNop())
	defer m.CloseAll()

	_, err := m.Start(context.Background())
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, m.Len())
}

func TestManagerCloseAll(t *testing.T) {
	f := &countingFactory{}
	m := NewManager(testSessionConfig(), f.factory(), zap.NewNop())

	_, err := m.Start(context.Background())
	require.NoError(t, err)
	_, err = m.Start(context.Background())
	require.NoError(t, err)

	m.CloseAll()

	created, cleaned := f.counts()
	assert.Equal(t, created, cleaned, "every created session must be cleaned up")
	assert.Equal(t, 0, m.Len())

	_, err = m.Start(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)

	// Idempotent.
	m.CloseAll()
}

func TestManagerConcurrentStartRespectsCap(t *testing.T) {
	f := &countingFactory{blockFor: 10 * time.Millisecond}
	cfg := testSessionConfig()
	cfg.MaxSessions = 4
	m := NewManager(cfg, f.factory(), zap.NewNop())
	defer m.CloseAll()

	const attempts = 16
	var started atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Start(context.Background()); err == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(started.Load()), cfg.MaxSessions)
	assert.Equal(t, int(started.Load()), m.Len())

	// Sessions that lost the re-check race must not leak their browsers.
	created, cleaned := f.counts()
	assert.Equal(t, created-m.Len(), cleaned)
}

func TestManagerSweepsIdleSessions(t *testing.T) {
	f := &countingFactory{}
	cfg := config.SessionConfig{
		MaxSessions:   2,
		IdleTimeout:   30 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	}
	m := NewManager(cfg, f.factory(), zap.NewNop())
	defer m.CloseAll()

	sess, err := m.Start(context.Background())
	require.NoError(t, err)

	// Observe via Len: polling Get would refresh the idle timer and keep the
	// session alive forever.
	require.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 5*time.Millisecond, "idle session should be reclaimed")

	_, err = m.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, cleaned := f.counts()
	assert.Equal(t, 1, cleaned)
}

func TestManagerTouchDefersSweep(t *testing.T) {
	f := &countingFactory{}
	cfg := config.SessionConfig{
		MaxSessions:   2,
		IdleTimeout:   60 * time.Millisecond,
		SweepInterval: 10 * time.Millisecond,
	}
	m := NewManager(cfg, f.factory(), zap.NewNop())
	defer m.CloseAll()

	sess, err := m.Start(context.Background())
	require.NoError(t, err)

	// Keep the session warm past several sweep cycles.
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		_, err := m.Get(sess.ID)
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, m.Len())
}
