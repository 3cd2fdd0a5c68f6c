package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/aiphone/internal/logger"
	"github.com/edgard/aiphone/internal/profile"
	"github.com/edgard/aiphone/internal/reply"
	"github.com/edgard/aiphone/internal/transcript"
)

// ProfileStore is the persisted configuration store.
type ProfileStore interface {
	Load(ctx context.Context) (*profile.Profile, bool)
	Save(ctx context.Context, p profile.Profile) error
}

// Replier fetches AI messages. Implementations never fail; they return
// fallback text instead.
type Replier interface {
	FetchWelcome(ctx context.Context, p profile.Profile) reply.Reply
	FetchReply(ctx context.Context, p profile.Profile, userText string) reply.Reply
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log.With("component", "session")
		}
	}
}

// WithClock replaces time.Now, for idle eviction tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the live sessions and the background reply fetches.
type Manager struct {
	store   ProfileStore
	replier Replier
	log     *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	bg     context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewManager creates a Manager. Call Close to stop pending fetches.
func NewManager(store ProfileStore, replier Replier, opts ...Option) *Manager {
	bg, stop := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		replier:  replier,
		log:      logger.Discard(),
		now:      time.Now,
		sessions: make(map[string]*Session),
		bg:       bg,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap creates a session for a page load. With a persisted profile the
// session starts Active and the welcome fetch is started; otherwise it
// awaits configuration.
func (m *Manager) Bootstrap(ctx context.Context) *Session {
	now := m.now()
	s := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		mgr:        m,
		transcript: transcript.New(),
		state:      StateAwaitingConfiguration,
		lastSeen:   now,
	}

	p, ok := m.store.Load(ctx)
	if ok {
		s.profile = *p
		s.state = StateActive
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.InfoContext(ctx, "Session bootstrapped", "session_id", s.ID, "state", s.state)
	if ok {
		s.welcome(*p)
	}
	return s
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions unused for longer than idle and returns how many
// were removed. Sessions with an attached page are kept.
func (m *Manager) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if !s.Attached() && s.LastSeen().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.InfoContext(ctx, "Evicted idle sessions", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Close cancels in-flight fetches and waits for them, bounded by ctx.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) goAsync(fn func(ctx context.Context)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.bg)
	}()
}
