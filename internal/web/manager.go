package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/caffeineduck/loxpad/session"
	"github.com/google/uuid"
)

// BackendFactory creates the backend for a new playground session.
type BackendFactory func() (session.Backend, error)

// sessionManager owns the playground sessions of all browsers. Sessions
// idle for longer than ttl are closed by sweep.
type sessionManager struct {
	factory BackendFactory
	opts    []session.Option
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*serverSession
}

type serverSession struct {
	session  *session.Session
	lastUsed time.Time
}

func newSessionManager(factory BackendFactory, ttl time.Duration, logger *slog.Logger, opts ...session.Option) *sessionManager {
	return &sessionManager{
		factory:  factory,
		opts:     opts,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*serverSession),
	}
}

func (sm *sessionManager) create() (string, *session.Session, error) {
	backend, err := sm.factory()
	if err != nil {
		return "", nil, err
	}
	s := session.New(backend, sm.opts...)

	id := uuid.NewString()
	sm.mu.Lock()
	sm.sessions[id] = &serverSession{session: s, lastUsed: sm.now()}
	sm.mu.Unlock()

	sm.logger.Debug("session created", slog.String("session_id", id), slog.String("backend", backend.Name()))
	return id, s, nil
}

func (sm *sessionManager) get(id string) (*session.Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ss, ok := sm.sessions[id]
	if !ok {
		return nil, false
	}
	ss.lastUsed = sm.now()
	return ss.session, true
}

func (sm *sessionManager) close(id string) bool {
	sm.mu.Lock()
	ss, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if ok {
		ss.session.Close()
		sm.logger.Debug("session closed", slog.String("session_id", id))
	}
	return ok
}

// sweep closes sessions idle longer than ttl and returns how many.
func (sm *sessionManager) sweep() int {
	sm.mu.Lock()
	now := sm.now()
	var expired []*serverSession
	for id, ss := range sm.sessions {
		if now.Sub(ss.lastUsed) > sm.ttl {
			expired = append(expired, ss)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	// Close outside the lock: Close waits for a running call.
	for _, ss := range expired {
		ss.session.Close()
	}
	if len(expired) > 0 {
		sm.logger.Info("expired idle sessions", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// run sweeps periodically until ctx ends.
func (sm *sessionManager) run(ctx context.Context) error {
	interval := sm.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sm.sweep()
		}
	}
}

func (sm *sessionManager) closeAll() {
	sm.mu.Lock()
	all := sm.sessions
	sm.sessions = make(map[string]*serverSession)
	sm.mu.Unlock()

	for _, ss := range all {
		ss.session.Close()
	}
}

func (sm *sessionManager) len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
