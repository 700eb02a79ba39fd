package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// DefaultIdleTTL closes sessions nobody used for an hour.
const DefaultIdleTTL = time.Hour

// Registry keeps open sessions in memory, keyed by uuid.
// Sessions idle for longer than the idle TTL are closed by Sweep.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idleTTL  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// WithIdleTTL configures how long an unused session stays open. 0 disables expiry.
func (r *Registry) WithIdleTTL(ttl time.Duration) *Registry {
	if ttl >= 0 {
		r.idleTTL = ttl
	}
	return r
}

// Create opens a session for userID. "" and "anonymous" open an anonymous one.
func (r *Registry) Create(_ context.Context, userID string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == domain.AnonymousUser {
		userID = ""
	}
	if len(userID) > 320 {
		return nil, fmt.Errorf("%w: user_id too long", domain.ErrInvalidInput)
	}

	s := newSession(uuid.NewString(), userID, r.now())

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logger.Info("Session opened",
		zap.String("session_id", s.id),
		zap.Bool("anonymous", s.Anonymous()),
	)
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}
	s.touch(r.now())
	return s, nil
}

// Delete closes a session (logout): its history and fingerprints are dropped.
func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}

	s.Lock()
	s.Reset()
	s.Unlock()

	r.logger.Info("Session closed", zap.String("session_id", id))
	return nil
}

// Sweep closes every session idle for longer than the idle TTL and reports how
// many it closed.
func (r *Registry) Sweep() int {
	if r.idleTTL == 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		// waits for an in-flight request on s
		s.Lock()
		s.Reset()
		s.Unlock()
		r.logger.Info("Session expired", zap.String("session_id", s.id), zap.Time("last_used", s.LastUsed()))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.idleTTL == 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
