package session

import (
	"context"
	"sync"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry keeps the live sessions in memory, keyed by the browser's cookie.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	limits   Limits
	idleTTL  time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry. Sessions idle for longer than idleTTL are
// dropped by Sweep; a zero idleTTL keeps them for the process lifetime.
func NewRegistry(limits Limits, idleTTL time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		limits:   limits,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (r *Registry) Limits() Limits {
	return r.limits
}

// GetOrCreate returns the session for id, creating a fresh one under a new ID
// when id is empty or unknown.
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s, false
	}

	s := New(uuid.NewString(), r.limits.Defaults(), r.now())
	r.sessions[s.ID] = s
	logger.Info("Session created", zap.String("session", s.ID))
	return s, true
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many went.
// Sessions awaiting a completion are never dropped.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, s := range r.sessions {
		if s.idleSince(now) > r.idleTTL {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.idleTTL <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Info("Expired idle sessions", zap.Int("count", n), zap.Int("remaining", r.Len()))
			}
		}
	}
}
