package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podcastr/internal/app/playback"
	"github.com/osa030/podcastr/internal/infra/metrics"
)

var (
	ErrUnknownSession = errors.New("unknown session")
)

// Config holds registry configuration.
type Config struct {
	IdleTTL     time.Duration // Sessions unused for longer are discarded
	EventBuffer int           // Capacity of each player's event channel
}

// Registry manages visitor sessions with thread-safe access.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	config     Config
	playerOpts []playback.Option
	now        func() time.Time
}

// NewRegistry creates a new session registry.
func NewRegistry(cfg Config, opts ...playback.Option) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}
	playerOpts := []playback.Option{playback.WithEventBuffer(cfg.EventBuffer)}
	return &Registry{
		sessions:   make(map[string]*Session),
		config:     cfg,
		playerOpts: append(playerOpts, opts...),
		now:        time.Now,
	}
}

// Get retrieves a session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Resolve returns the session with the given ID, creating a fresh one when
// the ID is empty or unknown. The returned flag reports whether a new
// session was created.
func (r *Registry) Resolve(id string) (*Session, bool) {
	now := r.now()

	if id != "" {
		r.mu.RLock()
		s, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			s.Touch(now)
			return s, false
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have created it meanwhile.
	if s, ok := r.sessions[id]; ok && id != "" {
		s.Touch(now)
		return s, false
	}

	newID := uuid.New().String()
	s := newSession(newID, now, r.playerOpts...)
	r.sessions[newID] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))

	zlog.Debug().Msgf("session: created id=%s", newID)
	return s, true
}

// Remove discards a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if ok {
		s.close()
	}
}

// Sweep discards sessions idle for longer than the configured TTL and
// returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.config.IdleTTL)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		zlog.Info().Msgf("session: discarded %d idle sessions", len(expired))
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
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

// Count returns the number of sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close discards all sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
