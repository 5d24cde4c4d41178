package viewer

import (
	"context"
	"sync"
	"time"

	"meditation/internal/model"
	"meditation/internal/timer"

	"github.com/rs/zerolog"
)

// Session is the server side of one viewer cookie.
type Session struct {
	mu       sync.Mutex
	state    State
	timer    *timer.Countdown
	lastSeen time.Time
}

// Do runs fn with the session's state and timer under its lock.
func (s *Session) Do(fn func(st *State, t *timer.Countdown)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state, s.timer)
}

// Registry holds viewer sessions and drops the ones idle longer than ttl.
type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it when absent or expired.
func (r *Registry) Get(id string, now time.Time) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || r.expired(s, now) {
		s = &Session{timer: timer.New()}
		r.sessions[id] = s
	}
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
	return s
}

// Sweep removes idle sessions and returns how many were dropped.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Reconcile pushes a fresh program list into every session.
func (r *Registry) Reconcile(programs []model.Program) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.state.Reconcile(programs)
		s.mu.Unlock()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	if r.ttl <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > r.ttl
}

// RunSweeper drops idle sessions every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := r.Sweep(now); n > 0 {
				logger.Debug().Int("sessions", n).Msg("Dropped idle viewer sessions")
			}
		}
	}
}
