// Package lifecycle tracks the gateway's drain state. Once shutdown begins,
// readiness flips, new WebSocket sessions are refused, and the sessions
// already running finish inside the grace period or are cancelled.
package lifecycle

import (
	"sync"
	"time"
)

// State is the shared drain flag. The zero value is a running, non-draining
// gateway.
type State struct {
	mu      sync.Mutex
	started time.Time
}

// BeginDrain marks the start of shutdown. The first call records the start
// time; later calls keep it.
func (s *State) BeginDrain() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		s.started = time.Now()
	}
}

// Draining reports whether shutdown has begun.
func (s *State) Draining() bool {
	_, draining := s.DrainingSince()
	return draining
}

// DrainingSince returns when shutdown began, if it has.
func (s *State) DrainingSince() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, !s.started.IsZero()
}
