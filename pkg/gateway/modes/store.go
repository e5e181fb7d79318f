package modes

import (
	"fmt"
	"sync"
)

// Store tracks the active mode for a single session. Each connection
// gets its own store so concurrent sessions switch independently.
// Generated modes are remembered per store and can be switched back to
// by ID, but never leak into the shared catalog.
type Store struct {
	catalog *Catalog

	mu        sync.RWMutex
	current   *Mode
	generated map[string]*Mode
}

// NewStore returns a store pointing at the catalog mode defaultID.
func NewStore(catalog *Catalog, defaultID string) (*Store, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	m, ok := catalog.Get(defaultID)
	if !ok {
		return nil, fmt.Errorf("unknown default mode %q", defaultID)
	}
	return &Store{
		catalog:   catalog,
		current:   m,
		generated: make(map[string]*Mode),
	}, nil
}

// Current returns the active mode.
func (s *Store) Current() *Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SwitchTo activates the catalog or previously generated mode with the
// given ID.
func (s *Store) SwitchTo(id string) (*Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.generated[id]; ok {
		s.current = m
		return m, nil
	}
	if m, ok := s.catalog.Get(id); ok {
		s.current = m
		return m, nil
	}
	return nil, fmt.Errorf("unknown mode %q", id)
}

// Apply activates a freshly generated mode and remembers it for later
// switches within this session.
func (s *Store) Apply(m *Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated[m.ID] = m
	s.current = m
}
