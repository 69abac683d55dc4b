package session

import (
	"errors"
	"sync"
)

// ErrNoModel is returned when Ensure is called without a model identifier.
var ErrNoModel = errors.New("model identifier must not be empty")

// Manager holds the single active Session, keyed by the selected model.
type Manager struct {
	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager with no active session.
func NewManager() *Manager {
	return &Manager{}
}

// Ensure returns the active session if it is bound to model. Otherwise it
// replaces it with a new empty session for model; the old history is
// dropped. The boolean reports whether a new session was created.
func (m *Manager) Ensure(model string) (*Session, bool, error) {
	if model == "" {
		return nil, false, ErrNoModel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.model == model {
		return m.current, false, nil
	}
	m.current = newSession(model)
	return m.current, true, nil
}

// Current returns the active session, or nil before the first Ensure.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Reset discards the active session and starts an empty one for the same
// model. It returns nil if no session was active.
func (m *Manager) Reset() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	m.current = newSession(m.current.model)
	return m.current
}
