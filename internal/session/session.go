package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn represents a single chat message
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation bound to a single model. Turns are kept
// oldest first and are only ever appended.
type Session struct {
	id        string
	model     string
	startTime time.Time

	mu    sync.RWMutex
	turns []Turn
}

// Snapshot is a point-in-time copy of a Session, safe to serialize.
type Snapshot struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	StartTime time.Time `json:"started_at"`
	Turns     []Turn    `json:"turns"`
}

func newSession(model string) *Session {
	return &Session{
		id:        uuid.NewString(),
		model:     model,
		startTime: time.Now(),
		turns:     []Turn{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Model returns the model identifier the session is bound to.
func (s *Session) Model() string { return s.model }

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time { return s.startTime }

// Append records a turn and returns it.
func (s *Session) Append(role Role, text string) Turn {
	turn := Turn{Role: role, Text: text, Timestamp: time.Now()}
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	return turn
}

// Turns returns a copy of the history.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return turns
}

// Len returns the number of turns recorded.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Snapshot returns a copy of the session suitable for rendering.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		Model:     s.model,
		StartTime: s.startTime,
		Turns:     s.Turns(),
	}
}
