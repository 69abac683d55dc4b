package chatbot

import "GeminiChat/internal/session"

// EventType names a conversation event.
type EventType string

const (
	EventSessionReset EventType = "session_reset"
	EventTurn         EventType = "turn"
	EventError        EventType = "error"
)

// Event is published whenever the conversation changes.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id"`
	Model     string        `json:"model"`
	Turn      *session.Turn `json:"turn,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Notifier receives events. Publish must not block.
type Notifier interface {
	Publish(Event)
}

func (cb *ChatBot) publish(ev Event) {
	if cb.notifier != nil {
		cb.notifier.Publish(ev)
	}
}
