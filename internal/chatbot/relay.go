package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"GeminiChat/internal/backend"
	"GeminiChat/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrNoSession is returned by Send without a session.
	ErrNoSession = errors.New("no active session")
)

// Send relays one user message through sess and returns the reply.
//
// The user turn is recorded before the remote call and stays recorded if
// the call fails; the assistant turn is recorded only on success. A failed
// exchange leaves the session usable for the next message.
func (cb *ChatBot) Send(ctx context.Context, sess *session.Session, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}
	if sess == nil {
		return "", ErrNoSession
	}

	cb.exchangeMu.Lock()
	defer cb.exchangeMu.Unlock()

	ctx, span := cb.tracer.Start(ctx, "chat.exchange",
		trace.WithAttributes(
			attribute.String("session.id", sess.ID()),
			attribute.String("gemini.model", sess.Model()),
		),
	)
	defer span.End()

	cb.recordTurn(ctx, sess, sess.Append(session.RoleUser, text))
	history := sess.Turns()

	reply, err := cb.generate(ctx, sess.Model(), history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cb.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		cb.logger.Error("failed to send message",
			"session_id", sess.ID(), "model", sess.Model(), "turns", len(history), "error", err)
		cb.publish(Event{Type: EventError, SessionID: sess.ID(), Model: sess.Model(), Error: err.Error()})
		return "", fmt.Errorf("failed to get reply from %s: %w", sess.Model(), err)
	}

	cb.recordTurn(ctx, sess, sess.Append(session.RoleAssistant, reply))
	cb.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	cb.logger.Info("exchange complete", "session_id", sess.ID(), "model", sess.Model(), "turns", sess.Len())
	return reply, nil
}

func (cb *ChatBot) generate(ctx context.Context, model string, history []session.Turn) (string, error) {
	resp, err := cb.backend.GenerateContent(ctx, model, toContents(history))
	if err != nil {
		return "", err
	}
	cb.recordUsage(ctx, resp.UsageMetadata)
	return resp.Text()
}

// toContents converts session history to the remote message format.
func toContents(turns []session.Turn) []backend.Content {
	contents := make([]backend.Content, len(turns))
	for i, t := range turns {
		role := backend.RoleUser
		if t.Role == session.RoleAssistant {
			role = backend.RoleModel
		}
		contents[i] = backend.Content{
			Role:  role,
			Parts: []backend.Part{{Text: t.Text}},
		}
	}
	return contents
}

func (cb *ChatBot) recordTurn(ctx context.Context, sess *session.Session, turn session.Turn) {
	if err := cb.store.AppendTurn(ctx, sess.ID(), turn); err != nil {
		cb.logger.Warn("failed to record turn", "session_id", sess.ID(), "error", err)
	}
	cb.publish(Event{Type: EventTurn, SessionID: sess.ID(), Model: sess.Model(), Turn: &turn})
}

// recordUsage records OpenTelemetry metrics from usage data
func (cb *ChatBot) recordUsage(ctx context.Context, usage *backend.UsageMetadata) {
	if usage == nil {
		return
	}
	cb.promptTokens.Add(ctx, usage.PromptTokenCount)
	cb.candidateTokens.Add(ctx, usage.CandidatesTokenCount)
	cb.totalTokens.Add(ctx, usage.TotalTokenCount)
}
