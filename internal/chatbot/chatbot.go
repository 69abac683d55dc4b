package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"GeminiChat/internal/backend"
	"GeminiChat/internal/catalog"
	"GeminiChat/internal/config"
	"GeminiChat/internal/session"
	"GeminiChat/internal/store"
	"GeminiChat/internal/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Backend is the remote generative-language API.
type Backend interface {
	ListModels(ctx context.Context) ([]backend.Model, error)
	GenerateContent(ctx context.Context, model string, contents []backend.Content) (*backend.GenerateContentResponse, error)
}

// ChatBot represents the main application
type ChatBot struct {
	config   config.Config
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	backend  Backend
	catalog  *catalog.Catalog
	sessions *session.Manager
	store    *store.Store
	notifier Notifier

	exchanges       metric.Int64Counter
	promptTokens    metric.Int64Counter
	candidateTokens metric.Int64Counter
	totalTokens     metric.Int64Counter

	// exchangeMu allows one remote exchange in flight at a time.
	exchangeMu sync.Mutex

	closers []func()
}

// Option overrides a collaborator that NewChatBot would otherwise build.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	tracer         trace.Tracer
	meter          metric.Meter
	backendFactory func(apiKey string) Backend
	notifier       Notifier
}

// WithLogger uses logger instead of the rotating file logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTelemetry uses the given tracer and meter instead of the file exporters.
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(o *options) {
		o.tracer = tracer
		o.meter = meter
	}
}

// WithBackendFactory builds the remote client from the loaded API key.
func WithBackendFactory(f func(apiKey string) Backend) Option {
	return func(o *options) { o.backendFactory = f }
}

// WithNotifier receives session and turn events.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// NewChatBot loads the credential and the model catalog and opens the
// transcript store. Any error it returns is fatal: the credential is
// missing, the catalog could not be loaded or is empty, or local
// infrastructure failed to start.
func NewChatBot(ctx context.Context, cfg config.Config, opts ...Option) (_ *ChatBot, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cb := &ChatBot{
		config:   cfg,
		sessions: session.NewManager(),
		notifier: o.notifier,
	}
	defer func() {
		if err != nil {
			cb.Close()
		}
	}()

	cb.logger = o.logger
	if cb.logger == nil {
		logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		cb.logger = logger
		cb.closers = append(cb.closers, func() { logFile.Close() })
	}

	cb.tracer, cb.meter = o.tracer, o.meter
	if cb.tracer == nil || cb.meter == nil {
		providers, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		cb.tracer, cb.meter = providers.Tracer, providers.Meter
		cb.closers = append(cb.closers, providers.Shutdown)
	}
	if err := cb.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if cfg.Debug {
		cb.logger.Info("Debug mode enabled")
	}

	apiKey, err := config.LoadAPIKey(cfg.EnvFile, cfg.APIKeyEnv)
	if err != nil {
		cb.logger.Error("credential unavailable", "variable", cfg.APIKeyEnv, "error", err)
		return nil, err
	}

	if o.backendFactory != nil {
		cb.backend = o.backendFactory(apiKey)
	} else {
		cb.backend = backend.NewClient(cfg.BaseURL, apiKey,
			backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout.Duration}),
			backend.WithLogger(cb.logger),
			backend.WithTracer(cb.tracer),
			backend.WithMeter(cb.meter),
		)
	}

	cb.catalog = catalog.New(cb.backend, cb.logger)
	models, err := cb.catalog.Models(ctx)
	if err != nil {
		cb.logger.Error("model catalog unavailable", "error", err)
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}

	cb.store, err = store.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	cb.closers = append(cb.closers, func() {
		if err := cb.store.Close(); err != nil {
			cb.logger.Error("failed to close database", "error", err)
		}
	})

	cb.logger.Info("chatbot ready", "models", len(models), "default_model", cb.defaultModel(models))
	return cb, nil
}

func (cb *ChatBot) initInstruments() error {
	var err error
	if cb.exchanges, err = cb.meter.Int64Counter("chat.exchanges",
		metric.WithDescription("Chat exchanges by outcome")); err != nil {
		return err
	}
	if cb.promptTokens, err = cb.meter.Int64Counter("gemini.usage.prompt_tokens",
		metric.WithDescription("Prompt tokens reported by Gemini")); err != nil {
		return err
	}
	if cb.candidateTokens, err = cb.meter.Int64Counter("gemini.usage.candidates_tokens",
		metric.WithDescription("Candidate tokens reported by Gemini")); err != nil {
		return err
	}
	if cb.totalTokens, err = cb.meter.Int64Counter("gemini.usage.total_tokens",
		metric.WithDescription("Total tokens reported by Gemini")); err != nil {
		return err
	}
	return nil
}

// Close releases the store and flushes telemetry and logs.
func (cb *ChatBot) Close() error {
	for i := len(cb.closers) - 1; i >= 0; i-- {
		cb.closers[i]()
	}
	cb.closers = nil
	return nil
}

// Logger returns the application logger.
func (cb *ChatBot) Logger() *slog.Logger {
	return cb.logger
}

// Models returns the chat-capable models in remote order.
func (cb *ChatBot) Models(ctx context.Context) ([]backend.Model, error) {
	return cb.catalog.Models(ctx)
}

// DefaultModel is the initial selection: the configured default model if
// the catalog has it, otherwise the first catalog entry.
func (cb *ChatBot) DefaultModel(ctx context.Context) (string, error) {
	models, err := cb.catalog.Models(ctx)
	if err != nil {
		return "", err
	}
	return cb.defaultModel(models), nil
}

func (cb *ChatBot) defaultModel(models []backend.Model) string {
	if len(models) == 0 {
		return ""
	}
	if cb.config.DefaultModel != "" {
		for _, m := range models {
			if m.Name == cb.config.DefaultModel || m.Name == backend.ModelPath(cb.config.DefaultModel) {
				return m.Name
			}
		}
		cb.logger.Warn("configured default model not available", "model", cb.config.DefaultModel)
	}
	return models[0].Name
}

// EnsureSession returns the active session if it is bound to model and
// otherwise starts a fresh one, discarding the previous history.
func (cb *ChatBot) EnsureSession(ctx context.Context, model string) (*session.Session, error) {
	if !cb.catalog.Contains(ctx, model) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownModel, model)
	}

	sess, created, err := cb.sessions.Ensure(model)
	if err != nil {
		return nil, err
	}
	if created {
		cb.sessionStarted(ctx, sess)
	}
	return sess, nil
}

// CurrentSession returns the active session, or nil if none was ensured yet.
func (cb *ChatBot) CurrentSession() *session.Session {
	return cb.sessions.Current()
}

// ResetSession starts an empty session on the current model.
func (cb *ChatBot) ResetSession(ctx context.Context) (*session.Session, error) {
	sess := cb.sessions.Reset()
	if sess == nil {
		return nil, ErrNoSession
	}
	cb.sessionStarted(ctx, sess)
	return sess, nil
}

func (cb *ChatBot) sessionStarted(ctx context.Context, sess *session.Session) {
	cb.logger.Info("created new session", "session_id", sess.ID(), "model", sess.Model())
	if err := cb.store.SaveSession(ctx, sess.ID(), sess.Model(), sess.StartTime()); err != nil {
		cb.logger.Warn("failed to record session", "session_id", sess.ID(), "error", err)
	}
	cb.publish(Event{Type: EventSessionReset, SessionID: sess.ID(), Model: sess.Model()})
}

// Transcripts lists the sessions recorded since the process started.
func (cb *ChatBot) Transcripts(ctx context.Context) ([]store.SessionRecord, error) {
	return cb.store.Sessions(ctx)
}

// Transcript returns the recorded turns of one session.
func (cb *ChatBot) Transcript(ctx context.Context, id string) ([]session.Turn, error) {
	return cb.store.Turns(ctx, id)
}
