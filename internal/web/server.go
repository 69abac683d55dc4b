// Package web serves the chat page and a small JSON API over the chatbot.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"GeminiChat/internal/backend"
	"GeminiChat/internal/cache"
	"GeminiChat/internal/catalog"
	"GeminiChat/internal/chatbot"
	"GeminiChat/internal/session"
	"GeminiChat/internal/store"

	"github.com/gorilla/mux"
)

const pageTitle = "Chatbot with Gemini"

//go:embed templates/index.html
var templates embed.FS

// Chat is the conversation surface the server drives.
type Chat interface {
	Models(ctx context.Context) ([]backend.Model, error)
	DefaultModel(ctx context.Context) (string, error)
	EnsureSession(ctx context.Context, model string) (*session.Session, error)
	CurrentSession() *session.Session
	ResetSession(ctx context.Context) (*session.Session, error)
	Send(ctx context.Context, sess *session.Session, text string) (string, error)
	Transcripts(ctx context.Context) ([]store.SessionRecord, error)
	Transcript(ctx context.Context, id string) ([]session.Turn, error)
}

// Server routes browser and API requests to a Chat.
type Server struct {
	chat   Chat
	hub    *Hub
	logger *slog.Logger
	tmpl   *template.Template
	router *mux.Router
}

// NewServer builds the router. hub may be nil, in which case /ws is not served.
func NewServer(chat Chat, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		chat:   chat,
		hub:    hub,
		logger: logger,
		tmpl:   template.Must(template.ParseFS(templates, "templates/index.html")),
		router: mux.NewRouter(),
	}

	r := s.router
	r.Use(s.logRequests)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handlePutSession).Methods(http.MethodPut)
	api.HandleFunc("/session", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/messages", s.handlePostMessage).Methods(http.MethodPost)
	api.HandleFunc("/transcripts", s.handleTranscripts).Methods(http.MethodGet)
	api.HandleFunc("/transcripts/{id}", s.handleTranscript).Methods(http.MethodGet)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type turnView struct {
	Role session.Role
	HTML template.HTML
}

type pageData struct {
	Title     string
	Models    []backend.Model
	Selected  string
	SessionID string
	Turns     []turnView
	Error     string
}

// selectModel resolves the model a request refers to: the explicit value,
// else the active session's model, else the default.
func (s *Server) selectModel(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if cur := s.chat.CurrentSession(); cur != nil {
		return cur.Model(), nil
	}
	return s.chat.DefaultModel(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	model, err := s.selectModel(ctx, r.URL.Query().Get("model"))
	if err != nil {
		s.renderPage(w, r, http.StatusInternalServerError, s.chat.CurrentSession(), err)
		return
	}

	sess, err := s.chat.EnsureSession(ctx, model)
	if err != nil {
		s.renderPage(w, r, statusFor(err), s.chat.CurrentSession(), err)
		return
	}
	s.renderPage(w, r, http.StatusOK, sess, nil)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, s.chat.CurrentSession(), err)
		return
	}

	model, err := s.selectModel(ctx, r.PostFormValue("model"))
	if err != nil {
		s.renderPage(w, r, http.StatusInternalServerError, s.chat.CurrentSession(), err)
		return
	}
	sess, err := s.chat.EnsureSession(ctx, model)
	if err != nil {
		s.renderPage(w, r, statusFor(err), s.chat.CurrentSession(), err)
		return
	}

	message := r.PostFormValue("message")
	if strings.TrimSpace(message) == "" {
		s.renderPage(w, r, http.StatusOK, sess, nil)
		return
	}

	if _, err := s.chat.Send(ctx, sess, message); err != nil {
		s.renderPage(w, r, http.StatusOK, sess, err)
		return
	}
	http.Redirect(w, r, "/?model="+url.QueryEscape(sess.Model()), http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if _, err := s.chat.ResetSession(r.Context()); err != nil && !errors.Is(err, chatbot.ErrNoSession) {
		s.renderPage(w, r, http.StatusInternalServerError, s.chat.CurrentSession(), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, sess *session.Session, pageErr error) {
	data := pageData{Title: pageTitle}

	models, err := s.chat.Models(r.Context())
	if err != nil {
		s.logger.Error("failed to list models", "error", err)
	}
	data.Models = models

	if sess != nil {
		data.Selected = sess.Model()
		data.SessionID = sess.ID()
		for _, t := range sess.Turns() {
			data.Turns = append(data.Turns, turnView{Role: t.Role, HTML: markdownToHTML(s.logger, t.Text)})
		}
	}
	if pageErr != nil {
		data.Error = pageErr.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.chat.Models(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

type sessionResponse struct {
	session.Snapshot
	Created bool `json:"created"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.chat.CurrentSession()
	if sess == nil {
		writeError(w, http.StatusNotFound, chatbot.ErrNoSession)
		return
	}

	snap := sess.Snapshot()
	etag := fmt.Sprintf(`"%s.%s"`, snap.ID, cache.GenerateCacheKey(snap.Turns))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Snapshot: snap})
}

func (s *Server) handlePutSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, session.ErrNoModel)
		return
	}

	before := s.chat.CurrentSession()
	sess, err := s.chat.EnsureSession(r.Context(), req.Model)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Snapshot: sess.Snapshot(), Created: sess != before})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.chat.ResetSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Snapshot: sess.Snapshot(), Created: true})
}

type messageRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

type messageResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, chatbot.ErrEmptyMessage)
		return
	}

	model, err := s.selectModel(ctx, req.Model)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sess, err := s.chat.EnsureSession(ctx, model)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	reply, err := s.chat.Send(ctx, sess, req.Text)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Reply: reply, SessionID: sess.ID(), Model: sess.Model()})
}

func (s *Server) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	records, err := s.chat.Transcripts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []store.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	turns, err := s.chat.Transcript(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised
// is a failed remote exchange.
func statusFor(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnknownModel),
		errors.Is(err, session.ErrNoModel),
		errors.Is(err, chatbot.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatbot.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
