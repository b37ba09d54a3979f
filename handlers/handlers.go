package handlers

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/chat-boot/memory"
	"github.com/SaiNageswarS/chat-boot/services"
	"github.com/SaiNageswarS/chat-boot/session"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed templates/*
var templatesFS embed.FS

const sessionCookie = "chat_session"

type Options struct {
	Title            string
	CredentialNotice string
	TypewriterChunk  int
	TypewriterDelay  time.Duration
}

type ChatHandler struct {
	svc      *services.ChatService
	registry *session.Registry
	markdown *MarkdownRenderer
	page     *template.Template
	upgrader websocket.Upgrader
	opts     Options
}

func ProvideChatHandler(svc *services.ChatService, registry *session.Registry, opts Options) (*ChatHandler, error) {
	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing page template: %w", err)
	}

	return &ChatHandler{
		svc:      svc,
		registry: registry,
		markdown: NewMarkdownRenderer(),
		page:     page,
		opts:     opts,
	}, nil
}

func (h *ChatHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("POST /reset", h.handleReset)
	mux.HandleFunc("GET /export", h.handleExport)
	mux.HandleFunc("GET /ws", h.handleWebSocket)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

type messageView struct {
	Role string
	Text string
	HTML template.HTML
}

type pageData struct {
	Title         string
	Notice        string
	Error         string
	Messages      []messageView
	Settings      session.Settings
	Limits        session.Limits
	ContextTokens int
	ExportName    string
}

func (h *ChatHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:      h.opts.Title,
		ExportName: memory.ExportFileName,
		Limits:     h.svc.Limits(),
	}

	if err := h.svc.Ready(); err != nil {
		data.Notice = h.opts.CredentialNotice
		data.Settings = h.svc.Limits().Defaults()
		h.render(w, http.StatusServiceUnavailable, data)
		return
	}

	sess := h.existingSession(r)
	data.Settings = sess.Settings()
	data.Error = sess.TakeError()
	data.ContextTokens = h.svc.ContextTokens(sess)
	for _, m := range sess.History() {
		data.Messages = append(data.Messages, h.messageView(m))
	}

	h.render(w, http.StatusOK, data)
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	sess := h.sessionFor(w, r)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	settings, err := parseSettings(r.PostForm, sess.Settings())
	if err == nil {
		_, err = h.svc.Submit(r.Context(), sess, settings, r.PostForm.Get("text"))
	}
	if err != nil {
		sess.SetError(services.UserFacingError(err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ChatHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	sess := h.sessionFor(w, r)
	if err := h.svc.Reset(sess); err != nil {
		sess.SetError(services.UserFacingError(err))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *ChatHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	sess := h.existingSession(r)
	data, err := h.svc.Export(sess)
	if err != nil {
		logger.Error("Failed to export history", zap.String("session", sess.ID), zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", memory.ExportFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ChatHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.svc.Ready() != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unconfigured"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ready answers 503 with the credential notice when chatting is impossible.
func (h *ChatHandler) ready(w http.ResponseWriter) bool {
	if h.svc.Ready() == nil {
		return true
	}
	http.Error(w, h.opts.CredentialNotice, http.StatusServiceUnavailable)
	return false
}

// existingSession resolves the browser's session from its cookie without
// registering one. Browsers that have not chatted yet get an empty,
// unregistered session, so page views alone never grow the registry.
func (h *ChatHandler) existingSession(r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := h.registry.Get(c.Value); ok {
			return sess
		}
	}
	return session.New("", h.svc.Limits().Defaults(), time.Now())
}

// sessionFor resolves the browser's session from its cookie, starting a new
// one (and setting the cookie) when there is none.
func (h *ChatHandler) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	sess, created := h.registry.GetOrCreate(id)
	if created {
		http.SetCookie(w, newSessionCookie(sess.ID))
	}
	return sess
}

func newSessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *ChatHandler) messageView(m llm.Message) messageView {
	view := messageView{Role: string(m.Role), Text: m.Content}
	if m.Role == llm.RoleAssistant {
		view.HTML = h.markdown.Render(m.Content)
	}
	return view
}

func (h *ChatHandler) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, data); err != nil {
		logger.Error("Failed to render page", zap.Error(err))
	}
}

// parseSettings reads the sidebar controls, keeping current values for
// controls that were not submitted.
func parseSettings(form map[string][]string, current session.Settings) (session.Settings, error) {
	get := func(key string) (string, bool) {
		v, ok := form[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	settings := current

	if v, ok := get("model"); ok {
		settings.Model = v
	}

	if v, ok := get("temperature"); ok {
		temp, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(temp) || math.IsInf(temp, 0) {
			return current, fmt.Errorf("%w: temperature %q is not a number", session.ErrInvalidSettings, v)
		}
		settings.Temperature = temp
	}

	if v, ok := get("max_tokens"); ok {
		tokens, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return current, fmt.Errorf("%w: max tokens %q is not a number", session.ErrInvalidSettings, v)
		}
		settings.MaxTokens = tokens
	}

	if v, ok := get("system_prompt"); ok {
		settings.SystemPrompt = v
	}

	return settings, nil
}

func isClientError(err error) bool {
	return errors.Is(err, services.ErrEmptyMessage) ||
		errors.Is(err, session.ErrInvalidSettings) ||
		errors.Is(err, session.ErrBusy)
}
