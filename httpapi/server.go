package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// EventStream is the UI channel the stream endpoint reads from.
type EventStream interface {
	Subscribe() (<-chan schema.UIEvent, func(), uint64)
	Replay(after uint64) []schema.UIEvent
}

// Deps are the services behind the API.
type Deps struct {
	Shell      core.Shell
	Dispatcher core.Dispatcher
	Workspace  core.Workspace
	Settings   core.SettingsStore
	Ledger     core.Ledger
	Assistant  core.Assistant
	Events     EventStream
}

// Server serves the HTTP API.
type Server struct {
	cfg  Config
	deps Deps
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) *Server {
	return &Server{cfg: cfg, deps: deps}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	r.Get("/api/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/api/stream", s.handleStream)
		r.Post("/api/terminal", s.handleTerminal)
		r.Post("/api/run", s.handleRun)
		r.Route("/api/files", func(r chi.Router) {
			r.Post("/read", s.handleFileRead)
			r.Post("/write", s.handleFileWrite)
			r.Post("/save-as", s.handleFileSaveAs)
		})
		r.Route("/api/workspace", func(r chi.Router) {
			r.Post("/open", s.handleWorkspaceOpen)
			r.Get("/tree", s.handleWorkspaceTree)
		})
		r.Get("/api/settings", s.handleSettingsGet)
		r.Put("/api/settings", s.handleSettingsPut)
		r.Get("/api/stats", s.handleStats)
		r.Put("/api/goals", s.handleGoals)
		r.Post("/api/activity", s.handleActivity)
		r.Route("/api/assist", func(r chi.Router) {
			r.Post("/explain", s.handleExplain)
			r.Post("/refactor", s.handleRefactor)
			r.Post("/complete", s.handleComplete)
		})
	})
	return withRequestLogging(r)
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.cfg.Token
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			pslog.Ctx(r.Context()).Warn("http token rejected", "remote", clientIP(r), "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for EventSource clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": s.cfg.Version})
}

func requestContext(r *http.Request) context.Context {
	return pslog.ContextWithLogger(r.Context(), pslog.Ctx(r.Context()).With("remote", clientIP(r)))
}
