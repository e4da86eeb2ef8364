// Package http exposes an Editor as a JSON API for web front ends.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/kmol-editor/kmol/internal/dto"
	"github.com/kmol-editor/kmol/internal/logging"
	"github.com/kmol-editor/kmol/pkg/domain"
	"github.com/kmol-editor/kmol/pkg/ports"
	"github.com/kmol-editor/kmol/pkg/project"
)

// Editor is the subset of kmol.Editor the server drives.
type Editor interface {
	New(ctx context.Context, path string) (*project.Project, error)
	Open(ctx context.Context, path string) (*project.Project, error)
	Close(ctx context.Context, path string, force bool) error
	Save(ctx context.Context, path string) error
	Project(path string) (*project.Project, error)
	Paths() []string
	FindNode(path string, id domain.NodeID) (*domain.Node, error)
	AddChild(ctx context.Context, path string, parent domain.NodeID, name string) (domain.NodeID, error)
	DeleteNode(ctx context.Context, path string, id domain.NodeID) error
	CloneNode(ctx context.Context, path string, id domain.NodeID) (domain.NodeID, error)
	SetContent(ctx context.Context, path string, id domain.NodeID, content string) error
	Rename(ctx context.Context, path string, id domain.NodeID, name string) error
	Execute(ctx context.Context, path string, id domain.NodeID, sink ports.OutputSink) error
}

// Server serialises every request through one mutex, so the editor sees
// exactly one command at a time.
type Server struct {
	mu      sync.Mutex
	editor  Editor
	streams *StreamManager
	metrics http.Handler
	version string
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams enables GET /events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for editor.
func NewHandler(editor Editor, opts ...Option) http.Handler {
	s := &Server{
		editor:  editor,
		version: "unknown",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}

	r.Get("/projects", s.ListProjects)
	r.Post("/projects", s.OpenProject)

	r.Route("/project", func(r chi.Router) {
		r.Use(requirePath)
		r.Get("/", s.GetTree)
		r.Post("/save", s.SaveProject)
		r.Post("/close", s.CloseProject)
	})

	r.Route("/nodes/{id}", func(r chi.Router) {
		r.Use(requirePath)
		r.Get("/", s.GetNode)
		r.Delete("/", s.DeleteNode)
		r.Post("/children", s.AddChild)
		r.Post("/clone", s.CloneNode)
		r.Put("/content", s.SetContent)
		r.Put("/name", s.Rename)
		r.Post("/run", s.RunNode)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePath rejects requests without the ?path= project selector.
func requirePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("path") == "" {
			writeError(w, http.StatusBadRequest, errors.New("missing path query parameter"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func projectPath(r *http.Request) string { return r.URL.Query().Get("path") }

func nodeID(w http.ResponseWriter, r *http.Request) (domain.NodeID, bool) {
	id, err := domain.ParseNodeID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op+" rejected", "error", err)
	}
	writeError(w, status, err)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "kmol-http",
		"version": strings.TrimSpace(s.version),
	})
}

// ListProjects handles GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := []ProjectInfo{}
	for _, path := range s.editor.Paths() {
		p, err := s.editor.Project(path)
		if err != nil {
			continue
		}
		infos = append(infos, dto.MapProject(p))
	}
	writeJSON(w, http.StatusOK, infos)
}

// OpenProject handles POST /projects. An already-open project is returned
// with 200; a created one with 201.
func (s *Server) OpenProject(w http.ResponseWriter, r *http.Request) {
	var body OpenRequest
	if !decode(w, r, &body) {
		return
	}
	if body.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var p *project.Project
	var err error
	if body.Create {
		p, err = s.editor.New(r.Context(), body.Path)
	} else {
		p, err = s.editor.Open(r.Context(), body.Path)
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateOpen):
		writeJSON(w, http.StatusOK, dto.MapProject(p))
	case err != nil:
		s.fail(w, "open", err)
	case body.Create:
		writeJSON(w, http.StatusCreated, dto.MapProject(p))
	default:
		writeJSON(w, http.StatusOK, dto.MapProject(p))
	}
}

// GetTree handles GET /project.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.editor.Project(projectPath(r))
	if err != nil {
		s.fail(w, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MapTree(p))
}

// SaveProject handles POST /project/save.
func (s *Server) SaveProject(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.Save(r.Context(), projectPath(r)); err != nil {
		s.fail(w, "save", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseProject handles POST /project/close[?force=true].
func (s *Server) CloseProject(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.Close(r.Context(), projectPath(r), force); err != nil {
		s.fail(w, "close", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetNode handles GET /nodes/{id}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.editor.FindNode(projectPath(r), id)
	if err != nil {
		s.fail(w, "find", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MapNode(n, false))
}

// AddChild handles POST /nodes/{id}/children.
func (s *Server) AddChild(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	var body NameRequest
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	child, err := s.editor.AddChild(r.Context(), projectPath(r), id, body.Name)
	if err != nil {
		s.fail(w, "add child", err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: child})
}

// DeleteNode handles DELETE /nodes/{id}.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.DeleteNode(r.Context(), projectPath(r), id); err != nil {
		s.fail(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloneNode handles POST /nodes/{id}/clone.
func (s *Server) CloneNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone, err := s.editor.CloneNode(r.Context(), projectPath(r), id)
	if err != nil {
		s.fail(w, "clone", err)
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: clone})
}

// SetContent handles PUT /nodes/{id}/content.
func (s *Server) SetContent(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	var body ContentRequest
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.SetContent(r.Context(), projectPath(r), id, body.Content); err != nil {
		s.fail(w, "set content", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename handles PUT /nodes/{id}/name.
func (s *Server) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	var body NameRequest
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.Rename(r.Context(), projectPath(r), id, body.Name); err != nil {
		s.fail(w, "rename", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunNode handles POST /nodes/{id}/run. Script failures are part of the
// output, not an HTTP error.
func (s *Server) RunNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out bytes.Buffer
	if err := s.editor.Execute(r.Context(), projectPath(r), id, &out); err != nil {
		s.fail(w, "run", err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Output: out.String()})
}

// SubscribeEvents handles GET /events[?path=...] as server-sent events.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	filter := projectPath(r)
	if filter != "" {
		if key, err := project.Key(filter); err == nil {
			filter = key
		}
	}
	ch, cancel := s.streams.Subscribe(filter)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
