// Package http exposes the Assistant as a JSON REST API with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/deckflow"
	"github.com/aretw0/deckflow/internal/presentation/graph"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPageSize is used when GET /projects/{id}/messages has no limit.
const DefaultPageSize = 50

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Assistant is the part of deckflow.Assistant the API serves.
type Assistant interface {
	CreateProject(ctx context.Context, title, description string) (domain.Project, error)
	Project(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
	SendMessage(ctx context.Context, projectID, content string) (*deckflow.Reply, error)
	Generate(ctx context.Context, projectID string) (*deckflow.Generation, error)
	SetPhase(ctx context.Context, projectID string, phase domain.Phase) (domain.Project, error)
	History(ctx context.Context, projectID string, limit, offset int) (deckflow.HistoryPage, error)
	Plan(ctx context.Context, projectID string) (*domain.PresentationPlan, error)
	Slides(ctx context.Context, projectID string) ([]domain.Slide, error)
	Topology(name string) (domain.Topology, error)
	Topologies() []string
}

var _ Assistant = (*deckflow.Assistant)(nil)

// Server holds the handlers.
type Server struct {
	Assistant Assistant
	Streams   *StreamManager
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// NewHandler creates the HTTP handler for an assistant.
func NewHandler(a Assistant, opts ...Option) http.Handler {
	s := &Server{
		Assistant: a,
		logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", s.CreateProject)
		r.Get("/", s.ListProjects)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.GetProject)
			r.Delete("/", s.DeleteProject)
			r.Post("/messages", s.SendMessage)
			r.Get("/messages", s.GetHistory)
			r.Get("/plan", s.GetPlan)
			r.Get("/slides", s.GetSlides)
			r.Post("/generate", s.Generate)
			r.Put("/phase", s.SetPhase)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	r.Get("/graphs", s.ListGraphs)
	r.Get("/graphs/{name}", s.GetGraph)
	return r
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

type createProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

type setPhaseRequest struct {
	Phase string `json:"phase"`
}

// Event is one SSE payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": strings.TrimSpace(deckflow.Version),
	})
}

// CreateProject handles POST /projects.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var body createProjectRequest
	if !s.decode(w, r, &body) {
		return
	}
	p, err := s.Assistant.CreateProject(r.Context(), body.Title, body.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

// ListProjects handles GET /projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.Assistant.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	s.writeJSON(w, http.StatusOK, projects)
}

// GetProject handles GET /projects/{projectID}.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.Assistant.Project(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /projects/{projectID}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Assistant.DeleteProject(r.Context(), chi.URLParam(r, "projectID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage handles POST /projects/{projectID}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "projectID")
	reply, err := s.Assistant.SendMessage(r.Context(), id, body.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(id, "message", reply)
	s.writeJSON(w, http.StatusOK, reply)
}

// GetHistory handles GET /projects/{projectID}/messages?limit=&offset=.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", DefaultPageSize)
	if err != nil {
		s.writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.Assistant.History(r.Context(), chi.URLParam(r, "projectID"), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// GetPlan handles GET /projects/{projectID}/plan.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.Assistant.Plan(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

// GetSlides handles GET /projects/{projectID}/slides.
func (s *Server) GetSlides(w http.ResponseWriter, r *http.Request) {
	slides, err := s.Assistant.Slides(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"slides": slides})
}

// Generate handles POST /projects/{projectID}/generate.
func (s *Server) Generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	out, err := s.Assistant.Generate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(id, "generation", out)
	s.writeJSON(w, http.StatusOK, out)
}

// SetPhase handles PUT /projects/{projectID}/phase.
func (s *Server) SetPhase(w http.ResponseWriter, r *http.Request) {
	var body setPhaseRequest
	if !s.decode(w, r, &body) {
		return
	}
	phase, err := domain.ParsePhase(body.Phase)
	if err != nil {
		s.writeProblem(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	id := chi.URLParam(r, "projectID")
	p, err := s.Assistant.SetPhase(r.Context(), id, phase)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(id, "phase", p)
	s.writeJSON(w, http.StatusOK, p)
}

// ListGraphs handles GET /graphs.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Assistant.Topologies())
}

// GetGraph handles GET /graphs/{name}. Mermaid by default, the topology with ?format=json.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	t, err := s.Assistant.Topology(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, http.StatusOK, t)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(t, nil))
}

// SubscribeEvents handles GET /projects/{projectID}/events (SSE).
// Every successful message, generation or phase change on the project is pushed as one event.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeProblem(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	id := chi.URLParam(r, "projectID")
	if _, err := s.Assistant.Project(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: subscribed", "project_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "project_id", id)
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

func (s *Server) broadcast(projectID, typ string, data any) {
	if s.Streams.Subscribers(projectID) == 0 {
		return
	}
	payload, err := json.Marshal(Event{Type: typ, Data: data})
	if err != nil {
		s.logger.Error("SSE: encode event failed", "err", err)
		return
	}
	s.Streams.Broadcast(projectID, string(payload))
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeProblem(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, deckflow.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrIllegalPhaseTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGenerationSchema), errors.Is(err, domain.ErrUnknownTool):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	s.writeProblem(w, status, err.Error())
}

func (s *Server) writeProblem(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
