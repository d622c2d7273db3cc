// Package mcp exposes the Assistant as a Model Context Protocol server, so an
// agent host can drive a presentation project with tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/deckflow"
	"github.com/aretw0/deckflow/internal/presentation/graph"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURIPrefix addresses topology resources: deckflow://graph/{name}.
const GraphURIPrefix = "deckflow://graph/"

// Assistant is the part of deckflow.Assistant exposed as tools.
type Assistant interface {
	CreateProject(ctx context.Context, title, description string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
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

// Server wraps the Assistant and exposes it as an MCP Server.
type Server struct {
	assistant Assistant
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(a Assistant, opts ...Option) *Server {
	s := &Server{
		assistant: a,
		mcpServer: server.NewMCPServer("deckflow-mcp", strings.TrimSpace(deckflow.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("MCP server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Tool arguments and results.

type createProjectArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type projectArgs struct {
	ProjectID string `json:"project_id"`
}

type sendMessageArgs struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
}

type setPhaseArgs struct {
	ProjectID string `json:"project_id"`
	Phase     string `json:"phase"`
}

type historyArgs struct {
	ProjectID string `json:"project_id"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
}

// ProjectList wraps a project listing; structured tool output must be an object.
type ProjectList struct {
	Projects []domain.Project `json:"projects"`
}

// PlanResult carries the current plan, nil before the planner produced one.
type PlanResult struct {
	Plan *domain.PresentationPlan `json:"plan"`
}

// SlidesResult carries the ordered deck.
type SlidesResult struct {
	Slides []domain.Slide `json:"slides"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a presentation project. It starts in the preparation phase."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Project title")),
		mcp.WithString("description", mcp.Description("What the talk is about")),
		mcp.WithOutputSchema[domain.Project](),
	), mcp.NewStructuredToolHandler(s.handleCreateProject))

	s.mcpServer.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List presentation projects."),
		mcp.WithOutputSchema[ProjectList](),
	), mcp.NewStructuredToolHandler(s.handleListProjects))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to a project. The assistant refines the presentation plan and replies."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
		mcp.WithOutputSchema[deckflow.Reply](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("generate_presentation",
		mcp.WithDescription("Generate slides, speaker notes and delivery tutorials from the project's plan."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithOutputSchema[deckflow.Generation](),
	), mcp.NewStructuredToolHandler(s.handleGenerate))

	s.mcpServer.AddTool(mcp.NewTool("set_phase",
		mcp.WithDescription("Move a project to another lifecycle phase."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("phase", mcp.Required(), mcp.Description("Target phase"),
			mcp.Enum(string(domain.PhasePreparation), string(domain.PhaseGeneration), string(domain.PhaseReview), string(domain.PhaseComplete))),
		mcp.WithOutputSchema[domain.Project](),
	), mcp.NewStructuredToolHandler(s.handleSetPhase))

	s.mcpServer.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Read a page of the project's chat history."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithNumber("limit", mcp.Description("Page size, 0 for everything")),
		mcp.WithNumber("offset", mcp.Description("Messages to skip")),
		mcp.WithOutputSchema[deckflow.HistoryPage](),
	), mcp.NewStructuredToolHandler(s.handleHistory))

	s.mcpServer.AddTool(mcp.NewTool("get_plan",
		mcp.WithDescription("Read the project's presentation plan."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithOutputSchema[PlanResult](),
	), mcp.NewStructuredToolHandler(s.handleGetPlan))

	s.mcpServer.AddTool(mcp.NewTool("get_slides",
		mcp.WithDescription("Read the project's slides in order."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithOutputSchema[SlidesResult](),
	), mcp.NewStructuredToolHandler(s.handleGetSlides))
}

func (s *Server) handleCreateProject(ctx context.Context, _ mcp.CallToolRequest, args createProjectArgs) (domain.Project, error) {
	return s.assistant.CreateProject(ctx, args.Title, args.Description)
}

func (s *Server) handleListProjects(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (ProjectList, error) {
	projects, err := s.assistant.ListProjects(ctx)
	if err != nil {
		return ProjectList{}, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return ProjectList{Projects: projects}, nil
}

func (s *Server) handleSendMessage(ctx context.Context, _ mcp.CallToolRequest, args sendMessageArgs) (deckflow.Reply, error) {
	reply, err := s.assistant.SendMessage(ctx, args.ProjectID, args.Message)
	if err != nil {
		s.logger.Warn("MCP send_message failed", "project_id", args.ProjectID, "err", err)
		return deckflow.Reply{}, err
	}
	return *reply, nil
}

func (s *Server) handleGenerate(ctx context.Context, _ mcp.CallToolRequest, args projectArgs) (deckflow.Generation, error) {
	out, err := s.assistant.Generate(ctx, args.ProjectID)
	if err != nil {
		s.logger.Warn("MCP generate_presentation failed", "project_id", args.ProjectID, "err", err)
		return deckflow.Generation{}, err
	}
	return *out, nil
}

func (s *Server) handleSetPhase(ctx context.Context, _ mcp.CallToolRequest, args setPhaseArgs) (domain.Project, error) {
	phase, err := domain.ParsePhase(args.Phase)
	if err != nil {
		return domain.Project{}, err
	}
	return s.assistant.SetPhase(ctx, args.ProjectID, phase)
}

func (s *Server) handleHistory(ctx context.Context, _ mcp.CallToolRequest, args historyArgs) (deckflow.HistoryPage, error) {
	return s.assistant.History(ctx, args.ProjectID, args.Limit, args.Offset)
}

func (s *Server) handleGetPlan(ctx context.Context, _ mcp.CallToolRequest, args projectArgs) (PlanResult, error) {
	plan, err := s.assistant.Plan(ctx, args.ProjectID)
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{Plan: plan}, nil
}

func (s *Server) handleGetSlides(ctx context.Context, _ mcp.CallToolRequest, args projectArgs) (SlidesResult, error) {
	slides, err := s.assistant.Slides(ctx, args.ProjectID)
	if err != nil {
		return SlidesResult{}, err
	}
	if slides == nil {
		slides = []domain.Slide{}
	}
	return SlidesResult{Slides: slides}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(GraphURIPrefix+"{name}", "Workflow graph",
		mcp.WithTemplateDescription("Mermaid flowchart of a workflow topology"),
		mcp.WithTemplateMIMEType("text/x-mermaid"),
	), s.readGraph)
}

func (s *Server) readGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, GraphURIPrefix)
	t, err := s.assistant.Topology(name)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/x-mermaid",
			Text:     graph.GenerateMermaid(t, nil),
		},
	}, nil
}
