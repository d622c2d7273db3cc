package deckflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/deckflow/internal/runtime"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/graph"
	"github.com/aretw0/deckflow/pkg/nodes"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/aretw0/deckflow/pkg/registry"
	"github.com/aretw0/deckflow/pkg/session"
	"github.com/aretw0/deckflow/pkg/tools"
	"github.com/aretw0/deckflow/pkg/workflows"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidInput marks a request the caller must fix (empty message, blank title, unknown phase).
var ErrInvalidInput = errors.New("invalid input")

// DefaultSystemPrompt is sent to the generator when none is configured.
const DefaultSystemPrompt = "You are a presentation coach. You help the user plan a talk and then write its slides, speaker notes and delivery tips."

// Assistant is the high-level entry point of the library.
// It loads a project from the repository, runs a workflow graph over it and
// persists what the run changed. Runs for the same project are serialised.
type Assistant struct {
	repo     ports.Repository
	gen      ports.Generator
	registry *registry.Registry
	merger   *domain.Merger
	engine   *runtime.Engine
	sessions *session.Manager
	logger   *slog.Logger

	// conversation answers SendMessage; generation answers Generate.
	conversation *graph.Graph
	generation   *graph.Graph
	topologies   map[string]domain.Topology

	systemPrompt     string
	generationConfig map[string]any

	workflow    string
	custom      *domain.Topology
	hooks       domain.LifecycleHooks
	maxSteps    int
	policy      domain.PhasePolicy
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	tracer      trace.TracerProvider
	extraTools  []toolRegistration
	instruction map[string]string
}

type toolRegistration struct {
	spec domain.ToolSpec
	fn   registry.ToolFunction
}

// Option defines a functional option for configuring the Assistant.
type Option func(*Assistant)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks for every run.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Assistant) {
		a.hooks = hooks
	}
}

// WithMaxSteps overrides the per-run step budget (default 50).
func WithMaxSteps(n int) Option {
	return func(a *Assistant) {
		a.maxSteps = n
	}
}

// WithPhasePolicy sets the rule that accepts or rejects phase changes.
func WithPhasePolicy(p domain.PhasePolicy) Option {
	return func(a *Assistant) {
		a.policy = p
	}
}

// WithLocker serialises runs of the same project across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(a *Assistant) {
		a.locker = l
	}
}

// WithLockTTL bounds how long a distributed project lock survives a crashed holder.
func WithLockTTL(ttl time.Duration) Option {
	return func(a *Assistant) {
		a.lockTTL = ttl
	}
}

// WithTool registers an extra tool next to update_plan and set_phase.
func WithTool(spec domain.ToolSpec, fn registry.ToolFunction) Option {
	return func(a *Assistant) {
		a.extraTools = append(a.extraTools, toolRegistration{spec: spec, fn: fn})
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Assistant) {
		a.systemPrompt = prompt
	}
}

// WithGenerationConfig sets the model settings (model, temperature, max_tokens, top_p) sent with every request.
func WithGenerationConfig(cfg map[string]any) Option {
	return func(a *Assistant) {
		a.generationConfig = cfg
	}
}

// WithWorkflow selects the built-in topology used by SendMessage (default "presentation").
func WithWorkflow(name string) Option {
	return func(a *Assistant) {
		a.workflow = name
	}
}

// WithTopology uses a custom topology for SendMessage. It must only reference
// the built-in node kinds and routers.
func WithTopology(t domain.Topology) Option {
	return func(a *Assistant) {
		a.custom = &t
	}
}

// WithInstructions overrides the fixed instructions of one node kind.
func WithInstructions(kind, text string) Option {
	return func(a *Assistant) {
		if a.instruction == nil {
			a.instruction = make(map[string]string)
		}
		a.instruction[kind] = text
	}
}

// WithTracerProvider reports run and node spans to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Assistant) {
		a.tracer = tp
	}
}

// New wires an Assistant over a repository and a generator.
func New(repo ports.Repository, gen ports.Generator, opts ...Option) (*Assistant, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}

	a := &Assistant{
		repo:         repo,
		gen:          gen,
		systemPrompt: DefaultSystemPrompt,
		workflow:     workflows.NamePresentation,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	a.merger = domain.NewMerger(domain.WithPhasePolicy(a.policy))
	a.registry = tools.NewDefaultRegistry()
	for _, t := range a.extraTools {
		a.registry.Register(t.spec, t.fn)
	}

	a.engine = runtime.NewEngine(
		runtime.WithMaxSteps(a.maxSteps),
		runtime.WithMerger(a.merger),
		runtime.WithLifecycleHooks(a.hooks),
		runtime.WithLogger(a.logger),
		runtime.WithTracerProvider(a.tracer),
	)
	a.sessions = session.NewManager(session.WithLocker(a.locker), session.WithLockTTL(a.lockTTL), session.WithLogger(a.logger))

	if err := a.compile(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Assistant) compile() error {
	a.topologies = workflows.Topologies()

	catalog := a.catalog()
	conversation := a.topologies[a.workflow]
	if a.custom != nil {
		conversation = *a.custom
		a.topologies[conversation.Name] = conversation
	} else if _, ok := a.topologies[a.workflow]; !ok {
		return fmt.Errorf("unknown workflow %q", a.workflow)
	}

	var err error
	if a.conversation, err = graph.Compile(conversation, catalog); err != nil {
		return fmt.Errorf("compile %s: %w", conversation.Name, err)
	}
	if a.generation, err = graph.Compile(a.topologies[workflows.NameGeneration], catalog); err != nil {
		return fmt.Errorf("compile %s: %w", workflows.NameGeneration, err)
	}
	return nil
}

// catalog binds the node library. Per-kind instructions need per-kind options.
func (a *Assistant) catalog() *graph.Catalog {
	base := []nodes.Option{
		nodes.WithLogger(a.logger),
		nodes.WithHooks(a.hooks),
		nodes.WithMerger(a.merger),
	}
	c := workflows.NewCatalog(a.gen, a.registry, base...)
	for kind, text := range a.instruction {
		opts := append(append([]nodes.Option(nil), base...), nodes.WithInstructions(text))
		switch kind {
		case nodes.KindPlanner:
			c.RegisterNode(kind, nodes.NewPlanner(a.gen, a.registry, opts...))
		case nodes.KindOutline:
			c.RegisterNode(kind, nodes.NewOutline(a.gen, opts...))
		case nodes.KindSlideContent:
			c.RegisterNode(kind, nodes.NewSlideContent(a.gen, opts...))
		case nodes.KindSpeakerNotes:
			c.RegisterNode(kind, nodes.NewSpeakerNotes(a.gen, opts...))
		case nodes.KindDeliveryTutorial:
			c.RegisterNode(kind, nodes.NewDeliveryTutorial(a.gen, opts...))
		case nodes.KindChat:
			c.RegisterNode(kind, nodes.NewChat(a.gen, opts...))
		default:
			a.logger.Warn("instructions ignored for node kind", "kind", kind)
		}
	}
	return c
}

// Reply is the outcome of one SendMessage turn.
type Reply struct {
	// Message is the persisted user message.
	Message domain.Message `json:"message"`
	// Replies are the persisted assistant messages, oldest first. Empty when
	// the project phase has nothing to say (review, complete).
	Replies []domain.Message         `json:"replies"`
	Plan    *domain.PresentationPlan `json:"plan,omitempty"`
	Phase   domain.Phase             `json:"phase"`
}

// Generation is the outcome of one Generate run.
type Generation struct {
	Slides []domain.Slide            `json:"slides"`
	Plan   *domain.PresentationPlan `json:"plan,omitempty"`
	Phase  domain.Phase              `json:"phase"`
}

// HistoryPage is one page of a project's chat history.
type HistoryPage struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
	HasMore  bool             `json:"has_more"`
}

// CreateProject stores a new project in the preparation phase.
func (a *Assistant) CreateProject(ctx context.Context, title, description string) (domain.Project, error) {
	p, err := domain.NewProject(title, description)
	if err != nil {
		return domain.Project{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := a.repo.CreateProject(ctx, p); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	a.logger.Info("project created", "project_id", p.ID)
	return p, nil
}

// Project returns the project. Unknown IDs yield domain.ErrProjectNotFound.
func (a *Assistant) Project(ctx context.Context, id string) (domain.Project, error) {
	return a.repo.GetProject(ctx, id)
}

// ListProjects returns every project, oldest first.
func (a *Assistant) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return a.repo.ListProjects(ctx)
}

// DeleteProject removes a project with its history, plan and slides.
func (a *Assistant) DeleteProject(ctx context.Context, id string) error {
	return a.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		if _, err := a.repo.GetProject(ctx, id); err != nil {
			return err
		}
		return a.repo.DeleteProject(ctx, id)
	})
}

// SendMessage runs one conversational turn. The user message and everything the
// run produced are persisted only when the run succeeds.
func (a *Assistant) SendMessage(ctx context.Context, projectID, content string) (*Reply, error) {
	msg, err := domain.NewMessage(domain.RoleUser, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var reply *Reply
	err = a.sessions.WithLock(ctx, projectID, func(ctx context.Context) error {
		project, initial, err := a.load(ctx, projectID)
		if err != nil {
			return err
		}
		initial.ConversationHistory = append(initial.ConversationHistory, msg)

		final, err := a.run(ctx, a.conversation, initial)
		if err != nil {
			return err
		}

		if err := a.repo.CreateMessage(ctx, projectID, msg); err != nil {
			return fmt.Errorf("save message: %w", err)
		}
		replies, err := a.persist(ctx, &project, initial, final)
		if err != nil {
			return err
		}
		reply = &Reply{
			Message: msg,
			Replies: replies,
			Plan:    final.PresentationPlan,
			Phase:   final.ProjectPhase,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Generate runs the slide generation chain for the project's current plan and
// moves the project to review on success.
func (a *Assistant) Generate(ctx context.Context, projectID string) (*Generation, error) {
	var out *Generation
	err := a.sessions.WithLock(ctx, projectID, func(ctx context.Context) error {
		project, loaded, err := a.load(ctx, projectID)
		if err != nil {
			return err
		}
		// Every generation run outlines a new deck.
		loaded.Slides = domain.SlideMap{}
		initial, err := a.merger.Merge(loaded, domain.Delta{}.SetPhase(domain.PhaseGeneration))
		if err != nil {
			return err
		}

		final, err := a.run(ctx, a.generation, initial)
		if err != nil {
			return err
		}
		final, err = a.merger.Merge(final, domain.Delta{}.SetPhase(domain.PhaseReview))
		if err != nil {
			return err
		}

		if _, err := a.persist(ctx, &project, loaded, final); err != nil {
			return err
		}
		out = &Generation{
			Slides: final.Slides.Ordered(),
			Plan:   final.PresentationPlan,
			Phase:  final.ProjectPhase,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPhase moves the project to phase if the phase policy allows it.
func (a *Assistant) SetPhase(ctx context.Context, projectID string, phase domain.Phase) (domain.Project, error) {
	if !phase.Valid() {
		return domain.Project{}, fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, phase)
	}
	var project domain.Project
	err := a.sessions.WithLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		project, err = a.repo.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		before := &domain.WorkflowState{ProjectID: projectID, ProjectPhase: project.Phase}
		after, err := a.merger.Merge(before, domain.Delta{}.SetPhase(phase))
		if err != nil {
			return err
		}
		_, err = a.persist(ctx, &project, before, after)
		return err
	})
	return project, err
}

// History returns one page of the project's chat history. A limit of zero or less returns everything.
func (a *Assistant) History(ctx context.Context, projectID string, limit, offset int) (HistoryPage, error) {
	if _, err := a.repo.GetProject(ctx, projectID); err != nil {
		return HistoryPage{}, err
	}
	if offset < 0 {
		offset = 0
	}
	msgs, total, err := a.repo.ListMessages(ctx, projectID, limit, offset)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return HistoryPage{
		Messages: msgs,
		Total:    total,
		HasMore:  limit > 0 && offset+limit < total,
	}, nil
}

// Plan returns the stored plan, or domain.ErrNotFound when none was extracted yet.
func (a *Assistant) Plan(ctx context.Context, projectID string) (*domain.PresentationPlan, error) {
	if _, err := a.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return a.repo.GetPlan(ctx, projectID)
}

// Slides returns the stored slides ordered by number.
func (a *Assistant) Slides(ctx context.Context, projectID string) ([]domain.Slide, error) {
	if _, err := a.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	slides, err := a.repo.ListSlides(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	return slides.Ordered(), nil
}

// Topology returns a known topology by name: the built-ins plus a custom one, if configured.
func (a *Assistant) Topology(name string) (domain.Topology, error) {
	t, ok := a.topologies[name]
	if !ok {
		return domain.Topology{}, fmt.Errorf("unknown workflow %q: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

// Topologies lists the known topology names in order.
func (a *Assistant) Topologies() []string {
	names := workflows.Names()
	if a.custom != nil {
		if _, builtin := workflows.Topologies()[a.custom.Name]; !builtin {
			names = append(names, a.custom.Name)
		}
	}
	return names
}

// Workflow returns the name of the topology SendMessage runs.
func (a *Assistant) Workflow() string { return a.conversation.Name() }

// load seeds a state from everything persisted for the project.
func (a *Assistant) load(ctx context.Context, projectID string) (domain.Project, *domain.WorkflowState, error) {
	project, err := a.repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, nil, err
	}

	state := domain.NewState(projectID, project.Phase)
	state.SystemPrompt = a.systemPrompt
	state.GenerationConfig = a.generationConfig

	if state.ConversationHistory, _, err = a.repo.ListMessages(ctx, projectID, 0, 0); err != nil {
		return domain.Project{}, nil, fmt.Errorf("load history: %w", err)
	}
	plan, err := a.repo.GetPlan(ctx, projectID)
	switch {
	case err == nil:
		state.PresentationPlan = plan
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Project{}, nil, fmt.Errorf("load plan: %w", err)
	}
	if state.Slides, err = a.repo.ListSlides(ctx, projectID); err != nil {
		return domain.Project{}, nil, fmt.Errorf("load slides: %w", err)
	}
	return project, state, nil
}

func (a *Assistant) run(ctx context.Context, g *graph.Graph, initial *domain.WorkflowState) (*domain.WorkflowState, error) {
	rc := &graph.RunContext{ProjectID: initial.ProjectID, Repository: a.repo}
	started := time.Now()
	final, err := a.engine.Run(ctx, g, initial, rc)
	if err != nil {
		a.logger.Error("workflow failed",
			"project_id", initial.ProjectID,
			"graph", g.Name(),
			"last_router_decision", final.LastRouterDecision,
			"err", err,
		)
		return nil, fmt.Errorf("%s workflow: %w", g.Name(), err)
	}
	a.logger.Info("workflow finished", "project_id", initial.ProjectID, "graph", g.Name(), "duration", time.Since(started))
	return final, nil
}

// persist writes the difference between before and after: conversational
// messages, the plan and the phase. Slides are written by the write-back node.
// It returns the persisted assistant messages.
func (a *Assistant) persist(ctx context.Context, project *domain.Project, before, after *domain.WorkflowState) ([]domain.Message, error) {
	delta := domain.Diff(before, after)
	pid := project.ID

	replies := []domain.Message{}
	if msgs, ok := delta[domain.FieldConversationHistory].([]domain.Message); ok {
		for _, m := range msgs {
			if m.Role != domain.RoleAssistant {
				continue
			}
			m.ToolCalls = nil
			if err := a.repo.CreateMessage(ctx, pid, m); err != nil {
				return nil, fmt.Errorf("save reply: %w", err)
			}
			replies = append(replies, m)
		}
	}

	if r, ok := delta[domain.FieldPresentationPlan].(domain.PlanReplacement); ok && r.Plan != nil {
		exists, err := a.repo.PlanExists(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("check plan: %w", err)
		}
		if exists {
			err = a.repo.UpdatePlan(ctx, pid, *r.Plan)
		} else {
			err = a.repo.CreatePlan(ctx, pid, *r.Plan)
		}
		if err != nil {
			return nil, fmt.Errorf("save plan: %w", err)
		}
	}

	if phase, ok := delta[domain.FieldProjectPhase].(domain.Phase); ok {
		project.Phase = phase
		project.UpdatedAt = time.Now().UTC()
		if err := a.repo.UpdateProject(ctx, *project); err != nil {
			return nil, fmt.Errorf("save phase: %w", err)
		}
		a.logger.Info("project phase changed", "project_id", pid, "from", before.ProjectPhase, "to", phase)
	}
	return replies, nil
}
