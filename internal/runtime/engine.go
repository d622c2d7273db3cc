package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/graph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxSteps bounds how many nodes a single run may execute.
const DefaultMaxSteps = 50

const tracerName = "github.com/aretw0/deckflow/internal/runtime"

// Engine walks a compiled graph: route, execute, merge, repeat until END.
type Engine struct {
	maxSteps int
	merger   *domain.Merger
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	tracer   trace.Tracer
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithMaxSteps sets the step budget. Values below one are ignored.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithMerger sets the merger used to fold node deltas (and thus the phase policy).
func WithMerger(m *domain.Merger) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.merger = m
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracerProvider sets where node spans are reported. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewEngine creates an executor with dependencies.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		maxSteps: DefaultMaxSteps,
		merger:   domain.NewMerger(),
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxSteps returns the configured step budget.
func (e *Engine) MaxSteps() int { return e.maxSteps }

// Run executes g from START until a router or edge reaches END.
// On failure it returns the last successfully merged state together with the error;
// the returned state is never nil. initial is not modified.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, initial *domain.WorkflowState, rc *graph.RunContext) (*domain.WorkflowState, error) {
	state := initial.Snapshot()
	if state == nil {
		state = domain.NewState("", "")
	}
	if rc == nil {
		rc = &graph.RunContext{ProjectID: state.ProjectID}
	}

	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.graph", g.Name()),
		attribute.String("workflow.project_id", rc.ProjectID),
		attribute.String("workflow.phase", string(state.ProjectPhase)),
	))
	defer span.End()

	logger := e.logger.With("graph", g.Name(), "project_id", rc.ProjectID)
	fail := func(err error) (*domain.WorkflowState, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", "err", err, "last_router_decision", state.LastRouterDecision)
		return state, err
	}

	current := domain.Start
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		next, router, err := g.Next(current, state)
		if err != nil {
			return fail(err)
		}
		if router != "" {
			state.LastRouterDecision = next
		}
		e.emitRoute(ctx, rc.ProjectID, current, next, router)

		if next == domain.End {
			span.SetAttributes(attribute.Int("workflow.steps", steps))
			logger.Debug("run finished", "steps", steps)
			return state, nil
		}

		if steps >= e.maxSteps {
			return fail(&domain.StepBudgetExceededError{Limit: e.maxSteps, NextNode: next})
		}
		steps++

		node, _ := g.Node(next)
		delta, err := e.execute(ctx, logger, next, steps, node, state, rc)
		if err != nil {
			return fail(fmt.Errorf("node %q: %w", next, err))
		}

		merged, err := e.merger.Merge(state, delta)
		if err != nil {
			return fail(fmt.Errorf("merging output of %q: %w", next, err))
		}
		state = merged
		current = next
	}
}

func (e *Engine) execute(ctx context.Context, logger *slog.Logger, id string, step int, node graph.Node, state *domain.WorkflowState, rc *graph.RunContext) (domain.Delta, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("workflow.node", id),
		attribute.Int("workflow.step", step),
	))
	defer span.End()

	if e.hooks.OnNodeEnter != nil {
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeEnter, ProjectID: rc.ProjectID},
			NodeID:    id,
			Step:      step,
		})
	}

	started := time.Now()
	delta, err := node.Execute(ctx, state.Snapshot(), rc)
	elapsed := time.Since(started)
	if delta == nil {
		delta = domain.Delta{}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.hooks.OnNodeLeave != nil {
		e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeLeave, ProjectID: rc.ProjectID},
			NodeID:    id,
			Step:      step,
			Duration:  elapsed,
			Fields:    delta.Fields(),
			Err:       err,
		})
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("node executed", "node", id, "step", step, "fields", delta.Fields(), "duration", elapsed)
	return delta, nil
}

func (e *Engine) emitRoute(ctx context.Context, projectID, from, to, router string) {
	if e.hooks.OnRoute == nil {
		return
	}
	e.hooks.OnRoute(ctx, &domain.RouteEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRoute, ProjectID: projectID},
		From:      from,
		To:        to,
		Router:    router,
	})
}
