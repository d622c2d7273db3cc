package graph

import (
	"context"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
)

// RunContext is the opaque capability bag handed to every node of a run.
// The executor passes it through unmodified.
type RunContext struct {
	ProjectID  string
	Repository ports.Repository
	// Values carries caller-defined extras.
	Values map[string]any
}

// Node is one unit of work. It receives a private snapshot of the running state
// and returns only the fields it changed.
type Node interface {
	Execute(ctx context.Context, state *domain.WorkflowState, rc *RunContext) (domain.Delta, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, state *domain.WorkflowState, rc *RunContext) (domain.Delta, error)

// Execute implements Node.
func (f NodeFunc) Execute(ctx context.Context, state *domain.WorkflowState, rc *RunContext) (domain.Delta, error) {
	return f(ctx, state, rc)
}

// Router picks the next node from the state that was just merged.
// It must return one of its edge's declared targets or domain.End.
type Router func(state *domain.WorkflowState) string
