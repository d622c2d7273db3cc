package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
)

// ToolFunction defines the signature for a tool implementation.
// It sees a read-only snapshot of the running state and returns text plus an optional delta.
type ToolFunction func(ctx context.Context, state *domain.WorkflowState, args map[string]any) (ports.ToolOutput, error)

type entry struct {
	spec domain.ToolSpec
	fn   ToolFunction
}

// Registry manages the available tools. It implements ports.ToolRegistry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
func (r *Registry) Register(spec domain.ToolSpec, fn ToolFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = entry{spec: spec, fn: fn}
}

// Specs lists the registered tools sorted by name.
func (r *Registry) Specs() []domain.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]domain.ToolSpec, 0, len(r.tools))
	for _, e := range r.tools {
		specs = append(specs, e.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Invoke looks up a tool by name and executes it.
// Returns *domain.UnknownToolError if the tool is not registered.
func (r *Registry) Invoke(ctx context.Context, state *domain.WorkflowState, call domain.ToolCall) (ports.ToolOutput, error) {
	r.mu.RLock()
	e, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return ports.ToolOutput{}, &domain.UnknownToolError{Name: call.Name}
	}
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	return e.fn(ctx, state, args)
}
