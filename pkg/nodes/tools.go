package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/graph"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/google/uuid"
)

// ToolInvocation runs the tool calls attached to the last assistant message.
// Calls run in order; each sees the state left by the previous one.
type ToolInvocation struct {
	tools ports.ToolRegistry
	cfg   config
}

var _ graph.Node = (*ToolInvocation)(nil)

// NewToolInvocation creates the tool node.
func NewToolInvocation(tools ports.ToolRegistry, opts ...Option) *ToolInvocation {
	return &ToolInvocation{tools: tools, cfg: newConfig("", opts)}
}

func (n *ToolInvocation) Execute(ctx context.Context, state *domain.WorkflowState, rc *graph.RunContext) (domain.Delta, error) {
	last, ok := state.LastMessage()
	if !ok || !last.HasPendingToolCalls() {
		return domain.Delta{}, nil
	}

	working := state.Snapshot()
	for _, call := range last.ToolCalls {
		n.emit(ctx, domain.EventToolCall, state.ProjectID, call, nil, false)

		if n.tools == nil {
			return nil, &domain.UnknownToolError{Name: call.Name}
		}
		out, err := n.tools.Invoke(ctx, working.Snapshot(), call)
		if err != nil {
			n.emit(ctx, domain.EventToolReturn, state.ProjectID, call, err.Error(), true)
			return nil, fmt.Errorf("tool %q: %w", call.Name, err)
		}
		if !out.Delta.IsEmpty() {
			working, err = n.cfg.merger.Merge(working, out.Delta)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", call.Name, err)
			}
		}

		content := strings.TrimSpace(out.Content)
		if content == "" {
			content = "ok"
		}
		working.ConversationHistory = append(working.ConversationHistory, domain.Message{
			ID:         uuid.NewString(),
			Role:       domain.RoleTool,
			Content:    content,
			CreatedAt:  time.Now().UTC(),
			ToolCallID: call.ID,
			Name:       call.Name,
		})
		n.emit(ctx, domain.EventToolReturn, state.ProjectID, call, content, false)
		n.cfg.logger.Debug("tool returned", "project_id", state.ProjectID, "tool", call.Name, "fields", out.Delta.Fields())
	}

	return domain.Diff(state, working), nil
}

func (n *ToolInvocation) emit(ctx context.Context, typ domain.EventType, projectID string, call domain.ToolCall, output any, isErr bool) {
	var hook func(context.Context, *domain.ToolEvent)
	if typ == domain.EventToolCall {
		hook = n.cfg.hooks.OnToolCall
	} else {
		hook = n.cfg.hooks.OnToolReturn
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.ToolEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, ProjectID: projectID},
		NodeID:    KindCallTool,
		ToolName:  call.Name,
		Input:     call.Args,
		Output:    output,
		IsError:   isErr,
	})
}
