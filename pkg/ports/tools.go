package ports

import (
	"context"

	"github.com/aretw0/deckflow/pkg/domain"
)

// ToolOutput is what a tool hands back: text for the conversation and an optional state update.
type ToolOutput struct {
	Content string
	Delta   domain.Delta
}

// ToolRegistry resolves tool calls. Invoke returns *domain.UnknownToolError for unregistered names.
type ToolRegistry interface {
	Specs() []domain.ToolSpec
	Invoke(ctx context.Context, state *domain.WorkflowState, call domain.ToolCall) (ToolOutput, error)
}
