package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/graph"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/google/uuid"
)

const chatInstructions = `Answer the user's latest message about their presentation. Be concise.`

// Chat produces a plain text assistant reply.
type Chat struct {
	gen ports.Generator
	cfg config
}

var _ graph.Node = (*Chat)(nil)

// NewChat creates the chat node.
func NewChat(gen ports.Generator, opts ...Option) *Chat {
	return &Chat{gen: gen, cfg: newConfig(chatInstructions, opts)}
}

func (c *Chat) Execute(ctx context.Context, state *domain.WorkflowState, rc *graph.RunContext) (domain.Delta, error) {
	resp, err := c.gen.Generate(ctx, ports.GenerateRequest{
		NodeID:       KindChat,
		SystemPrompt: state.SystemPrompt,
		History:      state.ConversationHistory,
		Instructions: c.cfg.instructions,
		Format:       ports.ResponseText,
		Config:       state.GenerationConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, &domain.GenerationSchemaError{NodeID: KindChat, Err: errors.New("empty reply")}
	}
	return domain.Delta{}.AppendMessages(domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}), nil
}
