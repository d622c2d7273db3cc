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

const plannerInstructions = `You help the user plan a presentation.
Reply with a JSON object: {"response": "<your reply to the user>", "presentation_plan": {<only the plan attributes you learned this turn>}}.
Plan attributes: title, objective, target_audience, tone, duration (minutes), research_summary, key_messages.
Call a tool when the user asks to change the plan explicitly or to start generating slides.`

type plannerOutput struct {
	Response         string                   `json:"response" validate:"required"`
	PresentationPlan *domain.PresentationPlan `json:"presentation_plan,omitempty"`
}

// Planner talks with the user about the presentation and extracts plan attributes.
// It may ask for tool calls, which are attached to its reply.
type Planner struct {
	gen   ports.Generator
	tools ports.ToolRegistry
	cfg   config
}

var _ graph.Node = (*Planner)(nil)

// NewPlanner creates the planner node. tools may be nil when no tools are offered.
func NewPlanner(gen ports.Generator, tools ports.ToolRegistry, opts ...Option) *Planner {
	return &Planner{gen: gen, tools: tools, cfg: newConfig(plannerInstructions, opts)}
}

func (p *Planner) Execute(ctx context.Context, state *domain.WorkflowState, rc *graph.RunContext) (domain.Delta, error) {
	req := ports.GenerateRequest{
		NodeID:       KindPlanner,
		SystemPrompt: state.SystemPrompt,
		History:      state.ConversationHistory,
		Instructions: p.cfg.instructions + "\n\n" + describe("Current plan", state.PresentationPlan),
		Format:       ports.ResponseJSON,
		Config:       state.GenerationConfig,
	}
	if p.tools != nil {
		req.Tools = p.tools.Specs()
	}

	resp, err := p.gen.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	calls := normalizeCalls(resp.ToolCalls)
	var out plannerOutput
	if strings.TrimSpace(resp.Content) == "" && len(calls) > 0 {
		// Tool-only replies carry no text; keep history messages non-empty.
		out.Response = announceCalls(calls)
	} else if err := decodeOutput(KindPlanner, resp.Content, &out); err != nil {
		return nil, err
	}
	out.Response = strings.TrimSpace(out.Response)
	if out.Response == "" {
		return nil, &domain.GenerationSchemaError{NodeID: KindPlanner, Err: errors.New("empty response")}
	}

	reply := domain.Message{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		Content:   out.Response,
		CreatedAt: time.Now().UTC(),
		ToolCalls: calls,
	}
	delta := domain.Delta{}.AppendMessages(reply)
	if !out.PresentationPlan.IsEmpty() {
		delta.PatchPlan(out.PresentationPlan)
	}

	p.cfg.logger.Debug("planner replied", "project_id", state.ProjectID, "tool_calls", len(calls), "plan_patch", delta.Has(domain.FieldPresentationPlan))
	return delta, nil
}

// normalizeCalls gives every call an ID so tool results can refer to it.
func normalizeCalls(calls []domain.ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		out[i] = c
	}
	return out
}

func announceCalls(calls []domain.ToolCall) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return "Running " + strings.Join(names, ", ") + "."
}
