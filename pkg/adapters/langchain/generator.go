// Package langchain implements ports.Generator on top of any langchaingo llms.Model,
// which covers Ollama, Anthropic, Gemini and the other providers it ships.
package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// ErrNoChoices is returned when the model answers without a completion.
var ErrNoChoices = errors.New("model returned no choices")

// Generator adapts an llms.Model.
type Generator struct {
	model  llms.Model
	logger *slog.Logger
}

var _ ports.Generator = (*Generator)(nil)

// Option configures the Generator.
type Option func(*Generator)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New wraps model.
func New(model llms.Model, opts ...Option) *Generator {
	g := &Generator{
		model:  model,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewOllama connects to an Ollama server. An empty serverURL uses the client default.
func NewOllama(model, serverURL string, opts ...Option) (*Generator, error) {
	ollamaOpts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		ollamaOpts = append(ollamaOpts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(ollamaOpts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return New(llm, opts...), nil
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	var callOpts []llms.CallOption
	if len(req.Tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(toTools(req.Tools)))
	}
	if req.Format == ports.ResponseJSON {
		callOpts = append(callOpts, llms.WithJSONMode())
	}
	if m := req.Model(); m != "" {
		callOpts = append(callOpts, llms.WithModel(m))
	}
	if v, ok := req.Float(ports.ConfigTemperature); ok {
		callOpts = append(callOpts, llms.WithTemperature(v))
	}
	if v, ok := req.Float(ports.ConfigTopP); ok {
		callOpts = append(callOpts, llms.WithTopP(v))
	}
	if v, ok := req.Int(ports.ConfigMaxTokens); ok {
		callOpts = append(callOpts, llms.WithMaxTokens(v))
	}

	msgs := toMessages(req)
	g.logger.Debug("generate content", "node", req.NodeID, "messages", len(msgs), "tools", len(req.Tools))
	resp, err := g.model.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	out := &ports.GenerateResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				return nil, &domain.GenerationSchemaError{NodeID: req.NodeID, Err: fmt.Errorf("tool %s arguments: %w", tc.FunctionCall.Name, err)}
			}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: tc.ID, Name: tc.FunctionCall.Name, Args: args})
	}
	return out, nil
}

func toMessages(req ports.GenerateRequest) []llms.MessageContent {
	var msgs []llms.MessageContent
	if req.SystemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, m := range domain.PairedHistory(req.History) {
		switch m.Role {
		case domain.RoleUser:
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		case domain.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Content})
			}
			for _, c := range m.ToolCalls {
				args, _ := json.Marshal(c.Args)
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:           c.ID,
					Type:         "function",
					FunctionCall: &llms.FunctionCall{Name: c.Name, Arguments: string(args)},
				})
			}
			msgs = append(msgs, mc)
		case domain.RoleTool:
			msgs = append(msgs, llms.MessageContent{
				Role:  llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{ToolCallID: m.ToolCallID, Name: m.Name, Content: m.Content}},
			})
		}
	}
	if req.Instructions != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.Instructions))
	}
	return msgs
}

func toTools(specs []domain.ToolSpec) []llms.Tool {
	tools := make([]llms.Tool, 0, len(specs))
	for _, s := range specs {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
