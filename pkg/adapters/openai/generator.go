// Package openai implements ports.Generator on the OpenAI chat completions API
// and any server that speaks it.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when neither the options nor the request name a model.
const DefaultModel = "gpt-4o-mini"

// ErrNoChoices is returned when the API answers without a completion.
var ErrNoChoices = errors.New("openai returned no choices")

type settings struct {
	model   string
	baseURL string
	org     string
	logger  *slog.Logger
}

// Option configures the Generator.
type Option func(*settings)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the client at a compatible server (Azure, vLLM, Ollama's /v1, a test server).
func WithBaseURL(url string) Option {
	return func(s *settings) {
		s.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(s *settings) {
		s.org = org
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Generator calls the chat completions endpoint.
type Generator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var _ ports.Generator = (*Generator)(nil)

// New creates a Generator authenticated with apiKey.
func New(apiKey string, opts ...Option) *Generator {
	s := settings{
		model:  DefaultModel,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&s)
	}

	cfg := openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	if s.org != "" {
		cfg.OrgID = s.org
	}
	return &Generator{
		client: openai.NewClientWithConfig(cfg),
		model:  s.model,
		logger: s.logger,
	}
}

// Generate implements ports.Generator.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.GenerateResponse, error) {
	model := req.Model()
	if model == "" {
		model = g.model
	}

	creq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(req),
		Tools:    toTools(req.Tools),
	}
	if req.Format == ports.ResponseJSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	if v, ok := req.Float(ports.ConfigTemperature); ok {
		creq.Temperature = float32(v)
	}
	if v, ok := req.Float(ports.ConfigTopP); ok {
		creq.TopP = float32(v)
	}
	if v, ok := req.Int(ports.ConfigMaxTokens); ok {
		creq.MaxCompletionTokens = v
	}

	g.logger.Debug("chat completion", "node", req.NodeID, "model", model, "messages", len(creq.Messages), "tools", len(creq.Tools))
	resp, err := g.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0].Message
	out := &ports.GenerateResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, &domain.GenerationSchemaError{NodeID: req.NodeID, Err: fmt.Errorf("tool %s arguments: %w", tc.Function.Name, err)}
			}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	g.logger.Debug("chat completion done", "node", req.NodeID, "finish_reason", resp.Choices[0].FinishReason, "tool_calls", len(out.ToolCalls))
	return out, nil
}

func toMessages(req ports.GenerateRequest) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range domain.PairedHistory(req.History) {
		switch m.Role {
		case domain.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case domain.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, c := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:       c.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: c.Name, Arguments: encodeArgs(c.Args)},
				})
			}
			msgs = append(msgs, msg)
		case domain.RoleTool:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				Name:       m.Name,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	if req.Instructions != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.Instructions})
	}
	return msgs
}

func toTools(specs []domain.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
