package ports

import (
	"context"

	"github.com/aretw0/deckflow/pkg/domain"
)

// ResponseFormat tells the generator what shape the reply must have.
type ResponseFormat string

const (
	ResponseText ResponseFormat = "text"
	ResponseJSON ResponseFormat = "json"
)

// GenerateRequest is everything a node hands to the language model.
type GenerateRequest struct {
	// NodeID names the calling node. Used for logging and by scripted generators.
	NodeID       string
	SystemPrompt string
	History      []domain.Message
	// Instructions are appended after the history as the final system turn.
	Instructions string
	Tools        []domain.ToolSpec
	Format       ResponseFormat
	Config       map[string]any
}

// GenerateResponse is the raw model reply.
type GenerateResponse struct {
	Content   string
	ToolCalls []domain.ToolCall
}

// Generator is the black-box language model.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return f(ctx, req)
}

// Generation config keys understood by the generator adapters.
const (
	ConfigModel       = "model"
	ConfigTemperature = "temperature"
	ConfigMaxTokens   = "max_tokens"
	ConfigTopP        = "top_p"
)

// Model returns the per-request model override, if any.
func (r GenerateRequest) Model() string {
	s, _ := r.Config[ConfigModel].(string)
	return s
}

// Float reads a numeric generation setting. Config values decoded from JSON or
// YAML may arrive as any number type.
func (r GenerateRequest) Float(key string) (float64, bool) {
	switch v := r.Config[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int reads an integral generation setting.
func (r GenerateRequest) Int(key string) (int, bool) {
	f, ok := r.Float(key)
	return int(f), ok
}
