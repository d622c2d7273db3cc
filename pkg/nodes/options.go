package nodes

import (
	"io"
	"log/slog"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// Node kinds registered in the default catalog.
const (
	KindPlanner          = "planner"
	KindCallTool         = "call_tool"
	KindOutline          = "outline"
	KindSlideContent     = "slide"
	KindSpeakerNotes     = "speaker_notes"
	KindDeliveryTutorial = "delivery_tutorial"
	KindWriteBack        = "write_results"
	KindChat             = "chat"
)

type config struct {
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	merger       *domain.Merger
	instructions string
}

// Option configures a built-in node.
type Option func(*config)

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHooks lets the tool node report tool calls.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithMerger sets the merger the tool node folds tool deltas with.
func WithMerger(m *domain.Merger) Option {
	return func(c *config) {
		if m != nil {
			c.merger = m
		}
	}
}

// WithInstructions overrides the fixed instructions sent to the generator.
func WithInstructions(text string) Option {
	return func(c *config) {
		c.instructions = text
	}
}

func newConfig(defaultInstructions string, opts []Option) config {
	c := config{
		logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
		merger:       domain.NewMerger(),
		instructions: defaultInstructions,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// validate is shared by every node; validator.Validate caches struct metadata and is safe for concurrent use.
var validate = validator.New()
