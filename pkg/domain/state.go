package domain

// WorkflowState is the shared record that nodes read and deltas update during one run.
// It is built once per invocation from persisted data and discarded afterwards.
type WorkflowState struct {
	// ProjectID identifies the project the run belongs to.
	ProjectID string

	// ConversationHistory is append-only within a run.
	ConversationHistory []Message

	ProjectPhase Phase

	// PresentationPlan is nil until a planner or tool first produces one.
	PresentationPlan *PresentationPlan

	// Slides is keyed by slide number.
	Slides SlideMap

	SystemPrompt     string
	GenerationConfig map[string]any

	// LastRouterDecision holds the target chosen by the last conditional edge.
	// Diagnostic only, never persisted.
	LastRouterDecision string
}

// NewState creates an empty state for a project in the given phase.
func NewState(projectID string, phase Phase) *WorkflowState {
	return &WorkflowState{
		ProjectID:    projectID,
		ProjectPhase: phase,
		Slides:       make(SlideMap),
	}
}

// Snapshot returns a deep copy that can be handed to a node without exposing the running state.
func (s *WorkflowState) Snapshot() *WorkflowState {
	if s == nil {
		return nil
	}
	c := *s
	c.ConversationHistory = cloneMessages(s.ConversationHistory)
	c.PresentationPlan = s.PresentationPlan.Clone()
	c.Slides = s.Slides.Clone()
	if c.Slides == nil {
		c.Slides = make(SlideMap)
	}
	c.GenerationConfig = cloneAnyMap(s.GenerationConfig)
	return &c
}

// LastMessage returns the newest history entry.
func (s *WorkflowState) LastMessage() (Message, bool) {
	if s == nil || len(s.ConversationHistory) == 0 {
		return Message{}, false
	}
	return s.ConversationHistory[len(s.ConversationHistory)-1], true
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = make([]ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				tc.Args = cloneAnyMap(tc.Args)
				out[i].ToolCalls[j] = tc
			}
		}
	}
	return out
}

// cloneAnyMap copies nested maps and slices so that writes to the copy never reach the source.
func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAnyMap(t)
	case []any:
		c := make([]any, len(t))
		for i, item := range t {
			c[i] = cloneAny(item)
		}
		return c
	default:
		return v
	}
}
