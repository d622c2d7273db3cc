package domain

import (
	"slices"
	"sort"
)

// Delta is a partial state update returned by a node.
// A key that is missing is "absent" and leaves the field untouched.
// A key that is present, even with a nil value, is handed to that field's reducer.
type Delta map[string]any

// AppendMessages adds messages to the conversation history.
func (d Delta) AppendMessages(msgs ...Message) Delta {
	cur, _ := d[FieldConversationHistory].([]Message)
	d[FieldConversationHistory] = append(slices.Clip(cur), msgs...)
	return d
}

// SetPhase moves the project to p.
func (d Delta) SetPhase(p Phase) Delta {
	d[FieldProjectPhase] = p
	return d
}

// PatchPlan merges p into the current plan attribute by attribute.
func (d Delta) PatchPlan(p *PresentationPlan) Delta {
	d[FieldPresentationPlan] = p
	return d
}

// ReplacePlan discards the current plan and installs p.
func (d Delta) ReplacePlan(p *PresentationPlan) Delta {
	d[FieldPresentationPlan] = PlanReplacement{Plan: p}
	return d
}

// PatchSlides deep-merges slides into the current slide map.
func (d Delta) PatchSlides(slides SlideMap) Delta {
	cur, _ := d[FieldSlides].(SlideMap)
	d[FieldSlides] = MergeSlides(cur, slides)
	return d
}

// SetSystemPrompt replaces the system prompt.
func (d Delta) SetSystemPrompt(prompt string) Delta {
	d[FieldSystemPrompt] = prompt
	return d
}

// SetGenerationConfig replaces the generation config.
func (d Delta) SetGenerationConfig(cfg map[string]any) Delta {
	d[FieldGenerationConfig] = cfg
	return d
}

// Has reports whether the field is present in the delta.
func (d Delta) Has(field string) bool {
	_, ok := d[field]
	return ok
}

// Fields returns the present keys in a stable order.
func (d Delta) Fields() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether the delta carries no fields.
func (d Delta) IsEmpty() bool {
	return len(d) == 0
}
