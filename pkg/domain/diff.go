package domain

import (
	"reflect"
)

// Diff returns the delta that turns before into after.
// History is assumed append-only; a changed plan is emitted as a replacement so the
// result reproduces after exactly. A nil before is treated as an empty state.
func Diff(before, after *WorkflowState) Delta {
	delta := Delta{}
	if after == nil {
		return delta
	}
	if before == nil {
		before = &WorkflowState{}
	}

	if appended := diffHistory(before.ConversationHistory, after.ConversationHistory); len(appended) > 0 {
		delta[FieldConversationHistory] = appended
	}
	if before.ProjectPhase != after.ProjectPhase && after.ProjectPhase != "" {
		delta[FieldProjectPhase] = after.ProjectPhase
	}
	if !reflect.DeepEqual(before.PresentationPlan, after.PresentationPlan) {
		delta[FieldPresentationPlan] = PlanReplacement{Plan: after.PresentationPlan.Clone()}
	}
	if changed := diffSlides(before.Slides, after.Slides); len(changed) > 0 {
		delta[FieldSlides] = changed
	}
	if before.SystemPrompt != after.SystemPrompt {
		delta[FieldSystemPrompt] = after.SystemPrompt
	}
	if !reflect.DeepEqual(before.GenerationConfig, after.GenerationConfig) && after.GenerationConfig != nil {
		delta[FieldGenerationConfig] = cloneAnyMap(after.GenerationConfig)
	}
	return delta
}

func diffHistory(old, new []Message) []Message {
	if len(new) <= len(old) {
		return nil
	}
	return cloneMessages(new[len(old):])
}

func diffSlides(old, new SlideMap) SlideMap {
	changed := SlideMap{}
	for n, s := range new {
		if prev, ok := old[n]; !ok || prev != s {
			changed[n] = s
		}
	}
	return changed
}
