package domain

// PresentationPlan is the structured brief of a presentation.
// Every attribute is optional; a nil attribute in a patch leaves the current value alone.
type PresentationPlan struct {
	Title           *string  `json:"title,omitempty" mapstructure:"title"`
	Objective       *string  `json:"objective,omitempty" mapstructure:"objective"`
	TargetAudience  *string  `json:"target_audience,omitempty" mapstructure:"target_audience"`
	Tone            *string  `json:"tone,omitempty" mapstructure:"tone"`
	Duration        *int     `json:"duration,omitempty" mapstructure:"duration"` // minutes
	ResearchSummary *string  `json:"research_summary,omitempty" mapstructure:"research_summary"`
	KeyMessages     []string `json:"key_messages,omitempty" mapstructure:"key_messages"`
}

// PlanReplacement is the delta value that discards the current plan instead of patching it.
type PlanReplacement struct {
	Plan *PresentationPlan
}

// Ref returns a pointer to v. Handy for building plan patches.
func Ref[T any](v T) *T {
	return &v
}

// Clone returns a deep copy. Clone of nil is nil.
func (p *PresentationPlan) Clone() *PresentationPlan {
	if p == nil {
		return nil
	}
	c := &PresentationPlan{
		Title:           cloneRef(p.Title),
		Objective:       cloneRef(p.Objective),
		TargetAudience:  cloneRef(p.TargetAudience),
		Tone:            cloneRef(p.Tone),
		Duration:        cloneRef(p.Duration),
		ResearchSummary: cloneRef(p.ResearchSummary),
	}
	if p.KeyMessages != nil {
		c.KeyMessages = append([]string(nil), p.KeyMessages...)
	}
	return c
}

// IsEmpty reports whether no attribute is set.
func (p *PresentationPlan) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Title == nil && p.Objective == nil && p.TargetAudience == nil &&
		p.Tone == nil && p.Duration == nil && p.ResearchSummary == nil && p.KeyMessages == nil
}

// MergePlan applies patch on top of existing.
// A nil existing plan yields a copy of the patch; otherwise every non-nil patch attribute wins.
// Neither argument is modified.
func MergePlan(existing, patch *PresentationPlan) *PresentationPlan {
	if patch == nil {
		return existing.Clone()
	}
	if existing == nil {
		return patch.Clone()
	}
	merged := existing.Clone()
	if patch.Title != nil {
		merged.Title = cloneRef(patch.Title)
	}
	if patch.Objective != nil {
		merged.Objective = cloneRef(patch.Objective)
	}
	if patch.TargetAudience != nil {
		merged.TargetAudience = cloneRef(patch.TargetAudience)
	}
	if patch.Tone != nil {
		merged.Tone = cloneRef(patch.Tone)
	}
	if patch.Duration != nil {
		merged.Duration = cloneRef(patch.Duration)
	}
	if patch.ResearchSummary != nil {
		merged.ResearchSummary = cloneRef(patch.ResearchSummary)
	}
	if patch.KeyMessages != nil {
		merged.KeyMessages = append([]string(nil), patch.KeyMessages...)
	}
	return merged
}

func cloneRef[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
