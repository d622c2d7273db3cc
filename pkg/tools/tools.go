// Package tools holds the built-in tools the planner may call.
// Tools never write state directly; they return a delta the tool node merges.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/aretw0/deckflow/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

const (
	UpdatePlanName = "update_plan"
	SetPhaseName   = "set_phase"
)

// UpdatePlanSpec describes update_plan to the generator.
var UpdatePlanSpec = domain.ToolSpec{
	Name:        UpdatePlanName,
	Description: "Update attributes of the presentation plan. Only the given attributes change unless replace is true.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":            map[string]any{"type": "string"},
			"objective":        map[string]any{"type": "string"},
			"target_audience":  map[string]any{"type": "string"},
			"tone":             map[string]any{"type": "string"},
			"duration":         map[string]any{"type": "integer", "description": "Length in minutes"},
			"research_summary": map[string]any{"type": "string"},
			"key_messages":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"replace":          map[string]any{"type": "boolean", "description": "Discard the current plan first"},
		},
	},
}

// SetPhaseSpec describes set_phase to the generator.
var SetPhaseSpec = domain.ToolSpec{
	Name:        SetPhaseName,
	Description: "Move the project to another phase. Use generation when the user asks to build the slides.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"phase": map[string]any{
				"type": "string",
				"enum": []string{string(domain.PhasePreparation), string(domain.PhaseGeneration), string(domain.PhaseReview), string(domain.PhaseComplete)},
			},
		},
		"required": []string{"phase"},
	},
}

type updatePlanArgs struct {
	domain.PresentationPlan `mapstructure:",squash"`
	Replace                 bool `mapstructure:"replace"`
}

// UpdatePlan patches (or replaces) the presentation plan.
// Malformed arguments are reported back to the generator rather than failing the run.
func UpdatePlan(ctx context.Context, state *domain.WorkflowState, args map[string]any) (ports.ToolOutput, error) {
	var in updatePlanArgs
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &in,
	})
	if err != nil {
		return ports.ToolOutput{}, err
	}
	if err := dec.Decode(args); err != nil {
		return ports.ToolOutput{Content: "invalid arguments: " + err.Error()}, nil
	}

	patch := in.PresentationPlan
	if in.Replace {
		return ports.ToolOutput{
			Content: "plan replaced",
			Delta:   domain.Delta{}.ReplacePlan(&patch),
		}, nil
	}
	if patch.IsEmpty() {
		return ports.ToolOutput{Content: "nothing to update"}, nil
	}
	return ports.ToolOutput{
		Content: "plan updated: " + strings.Join(planKeys(&patch), ", "),
		Delta:   domain.Delta{}.PatchPlan(&patch),
	}, nil
}

// SetPhase moves the project to the requested phase. The merge enforces the phase policy.
func SetPhase(ctx context.Context, state *domain.WorkflowState, args map[string]any) (ports.ToolOutput, error) {
	raw, _ := args["phase"].(string)
	phase, err := domain.ParsePhase(raw)
	if err != nil {
		return ports.ToolOutput{Content: "invalid arguments: " + err.Error()}, nil
	}
	if phase == state.ProjectPhase {
		return ports.ToolOutput{Content: fmt.Sprintf("project already in %s", phase)}, nil
	}
	return ports.ToolOutput{
		Content: fmt.Sprintf("phase set to %s", phase),
		Delta:   domain.Delta{}.SetPhase(phase),
	}, nil
}

// RegisterDefaults adds update_plan and set_phase to r.
func RegisterDefaults(r *registry.Registry) *registry.Registry {
	r.Register(UpdatePlanSpec, UpdatePlan)
	r.Register(SetPhaseSpec, SetPhase)
	return r
}

// NewDefaultRegistry returns a registry with the built-in tools.
func NewDefaultRegistry() *registry.Registry {
	return RegisterDefaults(registry.NewRegistry())
}

func planKeys(p *domain.PresentationPlan) []string {
	var keys []string
	if p.Title != nil {
		keys = append(keys, "title")
	}
	if p.Objective != nil {
		keys = append(keys, "objective")
	}
	if p.TargetAudience != nil {
		keys = append(keys, "target_audience")
	}
	if p.Tone != nil {
		keys = append(keys, "tone")
	}
	if p.Duration != nil {
		keys = append(keys, "duration")
	}
	if p.ResearchSummary != nil {
		keys = append(keys, "research_summary")
	}
	if p.KeyMessages != nil {
		keys = append(keys, "key_messages")
	}
	return keys
}
