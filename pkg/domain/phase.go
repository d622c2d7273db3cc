package domain

import (
	"fmt"
	"strings"
)

// Phase is the coarse lifecycle stage of a presentation project.
type Phase string

const (
	PhasePreparation Phase = "preparation"
	PhaseGeneration  Phase = "generation"
	PhaseReview      Phase = "review"
	PhaseComplete    Phase = "complete"
)

var phaseOrder = map[Phase]int{
	PhasePreparation: 0,
	PhaseGeneration:  1,
	PhaseReview:      2,
	PhaseComplete:    3,
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Order returns the position of the phase in the lifecycle, or -1 if unknown.
func (p Phase) Order() int {
	if o, ok := phaseOrder[p]; ok {
		return o
	}
	return -1
}

func (p Phase) String() string { return string(p) }

// ParsePhase accepts a phase name in any case ("GENERATION", "generation").
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// PhasePolicy decides whether moving a project from one phase to another is legal.
// A nil error allows the transition.
type PhasePolicy interface {
	Allow(from, to Phase) error
}

// PhasePolicyFunc adapts a function to PhasePolicy.
type PhasePolicyFunc func(from, to Phase) error

// Allow implements PhasePolicy.
func (f PhasePolicyFunc) Allow(from, to Phase) error { return f(from, to) }

var (
	// AnyTransition accepts every move between known phases.
	AnyTransition PhasePolicy = PhasePolicyFunc(func(from, to Phase) error { return nil })

	// ForwardOnly accepts staying put or moving later in the lifecycle.
	ForwardOnly PhasePolicy = PhasePolicyFunc(forwardOnly)

	// ForwardOrReopen is ForwardOnly plus going back to preparation to rework the plan.
	ForwardOrReopen PhasePolicy = PhasePolicyFunc(func(from, to Phase) error {
		if to == PhasePreparation {
			return nil
		}
		return forwardOnly(from, to)
	})

	// DefaultPhasePolicy is used when no policy is configured.
	DefaultPhasePolicy = ForwardOrReopen
)

func forwardOnly(from, to Phase) error {
	// An unset phase is the initial assignment.
	if from == "" || to.Order() >= from.Order() {
		return nil
	}
	return &PhaseTransitionError{From: from, To: to}
}

// PolicyByName resolves the names used in configuration files.
func PolicyByName(name string) (PhasePolicy, error) {
	switch strings.ToLower(name) {
	case "", "forward-or-reopen":
		return ForwardOrReopen, nil
	case "forward-only":
		return ForwardOnly, nil
	case "any":
		return AnyTransition, nil
	default:
		return nil, fmt.Errorf("unknown phase policy %q", name)
	}
}
