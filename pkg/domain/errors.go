package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrProjectNotFound is returned when an operation targets an unknown project.
var ErrProjectNotFound = fmt.Errorf("project %w", ErrNotFound)

// Error kinds. Every typed error below matches exactly one of them through errors.Is.
var (
	ErrSchemaMismatch         = errors.New("schema mismatch")
	ErrGenerationSchema       = errors.New("generation output does not match schema")
	ErrPersistence            = errors.New("persistence failure")
	ErrUnknownTool            = errors.New("unknown tool")
	ErrRouting                = errors.New("routing failure")
	ErrStepBudgetExceeded     = errors.New("step budget exceeded")
	ErrIllegalPhaseTransition = errors.New("illegal phase transition")
)

// SchemaMismatchError is returned when a delta names an unknown field or carries the wrong type.
type SchemaMismatchError struct {
	Field    string
	Expected string
	Got      string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "schema mismatch on %q", e.Field)
	if e.Expected != "" {
		fmt.Fprintf(&sb, ": expected %s, got %s", e.Expected, e.Got)
	}
	if e.Reason != "" {
		fmt.Fprintf(&sb, ": %s", e.Reason)
	}
	return sb.String()
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// GenerationSchemaError is returned when generator output cannot be parsed or validated.
type GenerationSchemaError struct {
	NodeID string
	Err    error
}

func (e *GenerationSchemaError) Error() string {
	return fmt.Sprintf("node %q: invalid generator output: %v", e.NodeID, e.Err)
}

func (e *GenerationSchemaError) Is(target error) bool { return target == ErrGenerationSchema }

func (e *GenerationSchemaError) Unwrap() error { return e.Err }

// PersistenceError wraps a repository failure raised while a node was running.
type PersistenceError struct {
	NodeID string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("node %q: %s: %v", e.NodeID, e.Op, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func (e *PersistenceError) Unwrap() error { return e.Err }

// UnknownToolError is returned when a tool call names a tool nobody registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

// RoutingError is returned when a router picks a target the graph does not declare.
type RoutingError struct {
	From   string
	Router string
	Target string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("router %q at %q returned undeclared target %q", e.Router, e.From, e.Target)
}

func (e *RoutingError) Is(target error) bool { return target == ErrRouting }

// StepBudgetExceededError aborts a run that would execute more nodes than allowed.
type StepBudgetExceededError struct {
	Limit    int
	NextNode string
}

func (e *StepBudgetExceededError) Error() string {
	return fmt.Sprintf("step budget of %d exceeded before running %q", e.Limit, e.NextNode)
}

func (e *StepBudgetExceededError) Is(target error) bool { return target == ErrStepBudgetExceeded }

// PhaseTransitionError is returned when the phase policy rejects a change.
type PhaseTransitionError struct {
	From Phase
	To   Phase
}

func (e *PhaseTransitionError) Error() string {
	return fmt.Sprintf("cannot move project from %s to %s", e.From, e.To)
}

func (e *PhaseTransitionError) Is(target error) bool { return target == ErrIllegalPhaseTransition }
