package domain

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// reducer folds one delta value into the state it is given.
type reducer func(m *Merger, state *WorkflowState, value any) error

var reducers = map[string]reducer{
	FieldConversationHistory: reduceHistory,
	FieldProjectPhase:        reducePhase,
	FieldPresentationPlan:    reducePlan,
	FieldSlides:              reduceSlides,
	FieldSystemPrompt:        reduceSystemPrompt,
	FieldGenerationConfig:    reduceGenerationConfig,
}

// Merger applies deltas to states using the per-field reducers.
type Merger struct {
	policy PhasePolicy
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithPhasePolicy sets the rule used to accept phase changes.
func WithPhasePolicy(p PhasePolicy) MergerOption {
	return func(m *Merger) {
		if p != nil {
			m.policy = p
		}
	}
}

// NewMerger creates a Merger. Without options it uses DefaultPhasePolicy.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{policy: DefaultPhasePolicy}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge returns a new state with delta applied to current. Neither argument is modified.
// Fields are reduced in name order; on the first failure the partial result is discarded.
func (m *Merger) Merge(current *WorkflowState, delta Delta) (*WorkflowState, error) {
	next := current.Snapshot()
	if next == nil {
		next = &WorkflowState{Slides: make(SlideMap)}
	}
	for _, field := range delta.Fields() {
		reduce, ok := reducers[field]
		if !ok {
			return nil, &SchemaMismatchError{Field: field, Reason: "unknown state field"}
		}
		if err := reduce(m, next, delta[field]); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Merge applies delta with a default Merger.
func Merge(current *WorkflowState, delta Delta) (*WorkflowState, error) {
	return NewMerger().Merge(current, delta)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// decodeLoose converts untyped input (maps decoded from JSON, tool arguments) into out.
func decodeLoose(field string, input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return &SchemaMismatchError{Field: field, Expected: fmt.Sprintf("%T", out), Got: fmt.Sprintf("%T", input), Reason: err.Error()}
	}
	return nil
}

func reduceHistory(_ *Merger, s *WorkflowState, value any) error {
	if isNil(value) {
		return nil
	}
	var msgs []Message
	switch v := value.(type) {
	case []Message:
		msgs = v
	case Message:
		msgs = []Message{v}
	case []any, []map[string]any:
		if err := decodeLoose(FieldConversationHistory, v, &msgs); err != nil {
			return err
		}
	default:
		return &SchemaMismatchError{Field: FieldConversationHistory, Expected: "[]Message", Got: fmt.Sprintf("%T", value)}
	}
	for i, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return &SchemaMismatchError{Field: FieldConversationHistory, Reason: fmt.Sprintf("message %d: %v", i, err)}
		}
	}
	s.ConversationHistory = append(s.ConversationHistory, cloneMessages(msgs)...)
	return nil
}

func reducePhase(m *Merger, s *WorkflowState, value any) error {
	if isNil(value) {
		return nil
	}
	var next Phase
	switch v := value.(type) {
	case Phase:
		next = v
	case string:
		next = Phase(v)
	default:
		return &SchemaMismatchError{Field: FieldProjectPhase, Expected: "Phase", Got: fmt.Sprintf("%T", value)}
	}
	parsed, err := ParsePhase(string(next))
	if err != nil {
		return &SchemaMismatchError{Field: FieldProjectPhase, Reason: err.Error()}
	}
	if err := m.policy.Allow(s.ProjectPhase, parsed); err != nil {
		return err
	}
	s.ProjectPhase = parsed
	return nil
}

func reducePlan(_ *Merger, s *WorkflowState, value any) error {
	if isNil(value) {
		return nil
	}
	switch v := value.(type) {
	case PlanReplacement:
		s.PresentationPlan = v.Plan.Clone()
		return nil
	case *PlanReplacement:
		s.PresentationPlan = v.Plan.Clone()
		return nil
	case *PresentationPlan:
		s.PresentationPlan = MergePlan(s.PresentationPlan, v)
		return nil
	case PresentationPlan:
		s.PresentationPlan = MergePlan(s.PresentationPlan, &v)
		return nil
	case map[string]any:
		var patch PresentationPlan
		if err := decodeLoose(FieldPresentationPlan, v, &patch); err != nil {
			return err
		}
		s.PresentationPlan = MergePlan(s.PresentationPlan, &patch)
		return nil
	default:
		return &SchemaMismatchError{Field: FieldPresentationPlan, Expected: "*PresentationPlan", Got: fmt.Sprintf("%T", value)}
	}
}

func reduceSlides(_ *Merger, s *WorkflowState, value any) error {
	if isNil(value) {
		return nil
	}
	var patch SlideMap
	switch v := value.(type) {
	case SlideMap:
		patch = v
	case map[int]Slide:
		patch = SlideMap(v)
	case []Slide:
		patch = make(SlideMap, len(v))
		for _, sl := range v {
			patch[sl.SlideNumber] = sl
		}
	case map[string]any:
		if err := decodeLoose(FieldSlides, v, &patch); err != nil {
			return err
		}
	case []any:
		var list []Slide
		if err := decodeLoose(FieldSlides, v, &list); err != nil {
			return err
		}
		patch = make(SlideMap, len(list))
		for _, sl := range list {
			patch[sl.SlideNumber] = sl
		}
	default:
		return &SchemaMismatchError{Field: FieldSlides, Expected: "SlideMap", Got: fmt.Sprintf("%T", value)}
	}
	for n := range patch {
		if n <= 0 {
			return &SchemaMismatchError{Field: FieldSlides, Reason: fmt.Sprintf("slide number %d is not positive", n)}
		}
	}
	s.Slides = MergeSlides(s.Slides, patch)
	return nil
}

func reduceSystemPrompt(_ *Merger, s *WorkflowState, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s.SystemPrompt = v
	case *string:
		if v != nil {
			s.SystemPrompt = *v
		}
	default:
		return &SchemaMismatchError{Field: FieldSystemPrompt, Expected: "string", Got: fmt.Sprintf("%T", value)}
	}
	return nil
}

func reduceGenerationConfig(_ *Merger, s *WorkflowState, value any) error {
	if isNil(value) {
		return nil
	}
	cfg, ok := value.(map[string]any)
	if !ok {
		return &SchemaMismatchError{Field: FieldGenerationConfig, Expected: "map[string]any", Got: fmt.Sprintf("%T", value)}
	}
	s.GenerationConfig = cloneAnyMap(cfg)
	return nil
}
