package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/graph"
	"github.com/aretw0/deckflow/pkg/ports"
)

// ErrNoOutline is returned by content stages that run before any slide was outlined.
var ErrNoOutline = errors.New("no slide outline to work from")

const (
	outlineInstructions = `Outline the presentation described by the plan and conversation.
Reply with JSON: {"slides": [{"slide_number": 1, "title": "...", "description": "...", "time_spent_on_slide": 120}]}.
Number slides from 1. time_spent_on_slide is in seconds; the total should fit the planned duration in minutes.`

	contentInstructions = `Write the on-slide content for every outlined slide.
Reply with JSON: {"slides": [{"slide_number": 1, "content": "..."}]}.
Use only the slide numbers of the outline.`

	notesInstructions = `Write speaker notes for every outlined slide.
Reply with JSON: {"slides": [{"slide_number": 1, "speaker_notes": "..."}]}.
Use only the slide numbers of the outline.`

	tutorialInstructions = `Write a short delivery tutorial for every outlined slide: pacing, emphasis, gestures.
Reply with JSON: {"slides": [{"slide_number": 1, "delivery_tutorial": "..."}]}.
Use only the slide numbers of the outline.`
)

type stageItem interface {
	slide() domain.Slide
}

type outlineItem struct {
	SlideNumber      int    `json:"slide_number" validate:"gt=0"`
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description"`
	TimeSpentOnSlide int    `json:"time_spent_on_slide" validate:"gte=0"`
}

func (i outlineItem) slide() domain.Slide {
	return domain.Slide{SlideNumber: i.SlideNumber, Title: i.Title, Description: i.Description, TimeSpentOnSlide: i.TimeSpentOnSlide}
}

type contentItem struct {
	SlideNumber int    `json:"slide_number" validate:"gt=0"`
	Content     string `json:"content" validate:"required"`
}

func (i contentItem) slide() domain.Slide {
	return domain.Slide{SlideNumber: i.SlideNumber, Content: i.Content}
}

type notesItem struct {
	SlideNumber  int    `json:"slide_number" validate:"gt=0"`
	SpeakerNotes string `json:"speaker_notes" validate:"required"`
}

func (i notesItem) slide() domain.Slide {
	return domain.Slide{SlideNumber: i.SlideNumber, SpeakerNotes: i.SpeakerNotes}
}

type tutorialItem struct {
	SlideNumber      int    `json:"slide_number" validate:"gt=0"`
	DeliveryTutorial string `json:"delivery_tutorial" validate:"required"`
}

func (i tutorialItem) slide() domain.Slide {
	return domain.Slide{SlideNumber: i.SlideNumber, DeliveryTutorial: i.DeliveryTutorial}
}

type batch[T stageItem] struct {
	Slides []T `json:"slides" validate:"required,min=1,dive"`
}

// parseBatch returns a decoder for one stage's slide batch.
func parseBatch[T stageItem](nodeID string) func(content string) (domain.SlideMap, error) {
	return func(content string) (domain.SlideMap, error) {
		var out batch[T]
		if err := decodeOutput(nodeID, content, &out); err != nil {
			return nil, err
		}
		slides := make(domain.SlideMap, len(out.Slides))
		for _, item := range out.Slides {
			s := item.slide()
			if _, dup := slides[s.SlideNumber]; dup {
				return nil, &domain.GenerationSchemaError{NodeID: nodeID, Err: fmt.Errorf("slide %d returned twice", s.SlideNumber)}
			}
			slides[s.SlideNumber] = s
		}
		return slides, nil
	}
}

// SlideStage is one generation pass over the deck: outline, content, speaker notes or delivery tutorial.
// Each pass asks the generator for one batch and patches only the attributes it owns.
type SlideStage struct {
	name           string
	gen            ports.Generator
	parse          func(content string) (domain.SlideMap, error)
	requireOutline bool
	cfg            config
}

var _ graph.Node = (*SlideStage)(nil)

// NewOutline creates the stage that decides slide numbers, titles, descriptions and timing.
func NewOutline(gen ports.Generator, opts ...Option) *SlideStage {
	return &SlideStage{name: KindOutline, gen: gen, parse: parseBatch[outlineItem](KindOutline), cfg: newConfig(outlineInstructions, opts)}
}

// NewSlideContent creates the stage that writes on-slide content.
func NewSlideContent(gen ports.Generator, opts ...Option) *SlideStage {
	return &SlideStage{name: KindSlideContent, gen: gen, parse: parseBatch[contentItem](KindSlideContent), requireOutline: true, cfg: newConfig(contentInstructions, opts)}
}

// NewSpeakerNotes creates the stage that writes speaker notes.
func NewSpeakerNotes(gen ports.Generator, opts ...Option) *SlideStage {
	return &SlideStage{name: KindSpeakerNotes, gen: gen, parse: parseBatch[notesItem](KindSpeakerNotes), requireOutline: true, cfg: newConfig(notesInstructions, opts)}
}

// NewDeliveryTutorial creates the stage that writes delivery tutorials.
func NewDeliveryTutorial(gen ports.Generator, opts ...Option) *SlideStage {
	return &SlideStage{name: KindDeliveryTutorial, gen: gen, parse: parseBatch[tutorialItem](KindDeliveryTutorial), requireOutline: true, cfg: newConfig(tutorialInstructions, opts)}
}

// Name returns the stage kind.
func (s *SlideStage) Name() string { return s.name }

func (s *SlideStage) Execute(ctx context.Context, state *domain.WorkflowState, rc *graph.RunContext) (domain.Delta, error) {
	if s.requireOutline && len(state.Slides) == 0 {
		return nil, ErrNoOutline
	}

	instructions := []string{s.cfg.instructions, describe("Presentation plan", state.PresentationPlan)}
	if len(state.Slides) > 0 {
		instructions = append(instructions, describe("Current slides", state.Slides.Ordered()))
	}

	resp, err := s.gen.Generate(ctx, ports.GenerateRequest{
		NodeID:       s.name,
		SystemPrompt: state.SystemPrompt,
		History:      state.ConversationHistory,
		Instructions: strings.Join(instructions, "\n\n"),
		Format:       ports.ResponseJSON,
		Config:       state.GenerationConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	slides, err := s.parse(resp.Content)
	if err != nil {
		return nil, err
	}
	if s.requireOutline {
		for _, n := range slides.Numbers() {
			if _, ok := state.Slides[n]; !ok {
				return nil, &domain.GenerationSchemaError{NodeID: s.name, Err: fmt.Errorf("slide %d is not in the outline", n)}
			}
		}
	}

	s.cfg.logger.Debug("slide stage completed", "project_id", state.ProjectID, "stage", s.name, "slides", len(slides))
	return domain.Delta{}.PatchSlides(slides), nil
}
