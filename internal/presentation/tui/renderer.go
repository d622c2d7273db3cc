package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into terminal output.
type Renderer func(markdown string) (string, error)

// NewRenderer returns a glamour renderer wrapped at width. A style of ""
// detects a light or dark background.
func NewRenderer(style string, width int) (Renderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return r.Render, nil
}

// PlainRenderer returns markdown unchanged.
func PlainRenderer(markdown string) (string, error) {
	return markdown, nil
}

// PlanMarkdown formats a plan as a bullet list. Unset attributes are skipped.
func PlanMarkdown(p *domain.PresentationPlan) string {
	if p == nil {
		return "_No plan yet._\n"
	}
	var sb strings.Builder
	sb.WriteString("## Plan\n\n")
	field := func(label string, v *string) {
		if v != nil && *v != "" {
			fmt.Fprintf(&sb, "- **%s:** %s\n", label, *v)
		}
	}
	field("Title", p.Title)
	field("Objective", p.Objective)
	field("Audience", p.TargetAudience)
	field("Tone", p.Tone)
	if p.Duration != nil {
		fmt.Fprintf(&sb, "- **Duration:** %d min\n", *p.Duration)
	}
	field("Research", p.ResearchSummary)
	if len(p.KeyMessages) > 0 {
		sb.WriteString("- **Key messages:**\n")
		for _, k := range p.KeyMessages {
			fmt.Fprintf(&sb, "  - %s\n", k)
		}
	}
	return sb.String()
}

// SlidesMarkdown formats a deck, one section per slide.
func SlidesMarkdown(slides []domain.Slide) string {
	if len(slides) == 0 {
		return "_No slides yet._\n"
	}
	var sb strings.Builder
	for _, s := range slides {
		fmt.Fprintf(&sb, "## %d. %s\n\n", s.SlideNumber, s.Title)
		if s.TimeSpentOnSlide > 0 {
			fmt.Fprintf(&sb, "_%ds_\n\n", s.TimeSpentOnSlide)
		}
		if s.Content != "" {
			fmt.Fprintf(&sb, "%s\n\n", s.Content)
		}
		if s.SpeakerNotes != "" {
			fmt.Fprintf(&sb, "> **Notes:** %s\n\n", s.SpeakerNotes)
		}
		if s.DeliveryTutorial != "" {
			fmt.Fprintf(&sb, "> **Delivery:** %s\n\n", s.DeliveryTutorial)
		}
	}
	return sb.String()
}
