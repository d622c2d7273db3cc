package domain

import "sort"

// Slide is one slide of the deck. Empty string and zero values mean "not produced yet".
type Slide struct {
	SlideNumber      int    `json:"slide_number" mapstructure:"slide_number"`
	Title            string `json:"title,omitempty" mapstructure:"title"`
	Description      string `json:"description,omitempty" mapstructure:"description"`
	TimeSpentOnSlide int    `json:"time_spent_on_slide,omitempty" mapstructure:"time_spent_on_slide"` // seconds
	Content          string `json:"content,omitempty" mapstructure:"content"`
	SpeakerNotes     string `json:"speaker_notes,omitempty" mapstructure:"speaker_notes"`
	DeliveryTutorial string `json:"delivery_tutorial,omitempty" mapstructure:"delivery_tutorial"`
}

// Complete reports whether every generation stage has filled the slide.
func (s Slide) Complete() bool {
	return s.Title != "" && s.Content != "" && s.SpeakerNotes != "" && s.DeliveryTutorial != ""
}

// mergeSlide overlays the non-empty attributes of patch onto existing.
func mergeSlide(existing, patch Slide) Slide {
	if patch.Title != "" {
		existing.Title = patch.Title
	}
	if patch.Description != "" {
		existing.Description = patch.Description
	}
	if patch.TimeSpentOnSlide != 0 {
		existing.TimeSpentOnSlide = patch.TimeSpentOnSlide
	}
	if patch.Content != "" {
		existing.Content = patch.Content
	}
	if patch.SpeakerNotes != "" {
		existing.SpeakerNotes = patch.SpeakerNotes
	}
	if patch.DeliveryTutorial != "" {
		existing.DeliveryTutorial = patch.DeliveryTutorial
	}
	return existing
}

// SlideMap indexes slides by slide number. Numbers are positive and never reassigned.
type SlideMap map[int]Slide

// Clone returns a copy of the map. Clone of nil is nil.
func (m SlideMap) Clone() SlideMap {
	if m == nil {
		return nil
	}
	c := make(SlideMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Numbers returns the slide numbers in ascending order.
func (m SlideMap) Numbers() []int {
	nums := make([]int, 0, len(m))
	for n := range m {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Ordered returns the slides sorted by number.
func (m SlideMap) Ordered() []Slide {
	out := make([]Slide, 0, len(m))
	for _, n := range m.Numbers() {
		out = append(out, m[n])
	}
	return out
}

// MergeSlides deep-merges patch into existing and returns a new map.
// Unknown slide numbers are inserted as given; known ones take each non-empty patch attribute.
func MergeSlides(existing, patch SlideMap) SlideMap {
	merged := existing.Clone()
	if merged == nil {
		merged = make(SlideMap, len(patch))
	}
	for n, p := range patch {
		p.SlideNumber = n
		if cur, ok := merged[n]; ok {
			merged[n] = mergeSlide(cur, p)
			continue
		}
		merged[n] = p
	}
	return merged
}
