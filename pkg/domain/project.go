package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project groups one presentation's chat, plan and slides.
type Project struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Phase       Phase          `json:"phase"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewProject returns a project in the preparation phase.
func NewProject(title, description string) (Project, error) {
	if strings.TrimSpace(title) == "" {
		return Project{}, errors.New("project title must not be empty")
	}
	now := time.Now().UTC()
	return Project{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Phase:       PhasePreparation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
