package ports

import (
	"context"

	"github.com/aretw0/deckflow/pkg/domain"
)

// ProjectStore persists projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p domain.Project) error

	// GetProject returns domain.ErrNotFound if the project does not exist.
	GetProject(ctx context.Context, id string) (domain.Project, error)

	// UpdateProject returns domain.ErrNotFound if the project does not exist. It never creates.
	UpdateProject(ctx context.Context, p domain.Project) error

	ProjectExists(ctx context.Context, id string) (bool, error)

	// ListProjects returns projects ordered by creation time.
	ListProjects(ctx context.Context) ([]domain.Project, error)

	// DeleteProject removes the project and everything stored under it.
	DeleteProject(ctx context.Context, id string) error
}

// MessageStore persists the conversational part of the history.
type MessageStore interface {
	CreateMessage(ctx context.Context, projectID string, m domain.Message) error

	// ListMessages returns messages in insertion order.
	// A limit of zero or less means no limit. total is the full count regardless of paging.
	ListMessages(ctx context.Context, projectID string, limit, offset int) (msgs []domain.Message, total int, err error)
}

// PlanStore persists one plan per project.
type PlanStore interface {
	CreatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error

	// GetPlan returns domain.ErrNotFound if no plan was created yet.
	GetPlan(ctx context.Context, projectID string) (*domain.PresentationPlan, error)

	// UpdatePlan overwrites the stored plan. Returns domain.ErrNotFound if none exists.
	UpdatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error

	PlanExists(ctx context.Context, projectID string) (bool, error)
}

// SlideStore persists slides keyed by project and slide number.
type SlideStore interface {
	CreateSlide(ctx context.Context, projectID string, s domain.Slide) error

	// GetSlide returns domain.ErrNotFound if the slide does not exist.
	GetSlide(ctx context.Context, projectID string, number int) (domain.Slide, error)

	// ListSlides returns every slide of the project. Empty map when none.
	ListSlides(ctx context.Context, projectID string) (domain.SlideMap, error)

	// UpdateSlide overwrites a stored slide. Returns domain.ErrNotFound if it does not exist.
	UpdateSlide(ctx context.Context, projectID string, s domain.Slide) error

	SlideExists(ctx context.Context, projectID string, number int) (bool, error)

	// DeleteSlide returns domain.ErrNotFound if the slide does not exist.
	DeleteSlide(ctx context.Context, projectID string, number int) error
}

// Repository is the full persistence surface used by the assistant and the write-back node.
type Repository interface {
	ProjectStore
	MessageStore
	PlanStore
	SlideStore
}
