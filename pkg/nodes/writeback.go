package nodes

import (
	"context"
	"errors"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/graph"
	"github.com/aretw0/deckflow/pkg/ports"
)

var errNoRepository = errors.New("run context carries no repository")

// WriteBack persists the plan and every slide of the running state.
// Existing records are updated, missing ones created, and stored slides the
// state no longer holds are deleted. It changes no state.
type WriteBack struct {
	cfg config
}

var _ graph.Node = (*WriteBack)(nil)

// NewWriteBack creates the persistence node.
func NewWriteBack(opts ...Option) *WriteBack {
	return &WriteBack{cfg: newConfig("", opts)}
}

func (w *WriteBack) Execute(ctx context.Context, state *domain.WorkflowState, rc *graph.RunContext) (domain.Delta, error) {
	if rc == nil || rc.Repository == nil {
		return nil, &domain.PersistenceError{NodeID: KindWriteBack, Op: "open", Err: errNoRepository}
	}
	repo, pid := rc.Repository, rc.ProjectID
	if pid == "" {
		pid = state.ProjectID
	}

	if state.PresentationPlan != nil {
		if err := upsertPlan(ctx, repo, pid, *state.PresentationPlan); err != nil {
			return nil, err
		}
	}

	if len(state.Slides) == 0 {
		w.cfg.logger.Warn("no slides to persist", "project_id", pid)
		return domain.Delta{}, nil
	}
	for _, s := range state.Slides.Ordered() {
		if err := upsertSlide(ctx, repo, pid, s); err != nil {
			return nil, err
		}
	}
	if err := pruneSlides(ctx, repo, pid, state.Slides); err != nil {
		return nil, err
	}

	w.cfg.logger.Info("results persisted", "project_id", pid, "slides", len(state.Slides))
	return domain.Delta{}, nil
}

func upsertPlan(ctx context.Context, repo ports.PlanStore, pid string, plan domain.PresentationPlan) error {
	exists, err := repo.PlanExists(ctx, pid)
	if err != nil {
		return &domain.PersistenceError{NodeID: KindWriteBack, Op: "plan exists", Err: err}
	}
	if exists {
		err = repo.UpdatePlan(ctx, pid, plan)
	} else {
		err = repo.CreatePlan(ctx, pid, plan)
	}
	if err != nil {
		return &domain.PersistenceError{NodeID: KindWriteBack, Op: "save plan", Err: err}
	}
	return nil
}

func upsertSlide(ctx context.Context, repo ports.SlideStore, pid string, s domain.Slide) error {
	exists, err := repo.SlideExists(ctx, pid, s.SlideNumber)
	if err != nil {
		return &domain.PersistenceError{NodeID: KindWriteBack, Op: "slide exists", Err: err}
	}
	if exists {
		err = repo.UpdateSlide(ctx, pid, s)
	} else {
		err = repo.CreateSlide(ctx, pid, s)
	}
	if err != nil {
		return &domain.PersistenceError{NodeID: KindWriteBack, Op: "save slide", Err: err}
	}
	return nil
}

func pruneSlides(ctx context.Context, repo ports.SlideStore, pid string, keep domain.SlideMap) error {
	stored, err := repo.ListSlides(ctx, pid)
	if err != nil {
		return &domain.PersistenceError{NodeID: KindWriteBack, Op: "list slides", Err: err}
	}
	for _, n := range stored.Numbers() {
		if _, ok := keep[n]; ok {
			continue
		}
		if err := repo.DeleteSlide(ctx, pid, n); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return &domain.PersistenceError{NodeID: KindWriteBack, Op: "delete slide", Err: err}
		}
	}
	return nil
}
