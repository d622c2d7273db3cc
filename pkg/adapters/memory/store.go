package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/deckflow/pkg/domain"
)

type projectData struct {
	project  domain.Project
	messages []domain.Message
	plan     *domain.PresentationPlan
	slides   domain.SlideMap
}

// Store implements ports.Repository in memory.
// Safe for concurrent use. Values are copied on the way in and out.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*projectData
	// orphans holds rows written for IDs that have no project row (e.g. ad-hoc runs).
	orphans map[string]*projectData
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*projectData),
		orphans:  make(map[string]*projectData),
	}
}

// data returns the bucket for id, creating an orphan bucket when asked to.
// Caller must hold the lock.
func (s *Store) data(id string, create bool) *projectData {
	if d, ok := s.projects[id]; ok {
		return d
	}
	if d, ok := s.orphans[id]; ok {
		return d
	}
	if !create {
		return nil
	}
	d := &projectData{slides: make(domain.SlideMap)}
	s.orphans[id] = d
	return d
}

func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.orphans[p.ID]
	if ok {
		delete(s.orphans, p.ID)
	} else {
		d = &projectData{slides: make(domain.SlideMap)}
	}
	d.project = copyProject(p)
	s.projects[p.ID] = d
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.projects[id]
	if !ok {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return copyProject(d.project), nil
}

func (s *Store) UpdateProject(ctx context.Context, p domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.projects[p.ID]
	if !ok {
		return domain.ErrProjectNotFound
	}
	d.project = copyProject(p)
	return nil
}

func (s *Store) ProjectExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.projects[id]
	return ok, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Project, 0, len(s.projects))
	for _, d := range s.projects {
		out = append(out, copyProject(d.project))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	delete(s.orphans, id)
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, projectID string, m domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(projectID, true)
	d.messages = append(d.messages, copyMessage(m))
	return nil
}

func (s *Store) ListMessages(ctx context.Context, projectID string, limit, offset int) ([]domain.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data(projectID, false)
	if d == nil {
		return []domain.Message{}, 0, nil
	}
	total := len(d.messages)
	start, end := pageBounds(total, limit, offset)
	out := make([]domain.Message, 0, end-start)
	for _, m := range d.messages[start:end] {
		out = append(out, copyMessage(m))
	}
	return out, total, nil
}

func (s *Store) CreatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data(projectID, true).plan = plan.Clone()
	return nil
}

func (s *Store) GetPlan(ctx context.Context, projectID string) (*domain.PresentationPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data(projectID, false)
	if d == nil || d.plan == nil {
		return nil, domain.ErrNotFound
	}
	return d.plan.Clone(), nil
}

func (s *Store) UpdatePlan(ctx context.Context, projectID string, plan domain.PresentationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data(projectID, false)
	if d == nil || d.plan == nil {
		return domain.ErrNotFound
	}
	d.plan = plan.Clone()
	return nil
}

func (s *Store) PlanExists(ctx context.Context, projectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.data(projectID, false)
	return d != nil && d.plan != nil, nil
}

func (s *Store) CreateSlide(ctx context.Context, projectID string, slide domain.Slide) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data(projectID, true).slides[slide.SlideNumber] = slide
	return nil
}

func (s *Store) GetSlide(ctx context.Context, projectID string, number int) (domain.Slide, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data(projectID, false)
	if d == nil {
		return domain.Slide{}, domain.ErrNotFound
	}
	slide, ok := d.slides[number]
	if !ok {
		return domain.Slide{}, domain.ErrNotFound
	}
	return slide, nil
}

func (s *Store) ListSlides(ctx context.Context, projectID string) (domain.SlideMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data(projectID, false)
	if d == nil {
		return domain.SlideMap{}, nil
	}
	return d.slides.Clone(), nil
}

func (s *Store) UpdateSlide(ctx context.Context, projectID string, slide domain.Slide) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data(projectID, false)
	if d == nil {
		return domain.ErrNotFound
	}
	if _, ok := d.slides[slide.SlideNumber]; !ok {
		return domain.ErrNotFound
	}
	d.slides[slide.SlideNumber] = slide
	return nil
}

func (s *Store) SlideExists(ctx context.Context, projectID string, number int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data(projectID, false)
	if d == nil {
		return false, nil
	}
	_, ok := d.slides[number]
	return ok, nil
}

func (s *Store) DeleteSlide(ctx context.Context, projectID string, number int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data(projectID, false)
	if d == nil {
		return domain.ErrNotFound
	}
	if _, ok := d.slides[number]; !ok {
		return domain.ErrNotFound
	}
	delete(d.slides, number)
	return nil
}

// pageBounds clamps an offset/limit window to [0, total].
func pageBounds(total, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}

func copyProject(p domain.Project) domain.Project {
	if p.Metadata != nil {
		md := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			md[k] = v
		}
		p.Metadata = md
	}
	return p
}

func copyMessage(m domain.Message) domain.Message {
	if m.ToolCalls != nil {
		m.ToolCalls = append([]domain.ToolCall(nil), m.ToolCalls...)
	}
	return m
}
