package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryContract verifies that a Repository implementation honours the
// create/get/update/exists semantics every adapter must share.
func RunRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")

	newProject := func(t *testing.T, name string) domain.Project {
		t.Helper()
		p, err := domain.NewProject("Contract "+name, "contract test")
		require.NoError(t, err)
		p.ID = fmt.Sprintf("contract-%s-%s", name, suffix)
		require.NoError(t, repo.CreateProject(ctx, p))
		return p
	}

	t.Run("Projects", func(t *testing.T) {
		p := newProject(t, "projects")

		got, err := repo.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Title, got.Title)
		assert.Equal(t, domain.PhasePreparation, got.Phase)

		ok, err := repo.ProjectExists(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		p.Phase = domain.PhaseGeneration
		require.NoError(t, repo.UpdateProject(ctx, p))
		got, err = repo.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseGeneration, got.Phase)

		list, err := repo.ListProjects(ctx)
		require.NoError(t, err)
		var ids []string
		for _, item := range list {
			ids = append(ids, item.ID)
		}
		assert.Contains(t, ids, p.ID)
	})

	t.Run("Missing Project", func(t *testing.T) {
		_, err := repo.GetProject(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		ok, err := repo.ProjectExists(ctx, "missing-"+suffix)
		require.NoError(t, err)
		assert.False(t, ok)

		err = repo.UpdateProject(ctx, domain.Project{ID: "missing-" + suffix, Title: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		ok, _ = repo.ProjectExists(ctx, "missing-"+suffix)
		assert.False(t, ok, "update must not create")
	})

	t.Run("Messages Paging", func(t *testing.T) {
		p := newProject(t, "messages")
		for i := 0; i < 5; i++ {
			m, err := domain.NewMessage(domain.RoleUser, fmt.Sprintf("msg %d", i))
			require.NoError(t, err)
			require.NoError(t, repo.CreateMessage(ctx, p.ID, m))
		}

		all, total, err := repo.ListMessages(ctx, p.ID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, all, 5)
		assert.Equal(t, "msg 0", all[0].Content)
		assert.Equal(t, "msg 4", all[4].Content)

		page, total, err := repo.ListMessages(ctx, p.ID, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, "msg 1", page[0].Content)
		assert.Equal(t, "msg 2", page[1].Content)

		tail, _, err := repo.ListMessages(ctx, p.ID, 10, 4)
		require.NoError(t, err)
		assert.Len(t, tail, 1)

		empty, total, err := repo.ListMessages(ctx, "no-messages-"+suffix, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, empty)
		assert.Zero(t, total)
	})

	t.Run("Plan", func(t *testing.T) {
		p := newProject(t, "plan")

		_, err := repo.GetPlan(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		err = repo.UpdatePlan(ctx, p.ID, domain.PresentationPlan{Title: domain.Ref("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		plan := domain.PresentationPlan{Title: domain.Ref("Q3"), Duration: domain.Ref(20)}
		require.NoError(t, repo.CreatePlan(ctx, p.ID, plan))
		ok, err := repo.PlanExists(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		plan.Tone = domain.Ref("warm")
		require.NoError(t, repo.UpdatePlan(ctx, p.ID, plan))
		got, err := repo.GetPlan(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, &plan, got)
	})

	t.Run("Slides", func(t *testing.T) {
		p := newProject(t, "slides")

		slides, err := repo.ListSlides(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, slides)

		err = repo.UpdateSlide(ctx, p.ID, domain.Slide{SlideNumber: 1, Title: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, repo.CreateSlide(ctx, p.ID, domain.Slide{SlideNumber: 2, Title: "Agenda"}))
		require.NoError(t, repo.CreateSlide(ctx, p.ID, domain.Slide{SlideNumber: 1, Title: "Intro"}))

		ok, err := repo.SlideExists(ctx, p.ID, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.SlideExists(ctx, p.ID, 3)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, repo.UpdateSlide(ctx, p.ID, domain.Slide{SlideNumber: 1, Title: "Intro", Content: "Hello"}))
		got, err := repo.GetSlide(ctx, p.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, "Hello", got.Content)

		_, err = repo.GetSlide(ctx, p.ID, 9)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		slides, err = repo.ListSlides(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, slides.Numbers())

		require.NoError(t, repo.DeleteSlide(ctx, p.ID, 2))
		assert.ErrorIs(t, repo.DeleteSlide(ctx, p.ID, 2), domain.ErrNotFound)
		slides, err = repo.ListSlides(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, slides.Numbers())
	})

	t.Run("Delete Project", func(t *testing.T) {
		p := newProject(t, "delete")
		m, _ := domain.NewMessage(domain.RoleUser, "bye")
		require.NoError(t, repo.CreateMessage(ctx, p.ID, m))
		require.NoError(t, repo.CreatePlan(ctx, p.ID, domain.PresentationPlan{Title: domain.Ref("gone")}))
		require.NoError(t, repo.CreateSlide(ctx, p.ID, domain.Slide{SlideNumber: 1, Title: "gone"}))

		require.NoError(t, repo.DeleteProject(ctx, p.ID))

		_, err := repo.GetProject(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, total, err := repo.ListMessages(ctx, p.ID, 0, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
		ok, err := repo.PlanExists(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		slides, err := repo.ListSlides(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, slides)
	})
}
