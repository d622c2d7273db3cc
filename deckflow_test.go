package deckflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/deckflow"
	"github.com/aretw0/deckflow/pkg/adapters/memory"
	"github.com/aretw0/deckflow/pkg/adapters/scripted"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/nodes"
	"github.com/aretw0/deckflow/pkg/ports"
	"github.com/aretw0/deckflow/pkg/tools"
	"github.com/aretw0/deckflow/pkg/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssistant(t *testing.T, gen *scripted.Generator, opts ...deckflow.Option) (*deckflow.Assistant, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	a, err := deckflow.New(store, gen, opts...)
	require.NoError(t, err)
	return a, store
}

func newProject(t *testing.T, a *deckflow.Assistant) domain.Project {
	t.Helper()
	p, err := a.CreateProject(context.Background(), "Energy talk", "for the town hall")
	require.NoError(t, err)
	return p
}

func generationScript(gen *scripted.Generator) *scripted.Generator {
	return gen.
		On(nodes.KindOutline, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "title": "Why solar", "time_spent_on_slide": 60}, {"slide_number": 2, "title": "Next steps", "time_spent_on_slide": 30}]}`}).
		On(nodes.KindSlideContent, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "content": "<h1>Sun</h1>"}, {"slide_number": 2, "content": "<h1>Act</h1>"}]}`}).
		On(nodes.KindSpeakerNotes, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "speaker_notes": "Ask a question"}, {"slide_number": 2, "speaker_notes": "Call to action"}]}`}).
		On(nodes.KindDeliveryTutorial, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "delivery_tutorial": "Pause"}, {"slide_number": 2, "delivery_tutorial": "Smile"}]}`})
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := deckflow.New(nil, scripted.New())
	assert.Error(t, err)
	_, err = deckflow.New(memory.NewStore(), nil)
	assert.Error(t, err)
	_, err = deckflow.New(memory.NewStore(), scripted.New(), deckflow.WithWorkflow("nope"))
	assert.Error(t, err)
}

func TestCreateProject(t *testing.T) {
	a, _ := newAssistant(t, scripted.New())
	ctx := context.Background()

	p := newProject(t, a)
	assert.Equal(t, domain.PhasePreparation, p.Phase)

	got, err := a.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)

	_, err = a.CreateProject(ctx, "  ", "")
	assert.ErrorIs(t, err, deckflow.ErrInvalidInput)

	_, err = a.Project(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := a.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSendMessage_PlanningTurn(t *testing.T) {
	gen := scripted.New().OnJSON(nodes.KindPlanner, map[string]any{
		"response":          "Sure, what's the target audience?",
		"presentation_plan": map[string]any{"title": "Renewable Energy Overview"},
	})
	a, store := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	reply, err := a.SendMessage(ctx, p.ID, "Help me build a talk on renewable energy")
	require.NoError(t, err)
	require.Len(t, reply.Replies, 1)
	assert.Equal(t, "Sure, what's the target audience?", reply.Replies[0].Content)
	assert.Equal(t, "Renewable Energy Overview", *reply.Plan.Title)
	assert.Equal(t, domain.PhasePreparation, reply.Phase)

	page, err := a.History(ctx, p.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	assert.Equal(t, domain.RoleUser, page.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, page.Messages[1].Role)

	plan, err := store.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renewable Energy Overview", *plan.Title)

	req := gen.Requests()[0]
	assert.Equal(t, deckflow.DefaultSystemPrompt, req.SystemPrompt)
	assert.Len(t, req.History, 1)
}

func TestSendMessage_SecondTurnPatchesPlan(t *testing.T) {
	gen := scripted.New().On(nodes.KindPlanner,
		scripted.Reply{Content: `{"response": "Who is it for?", "presentation_plan": {"title": "Solar"}}`},
		scripted.Reply{Content: `{"response": "Noted.", "presentation_plan": {"target_audience": "students"}}`},
	)
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	_, err := a.SendMessage(ctx, p.ID, "A talk on solar")
	require.NoError(t, err)
	_, err = a.SendMessage(ctx, p.ID, "For students")
	require.NoError(t, err)

	plan, err := a.Plan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Solar", *plan.Title)
	assert.Equal(t, "students", *plan.TargetAudience)

	assert.Len(t, gen.Requests()[1].History, 3, "second turn sees the persisted history")
}

func TestSendMessage_ToolsMovePhase(t *testing.T) {
	gen := scripted.New().On(nodes.KindPlanner,
		scripted.Reply{ToolCalls: []domain.ToolCall{{Name: tools.SetPhaseName, Args: map[string]any{"phase": "GENERATION"}}}},
		scripted.Reply{Content: `{"response": "Ready when you are."}`},
	)
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	reply, err := a.SendMessage(ctx, p.ID, "Let's generate the slides")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGeneration, reply.Phase)

	require.Len(t, reply.Replies, 2)
	for _, m := range reply.Replies {
		assert.Empty(t, m.ToolCalls, "tool calls are not persisted")
	}

	stored, err := a.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGeneration, stored.Phase)

	page, err := a.History(ctx, p.ID, 0, 0)
	require.NoError(t, err)
	for _, m := range page.Messages {
		assert.NotEqual(t, domain.RoleTool, m.Role)
	}
}

func TestSendMessage_FailurePersistsNothing(t *testing.T) {
	gen := scripted.New().On(nodes.KindPlanner, scripted.Reply{Content: "not json"})
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	_, err := a.SendMessage(ctx, p.ID, "hello")
	assert.ErrorIs(t, err, domain.ErrGenerationSchema)

	page, err := a.History(ctx, p.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	_, err = a.Plan(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendMessage_Validation(t *testing.T) {
	a, _ := newAssistant(t, scripted.New())
	ctx := context.Background()

	_, err := a.SendMessage(ctx, "missing", "hello")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	p := newProject(t, a)
	_, err = a.SendMessage(ctx, p.ID, "   ")
	assert.ErrorIs(t, err, deckflow.ErrInvalidInput)
}

func TestSendMessage_StepBudget(t *testing.T) {
	gen := scripted.New().On(nodes.KindPlanner, scripted.Reply{
		ToolCalls: []domain.ToolCall{{Name: tools.UpdatePlanName, Args: map[string]any{"tone": "again"}}},
	})
	a, _ := newAssistant(t, gen, deckflow.WithMaxSteps(6))
	p := newProject(t, a)

	_, err := a.SendMessage(context.Background(), p.ID, "loop")
	assert.ErrorIs(t, err, domain.ErrStepBudgetExceeded)
	assert.Equal(t, 3, gen.Calls(nodes.KindPlanner))
}

func TestGenerate(t *testing.T) {
	gen := generationScript(scripted.New())
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	out, err := a.Generate(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReview, out.Phase)
	require.Len(t, out.Slides, 2)
	assert.Equal(t, "Why solar", out.Slides[0].Title)
	assert.True(t, out.Slides[1].Complete())

	slides, err := a.Slides(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Slides, slides)

	stored, err := a.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReview, stored.Phase)

	// Review is not a generation phase and going back is only allowed to preparation.
	_, err = a.Generate(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalPhaseTransition)
}

func TestGenerate_RegenerationReplacesDeck(t *testing.T) {
	gen := scripted.New().
		On(nodes.KindOutline,
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "title": "A"}, {"slide_number": 2, "title": "B"}, {"slide_number": 3, "title": "OLD"}]}`},
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "title": "New A"}, {"slide_number": 2, "title": "New B"}]}`}).
		On(nodes.KindSlideContent,
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "content": "a"}, {"slide_number": 2, "content": "b"}, {"slide_number": 3, "content": "old"}]}`},
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "content": "new a"}, {"slide_number": 2, "content": "new b"}]}`}).
		On(nodes.KindSpeakerNotes,
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "speaker_notes": "n"}, {"slide_number": 2, "speaker_notes": "n"}, {"slide_number": 3, "speaker_notes": "n"}]}`},
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "speaker_notes": "n"}, {"slide_number": 2, "speaker_notes": "n"}]}`}).
		On(nodes.KindDeliveryTutorial,
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "delivery_tutorial": "t"}, {"slide_number": 2, "delivery_tutorial": "t"}, {"slide_number": 3, "delivery_tutorial": "t"}]}`},
			scripted.Reply{Content: `{"slides": [{"slide_number": 1, "delivery_tutorial": "t"}, {"slide_number": 2, "delivery_tutorial": "t"}]}`})
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	first, err := a.Generate(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, first.Slides, 3)

	_, err = a.SetPhase(ctx, p.ID, domain.PhasePreparation)
	require.NoError(t, err)

	second, err := a.Generate(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, second.Slides, 2)
	assert.Equal(t, "New A", second.Slides[0].Title)
	assert.Equal(t, "new b", second.Slides[1].Content)

	stored, err := a.Slides(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Slides, stored)
}

func TestGenerate_FailureKeepsPhase(t *testing.T) {
	gen := scripted.New().On(nodes.KindOutline, scripted.Reply{Err: errors.New("model overloaded")})
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	_, err := a.Generate(ctx, p.ID)
	require.Error(t, err)

	stored, err := a.Project(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePreparation, stored.Phase)
}

func TestSetPhase(t *testing.T) {
	tests := []struct {
		name    string
		policy  domain.PhasePolicy
		steps   []domain.Phase
		wantErr error
	}{
		{"forward", nil, []domain.Phase{domain.PhaseGeneration, domain.PhaseReview}, nil},
		{"reopen", nil, []domain.Phase{domain.PhaseReview, domain.PhasePreparation}, nil},
		{"backward", nil, []domain.Phase{domain.PhaseReview, domain.PhaseGeneration}, domain.ErrIllegalPhaseTransition},
		{"strict", domain.ForwardOnly, []domain.Phase{domain.PhaseReview, domain.PhasePreparation}, domain.ErrIllegalPhaseTransition},
		{"anything", domain.AnyTransition, []domain.Phase{domain.PhaseComplete, domain.PhaseGeneration}, nil},
		{"unknown", nil, []domain.Phase{"drafting"}, deckflow.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAssistant(t, scripted.New(), deckflow.WithPhasePolicy(tt.policy))
			ctx := context.Background()
			p := newProject(t, a)

			var err error
			var got domain.Project
			for _, phase := range tt.steps {
				if got, err = a.SetPhase(ctx, p.ID, phase); err != nil {
					break
				}
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.steps[len(tt.steps)-1], got.Phase)
		})
	}
}

func TestHistory_Paging(t *testing.T) {
	gen := scripted.New().OnJSON(nodes.KindPlanner, map[string]any{"response": "ok"})
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)
	for _, text := range []string{"one", "two", "three"} {
		_, err := a.SendMessage(ctx, p.ID, text)
		require.NoError(t, err)
	}

	page, err := a.History(ctx, p.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	assert.True(t, page.HasMore)
	assert.Equal(t, "one", page.Messages[0].Content)

	page, err = a.History(ctx, p.ID, 2, 4)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	assert.Equal(t, "three", page.Messages[0].Content)
}

func TestSendMessage_SerialisedPerProject(t *testing.T) {
	gen := scripted.New().OnJSON(nodes.KindPlanner, map[string]any{"response": "ok"})
	a, _ := newAssistant(t, gen)
	ctx := context.Background()
	p := newProject(t, a)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.SendMessage(ctx, p.ID, "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Each run saw every earlier turn, so history lengths grow by two.
	seen := map[int]bool{}
	for _, req := range gen.Requests() {
		seen[len(req.History)] = true
	}
	for i := 0; i < 8; i++ {
		assert.True(t, seen[2*i+1], "a run saw %d messages", 2*i+1)
	}
}

func TestOptions(t *testing.T) {
	var entered []string
	hooks := domain.LifecycleHooks{OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
		entered = append(entered, e.NodeID)
	}}
	gen := scripted.New().On(nodes.KindChat, scripted.Reply{Content: "Hello!"})
	a, _ := newAssistant(t, gen,
		deckflow.WithWorkflow(workflows.NameChatOnly),
		deckflow.WithSystemPrompt("be brief"),
		deckflow.WithGenerationConfig(map[string]any{ports.ConfigTemperature: 0.1}),
		deckflow.WithInstructions(nodes.KindChat, "one sentence"),
		deckflow.WithLifecycleHooks(hooks),
	)
	p := newProject(t, a)

	reply, err := a.SendMessage(context.Background(), p.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply.Replies[0].Content)
	assert.Equal(t, workflows.NameChatOnly, a.Workflow())
	assert.Equal(t, []string{nodes.KindChat}, entered)

	req := gen.Requests()[0]
	assert.Equal(t, "be brief", req.SystemPrompt)
	assert.Equal(t, "one sentence", req.Instructions)
	v, ok := req.Float(ports.ConfigTemperature)
	assert.True(t, ok)
	assert.InDelta(t, 0.1, v, 0.0001)
}

func TestCustomTopologyAndTools(t *testing.T) {
	echo := domain.ToolSpec{Name: "echo", Description: "repeat"}
	custom := domain.Topology{
		Name: "planner-only",
		Nodes: []domain.NodeSpec{
			{ID: "plan", Kind: nodes.KindPlanner},
			{ID: "run_tools", Kind: nodes.KindCallTool},
		},
		Edges: []domain.Edge{
			{From: domain.Start, To: "plan"},
			{From: "plan", Router: workflows.RouterToolCalls, Targets: []string{nodes.KindCallTool}},
			{From: "run_tools", To: "plan"},
		},
	}
	// The tool-call router names the call_tool kind, so the custom ID is unreachable.
	_, err := deckflow.New(memory.NewStore(), scripted.New(), deckflow.WithTopology(custom))
	require.Error(t, err)

	custom.Nodes[1].ID = nodes.KindCallTool
	custom.Edges[2].From = nodes.KindCallTool
	gen := scripted.New().On(nodes.KindPlanner,
		scripted.Reply{ToolCalls: []domain.ToolCall{{Name: "echo", Args: map[string]any{"text": "hi"}}}},
		scripted.Reply{Content: `{"response": "done"}`},
	)
	var echoed string
	a, _ := newAssistant(t, gen,
		deckflow.WithTopology(custom),
		deckflow.WithTool(echo, func(_ context.Context, _ *domain.WorkflowState, args map[string]any) (ports.ToolOutput, error) {
			echoed, _ = args["text"].(string)
			return ports.ToolOutput{Content: echoed}, nil
		}),
	)
	assert.Contains(t, a.Topologies(), "planner-only")
	_, err = a.Topology("planner-only")
	require.NoError(t, err)

	p := newProject(t, a)
	_, err = a.SendMessage(context.Background(), p.ID, "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", echoed)

	var names []string
	for _, s := range gen.Requests()[0].Tools {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"echo", tools.SetPhaseName, tools.UpdatePlanName}, names)
}

func TestDeleteProject(t *testing.T) {
	a, _ := newAssistant(t, scripted.New())
	ctx := context.Background()
	p := newProject(t, a)

	require.NoError(t, a.DeleteProject(ctx, p.ID))
	_, err := a.Project(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, a.DeleteProject(ctx, p.ID), domain.ErrNotFound)
}
