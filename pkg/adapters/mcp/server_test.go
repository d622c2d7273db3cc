package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/deckflow"
	mcpadapter "github.com/aretw0/deckflow/pkg/adapters/mcp"
	"github.com/aretw0/deckflow/pkg/adapters/memory"
	"github.com/aretw0/deckflow/pkg/adapters/scripted"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/nodes"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, gen *scripted.Generator) *client.Client {
	t.Helper()
	a, err := deckflow.New(memory.NewStore(), gen)
	require.NoError(t, err)

	c, err := client.NewInProcessClient(mcpadapter.NewServer(a).MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "deckflow-test", Version: "0.0.1"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func TestListTools(t *testing.T) {
	c := newClient(t, scripted.New())
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"create_project", "list_projects", "send_message", "generate_presentation",
		"set_phase", "get_history", "get_plan", "get_slides",
	}, names)
}

func TestConversationTools(t *testing.T) {
	gen := scripted.New().OnJSON(nodes.KindPlanner, map[string]any{
		"response":          "What tone do you want?",
		"presentation_plan": map[string]any{"title": "Compost"},
	})
	c := newClient(t, gen)

	p := decodeResult[domain.Project](t, call(t, c, "create_project", map[string]any{"title": "Compost", "description": "garden club"}))
	require.NotEmpty(t, p.ID)

	projects := decodeResult[mcpadapter.ProjectList](t, call(t, c, "list_projects", nil))
	assert.Len(t, projects.Projects, 1)

	reply := decodeResult[deckflow.Reply](t, call(t, c, "send_message", map[string]any{"project_id": p.ID, "message": "Talk about compost"}))
	require.Len(t, reply.Replies, 1)
	assert.Equal(t, "What tone do you want?", reply.Replies[0].Content)

	plan := decodeResult[mcpadapter.PlanResult](t, call(t, c, "get_plan", map[string]any{"project_id": p.ID}))
	require.NotNil(t, plan.Plan)
	assert.Equal(t, "Compost", *plan.Plan.Title)

	page := decodeResult[deckflow.HistoryPage](t, call(t, c, "get_history", map[string]any{"project_id": p.ID}))
	assert.Equal(t, 2, page.Total)

	slides := decodeResult[mcpadapter.SlidesResult](t, call(t, c, "get_slides", map[string]any{"project_id": p.ID}))
	assert.Empty(t, slides.Slides)
}

func TestGenerateAndPhaseTools(t *testing.T) {
	gen := scripted.New().
		On(nodes.KindOutline, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "title": "Soil", "time_spent_on_slide": 45}]}`}).
		On(nodes.KindSlideContent, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "content": "<p>Worms</p>"}]}`}).
		On(nodes.KindSpeakerNotes, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "speaker_notes": "Show the bin"}]}`}).
		On(nodes.KindDeliveryTutorial, scripted.Reply{Content: `{"slides": [{"slide_number": 1, "delivery_tutorial": "Slow down"}]}`})
	c := newClient(t, gen)
	p := decodeResult[domain.Project](t, call(t, c, "create_project", map[string]any{"title": "Compost"}))

	out := decodeResult[deckflow.Generation](t, call(t, c, "generate_presentation", map[string]any{"project_id": p.ID}))
	assert.Equal(t, domain.PhaseReview, out.Phase)
	require.Len(t, out.Slides, 1)
	assert.Equal(t, "Show the bin", out.Slides[0].SpeakerNotes)

	res := call(t, c, "set_phase", map[string]any{"project_id": p.ID, "phase": "generation"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "cannot move project")

	moved := decodeResult[domain.Project](t, call(t, c, "set_phase", map[string]any{"project_id": p.ID, "phase": "complete"}))
	assert.Equal(t, domain.PhaseComplete, moved.Phase)
}

func TestToolErrors(t *testing.T) {
	c := newClient(t, scripted.New())

	res := call(t, c, "send_message", map[string]any{"project_id": "missing", "message": "hi"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not found")

	res = call(t, c, "create_project", map[string]any{"title": ""})
	assert.True(t, res.IsError)
}

func TestGraphResource(t *testing.T) {
	c := newClient(t, scripted.New())

	req := mcp.ReadResourceRequest{}
	req.Params.URI = mcpadapter.GraphURIPrefix + "presentation"
	res, err := c.ReadResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	tc, ok := mcp.AsTextResourceContents(res.Contents[0])
	require.True(t, ok)
	assert.Contains(t, tc.Text, "graph TD")
	assert.Contains(t, tc.Text, "planner")

	req.Params.URI = mcpadapter.GraphURIPrefix + "nope"
	_, err = c.ReadResource(context.Background(), req)
	assert.Error(t, err)
}
