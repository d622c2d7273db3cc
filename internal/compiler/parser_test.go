package compiler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/deckflow/internal/compiler"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatYAML = `
name: chat-only
nodes:
  - id: chat
    kind: chat
    description: plain conversation
edges:
  - from: START
    to: chat
  - from: chat
    to: END
`

func TestParser_YAML(t *testing.T) {
	topo, err := compiler.NewParser().Parse([]byte(chatYAML))
	require.NoError(t, err)

	assert.Equal(t, "chat-only", topo.Name)
	require.Len(t, topo.Nodes, 1)
	assert.Equal(t, "plain conversation", topo.Nodes[0].Description)
	assert.Equal(t, []domain.Edge{
		{From: domain.Start, To: "chat"},
		{From: "chat", To: domain.End},
	}, topo.Edges)
}

func TestParser_JSONAndRouters(t *testing.T) {
	doc := `{"name": "loop", ` +
		`"nodes": [{"id": "planner", "kind": "planner"}, {"id": "call_tool", "kind": "call_tool"}], ` +
		`"edges": [{"from": "START", "to": "planner"}, ` +
		`{"from": "planner", "router": "tool_calls", "targets": ["call_tool", "END"]}, ` +
		`{"from": "call_tool", "to": "planner"}]}`

	topo, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)

	edge, ok := topo.EdgeFrom("planner")
	require.True(t, ok)
	assert.Equal(t, "tool_calls", edge.Router)
	assert.Equal(t, []string{"call_tool", domain.End}, edge.Targets)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", "nodes: []"},
		{"unknown key", "name: x\ncolour: red"},
		{"not a document", "::::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(chatYAML), 0o644))

	topo, err := compiler.NewParser().ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chat-only", topo.Name)

	_, err = compiler.NewParser().ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
