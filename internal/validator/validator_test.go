package validator_test

import (
	"testing"

	"github.com/aretw0/deckflow/internal/validator"
	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct{}

func (fakeCatalog) HasKind(kind string) bool   { return kind == "step" }
func (fakeCatalog) HasRouter(name string) bool { return name == "pick" }

func TestValidateTopology_Valid(t *testing.T) {
	topo := domain.Topology{
		Name: "ok",
		Nodes: []domain.NodeSpec{
			{ID: "a", Kind: "step"},
			{ID: "b", Kind: "step"},
		},
		Edges: []domain.Edge{
			{From: domain.Start, To: "a"},
			{From: "a", Router: "pick", Targets: []string{"b", domain.End}},
			{From: "b", To: "a"},
		},
	}
	assert.NoError(t, validator.ValidateTopology(topo, fakeCatalog{}))
}

func TestValidateTopology_Problems(t *testing.T) {
	tests := []struct {
		name    string
		topo    domain.Topology
		problem string
	}{
		{
			name: "dangling target",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, To: "a"}, {From: "a", To: "ghost"}},
			},
			problem: `edge from "a" points to unregistered node "ghost"`,
		},
		{
			name: "dangling router target",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, To: "a"}, {From: "a", Router: "pick", Targets: []string{"ghost"}}},
			},
			problem: `edge from "a" points to unregistered node "ghost"`,
		},
		{
			name: "unreachable node",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}, {ID: "island", Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, To: "a"}, {From: "a", To: domain.End}, {From: "island", To: domain.End}},
			},
			problem: `node "island" is unreachable from START`,
		},
		{
			name: "duplicate node",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}, {ID: "a", Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, To: "a"}, {From: "a", To: domain.End}},
			},
			problem: `node "a" registered twice`,
		},
		{
			name: "unknown kind",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "teleport"}},
				Edges: []domain.Edge{{From: domain.Start, To: "a"}, {From: "a", To: domain.End}},
			},
			problem: `node "a" has unknown kind "teleport"`,
		},
		{
			name: "unknown router",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, Router: "coin", Targets: []string{"a"}}, {From: "a", To: domain.End}},
			},
			problem: `edge from "__start__" uses unknown router "coin"`,
		},
		{
			name: "missing outgoing edge",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, To: "a"}},
			},
			problem: `node "a" has no outgoing edge`,
		},
		{
			name: "no entry",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: "a", Kind: "step"}},
				Edges: []domain.Edge{{From: "a", To: domain.End}},
			},
			problem: "no edge leaves START",
		},
		{
			name: "reserved id",
			topo: domain.Topology{
				Nodes: []domain.NodeSpec{{ID: domain.End, Kind: "step"}},
				Edges: []domain.Edge{{From: domain.Start, To: domain.End}},
			},
			problem: `node id "__end__" is reserved`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateTopology(tt.topo, fakeCatalog{})
			var verr *validator.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Problems, tt.problem)
		})
	}
}
