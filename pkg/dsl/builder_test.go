package dsl

import (
	"strings"
	"testing"

	"github.com/aretw0/deckflow/pkg/domain"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	b := New("simple")

	b.Start().Go("ask")

	b.Add("ask").
		Kind("chat").
		Describe("asks a question").
		Route("tool_calls", "tools", domain.End)

	b.Add("tools").
		Go("ask")

	topo, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if topo.Name != "simple" {
		t.Errorf("Expected name 'simple', got '%s'", topo.Name)
	}
	if len(topo.Nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(topo.Nodes))
	}
	if topo.Nodes[0].ID != "ask" || topo.Nodes[0].Kind != "chat" {
		t.Errorf("Unexpected first node: %+v", topo.Nodes[0])
	}
	if topo.Nodes[1].Kind != "tools" {
		t.Errorf("Expected kind to default to the node ID, got '%s'", topo.Nodes[1].Kind)
	}

	entry, ok := topo.EdgeFrom(domain.Start)
	if !ok || entry.To != "ask" {
		t.Errorf("Expected START -> ask, got %+v", entry)
	}

	routed, ok := topo.EdgeFrom("ask")
	if !ok || !routed.Conditional() {
		t.Fatalf("Expected a routed edge from 'ask', got %+v", routed)
	}
	if len(routed.Targets) != 2 || routed.Targets[1] != domain.End {
		t.Errorf("Unexpected targets: %v", routed.Targets)
	}
}

func TestBuilder_Chain(t *testing.T) {
	b := New("chain")
	b.Start().Go("a")
	b.Chain("a", "b", "c", domain.End)

	topo, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if len(topo.Nodes) != 3 {
		t.Fatalf("Expected 3 nodes, got %d", len(topo.Nodes))
	}
	last, _ := topo.EdgeFrom("c")
	if last.To != domain.End {
		t.Errorf("Expected c -> END, got %+v", last)
	}
}

func TestBuilder_RejectsTwoEdges(t *testing.T) {
	b := New("twice")
	b.Start().Go("a")
	b.Add("a").Go(domain.End).Go("a")

	_, err := b.Build()
	if err == nil {
		t.Fatal("Expected an error for a node with two outgoing edges")
	}
	if !strings.Contains(err.Error(), `node "a" declares 2 outgoing edges`) {
		t.Errorf("Unexpected error: %v", err)
	}
}
