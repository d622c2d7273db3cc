package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/deckflow/pkg/domain"
)

// Builder manages the topology construction.
type Builder struct {
	name  string
	order []string
	nodes map[string]*NodeBuilder
	start *NodeBuilder
}

// New creates a new topology builder.
func New(name string) *Builder {
	b := &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
	b.start = &NodeBuilder{id: domain.Start, builder: b}
	return b
}

// Start returns the builder for the entry edge.
func (b *Builder) Start() *NodeBuilder {
	return b.start
}

// Add creates a new node in the topology.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{id: id, kind: id, builder: b}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Chain adds unconditional edges a -> b -> c ... between existing or new nodes.
func (b *Builder) Chain(ids ...string) *Builder {
	for i := 0; i+1 < len(ids); i++ {
		b.Add(ids[i]).Go(ids[i+1])
	}
	return b
}

// Build assembles the topology in declaration order.
// Structural validation is left to graph.Compile; Build only rejects builder misuse.
func (b *Builder) Build() (domain.Topology, error) {
	t := domain.Topology{Name: b.name}
	var errs []error

	collect := func(nb *NodeBuilder) {
		if len(nb.edges) > 1 {
			errs = append(errs, fmt.Errorf("node %q declares %d outgoing edges", nb.id, len(nb.edges)))
		}
		t.Edges = append(t.Edges, nb.edges...)
	}

	collect(b.start)
	for _, id := range b.order {
		nb := b.nodes[id]
		t.Nodes = append(t.Nodes, domain.NodeSpec{ID: nb.id, Kind: nb.kind, Description: nb.description})
		collect(nb)
	}

	if err := errors.Join(errs...); err != nil {
		return domain.Topology{}, fmt.Errorf("failed to build topology %q: %w", b.name, err)
	}
	return t, nil
}
