package dsl

import "github.com/aretw0/deckflow/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node and its outgoing edge.
type NodeBuilder struct {
	id          string
	kind        string
	description string
	edges       []domain.Edge
	builder     *Builder
}

// Kind sets the catalog kind bound to the node. Defaults to the node ID.
func (n *NodeBuilder) Kind(kind string) *NodeBuilder {
	n.kind = kind
	return n
}

// Describe attaches a human readable description, shown in graph exports.
func (n *NodeBuilder) Describe(text string) *NodeBuilder {
	n.description = text
	return n
}

// Go adds an unconditional edge to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.edges = append(n.edges, domain.Edge{From: n.id, To: target})
	return n
}

// Route adds a conditional edge decided by the named router.
func (n *NodeBuilder) Route(router string, targets ...string) *NodeBuilder {
	n.edges = append(n.edges, domain.Edge{From: n.id, Router: router, Targets: targets})
	return n
}

// Terminal sends the node straight to END.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	return n.Go(domain.End)
}

// Add is a shortcut back to the parent builder.
func (n *NodeBuilder) Add(id string) *NodeBuilder {
	return n.builder.Add(id)
}
