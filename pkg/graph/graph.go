package graph

import (
	"fmt"
	"slices"

	"github.com/aretw0/deckflow/internal/validator"
	"github.com/aretw0/deckflow/pkg/domain"
)

// Catalog binds the node kinds and router names a topology may reference to code.
type Catalog struct {
	nodes   map[string]Node
	routers map[string]Router
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		nodes:   make(map[string]Node),
		routers: make(map[string]Router),
	}
}

// RegisterNode binds kind to n. Re-registering a kind replaces it.
func (c *Catalog) RegisterNode(kind string, n Node) *Catalog {
	c.nodes[kind] = n
	return c
}

// RegisterRouter binds name to r.
func (c *Catalog) RegisterRouter(name string, r Router) *Catalog {
	c.routers[name] = r
	return c
}

// HasKind implements validator.Catalog.
func (c *Catalog) HasKind(kind string) bool {
	_, ok := c.nodes[kind]
	return ok
}

// HasRouter implements validator.Catalog.
func (c *Catalog) HasRouter(name string) bool {
	_, ok := c.routers[name]
	return ok
}

// Graph is a validated, immutable topology with its behaviour bound.
type Graph struct {
	topology domain.Topology
	nodes    map[string]Node
	edges    map[string]domain.Edge
	routers  map[string]Router
}

// Compile validates t against the catalog and freezes it.
// Validation problems are reported together as a *validator.Error.
func Compile(t domain.Topology, c *Catalog) (*Graph, error) {
	if err := validator.ValidateTopology(t, c); err != nil {
		return nil, err
	}

	g := &Graph{
		topology: cloneTopology(t),
		nodes:    make(map[string]Node, len(t.Nodes)),
		edges:    make(map[string]domain.Edge, len(t.Edges)),
		routers:  make(map[string]Router),
	}
	for _, spec := range t.Nodes {
		g.nodes[spec.ID] = c.nodes[spec.Kind]
	}
	for _, e := range g.topology.Edges {
		g.edges[e.From] = e
		if e.Conditional() {
			g.routers[e.Router] = c.routers[e.Router]
		}
	}
	return g, nil
}

// Name returns the topology name.
func (g *Graph) Name() string { return g.topology.Name }

// Topology returns a copy of the compiled shape.
func (g *Graph) Topology() domain.Topology { return cloneTopology(g.topology) }

// Node returns the node registered under id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Next resolves the edge leaving from against state.
// It returns the chosen target and the router name (empty for unconditional edges).
func (g *Graph) Next(from string, state *domain.WorkflowState) (string, string, error) {
	e, ok := g.edges[from]
	if !ok {
		// Compile guarantees an edge for every node and START.
		return "", "", fmt.Errorf("no edge leaves %q", from)
	}
	if !e.Conditional() {
		return e.To, "", nil
	}

	target := g.routers[e.Router](state)
	if target == domain.End || slices.Contains(e.Targets, target) {
		return target, e.Router, nil
	}
	return "", e.Router, &domain.RoutingError{From: from, Router: e.Router, Target: target}
}

func cloneTopology(t domain.Topology) domain.Topology {
	c := domain.Topology{Name: t.Name}
	c.Nodes = append([]domain.NodeSpec(nil), t.Nodes...)
	c.Edges = make([]domain.Edge, len(t.Edges))
	for i, e := range t.Edges {
		e.Targets = append([]string(nil), e.Targets...)
		c.Edges[i] = e
	}
	return c
}
