package domain

// NodeSpec declares a node of a topology and the kind of behaviour bound to it.
type NodeSpec struct {
	ID          string `json:"id" yaml:"id"`
	Kind        string `json:"kind" yaml:"kind"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Edge leaves From. It is either unconditional (To set) or conditional (Router and Targets set).
type Edge struct {
	From    string   `json:"from" yaml:"from"`
	To      string   `json:"to,omitempty" yaml:"to,omitempty"`
	Router  string   `json:"router,omitempty" yaml:"router,omitempty"`
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// Conditional reports whether the edge is decided by a router.
func (e Edge) Conditional() bool {
	return e.Router != ""
}

// Destinations lists every node the edge can lead to.
func (e Edge) Destinations() []string {
	if e.Conditional() {
		return e.Targets
	}
	return []string{e.To}
}

// Topology is the shape of a workflow graph expressed as data.
type Topology struct {
	Name  string     `json:"name" yaml:"name"`
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges []Edge     `json:"edges" yaml:"edges"`
}

// Node looks up a node spec by ID.
func (t Topology) Node(id string) (NodeSpec, bool) {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// EdgeFrom returns the edge leaving id.
func (t Topology) EdgeFrom(id string) (Edge, bool) {
	for _, e := range t.Edges {
		if e.From == id {
			return e, true
		}
	}
	return Edge{}, false
}
