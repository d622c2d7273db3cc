package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
)

// Catalog tells the validator which node kinds and routers can be bound.
type Catalog interface {
	HasKind(kind string) bool
	HasRouter(name string) bool
}

// Error lists every problem found in a topology.
type Error struct {
	Topology string
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("topology %q: found %d errors:\n- %s", e.Topology, len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// ValidateTopology checks that the topology can be compiled against the catalog:
// unique nodes with known kinds, exactly one outgoing edge per node and from START,
// no dangling targets, known routers, and every node reachable from START.
func ValidateTopology(t domain.Topology, catalog Catalog) error {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	nodes := make(map[string]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		switch {
		case n.ID == "":
			report("node with empty id")
			continue
		case n.ID == domain.Start || n.ID == domain.End:
			report("node id %q is reserved", n.ID)
			continue
		case nodes[n.ID]:
			report("node %q registered twice", n.ID)
			continue
		}
		nodes[n.ID] = true
		if !catalog.HasKind(n.Kind) {
			report("node %q has unknown kind %q", n.ID, n.Kind)
		}
	}

	known := func(id string) bool { return id == domain.End || nodes[id] }

	outgoing := make(map[string]domain.Edge, len(t.Edges))
	for _, e := range t.Edges {
		if e.From != domain.Start && !nodes[e.From] {
			report("edge leaves unregistered node %q", e.From)
			continue
		}
		if _, dup := outgoing[e.From]; dup {
			report("node %q has more than one outgoing edge", e.From)
			continue
		}
		outgoing[e.From] = e

		if e.Conditional() {
			if e.To != "" {
				report("edge from %q sets both a target and a router", e.From)
			}
			if !catalog.HasRouter(e.Router) {
				report("edge from %q uses unknown router %q", e.From, e.Router)
			}
			if len(e.Targets) == 0 {
				report("router %q at %q declares no targets", e.Router, e.From)
			}
		} else if e.To == "" {
			report("edge from %q has no target", e.From)
			continue
		}
		for _, dest := range e.Destinations() {
			if dest == domain.Start {
				report("edge from %q points back to START", e.From)
			} else if !known(dest) {
				report("edge from %q points to unregistered node %q", e.From, dest)
			}
		}
	}

	if _, ok := outgoing[domain.Start]; !ok {
		report("no edge leaves START")
	}
	for _, n := range t.Nodes {
		if nodes[n.ID] {
			if _, ok := outgoing[n.ID]; !ok {
				report("node %q has no outgoing edge", n.ID)
			}
		}
	}

	// Reachability crawl from START.
	visited := map[string]bool{domain.Start: true}
	queue := []string{domain.Start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		e, ok := outgoing[current]
		if !ok {
			continue
		}
		for _, dest := range e.Destinations() {
			if nodes[dest] && !visited[dest] {
				visited[dest] = true
				queue = append(queue, dest)
			}
		}
	}
	var unreachable []string
	for id := range nodes {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}
	sort.Strings(unreachable)
	for _, id := range unreachable {
		report("node %q is unreachable from START", id)
	}

	if len(problems) > 0 {
		return &Error{Topology: t.Name, Problems: problems}
	}
	return nil
}
