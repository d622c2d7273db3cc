package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/nodes"
)

// GraphOverlay contains run data to highlight on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart from a topology.
// Shapes:
//   - START and END: ((Circle))
//   - tool and write-back nodes: [[Subroutine]]
//   - conversational nodes (planner, chat): [/Parallelogram/]
//   - generation stages: [Rectangle]
//
// Conditional edges are labelled with their router name.
func GenerateMermaid(t domain.Topology, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"START\"))\n", sanitizeMermaidID(domain.Start))

	for _, n := range t.Nodes {
		opener, closer := "[", "]"
		switch n.Kind {
		case nodes.KindCallTool, nodes.KindWriteBack:
			opener, closer = "[[", "]]"
		case nodes.KindPlanner, nodes.KindChat:
			opener, closer = "[/", "/]"
		}
		label := n.ID
		if n.Kind != n.ID {
			label = fmt.Sprintf("%s <br/> %s", n.ID, n.Kind)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(n.ID), opener, escape(label), closer)
	}
	if reachesEnd(t) {
		fmt.Fprintf(&sb, "    %s((\"END\"))\n", sanitizeMermaidID(domain.End))
	}

	for _, e := range t.Edges {
		from := sanitizeMermaidID(e.From)
		if !e.Conditional() {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, sanitizeMermaidID(e.To))
			continue
		}
		for _, to := range e.Targets {
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", from, escape(e.Router), sanitizeMermaidID(to))
		}
		if !contains(e.Targets, domain.End) {
			// END is always a legal router result.
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, escape(e.Router), sanitizeMermaidID(domain.End))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}
	return sb.String()
}

func reachesEnd(t domain.Topology) bool {
	for _, e := range t.Edges {
		if e.Conditional() || e.To == domain.End {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// sanitizeMermaidID maps the graph sentinels and punctuation to identifiers Mermaid accepts.
func sanitizeMermaidID(id string) string {
	switch id {
	case domain.Start:
		return "START"
	case domain.End:
		return "END"
	}
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
