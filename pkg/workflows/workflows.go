// Package workflows assembles the built-in presentation graphs: the routers,
// the topologies and the catalog that binds them to the node library.
package workflows

import (
	"fmt"
	"sort"

	"github.com/aretw0/deckflow/pkg/domain"
	"github.com/aretw0/deckflow/pkg/dsl"
	"github.com/aretw0/deckflow/pkg/graph"
	"github.com/aretw0/deckflow/pkg/nodes"
	"github.com/aretw0/deckflow/pkg/ports"
)

// Router names.
const (
	RouterPhase     = "phase"
	RouterToolCalls = "tool_calls"
)

// Topology names.
const (
	NamePresentation = "presentation"
	NamePreparation  = "preparation"
	NameGeneration   = "generation"
	NameChatOnly     = "chat"
)

// PhaseRouter sends PREPARATION to the planner, GENERATION to the outline and
// everything else to END.
func PhaseRouter(state *domain.WorkflowState) string {
	switch state.ProjectPhase {
	case domain.PhasePreparation:
		return nodes.KindPlanner
	case domain.PhaseGeneration:
		return nodes.KindOutline
	default:
		return domain.End
	}
}

// ToolCallRouter sends a message with pending tool calls to the tool node.
func ToolCallRouter(state *domain.WorkflowState) string {
	if last, ok := state.LastMessage(); ok && last.HasPendingToolCalls() {
		return nodes.KindCallTool
	}
	return domain.End
}

func planningLoop(b *dsl.Builder) {
	b.Add(nodes.KindPlanner).
		Describe("Discuss the presentation and extract the plan").
		Route(RouterToolCalls, nodes.KindCallTool, domain.End)
	b.Add(nodes.KindCallTool).
		Describe("Run the tools the planner asked for").
		Go(nodes.KindPlanner)
}

func generationChain(b *dsl.Builder) {
	b.Add(nodes.KindOutline).Describe("Outline slides and timing")
	b.Add(nodes.KindSlideContent).Describe("Write slide content")
	b.Add(nodes.KindSpeakerNotes).Describe("Write speaker notes")
	b.Add(nodes.KindDeliveryTutorial).Describe("Write delivery tutorials")
	b.Add(nodes.KindWriteBack).Describe("Persist plan and slides")
	b.Chain(nodes.KindOutline, nodes.KindSlideContent, nodes.KindSpeakerNotes, nodes.KindDeliveryTutorial, nodes.KindWriteBack, domain.End)
}

// Presentation dispatches on the project phase: planning while preparing, the
// full generation chain while generating, nothing otherwise.
func Presentation() domain.Topology {
	b := dsl.New(NamePresentation)
	b.Start().Route(RouterPhase, nodes.KindPlanner, nodes.KindOutline, domain.End)
	planningLoop(b)
	generationChain(b)
	return mustBuild(b)
}

// Preparation is the planner and its tool loop only.
func Preparation() domain.Topology {
	b := dsl.New(NamePreparation)
	b.Start().Go(nodes.KindPlanner)
	planningLoop(b)
	return mustBuild(b)
}

// Generation is the linear slide generation chain.
func Generation() domain.Topology {
	b := dsl.New(NameGeneration)
	b.Start().Go(nodes.KindOutline)
	generationChain(b)
	return mustBuild(b)
}

// ChatOnly answers in plain text without touching the plan.
func ChatOnly() domain.Topology {
	b := dsl.New(NameChatOnly)
	b.Start().Go(nodes.KindChat)
	b.Add(nodes.KindChat).Describe("Reply in plain text").Terminal()
	return mustBuild(b)
}

// Topologies returns every built-in topology by name.
func Topologies() map[string]domain.Topology {
	return map[string]domain.Topology{
		NamePresentation: Presentation(),
		NamePreparation:  Preparation(),
		NameGeneration:   Generation(),
		NameChatOnly:     ChatOnly(),
	}
}

// Names lists the built-in topology names in order.
func Names() []string {
	names := make([]string, 0, 4)
	for name := range Topologies() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named built-in topology.
func Lookup(name string) (domain.Topology, error) {
	t, ok := Topologies()[name]
	if !ok {
		return domain.Topology{}, fmt.Errorf("unknown workflow %q", name)
	}
	return t, nil
}

// NewCatalog binds every built-in node kind and router.
// opts are applied to each node; the tool node also receives the tool registry.
func NewCatalog(gen ports.Generator, tools ports.ToolRegistry, opts ...nodes.Option) *graph.Catalog {
	return graph.NewCatalog().
		RegisterNode(nodes.KindPlanner, nodes.NewPlanner(gen, tools, opts...)).
		RegisterNode(nodes.KindCallTool, nodes.NewToolInvocation(tools, opts...)).
		RegisterNode(nodes.KindOutline, nodes.NewOutline(gen, opts...)).
		RegisterNode(nodes.KindSlideContent, nodes.NewSlideContent(gen, opts...)).
		RegisterNode(nodes.KindSpeakerNotes, nodes.NewSpeakerNotes(gen, opts...)).
		RegisterNode(nodes.KindDeliveryTutorial, nodes.NewDeliveryTutorial(gen, opts...)).
		RegisterNode(nodes.KindWriteBack, nodes.NewWriteBack(opts...)).
		RegisterNode(nodes.KindChat, nodes.NewChat(gen, opts...)).
		RegisterRouter(RouterPhase, PhaseRouter).
		RegisterRouter(RouterToolCalls, ToolCallRouter)
}

// Compile builds the named built-in graph against catalog.
func Compile(name string, catalog *graph.Catalog) (*graph.Graph, error) {
	t, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return graph.Compile(t, catalog)
}

func mustBuild(b *dsl.Builder) domain.Topology {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
