/*
Package dsl provides a fluent builder for deckflow workflow topologies.

It produces a domain.Topology, the data-only description of a graph, which
graph.Compile then binds to node and router implementations. Using the builder
keeps topologies type-checked in Go; the same shape can also be loaded from
YAML through the compiler package.

Example usage:

	b := dsl.New("review")

	b.Start().Go("draft")

	b.Add("draft").
		Kind("chat").
		Route("needs_review", "critique", domain.End)

	b.Add("critique").
		Go("draft")

	topology, err := b.Build()
*/
package dsl
