/*
Package graph turns a data-only topology into an executable workflow graph.

A Catalog binds node kinds and router names to code. Compile validates a
domain.Topology against the catalog (reachability, dangling targets, one
outgoing edge per node) and returns an immutable Graph that the runtime walks.

	catalog := graph.NewCatalog().
		RegisterNode("echo", echoNode).
		RegisterRouter("done", func(s *domain.WorkflowState) string { return domain.End })

	g, err := graph.Compile(topology, catalog)
*/
package graph
