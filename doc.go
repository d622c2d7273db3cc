/*
Package deckflow is a conversational workflow engine that helps a user plan a
presentation and then writes its slides.

A project moves through four phases: preparation, generation, review and
complete. Each user turn and each generation run executes a workflow graph
whose nodes call a language model and return partial state updates (deltas).
The engine folds those deltas into a shared state with per-field reducers,
routes between nodes with predicates over that state and stops at END or when
the step budget runs out.

# Usage

	store := memory.NewStore()
	gen := openai.New(os.Getenv("OPENAI_API_KEY"))

	assistant, err := deckflow.New(store, gen)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	project, _ := assistant.CreateProject(ctx, "Renewable energy", "")

	// Planning: the planner extracts the plan as the conversation goes.
	reply, err := assistant.SendMessage(ctx, project.ID, "Help me build a talk on renewable energy")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Replies[0].Content)

	// Generation: outline, content, speaker notes and delivery tips.
	result, err := assistant.Generate(ctx, project.ID)

# Packages

  - pkg/domain: state, deltas, reducers, phases and errors.
  - pkg/graph, pkg/dsl: topologies as data, compile and validation.
  - pkg/nodes, pkg/tools, pkg/workflows: the built-in node library, tools and graphs.
  - pkg/ports, pkg/adapters: generator and persistence contracts and their implementations.
  - pkg/session, pkg/observability: per-project locking, metrics and logging hooks.
*/
package deckflow
