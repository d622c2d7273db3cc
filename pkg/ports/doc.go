/*
Package ports defines the driven ports (interfaces) of the deckflow engine.

These interfaces decouple the workflow core from language models, storage
backends and lock services, so each can be swapped by an adapter.

# Key Interfaces

  - Generator: the language model black box.
  - Repository: projects, messages, plan and slides persistence.
  - ToolRegistry: resolves tool calls requested by the generator.
  - DistributedLocker: serialises runs of one project across replicas.
*/
package ports
