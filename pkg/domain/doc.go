/*
Package domain contains the core models of the deckflow workflow engine.

It defines the state that a workflow run carries between nodes, the partial
updates (deltas) nodes return, and the reducers that fold deltas back into the
state. The package is kept free of I/O so it can be shared by the runtime, the
node library and every adapter.

# Key Entities

  - WorkflowState: the per-run record (history, phase, plan, slides, prompt, config).
  - Delta: a partial update keyed by field name; absent keys leave fields untouched.
  - Merger: applies deltas with per-field reducers and enforces the PhasePolicy.
  - Topology: the graph shape as data (nodes, unconditional and routed edges).
  - Project, Message, PresentationPlan, Slide: the persisted entities.
*/
package domain
