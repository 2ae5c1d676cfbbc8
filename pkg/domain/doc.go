/*
Package domain contains the core models of the call gate.

It defines the entities the scheduler and the dialogue sequencer operate on and is kept
free of I/O and persistence concerns, following Hexagonal Architecture principles.

# Key Entities

  - Value / Snapshot: persistent flag values (bool or string) and a point-in-time copy of a store.
  - Stage: a narrative gate made of OR-groups of conditions, a completion key and a graph id.
  - Node: a dialogue node, either a MediaSegment (timed playback) or an InteractiveBeat (player paced).
  - Graph: a validated, forward-only chain of nodes. Invalid graphs are rejected with a *ConfigError.
  - LifecycleHooks: callbacks for node, stage and run events.
*/
package domain
