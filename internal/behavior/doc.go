// Package behavior implements a data-driven behavior tree runtime.
//
// A [Template] is an immutable, shareable compiled tree: a root [Node] plus the
// variable declarations, timestamp defaults and signal rules authored alongside
// it. Every agent (identified by an [EntityID]) runs at most one [Instance] of a
// template, owning its own variables, timestamps, blackboard and per-node
// runtime data. The [Manager] owns the [Cache] of templates and the
// entity-to-instance map, ticks every live instance once per frame via
// [Manager.Update], and routes events via [Manager.HandleEvent].
//
// # Node contract
//
// Nodes are shared by every instance of a template, so they must never hold
// per-run state. The lifecycle wrapper returned by [NewNode] stores any such
// state in the instance, keyed by [NodeID]:
//
//   - Tick allocates runtime data and calls OnInitialize on the first tick,
//     calls Update, and calls OnTerminate then frees the data once Update
//     returns a status other than [Running].
//   - Terminate only acts on nodes holding runtime data.
//   - SendEvent only reaches nodes holding runtime data (active nodes).
//
// # Root contract
//
// A well-formed tree never finishes: its root always reports [Running]. A root
// reporting [Success] or [Failure] is logged as an authoring defect and the
// entity is stopped after the current [Manager.Update] pass completes (or
// restarted, see [WithRootTerminalPolicy]).
//
// The package is single threaded. Manager, Instance and the collections they
// own must be used from one goroutine; observers receive snapshots on that
// goroutine and must copy anything they retain.
package behavior
