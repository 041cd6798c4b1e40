// Package nodes is the standard node catalog.
//
// [Register] adds every node type to a [loader.Registry]:
//
//   - flow: Sequence, Selector, Priority (with Case children), Parallel,
//     Loop, LoopUntilSuccess
//   - conditions: IfCondition, AssertCondition, MonitorCondition
//   - time: Timeout, Wait, WaitForEvent, IfTime, WaitUntilTime, AssertTime
//   - core: Fail, SuppressFailure, SendEvent, SetVariable, Halt, Log
//   - bridges: GoBT (go-behaviortree), Plan (go-pabt), Script (goja)
//
// Nodes are shared by every instance of a template. Anything that changes
// while a node runs lives in its runtime data.
package nodes
