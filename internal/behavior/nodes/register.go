package nodes

import (
	"github.com/joeycumines/mbt/internal/behavior/loader"
)

var constructors = map[string]loader.Constructor{
	"Sequence":         newSequence,
	"Selector":         newSelector,
	"Priority":         newPriority,
	"Parallel":         newParallel,
	"Loop":             newLoop,
	"LoopUntilSuccess": newLoopUntilSuccess,

	"IfCondition":      newIfCondition,
	"AssertCondition":  newAssertCondition,
	"MonitorCondition": newMonitorCondition,

	"Timeout":       newTimeout,
	"Wait":          newWait,
	"WaitForEvent":  newWaitForEvent,
	"IfTime":        newIfTime,
	"WaitUntilTime": newWaitUntilTime,
	"AssertTime":    newAssertTime,

	"Fail":            newFail,
	"SuppressFailure": newSuppressFailure,
	"SendEvent":       newSendEvent,
	"SetVariable":     newSetVariable,
	"Halt":            newHalt,
	"Log":             newLog,

	"GoBT":   newGoBT,
	"Plan":   newPlan,
	"Script": newScript,
}

// Register adds the catalog to r.
func Register(r *loader.Registry) {
	for name, c := range constructors {
		r.Register(name, c)
	}
}

// NewRegistry returns a registry holding the catalog.
func NewRegistry() *loader.Registry {
	r := loader.NewRegistry()
	Register(r)
	return r
}
