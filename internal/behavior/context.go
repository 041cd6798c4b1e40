package behavior

import (
	"log/slog"
	"time"
)

type dispatcher interface {
	HandleEvent(entity EntityID, ev Event)
}

// TickContext is the ephemeral context passed down the tree for one tick of
// one instance. It is a value type, rebuilt every frame; nodes must not retain
// it.
type TickContext struct {
	Entity     EntityID
	InstanceID string
	Tree       string
	Frame      uint64
	Now        time.Time
	// Variables is the instance's variables, with the set of variables that
	// changed since the previous tick.
	Variables  *VariablesView
	Timestamps *TimestampCollection
	Blackboard *Blackboard

	instance   *Instance
	runtime    *runtimeStore
	data       any
	rec        Recorder
	dispatcher dispatcher
	logger     *slog.Logger
}

// RuntimeData returns the runtime data of the node currently being ticked.
func (tc TickContext) RuntimeData() any { return tc.data }

// Recorder returns the execution recorder for this tick, never nil.
func (tc TickContext) Recorder() Recorder { return tc.recorder() }

func (tc TickContext) recorder() Recorder {
	if tc.rec == nil {
		return nopRecorder{}
	}
	return tc.rec
}

// Logger returns a logger annotated with the entity and tree.
func (tc TickContext) Logger() *slog.Logger {
	if tc.logger == nil {
		return slog.Default()
	}
	return tc.logger
}

// Extension returns the per-instance state of a meta-extension.
func (tc TickContext) Extension(name string) (any, bool) {
	return tc.instance.extension(name)
}

// Log appends a message to the instance execution log.
func (tc TickContext) Log(message string) {
	if tc.instance != nil {
		tc.instance.executionLog.Add(LogEntry{Time: tc.Now, Frame: tc.Frame, Message: message})
	}
	tc.Logger().Debug("behavior tree log", "message", message)
}

// Dispatch routes ev to the owning entity's instance, as if it were raised
// externally. Dispatching is synchronous.
func (tc TickContext) Dispatch(ev Event) {
	if tc.dispatcher != nil {
		tc.dispatcher.HandleEvent(tc.Entity, ev)
	}
}

// EventContext is passed down the tree when an event is delivered.
type EventContext struct {
	Entity     EntityID
	InstanceID string
	Tree       string
	Now        time.Time
	Event      Event
	Variables  *VariableCollection
	Timestamps *TimestampCollection
	Blackboard *Blackboard

	instance *Instance
	runtime  *runtimeStore
	data     any
	logger   *slog.Logger
}

// RuntimeData returns the runtime data of the node receiving the event.
func (ec EventContext) RuntimeData() any { return ec.data }

// Logger returns a logger annotated with the entity and tree.
func (ec EventContext) Logger() *slog.Logger {
	if ec.logger == nil {
		return slog.Default()
	}
	return ec.logger
}

// Extension returns the per-instance state of a meta-extension.
func (ec EventContext) Extension(name string) (any, bool) {
	return ec.instance.extension(name)
}

// RuntimeDataOf returns the runtime data of the current node as T, or the
// zero value if the node holds no data of that type.
func RuntimeDataOf[T any, C interface {
	TickContext | EventContext
	RuntimeData() any
}](c C) T {
	v, _ := c.RuntimeData().(T)
	return v
}
