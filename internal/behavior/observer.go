package behavior

import (
	"time"
)

// TickSnapshot describes one instance tick. Instance and Trace are live
// objects owned by the manager: observers must copy what they keep before
// returning.
type TickSnapshot struct {
	Frame    uint64
	Time     time.Time
	Entity   EntityID
	Instance *Instance
	Status   Status
	// Trace is the executed node tree, only recorded in debug mode.
	Trace *Trace
}

// LifecycleKind classifies a [LifecycleEvent].
type LifecycleKind int

const (
	LifecycleStarted LifecycleKind = iota + 1
	LifecycleStopped
	LifecycleLoadFailed
	LifecycleRootTerminal
	LifecycleReloaded
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleStarted:
		return "started"
	case LifecycleStopped:
		return "stopped"
	case LifecycleLoadFailed:
		return "load_failed"
	case LifecycleRootTerminal:
		return "root_terminal"
	case LifecycleReloaded:
		return "reloaded"
	default:
		return "unknown"
	}
}

// LifecycleEvent reports an instance lifecycle transition.
type LifecycleEvent struct {
	Kind       LifecycleKind
	Time       time.Time
	Entity     EntityID
	Tree       string
	InstanceID string
	// Status is the root status, for LifecycleRootTerminal.
	Status Status
	Err    error
}

// EventSnapshot reports an event delivered to an entity.
type EventSnapshot struct {
	Time   time.Time
	Entity EntityID
	Event  Event
	// Instance is nil if the event was dropped.
	Instance *Instance
	// Mutations is the number of signal mutations applied.
	Mutations int
}

// Observer receives telemetry from a [Manager]. Observers are called
// synchronously from the manager's goroutine and must not call back into it.
type Observer interface {
	ObserveTick(s TickSnapshot)
	ObserveLifecycle(e LifecycleEvent)
	ObserveEvent(e EventSnapshot)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) ObserveTick(TickSnapshot)        {}
func (NopObserver) ObserveLifecycle(LifecycleEvent) {}
func (NopObserver) ObserveEvent(EventSnapshot)      {}

// Observers fans out to every element, in order.
type Observers []Observer

func (o Observers) ObserveTick(s TickSnapshot) {
	for _, v := range o {
		v.ObserveTick(s)
	}
}

func (o Observers) ObserveLifecycle(e LifecycleEvent) {
	for _, v := range o {
		v.ObserveLifecycle(e)
	}
}

func (o Observers) ObserveEvent(e EventSnapshot) {
	for _, v := range o {
		v.ObserveEvent(e)
	}
}
