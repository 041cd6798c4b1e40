package behavior

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Instance is one agent's live binding to a [Template]. Instances are owned
// by a [Manager].
type Instance struct {
	id           string
	entity       EntityID
	template     *Template
	variables    *VariableCollection
	timestamps   *TimestampCollection
	blackboard   *Blackboard
	runtime      *runtimeStore
	extensions   map[string]any
	eventLog     *RollingLog
	executionLog *RollingLog
	createdAt    time.Time
	ticks        uint64
	lastStatus   Status
	logger       *slog.Logger
	destroyed    bool
}

type instanceConfig struct {
	logger           *slog.Logger
	now              func() time.Time
	eventLogSize     int
	executionLogSize int
}

func newInstance(tmpl *Template, cfg instanceConfig) *Instance {
	tmpl.acquire()
	return &Instance{
		id:           uuid.NewString(),
		template:     tmpl,
		variables:    NewVariableCollection(tmpl.variables),
		timestamps:   tmpl.timestamps.Clone(),
		blackboard:   new(Blackboard),
		runtime:      newRuntimeStore(),
		eventLog:     NewRollingLog(cfg.eventLogSize),
		executionLog: NewRollingLog(cfg.executionLogSize),
		createdAt:    cfg.now(),
		logger:       cfg.logger,
	}
}

// bind attaches the instance to its entity, creating the extension table.
func (x *Instance) bind(entity EntityID) {
	x.entity = entity
	x.extensions = newExtensionTable(entity, x.template.extensions)
	x.logger = x.logger.With("entity", entity, "tree", x.template.name, "instance", x.id)
}

func (x *Instance) ID() string                       { return x.id }
func (x *Instance) Entity() EntityID                 { return x.entity }
func (x *Instance) Template() *Template              { return x.template }
func (x *Instance) Variables() *VariableCollection   { return x.variables }
func (x *Instance) Timestamps() *TimestampCollection { return x.timestamps }
func (x *Instance) Blackboard() *Blackboard          { return x.blackboard }
func (x *Instance) CreatedAt() time.Time             { return x.createdAt }

// EventLog returns the events received, recorded in debug mode.
func (x *Instance) EventLog() *RollingLog { return x.eventLog }

// ExecutionLog returns messages written by Log nodes.
func (x *Instance) ExecutionLog() *RollingLog { return x.executionLog }

// LastStatus returns the root status of the latest tick.
func (x *Instance) LastStatus() Status { return x.lastStatus }

// Ticks returns the number of ticks performed.
func (x *Instance) Ticks() uint64 { return x.ticks }

// Destroyed reports whether the instance was stopped.
func (x *Instance) Destroyed() bool { return x.destroyed }

// ActiveNodes returns the sorted identifiers of nodes holding runtime data.
func (x *Instance) ActiveNodes() []NodeID { return x.runtime.ids() }

func (x *Instance) extension(name string) (any, bool) {
	if x == nil {
		return nil, false
	}
	v, ok := x.extensions[name]
	return v, ok
}

// beginTick builds the context for one tick, then starts a new variable
// change window.
func (x *Instance) beginTick(frame uint64, now time.Time, rec Recorder, d dispatcher) TickContext {
	tc := x.tickContext(frame, now, rec, d)
	x.variables.ResetChanged()
	return tc
}

func (x *Instance) tickContext(frame uint64, now time.Time, rec Recorder, d dispatcher) TickContext {
	return TickContext{
		Entity:     x.entity,
		InstanceID: x.id,
		Tree:       x.template.name,
		Frame:      frame,
		Now:        now,
		Variables:  NewVariablesView(x.variables),
		Timestamps: x.timestamps,
		Blackboard: x.blackboard,
		instance:   x,
		runtime:    x.runtime,
		rec:        rec,
		dispatcher: d,
		logger:     x.logger,
	}
}

func (x *Instance) eventContext(now time.Time, ev Event) EventContext {
	return EventContext{
		Entity:     x.entity,
		InstanceID: x.id,
		Tree:       x.template.name,
		Now:        now,
		Event:      ev,
		Variables:  x.variables,
		Timestamps: x.timestamps,
		Blackboard: x.blackboard,
		instance:   x,
		runtime:    x.runtime,
		logger:     x.logger,
	}
}

func (x *Instance) destroy() {
	if x.destroyed {
		return
	}
	x.destroyed = true
	x.runtime.clear()
	x.template.release()
}
