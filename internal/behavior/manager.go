package behavior

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// maxEventDepth bounds events dispatched by nodes while handling events.
const maxEventDepth = 16

// lastNodesReported is the number of completed nodes logged when a root
// finishes in debug mode.
const lastNodesReported = 5

var errUpdating = errors.New("behavior: operation not allowed during update")

type pendingKind int

const (
	pendingStop pendingKind = iota
	pendingInstall
	pendingRestart
	pendingReset
	pendingStart
)

type pendingOp struct {
	kind     pendingKind
	entity   EntityID
	instance *Instance
	template *Template
	tree     string
}

// Manager owns the template cache and the live instance of every entity. It
// ticks instances once per frame and routes events to them.
//
// A Manager is not safe for concurrent use.
type Manager struct {
	loader    Loader
	cache     *Cache
	instances map[EntityID]*Instance
	logger    *slog.Logger
	world     World
	now       func() time.Time
	observers Observers
	observer  Observer
	debug     bool
	policy    RootTerminalPolicy

	eventLogSize     int
	executionLogSize int

	frame      uint64
	updating   bool
	pending    []pendingOp
	resetting  bool
	eventDepth int
}

// NewManager returns a manager loading templates with loader.
func NewManager(loader Loader, opts ...Option) *Manager {
	if loader == nil {
		panic("behavior: nil loader")
	}
	m := &Manager{
		loader:           loader,
		instances:        make(map[EntityID]*Instance),
		logger:           slog.Default(),
		world:            AlwaysActive{},
		now:              time.Now,
		eventLogSize:     DefaultEventLogSize,
		executionLogSize: DefaultExecutionLogSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	switch len(m.observers) {
	case 0:
		m.observer = NopObserver{}
	case 1:
		m.observer = m.observers[0]
	default:
		m.observer = m.observers
	}
	eventLogSize := m.eventLogSize
	if !m.debug {
		eventLogSize = 0
	}
	m.cache = newCache(loader, instanceConfig{
		logger:           m.logger,
		now:              m.now,
		eventLogSize:     eventLogSize,
		executionLogSize: m.executionLogSize,
	})
	return m
}

// Cache returns the template cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Start runs the named tree for entity, replacing any running instance. On
// failure the entity is left without a tree. After a Reset requested during
// the same update pass, the load itself is deferred and its failure is only
// logged.
func (m *Manager) Start(entity EntityID, tree string) error {
	if m.updating && m.resetting {
		m.pending = append(m.pending, pendingOp{kind: pendingStart, entity: entity, tree: tree})
		return nil
	}
	m.Stop(entity)
	tmpl, err := m.cache.GetOrLoad(tree)
	if err != nil {
		m.loadFailed(entity, tree, err)
		return err
	}
	m.install(entity, m.cache.newInstance(tmpl))
	return nil
}

// StartFromDefinition is like Start, building the template from definition
// without caching it.
func (m *Manager) StartFromDefinition(entity EntityID, tree string, definition []byte) error {
	m.Stop(entity)
	inst, err := m.cache.CreateFromDefinition(tree, definition)
	if err != nil {
		m.loadFailed(entity, tree, err)
		return err
	}
	m.install(entity, inst)
	return nil
}

func (m *Manager) loadFailed(entity EntityID, tree string, err error) {
	m.logger.Error("failed to start behavior tree", "entity", entity, "tree", tree, "error", err)
	m.observer.ObserveLifecycle(LifecycleEvent{
		Kind:   LifecycleLoadFailed,
		Time:   m.now(),
		Entity: entity,
		Tree:   tree,
		Err:    err,
	})
}

func (m *Manager) install(entity EntityID, inst *Instance) {
	if m.updating {
		m.pending = append(m.pending, pendingOp{kind: pendingInstall, entity: entity, instance: inst})
		return
	}
	// a stop may still be pending from an update pass
	m.stopNow(entity)
	inst.bind(entity)
	m.instances[entity] = inst
	m.logger.Debug("behavior tree started", "entity", entity, "tree", inst.template.name, "instance", inst.id)
	m.observer.ObserveLifecycle(LifecycleEvent{
		Kind:       LifecycleStarted,
		Time:       m.now(),
		Entity:     entity,
		Tree:       inst.template.name,
		InstanceID: inst.id,
	})
}

// Stop terminates and destroys the instance for entity, if any. During
// [Manager.Update] the stop is deferred until the pass completes.
func (m *Manager) Stop(entity EntityID) {
	if m.updating {
		m.pending = append(m.pending, pendingOp{kind: pendingStop, entity: entity})
		return
	}
	m.stopNow(entity)
}

func (m *Manager) stopNow(entity EntityID) {
	inst, ok := m.instances[entity]
	if !ok {
		return
	}
	now := m.now()
	tc := inst.tickContext(m.frame, now, nil, m)
	m.protect(inst, "terminate", func() { inst.template.root.Terminate(tc) })
	delete(m.instances, entity)
	inst.destroy()
	m.logger.Debug("behavior tree stopped", "entity", entity, "tree", inst.template.name, "instance", inst.id)
	m.observer.ObserveLifecycle(LifecycleEvent{
		Kind:       LifecycleStopped,
		Time:       now,
		Entity:     entity,
		Tree:       inst.template.name,
		InstanceID: inst.id,
	})
}

// Reset stops every instance, clears the template cache and asks the loader
// to reclaim node memory. During an update pass, installs and restarts queued
// before the reset are discarded.
func (m *Manager) Reset() {
	if m.updating {
		pending := m.pending[:0]
		for _, op := range m.pending {
			switch op.kind {
			case pendingInstall:
				op.instance.destroy()
			case pendingRestart:
				// the reset stops the instance
			default:
				pending = append(pending, op)
			}
		}
		m.pending = append(pending, pendingOp{kind: pendingReset})
		m.resetting = true
		return
	}
	for _, entity := range m.Entities() {
		m.stopNow(entity)
	}
	m.cache.Clear()
	m.loader.Cleanup()
	m.logger.Debug("behavior tree manager reset")
}

// Reload rebuilds the named tree from storage and restarts every entity
// running it. On failure the cache and running instances are unchanged.
func (m *Manager) Reload(tree string) error {
	if m.updating {
		return errUpdating
	}
	previous, cached := m.cache.Lookup(tree)
	m.cache.Invalidate(tree)
	tmpl, err := m.cache.GetOrLoad(tree)
	if err != nil {
		if cached {
			m.cache.put(tree, previous)
		}
		m.logger.Error("failed to reload behavior tree", "tree", tree, "error", err)
		return fmt.Errorf("reload: %w", err)
	}
	var restarted int
	for _, entity := range m.Entities() {
		if m.instances[entity].template.name != tree {
			continue
		}
		m.stopNow(entity)
		m.install(entity, m.cache.newInstance(tmpl))
		restarted++
	}
	m.logger.Info("behavior tree reloaded", "tree", tree, "restarted", restarted)
	m.observer.ObserveLifecycle(LifecycleEvent{Kind: LifecycleReloaded, Time: m.now(), Tree: tree})
	return nil
}

// Update ticks every active instance once. Entities whose root finishes are
// stopped after every instance was ticked.
func (m *Manager) Update() {
	if m.updating {
		m.logger.Error("behavior tree update called re-entrantly")
		return
	}
	m.frame++
	now := m.now()
	m.updating = true
	for entity, inst := range m.instances {
		state, ok := m.world.Agent(entity)
		if !ok || !state.Active() {
			continue
		}
		m.tick(entity, inst, now)
	}
	m.updating = false
	m.applyPending()
}

func (m *Manager) tick(entity EntityID, inst *Instance, now time.Time) {
	var (
		rec   Recorder
		trace *Trace
	)
	if m.debug {
		trace = NewTrace()
		rec = trace
	}
	tc := inst.beginTick(m.frame, now, rec, m)

	status := Failure
	panicked := !m.protect(inst, "tick", func() { status = inst.template.root.Tick(tc) })

	inst.ticks++
	inst.lastStatus = status

	m.observer.ObserveTick(TickSnapshot{
		Frame:    m.frame,
		Time:     now,
		Entity:   entity,
		Instance: inst,
		Status:   status,
		Trace:    trace,
	})

	if status == Running {
		return
	}

	attrs := []any{
		"entity", entity,
		"tree", inst.template.name,
		"instance", inst.id,
		"status", StatusString(status),
	}
	if trace != nil {
		attrs = append(attrs, "last_nodes", formatRecords(trace.LastCompleted(lastNodesReported)))
	}
	m.logger.Error("behavior tree root finished; a root node must always be running, so the tree will be stopped", attrs...)
	m.observer.ObserveLifecycle(LifecycleEvent{
		Kind:       LifecycleRootTerminal,
		Time:       now,
		Entity:     entity,
		Tree:       inst.template.name,
		InstanceID: inst.id,
		Status:     status,
	})

	op := pendingOp{kind: pendingStop, entity: entity}
	if m.policy == RestartOnTerminal && !panicked {
		op = pendingOp{kind: pendingRestart, entity: entity, instance: inst, template: inst.template}
	}
	m.pending = append(m.pending, op)
}

func (m *Manager) applyPending() {
	// ops may queue more ops, e.g. a node dispatching on terminate
	for len(m.pending) != 0 {
		ops := m.pending
		m.pending = nil
		for _, op := range ops {
			switch op.kind {
			case pendingStop:
				m.stopNow(op.entity)
			case pendingInstall:
				m.install(op.entity, op.instance)
			case pendingRestart:
				// skip if the instance was replaced in the meantime
				if m.instances[op.entity] != op.instance {
					continue
				}
				m.stopNow(op.entity)
				m.install(op.entity, m.cache.newInstance(op.template))
				m.logger.Info("behavior tree restarted", "entity", op.entity, "tree", op.template.name)
			case pendingReset:
				m.resetting = false
				m.Reset()
			case pendingStart:
				_ = m.Start(op.entity, op.tree)
			}
		}
	}
}

// protect runs fn, recovering panics raised by node logic. It reports
// whether fn returned normally.
func (m *Manager) protect(inst *Instance, op string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			m.logger.Error("behavior tree node panicked",
				"op", op,
				"entity", inst.entity,
				"tree", inst.template.name,
				"instance", inst.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	fn()
	return true
}

// HandleEvent delivers ev to the instance running for entity. Events for
// entities without an instance are dropped.
func (m *Manager) HandleEvent(entity EntityID, ev Event) {
	now := m.now()
	inst, ok := m.instances[entity]
	if !ok {
		if m.debug {
			m.logger.Debug("behavior tree event dropped: no tree running", "entity", entity, "event", ev.String())
		}
		m.observer.ObserveEvent(EventSnapshot{Time: now, Entity: entity, Event: ev})
		return
	}
	if m.eventDepth >= maxEventDepth {
		m.logger.Warn("behavior tree event dropped: dispatch depth exceeded",
			"entity", entity, "tree", inst.template.name, "event", ev.String(), "depth", m.eventDepth)
		return
	}
	m.eventDepth++
	defer func() { m.eventDepth-- }()

	mutations := inst.template.signals.Apply(ev.ID, inst.variables)
	inst.timestamps.HandleEvent(ev.ID, now)
	ec := inst.eventContext(now, ev)
	m.protect(inst, "event", func() { inst.template.root.SendEvent(ec, ev) })
	if m.debug {
		inst.eventLog.Add(LogEntry{Time: now, Frame: m.frame, Message: ev.String()})
	}
	m.observer.ObserveEvent(EventSnapshot{
		Time:      now,
		Entity:    entity,
		Event:     ev,
		Instance:  inst,
		Mutations: mutations,
	})
}

// Instance returns the live instance for entity.
func (m *Manager) Instance(entity EntityID) (*Instance, bool) {
	inst, ok := m.instances[entity]
	return inst, ok
}

// IsRunning reports whether entity has a live instance.
func (m *Manager) IsRunning(entity EntityID) bool {
	_, ok := m.instances[entity]
	return ok
}

// Entities returns the sorted entities with a live instance.
func (m *Manager) Entities() []EntityID {
	return slices.Sorted(maps.Keys(m.instances))
}

// Len returns the number of live instances.
func (m *Manager) Len() int { return len(m.instances) }

// Frame returns the number of completed calls to Update.
func (m *Manager) Frame() uint64 { return m.frame }

// Debug reports whether debug recording is enabled.
func (m *Manager) Debug() bool { return m.debug }

func formatRecords(records []TraceRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.Info.String())
		b.WriteByte('=')
		b.WriteString(StatusString(r.Status))
	}
	return b.String()
}
