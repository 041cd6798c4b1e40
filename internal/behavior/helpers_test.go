package behavior

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/mbt/internal/testutil"
)

func discardLogger() *slog.Logger { return testutil.DiscardLogger() }

func bufferLogger() (*slog.Logger, *testutil.SyncBuffer) {
	return testutil.BufferLogger(slog.LevelDebug)
}

func newFakeClock() *testutil.Clock { return testutil.NewClock(testutil.Epoch) }

// fakeLoader builds templates from registered constructors.
type fakeLoader struct {
	trees    map[string]func() (*Template, error)
	loads    map[string]int
	builds   int
	cleanups int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		trees: make(map[string]func() (*Template, error)),
		loads: make(map[string]int),
	}
}

func (l *fakeLoader) add(name string, fn func() (*Template, error)) {
	l.trees[name] = fn
}

func (l *fakeLoader) LoadTemplate(name string) (*Template, error) {
	l.loads[name]++
	fn, ok := l.trees[name]
	if !ok {
		return nil, &LoadError{Tree: name, Err: ErrTreeNotFound}
	}
	return fn()
}

func (l *fakeLoader) BuildTemplate(name string, definition []byte) (*Template, error) {
	l.builds++
	fn, ok := l.trees[string(definition)]
	if !ok {
		return nil, &LoadError{Tree: name, Line: 1, Err: ErrInvalidDefinition}
	}
	return fn()
}

func (l *fakeLoader) Cleanup() { l.cleanups++ }

type statusBehavior struct{ status Status }

func (b statusBehavior) Update(TickContext) Status { return b.status }

type funcBehavior func(tc TickContext) Status

func (f funcBehavior) Update(tc TickContext) Status { return f(tc) }

// probe counts calls per instance.
type probe struct {
	Node
	ticks      map[string]int
	terminates map[string]int
	events     map[string][]Event
}

func newProbe(n Node) *probe {
	return &probe{
		Node:       n,
		ticks:      make(map[string]int),
		terminates: make(map[string]int),
		events:     make(map[string][]Event),
	}
}

func (p *probe) Tick(tc TickContext) Status {
	p.ticks[tc.InstanceID]++
	return p.Node.Tick(tc)
}

func (p *probe) Terminate(tc TickContext) {
	p.terminates[tc.InstanceID]++
	p.Node.Terminate(tc)
}

func (p *probe) SendEvent(ec EventContext, ev Event) {
	p.events[ec.InstanceID] = append(p.events[ec.InstanceID], ev)
	p.Node.SendEvent(ec, ev)
}

func (p *probe) totalTicks() (n int) {
	for _, v := range p.ticks {
		n += v
	}
	return
}

func (p *probe) totalTerminates() (n int) {
	for _, v := range p.terminates {
		n += v
	}
	return
}

func mustTemplate(t testing.TB, spec TemplateSpec) *Template {
	t.Helper()
	tmpl, err := NewTemplate(spec)
	require.NoError(t, err)
	return tmpl
}

// patrolTemplate declares Alarmed, set by OnAlarm, and an OnAlarm timestamp.
func patrolTemplate(t testing.TB, root Node) *Template {
	t.Helper()
	decls := NewVariableDeclarations()
	require.NoError(t, decls.Declare("Alarmed", KindBool, false))
	require.NoError(t, decls.Declare("Alarms", KindInt, 0))
	timestamps, err := NewTimestampCollection(
		TimestampDeclaration{Name: "OnAlarm", SetOnEvent: "OnAlarm", ResetOnEvent: "OnCalm"},
	)
	require.NoError(t, err)
	signals, err := NewSignalHandler(decls,
		SignalRule{Signal: "OnAlarm", Mutation: VariableMutation{Variable: "Alarmed", Op: OpSet, Value: true}},
		SignalRule{Signal: "OnAlarm", Mutation: VariableMutation{Variable: "Alarms", Op: OpIncrement}},
		SignalRule{Signal: "OnCalm", Mutation: VariableMutation{Variable: "Alarmed", Op: OpSet, Value: false}},
	)
	require.NoError(t, err)
	return mustTemplate(t, TemplateSpec{
		Name:       "Patrol",
		Root:       root,
		Variables:  decls,
		Timestamps: timestamps,
		Signals:    signals,
		NodeCount:  1,
	})
}

// recordingObserver keeps everything it observes.
type recordingObserver struct {
	ticks     []TickSnapshot
	lifecycle []LifecycleEvent
	events    []EventSnapshot
}

func (o *recordingObserver) ObserveTick(s TickSnapshot)        { o.ticks = append(o.ticks, s) }
func (o *recordingObserver) ObserveLifecycle(e LifecycleEvent) { o.lifecycle = append(o.lifecycle, e) }
func (o *recordingObserver) ObserveEvent(e EventSnapshot)      { o.events = append(o.events, e) }

func (o *recordingObserver) kinds() []LifecycleKind {
	out := make([]LifecycleKind, len(o.lifecycle))
	for i, e := range o.lifecycle {
		out[i] = e.Kind
	}
	return out
}
