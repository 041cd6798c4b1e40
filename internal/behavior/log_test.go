package behavior

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollingLog(t *testing.T) {
	t.Parallel()

	l := NewRollingLog(3)
	require.Nil(t, l.Entries())
	for _, msg := range []string{"a", "b"} {
		l.Add(LogEntry{Message: msg})
	}
	require.Equal(t, 2, l.Len())
	require.Equal(t, []LogEntry{{Message: "a"}, {Message: "b"}}, l.Entries())

	for _, msg := range []string{"c", "d", "e"} {
		l.Add(LogEntry{Message: msg})
	}
	require.Equal(t, 3, l.Len())
	require.Equal(t, []LogEntry{{Message: "c"}, {Message: "d"}, {Message: "e"}}, l.Entries())

	l.Clear()
	require.Zero(t, l.Len())

	disabled := NewRollingLog(0)
	disabled.Add(LogEntry{Message: "x"})
	require.Zero(t, disabled.Len())
	require.Zero(t, disabled.Cap())

	var nilLog *RollingLog
	nilLog.Add(LogEntry{})
	require.Zero(t, nilLog.Len())
}

func TestTrace_lastCompleted(t *testing.T) {
	t.Parallel()

	tr := NewTrace()
	root := NodeInfo{ID: 1, Type: "Sequence"}
	a := NodeInfo{ID: 2, Type: "A"}
	b := NodeInfo{ID: 3, Type: "B"}
	tr.Push(root)
	tr.Push(a)
	tr.Pop(a, Success)
	tr.Push(b)
	tr.Pop(b, Failure)
	tr.Pop(root, Failure)

	require.Equal(t, []TraceRecord{{Info: root, Status: Failure}, {Info: b, Status: Failure}}, tr.LastCompleted(2))
	require.Len(t, tr.LastCompleted(10), 3)

	var depths []int
	tr.Walk(func(depth int, n *TraceNode) { depths = append(depths, depth) })
	require.Equal(t, []int{0, 1, 1}, depths)
	require.Equal(t, "root=failure", "root="+StatusString(tr.Roots()[0].Status))
}

func TestStaticWorld(t *testing.T) {
	t.Parallel()

	w := NewStaticWorld(2, 1)
	require.Equal(t, []EntityID{1, 2}, w.Entities())
	s, ok := w.Agent(1)
	require.True(t, ok)
	require.True(t, s.Active())

	w.SetPaused(1, true)
	s, _ = w.Agent(1)
	require.False(t, s.Active())

	w.Set(3, AgentState{Enabled: false})
	s, ok = w.Agent(3)
	require.True(t, ok)
	require.False(t, s.Active())

	w.Remove(2)
	_, ok = w.Agent(2)
	require.False(t, ok)

	s, ok = AlwaysActive{}.Agent(99)
	require.True(t, ok)
	require.True(t, s.Active())
}

func TestNewTemplate(t *testing.T) {
	t.Parallel()

	_, err := NewTemplate(TemplateSpec{Name: "empty"})
	require.ErrorIs(t, err, ErrNilRoot)

	_, err = NewTemplate(TemplateSpec{
		Name:       "dup",
		Root:       NewNode(NodeInfo{ID: 1}, statusBehavior{Running}),
		Extensions: []ExtensionBinding{{Name: "Perception"}, {Name: "Perception"}},
	})
	require.Error(t, err)

	decls := NewVariableDeclarations()
	tmpl := mustTemplate(t, TemplateSpec{
		Name:       "ok",
		Root:       NewNode(NodeInfo{ID: 1}, statusBehavior{Running}),
		Variables:  decls,
		Extensions: []ExtensionBinding{{Name: "Perception", Factory: func(e EntityID) any { return int(e) * 10 }}},
	})
	require.Equal(t, []string{"Perception"}, tmpl.Extensions())
	require.False(t, tmpl.BuiltAt().IsZero())
	require.Error(t, decls.Declare("Late", KindBool, false), "declarations are frozen")

	inst := newTestInstance(t, tmpl.Root())
	require.NotEmpty(t, inst.ID())
	_, ok := inst.extension("Perception")
	require.False(t, ok, "extensions come from the instance's own template")

	withExt := newInstance(tmpl, instanceConfig{logger: discardLogger(), now: newFakeClock().Now})
	withExt.bind(4)
	v, ok := withExt.extension("Perception")
	require.True(t, ok)
	require.Equal(t, 40, v)
	require.Equal(t, 1, tmpl.Refs())
	withExt.destroy()
	withExt.destroy()
	require.Zero(t, tmpl.Refs())
}
