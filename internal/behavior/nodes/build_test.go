package nodes

import (
	"testing"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/stretchr/testify/require"
)

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	const vars = "variables:\n  - {name: N, type: int}\n"
	for _, tc := range []struct {
		name string
		def  string
		line int
		msg  string
	}{
		{
			name: "priority child",
			def:  "root:\n  type: Priority\n  children:\n    - {type: Halt}\n",
			line: 4,
			msg:  "must be a Case",
		},
		{
			name: "parallel mode",
			def:  "root:\n  type: Parallel\n  successMode: most\n  children:\n    - {type: Halt}\n",
			line: 3,
			msg:  "successMode",
		},
		{
			name: "negative loop count",
			def:  "root:\n  type: Loop\n  count: -1\n  children:\n    - {type: Halt}\n",
			line: 3,
			msg:  "count",
		},
		{
			name: "running event result",
			def:  "root:\n  type: WaitForEvent\n  name: Done\n  result: Running\n",
			line: 4,
			msg:  "result",
		},
		{
			name: "unknown timestamp",
			def:  "root:\n  type: AssertTime\n  since: Nowhere\n  isMoreThan: 1\n",
			line: 3,
			msg:  "Nowhere",
		},
		{
			name: "condition type",
			def:  vars + "root:\n  type: AssertCondition\n  condition: N + 1\n",
			line: 5,
			msg:  "condition",
		},
		{
			name: "condition variable",
			def:  vars + "root:\n  type: MonitorCondition\n  condition: Missing > 1\n",
			line: 5,
			msg:  "Missing",
		},
		{
			name: "set value type",
			def:  vars + "root:\n  type: SetVariable\n  variable: N\n  value: lots\n",
			line: 6,
			msg:  "value",
		},
		{
			name: "leaf with children",
			def:  "root:\n  type: Fail\n  children:\n    - {type: Halt}\n",
			line: 2,
			msg:  "does not take children",
		},
		{
			name: "gobt element",
			def:  vars + "root:\n  type: GoBT\n  tree:\n    condition: N > 1\n    set: {variable: N, value: 1}\n",
			line: 6,
			msg:  "exactly one",
		},
		{
			name: "plan unknown variable",
			def:  "root:\n  type: Plan\n  goal: {Missing: true}\n  actions:\n    - {name: A, effects: {Missing: true}}\n",
			line: 3,
			msg:  "Missing",
		},
		{
			name: "script syntax",
			def:  "root:\n  type: Script\n  source: 'return ('\n",
			line: 3,
			msg:  "source",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newLoader(nil).BuildTemplate("Broken", []byte(tc.def))
			require.ErrorIs(t, err, behavior.ErrInvalidDefinition)
			require.ErrorContains(t, err, tc.msg)
			var loadErr *behavior.LoadError
			require.ErrorAs(t, err, &loadErr)
			require.Equal(t, tc.line, loadErr.Line)
		})
	}
}

func TestRegistryCatalog(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{
		"Sequence", "Selector", "Priority", "Parallel", "Loop", "LoopUntilSuccess",
		"IfCondition", "AssertCondition", "MonitorCondition",
		"Timeout", "Wait", "WaitForEvent", "IfTime", "WaitUntilTime", "AssertTime",
		"Fail", "SuppressFailure", "SendEvent", "SetVariable", "Halt", "Log",
		"GoBT", "Plan", "Script",
	} {
		_, ok := r.Lookup(name)
		require.True(t, ok, name)
	}
	_, ok := r.Lookup("Case")
	require.False(t, ok, "Case is only valid under Priority")
}
