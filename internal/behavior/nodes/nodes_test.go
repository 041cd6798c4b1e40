package nodes

import (
	"testing"
	"time"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: A, type: int}
  - {name: B, type: bool}
root:
  type: Sequence
  children:
    - type: SetVariable
      variable: A
      value: 1
    - type: Wait
      duration: 1s
    - type: SetVariable
      variable: B
      value: true
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, 1, h.get("A"))
	require.Equal(t, false, h.get("B"))
	require.Equal(t, behavior.Running, h.step(500*time.Millisecond))
	require.Equal(t, behavior.Success, h.step(500*time.Millisecond))
	require.Equal(t, true, h.get("B"))
	require.False(t, h.m.IsRunning(entity), "a finished root is stopped")
}

func TestSelector(t *testing.T) {
	t.Parallel()

	const def = `
variables:
  - {name: A, type: int, default: %d}
root:
  type: Selector
  children:
    - type: Fail
    - type: AssertCondition
      condition: "A > 0"
    - type: Halt
`
	h := newHarness(t, sprintf(def, 0))
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(time.Second))

	h = newHarness(t, sprintf(def, 2))
	require.Equal(t, behavior.Success, h.step(0))
}

func TestPriority(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Mode, type: int}
signalVariables:
  - {signal: Attack, variable: Mode, value: 1}
  - {signal: Relax, variable: Mode, value: 0}
root:
  type: Priority
  children:
    - type: Case
      condition: "Mode == 1"
      children:
        - type: Sequence
          children:
            - {type: Log, message: attack}
            - {type: Halt}
    - type: Case
      children:
        - type: Sequence
          children:
            - {type: Log, message: idle}
            - {type: Halt}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, []string{"idle"}, h.logs())

	h.event("Attack")
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, []string{"idle", "attack"}, h.logs())

	h.event("Relax")
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, []string{"idle", "attack", "idle"}, h.logs())
}

func TestParallel(t *testing.T) {
	t.Parallel()

	t.Run("success any", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, `
root:
  type: Parallel
  successMode: any
  children:
    - {type: Wait, duration: 2s}
    - {type: Halt}
`)
		require.Equal(t, behavior.Running, h.step(0))
		require.Equal(t, behavior.Running, h.step(time.Second))
		require.Equal(t, behavior.Success, h.step(time.Second))
	})

	t.Run("failure any", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, `
root:
  type: Parallel
  children:
    - {type: Halt}
    - {type: Fail}
`)
		require.Equal(t, behavior.Failure, h.step(0))
	})

	t.Run("failure all with mixed results", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, `
root:
  type: Parallel
  failureMode: all
  children:
    - {type: Fail}
    - {type: Wait, duration: 1s}
`)
		require.Equal(t, behavior.Running, h.step(0))
		require.Equal(t, behavior.Failure, h.step(time.Second))
	})
}

func TestLoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: Loop
  count: 3
  children:
    - {type: Log, message: lap}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Success, h.step(0))
	require.Equal(t, []string{"lap", "lap", "lap"}, h.logs())

	h = newHarness(t, `
root:
  type: Loop
  children:
    - type: Fail
`)
	require.Equal(t, behavior.Failure, h.step(0))
}

func TestLoop_RestartsLongRunningChild(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: Loop
  children:
    - type: Sequence
      children:
        - {type: Log, message: start}
        - {type: Wait, duration: 1s}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(time.Second))
	require.Equal(t, []string{"start", "start"}, h.logs(), "the child restarts in the frame it finished")
}

func TestLoopUntilSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: LoopUntilSuccess
  attemptCount: 2
  children:
    - type: Fail
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Failure, h.step(0))

	h = newHarness(t, `
variables:
  - {name: Ready, type: bool}
signalVariables:
  - {signal: Ready, variable: Ready, value: true}
root:
  type: LoopUntilSuccess
  children:
    - type: AssertCondition
      condition: Ready
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(0))
	h.event("Ready")
	require.Equal(t, behavior.Success, h.step(0))
}

func TestIfCondition(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Go, type: bool, default: true}
signalVariables:
  - {signal: Stop, variable: Go, value: false}
root:
  type: Loop
  children:
    - type: IfCondition
      condition: Go
      children:
        - {type: Wait, duration: 1s}
`)
	require.Equal(t, behavior.Running, h.step(0))
	h.event("Stop")
	require.Equal(t, behavior.Running, h.step(500*time.Millisecond), "the gate is decided when the node starts")
	require.Equal(t, behavior.Failure, h.step(500*time.Millisecond))
}

func TestMonitorCondition(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Alarms, type: int}
signalVariables:
  - {signal: OnAlarm, variable: Alarms, op: increment}
root:
  type: MonitorCondition
  condition: "Alarms >= 2"
`)
	require.Equal(t, behavior.Running, h.step(0))
	h.event("OnAlarm")
	require.Equal(t, behavior.Running, h.step(0))
	h.event("OnAlarm")
	require.Equal(t, behavior.Success, h.step(0))
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: Timeout
  duration: 1
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(999*time.Millisecond))
	require.Equal(t, behavior.Failure, h.step(time.Millisecond))
}

func TestWait_Variation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: Wait
  duration: 1s
  variation: 1s
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(999*time.Millisecond))
	require.Equal(t, behavior.Success, h.step(1001*time.Millisecond))
}

func TestWaitForEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: WaitForEvent
  name: Done
  result: Failure
`)
	h.event("Done") // not active yet
	require.Equal(t, behavior.Running, h.step(0))
	h.event("Other")
	require.Equal(t, behavior.Running, h.step(0))
	h.event("done")
	require.Equal(t, behavior.Failure, h.step(0))
}

func TestTimeNodes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
timestamps:
  - {name: Spotted, setOnEvent: OnSpotted}
root:
  type: Sequence
  children:
    - type: WaitUntilTime
      since: Spotted
      isMoreThan: 2s
    - type: AssertTime
      since: Spotted
      isLessThan: 10
    - type: IfTime
      since: Spotted
      isMoreThan: 1.5
      children:
        - {type: Log, message: late}
    - type: Halt
`)
	require.Equal(t, behavior.Running, h.step(0))
	h.event("OnSpotted")
	require.Equal(t, behavior.Running, h.step(time.Second))
	require.Equal(t, behavior.Running, h.step(1500*time.Millisecond))
	require.Equal(t, []string{"late"}, h.logs())

	h = newHarness(t, `
timestamps:
  - {name: Spotted}
root:
  type: Sequence
  children:
    - type: WaitUntilTime
      since: Spotted
      isMoreThan: 1
      succeedIfNeverBeenSet: true
    - type: AssertTime
      since: Spotted
      isLessThan: 1
      orNeverBeenSet: true
    - type: IfTime
      since: Spotted
      isLessThan: 1
      children:
        - {type: Halt}
`)
	require.Equal(t, behavior.Failure, h.step(0), "IfTime stays closed for a timestamp never set")
}

func TestSendEvent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Alarmed, type: bool}
  - {name: Alarms, type: int}
signalVariables:
  - {signal: OnAlarm, variable: Alarmed, value: true}
  - {signal: OnAlarm, variable: Alarms, op: increment}
timestamps:
  - {name: AlarmTime, setOnEvent: OnAlarm}
root:
  type: Sequence
  children:
    - {type: SendEvent, name: OnAlarm}
    - {type: Log, message: raised}
    - {type: Halt}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, true, h.get("Alarmed"))
	require.Equal(t, 1, h.get("Alarms"))
	require.True(t, h.inst.Timestamps().IsSet("AlarmTime"))
	require.Equal(t, behavior.Running, h.step(time.Second))
	require.Equal(t, 1, h.get("Alarms"), "the event is sent once")
	require.Equal(t, []string{"raised"}, h.logs())
}

func TestSuppressFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: Sequence
  children:
    - type: SuppressFailure
      children:
        - {type: Fail}
    - {type: Log, message: after}
    - {type: Halt}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, []string{"after"}, h.logs())
}

func TestStopTerminatesActiveNodes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
root:
  type: Parallel
  children:
    - type: Sequence
      children:
        - {type: Wait, duration: 5s}
    - {type: WaitForEvent, name: Never}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Len(t, h.inst.ActiveNodes(), 4)
	h.m.Stop(entity)
	require.Empty(t, h.inst.ActiveNodes())
	require.True(t, h.inst.Destroyed())
}

func TestGoBT(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Alarms, type: int, default: 3}
  - {name: Calm, type: bool}
signalVariables:
  - {signal: OnAlarm, variable: Alarms, op: increment, value: 5}
root:
  type: Loop
  children:
    - type: GoBT
      tree:
        selector:
          - sequence:
              - condition: "Alarms > 5"
              - set: {variable: Calm, value: false}
          - sequence:
              - not: {condition: "Alarms > 5"}
              - set: {variable: Calm, value: true}
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, true, h.get("Calm"))
	h.event("OnAlarm")
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, false, h.get("Calm"))
}

func TestPlan(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Alarmed, type: bool, default: true}
  - {name: Armed, type: bool}
  - {name: Alarms, type: int, default: 2}
root:
  type: Sequence
  children:
    - type: Plan
      goal:
        Alarmed: false
        Alarms: {match: "value == 0"}
      actions:
        - name: Arm
          effects: {Armed: true}
        - name: Calm
          conditions: {Armed: true}
          effects: {Alarmed: false}
        - name: Clear
          effects: {Alarms: 0}
    - {type: Log, message: planned}
    - {type: Halt}
`)
	for i := 0; i < 10 && len(h.logs()) == 0; i++ {
		require.Equal(t, behavior.Running, h.step(time.Second))
	}
	require.Equal(t, []string{"planned"}, h.logs())
	require.Equal(t, false, h.get("Alarmed"))
	require.Equal(t, true, h.get("Armed"))
	require.Equal(t, 0, h.get("Alarms"))
}

func TestPlanAction_Conditions(t *testing.T) {
	t.Parallel()

	a := &planAction{planActionTemplate: &planActionTemplate{name: "Arm"}}
	require.Nil(t, a.Conditions())

	h := newHarness(t, `
variables:
  - {name: Armed, type: bool}
root:
  type: Sequence
  children:
    - type: Plan
      goal:
        Armed: true
      actions:
        - name: Arm
          effects: {Armed: true}
    - {type: Log, message: armed}
    - {type: Halt}
`)
	for i := 0; i < 10 && len(h.logs()) == 0; i++ {
		require.Equal(t, behavior.Running, h.step(0))
	}
	require.Equal(t, []string{"armed"}, h.logs())
	require.Equal(t, true, h.get("Armed"))
}

func TestScript(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `
variables:
  - {name: Count, type: int}
root:
  type: Script
  source: |
    var mbt = require("mbt");
    console.log("tick", frame);
    vars.set("Count", vars.get("Count") + 1);
    blackboard.set("entity", entity);
    vars.get("Count") >= 3 ? mbt.SUCCESS : mbt.RUNNING;
`)
	require.Equal(t, behavior.Running, h.step(0))
	require.Equal(t, behavior.Running, h.step(0))
	require.EqualValues(t, 1, h.inst.Blackboard().Get("entity"))
	require.Equal(t, behavior.Success, h.step(0))
	require.Equal(t, 3, h.get("Count"))
}

func TestScript_Results(t *testing.T) {
	t.Parallel()

	for source, want := range map[string]behavior.Status{
		`true`:                      behavior.Success,
		`false`:                     behavior.Failure,
		`undefined`:                 behavior.Success,
		`"Failure"`:                 behavior.Failure,
		`"sideways"`:                behavior.Failure,
		`42`:                        behavior.Failure,
		`throw new Error("boom")`:   behavior.Failure,
		`vars.set("Missing", 1)`:    behavior.Failure,
		`vars.set("Count", "text")`: behavior.Failure,
	} {
		h := newHarness(t, "variables:\n  - {name: Count, type: int}\nroot:\n  type: Script\n  source: '"+escapeYAML(source)+"'\n")
		require.Equal(t, want, h.step(0), source)
	}
}
