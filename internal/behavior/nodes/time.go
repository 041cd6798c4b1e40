package nodes

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
)

type timer struct {
	deadline time.Time
}

func (t *timer) reset(now time.Time, d time.Duration) { t.deadline = now.Add(d) }

func (t *timer) elapsed(now time.Time) bool { return !now.Before(t.deadline) }

// timeout runs for duration, then fails.
type timeout struct {
	duration time.Duration
}

func newTimeout(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	d, err := def.Duration("duration", 0)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &timeout{duration: d}), nil
}

func (n *timeout) NewRuntimeData() any { return new(timer) }

func (n *timeout) OnInitialize(tc behavior.TickContext) {
	behavior.RuntimeDataOf[*timer](tc).reset(tc.Now, n.duration)
}

func (n *timeout) Update(tc behavior.TickContext) behavior.Status {
	if behavior.RuntimeDataOf[*timer](tc).elapsed(tc.Now) {
		return behavior.Failure
	}
	return behavior.Running
}

// wait runs for a duration in [duration, duration+variation], then
// succeeds.
type wait struct {
	duration  time.Duration
	variation time.Duration
}

func newWait(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	d, err := def.Duration("duration", 0)
	if err != nil {
		return nil, err
	}
	v, err := def.Duration("variation", 0)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &wait{duration: d, variation: v}), nil
}

func (n *wait) NewRuntimeData() any { return new(timer) }

func (n *wait) OnInitialize(tc behavior.TickContext) {
	d := n.duration
	if n.variation > 0 {
		d += rand.N(n.variation + 1)
	}
	behavior.RuntimeDataOf[*timer](tc).reset(tc.Now, d)
}

func (n *wait) Update(tc behavior.TickContext) behavior.Status {
	if behavior.RuntimeDataOf[*timer](tc).elapsed(tc.Now) {
		return behavior.Success
	}
	return behavior.Running
}

type received struct {
	ok bool
}

// waitForEvent runs until the named event is delivered.
type waitForEvent struct {
	event  behavior.EventID
	result behavior.Status
}

func newWaitForEvent(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	name, err := def.RequiredString("name")
	if err != nil {
		return nil, err
	}
	result := behavior.Success
	if s, err := def.String("result", ""); err != nil {
		return nil, err
	} else if s != "" {
		var ok bool
		result, ok = behavior.ParseStatus(s)
		if !ok || !behavior.IsTerminal(result) {
			return nil, &loader.AttributeError{Attribute: "result", Line: def.AttributeLine("result"), Err: fmt.Errorf("valid values are 'Success' or 'Failure', got %q", s)}
		}
	}
	return bc.NewNode(def, &waitForEvent{event: behavior.HashEventName(name), result: result}), nil
}

func (n *waitForEvent) NewRuntimeData() any { return new(received) }

func (n *waitForEvent) HandleEvent(ec behavior.EventContext, ev behavior.Event) {
	if ev.ID == n.event {
		behavior.RuntimeDataOf[*received](ec).ok = true
	}
}

func (n *waitForEvent) Update(tc behavior.TickContext) behavior.Status {
	if behavior.RuntimeDataOf[*received](tc).ok {
		return n.result
	}
	return behavior.Running
}

// timeCheck compares the time elapsed since a timestamp with a threshold.
type timeCheck struct {
	since     string
	threshold time.Duration
	lessThan  bool
	// neverSet is the result when the timestamp was never set.
	neverSet bool
}

func parseTimeCheck(bc *loader.BuildContext, def *loader.NodeDefinition, neverSetAttr string) (timeCheck, error) {
	var c timeCheck
	var err error
	if c.since, err = def.RequiredString("since"); err != nil {
		return c, err
	}
	if !bc.Timestamps().Has(c.since) {
		return c, &loader.AttributeError{Attribute: "since", Line: def.AttributeLine("since"), Err: fmt.Errorf("unknown timestamp %q", c.since)}
	}
	switch {
	case def.Has("isMoreThan"):
		c.threshold, err = def.Duration("isMoreThan", 0)
	case def.Has("isLessThan"):
		c.lessThan = true
		c.threshold, err = def.Duration("isLessThan", 0)
	default:
		err = &loader.AttributeError{Attribute: "isMoreThan", Line: def.Line, Err: errors.New("requires isMoreThan or isLessThan")}
	}
	if err != nil {
		return c, err
	}
	c.neverSet, err = def.Bool(neverSetAttr, false)
	return c, err
}

func (c timeCheck) holds(tc behavior.TickContext) bool {
	if !tc.Timestamps.HasBeenSetAtLeastOnce(c.since) {
		return c.neverSet
	}
	elapsed, ok := tc.Timestamps.ElapsedSince(c.since, tc.Now)
	if !ok {
		return false
	}
	if c.lessThan {
		return elapsed < c.threshold
	}
	return elapsed > c.threshold
}

// ifTime ticks its child if the time check held when the node started.
type ifTime struct {
	decorator
	check timeCheck
}

func newIfTime(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	check, err := parseTimeCheck(bc, def, "orNeverBeenSet")
	if err != nil {
		return nil, err
	}
	child, err := bc.BuildChild(def)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &ifTime{decorator: decorator{child: child}, check: check}), nil
}

func (n *ifTime) NewRuntimeData() any { return new(gate) }

func (n *ifTime) OnInitialize(tc behavior.TickContext) {
	behavior.RuntimeDataOf[*gate](tc).open = n.check.holds(tc)
}

func (n *ifTime) Update(tc behavior.TickContext) behavior.Status {
	if !behavior.RuntimeDataOf[*gate](tc).open {
		return behavior.Failure
	}
	return n.child.Tick(tc)
}

// waitUntilTime runs until the time check holds.
type waitUntilTime struct {
	check timeCheck
}

func newWaitUntilTime(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	check, err := parseTimeCheck(bc, def, "succeedIfNeverBeenSet")
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &waitUntilTime{check: check}), nil
}

func (n *waitUntilTime) Update(tc behavior.TickContext) behavior.Status {
	if n.check.holds(tc) {
		return behavior.Success
	}
	return behavior.Running
}

// assertTime succeeds if the time check holds, otherwise fails.
type assertTime struct {
	check timeCheck
}

func newAssertTime(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	check, err := parseTimeCheck(bc, def, "orNeverBeenSet")
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &assertTime{check: check}), nil
}

func (n *assertTime) Update(tc behavior.TickContext) behavior.Status {
	if n.check.holds(tc) {
		return behavior.Success
	}
	return behavior.Failure
}
