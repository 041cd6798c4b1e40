package nodes

import (
	"fmt"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/condition"
)

type cursor struct {
	index int
}

// sequence ticks children in order until one fails or is running.
type sequence struct {
	children []behavior.Node
}

func newSequence(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	children, err := bc.BuildChildren(def, 1)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &sequence{children: children}), nil
}

func (n *sequence) NewRuntimeData() any { return new(cursor) }

func (n *sequence) Update(tc behavior.TickContext) behavior.Status {
	c := behavior.RuntimeDataOf[*cursor](tc)
	for {
		s := n.children[c.index].Tick(tc)
		if s != behavior.Success {
			return s
		}
		c.index++
		if c.index == len(n.children) {
			return behavior.Success
		}
	}
}

func (n *sequence) OnTerminate(tc behavior.TickContext) {
	if c := behavior.RuntimeDataOf[*cursor](tc); c.index < len(n.children) {
		n.children[c.index].Terminate(tc)
	}
}

func (n *sequence) HandleEvent(ec behavior.EventContext, ev behavior.Event) {
	if c := behavior.RuntimeDataOf[*cursor](ec); c.index < len(n.children) {
		n.children[c.index].SendEvent(ec, ev)
	}
}

// selector ticks children in order until one succeeds or is running.
type selector struct {
	children []behavior.Node
}

func newSelector(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	children, err := bc.BuildChildren(def, 1)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &selector{children: children}), nil
}

func (n *selector) NewRuntimeData() any { return new(cursor) }

func (n *selector) Update(tc behavior.TickContext) behavior.Status {
	c := behavior.RuntimeDataOf[*cursor](tc)
	for {
		s := n.children[c.index].Tick(tc)
		if s != behavior.Failure {
			return s
		}
		c.index++
		if c.index == len(n.children) {
			return behavior.Failure
		}
	}
}

func (n *selector) OnTerminate(tc behavior.TickContext) {
	if c := behavior.RuntimeDataOf[*cursor](tc); c.index < len(n.children) {
		n.children[c.index].Terminate(tc)
	}
}

func (n *selector) HandleEvent(ec behavior.EventContext, ev behavior.Event) {
	if c := behavior.RuntimeDataOf[*cursor](ec); c.index < len(n.children) {
		n.children[c.index].SendEvent(ec, ev)
	}
}

type priorityCase struct {
	cond *condition.Condition
	node behavior.Node
}

// priority runs the first case whose condition holds. Conditions are
// re-evaluated only when variables changed since the previous tick.
type priority struct {
	cases []priorityCase
}

func newPriority(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if len(def.Children) == 0 {
		return nil, fmt.Errorf("requires at least one Case")
	}
	p := &priority{cases: make([]priorityCase, len(def.Children))}
	for i, caseDef := range def.Children {
		if caseDef.Type != "Case" {
			return nil, &loader.AttributeError{Attribute: "children", Line: caseDef.Line, Err: fmt.Errorf("child %d must be a Case, got %s", i, caseDef.Type)}
		}
		expression, err := caseDef.String("condition", "true")
		if err != nil {
			return nil, err
		}
		cond, err := bc.CompileCondition(expression)
		if err != nil {
			return nil, &loader.AttributeError{Attribute: "condition", Line: caseDef.AttributeLine("condition"), Err: err}
		}
		node, err := bc.BuildChild(caseDef)
		if err != nil {
			return nil, err
		}
		p.cases[i] = priorityCase{cond: cond, node: node}
	}
	return bc.NewNode(def, p), nil
}

func (n *priority) NewRuntimeData() any { return &cursor{index: len(n.cases)} }

func (n *priority) Update(tc behavior.TickContext) behavior.Status {
	c := behavior.RuntimeDataOf[*cursor](tc)
	if tc.Variables.ChangedSinceLastTick() || c.index >= len(n.cases) {
		selected := n.pick(tc)
		if selected != c.index {
			if c.index < len(n.cases) {
				n.cases[c.index].node.Terminate(tc)
			}
			c.index = selected
		}
	}
	if c.index >= len(n.cases) {
		return behavior.Failure
	}
	return n.cases[c.index].node.Tick(tc)
}

func (n *priority) pick(tc behavior.TickContext) int {
	for i, pc := range n.cases {
		if evaluate(tc, pc.cond) {
			return i
		}
	}
	return len(n.cases)
}

func (n *priority) OnTerminate(tc behavior.TickContext) {
	if c := behavior.RuntimeDataOf[*cursor](tc); c.index < len(n.cases) {
		n.cases[c.index].node.Terminate(tc)
		c.index = len(n.cases)
	}
}

func (n *priority) HandleEvent(ec behavior.EventContext, ev behavior.Event) {
	if c := behavior.RuntimeDataOf[*cursor](ec); c.index < len(n.cases) {
		n.cases[c.index].node.SendEvent(ec, ev)
	}
}

// parallelMode is the "any" or "all" setting of a Parallel.
type parallelMode bool

const (
	modeAll parallelMode = false
	modeAny parallelMode = true
)

func parseParallelMode(def *loader.NodeDefinition, name string, fallback parallelMode) (parallelMode, error) {
	s, err := def.String(name, "")
	if err != nil {
		return fallback, err
	}
	switch s {
	case "":
		return fallback, nil
	case "any":
		return modeAny, nil
	case "all":
		return modeAll, nil
	}
	return fallback, &loader.AttributeError{Attribute: name, Line: def.AttributeLine(name), Err: fmt.Errorf("valid values are 'all' or 'any', got %q", s)}
}

type parallelData struct {
	running   []bool
	successes int
	failures  int
}

// parallel ticks all running children every frame.
type parallel struct {
	children    []behavior.Node
	successMode parallelMode
	failureMode parallelMode
}

func newParallel(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	successMode, err := parseParallelMode(def, "successMode", modeAll)
	if err != nil {
		return nil, err
	}
	failureMode, err := parseParallelMode(def, "failureMode", modeAny)
	if err != nil {
		return nil, err
	}
	children, err := bc.BuildChildren(def, 1)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &parallel{children: children, successMode: successMode, failureMode: failureMode}), nil
}

func (n *parallel) NewRuntimeData() any {
	d := &parallelData{running: make([]bool, len(n.children))}
	for i := range d.running {
		d.running[i] = true
	}
	return d
}

func (n *parallel) Update(tc behavior.TickContext) behavior.Status {
	d := behavior.RuntimeDataOf[*parallelData](tc)
	for i, child := range n.children {
		if !d.running[i] {
			continue
		}
		switch child.Tick(tc) {
		case behavior.Running:
			continue
		case behavior.Success:
			d.successes++
		default:
			d.failures++
		}
		d.running[i] = false
	}

	total := len(n.children)
	if (n.successMode == modeAll && d.successes == total) || (n.successMode == modeAny && d.successes > 0) {
		return behavior.Success
	}
	if (n.failureMode == modeAll && d.failures == total) || (n.failureMode == modeAny && d.failures > 0) {
		return behavior.Failure
	}
	if d.successes+d.failures == total {
		// every child finished without satisfying either mode
		return behavior.Failure
	}
	return behavior.Running
}

func (n *parallel) OnTerminate(tc behavior.TickContext) {
	d := behavior.RuntimeDataOf[*parallelData](tc)
	if d == nil {
		return
	}
	for i, child := range n.children {
		if d.running[i] {
			child.Terminate(tc)
		}
	}
}

func (n *parallel) HandleEvent(ec behavior.EventContext, ev behavior.Event) {
	d := behavior.RuntimeDataOf[*parallelData](ec)
	for i, child := range n.children {
		if d.running[i] {
			child.SendEvent(ec, ev)
		}
	}
}

type loopData struct {
	count           int
	runningLastTick bool
}

// loop repeats its child. It fails when the child fails, and succeeds after
// count successes, or never if count is 0.
type loop struct {
	decorator
	count int
	// untilSuccess inverts the roles of success and failure.
	untilSuccess bool
}

func newLoop(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	return buildLoop(bc, def, "count", false)
}

func newLoopUntilSuccess(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	return buildLoop(bc, def, "attemptCount", true)
}

func buildLoop(bc *loader.BuildContext, def *loader.NodeDefinition, attr string, untilSuccess bool) (behavior.Node, error) {
	count, err := def.Int(attr, 0)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, &loader.AttributeError{Attribute: attr, Line: def.AttributeLine(attr), Err: fmt.Errorf("must not be negative")}
	}
	child, err := bc.BuildChild(def)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &loop{decorator: decorator{child: child}, count: count, untilSuccess: untilSuccess}), nil
}

func (n *loop) NewRuntimeData() any { return new(loopData) }

func (n *loop) Update(tc behavior.TickContext) behavior.Status {
	d := behavior.RuntimeDataOf[*loopData](tc)
	repeat, done := behavior.Success, behavior.Failure
	if n.untilSuccess {
		repeat, done = behavior.Failure, behavior.Success
	}

	s := n.child.Tick(tc)
	if s == repeat {
		if n.count > 0 {
			if d.count+1 >= n.count {
				return repeat
			}
			d.count++
		}
		// restart straight away if the child took more than one frame
		if d.runningLastTick {
			s = n.child.Tick(tc)
		}
	}
	d.runningLastTick = s == behavior.Running
	if s == done {
		return done
	}
	return behavior.Running
}
