package nodes

import (
	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/condition"
)

// compileCondition compiles the required condition attribute.
func compileCondition(bc *loader.BuildContext, def *loader.NodeDefinition) (*condition.Condition, error) {
	expression, err := def.RequiredString("condition")
	if err != nil {
		return nil, err
	}
	cond, err := bc.CompileCondition(expression)
	if err != nil {
		return nil, &loader.AttributeError{Attribute: "condition", Line: def.AttributeLine("condition"), Err: err}
	}
	return cond, nil
}

// evaluate reports whether cond holds for the instance variables. Evaluation
// errors count as false.
func evaluate(tc behavior.TickContext, cond *condition.Condition) bool {
	ok, err := cond.Evaluate(tc.Variables.Env())
	if err != nil {
		tc.Logger().Warn("behavior tree condition failed to evaluate", "condition", cond.String(), "error", err)
		return false
	}
	return ok
}

type gate struct {
	open bool
}

// ifCondition ticks its child if the condition held when the node started.
type ifCondition struct {
	decorator
	cond *condition.Condition
}

func newIfCondition(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	cond, err := compileCondition(bc, def)
	if err != nil {
		return nil, err
	}
	child, err := bc.BuildChild(def)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &ifCondition{decorator: decorator{child: child}, cond: cond}), nil
}

func (n *ifCondition) NewRuntimeData() any { return new(gate) }

func (n *ifCondition) OnInitialize(tc behavior.TickContext) {
	behavior.RuntimeDataOf[*gate](tc).open = evaluate(tc, n.cond)
}

func (n *ifCondition) Update(tc behavior.TickContext) behavior.Status {
	if !behavior.RuntimeDataOf[*gate](tc).open {
		return behavior.Failure
	}
	return n.child.Tick(tc)
}

// assertCondition succeeds if the condition holds, otherwise fails.
type assertCondition struct {
	cond *condition.Condition
}

func newAssertCondition(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	cond, err := compileCondition(bc, def)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &assertCondition{cond: cond}), nil
}

func (n *assertCondition) Update(tc behavior.TickContext) behavior.Status {
	if evaluate(tc, n.cond) {
		return behavior.Success
	}
	return behavior.Failure
}

// monitorCondition runs until the condition holds.
type monitorCondition struct {
	cond *condition.Condition
}

func newMonitorCondition(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	cond, err := compileCondition(bc, def)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &monitorCondition{cond: cond}), nil
}

func (n *monitorCondition) Update(tc behavior.TickContext) behavior.Status {
	if evaluate(tc, n.cond) {
		return behavior.Success
	}
	return behavior.Running
}
