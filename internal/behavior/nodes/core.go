package nodes

import (
	"fmt"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
)

// status always returns the same status. It backs Fail and Halt.
type status behavior.Status

func newFail(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	return bc.NewNode(def, status(behavior.Failure)), nil
}

func newHalt(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	return bc.NewNode(def, status(behavior.Running)), nil
}

func (s status) Update(behavior.TickContext) behavior.Status { return behavior.Status(s) }

// suppressFailure runs its child, reporting failure as success.
type suppressFailure struct {
	decorator
}

func newSuppressFailure(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	child, err := bc.BuildChild(def)
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &suppressFailure{decorator{child: child}}), nil
}

func (n *suppressFailure) Update(tc behavior.TickContext) behavior.Status {
	if n.child.Tick(tc) == behavior.Running {
		return behavior.Running
	}
	return behavior.Success
}

// sendEvent dispatches an event to its own entity and succeeds.
type sendEvent struct {
	event behavior.Event
}

func newSendEvent(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	name, err := def.RequiredString("name")
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &sendEvent{event: behavior.NewEvent(name)}), nil
}

func (n *sendEvent) Update(tc behavior.TickContext) behavior.Status {
	tc.Dispatch(n.event)
	return behavior.Success
}

// setVariable assigns a declared variable and succeeds.
type setVariable struct {
	name  string
	value any
}

func newSetVariable(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	name, err := def.RequiredString("variable")
	if err != nil {
		return nil, err
	}
	decl, ok := bc.Variables().Lookup(name)
	if !ok {
		return nil, &loader.AttributeError{Attribute: "variable", Line: def.AttributeLine("variable"), Err: fmt.Errorf("%w: %q", behavior.ErrUnknownVariable, name)}
	}
	raw, ok, err := def.Value("value")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &loader.AttributeError{Attribute: "value", Line: def.Line, Err: fmt.Errorf("required attribute missing")}
	}
	value, err := decl.Kind.Coerce(raw)
	if err != nil {
		return nil, &loader.AttributeError{Attribute: "value", Line: def.AttributeLine("value"), Err: err}
	}
	return bc.NewNode(def, &setVariable{name: name, value: value}), nil
}

func (n *setVariable) Update(tc behavior.TickContext) behavior.Status {
	if err := tc.Variables.Set(n.name, n.value); err != nil {
		tc.Logger().Error("behavior tree failed to set variable", "variable", n.name, "error", err)
		return behavior.Failure
	}
	return behavior.Success
}

// log appends a message to the execution log and succeeds.
type log struct {
	message string
}

func newLog(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	message, err := def.String("message", "")
	if err != nil {
		return nil, err
	}
	return bc.NewNode(def, &log{message: fmt.Sprintf("%s (%d)", message, def.Line)}), nil
}

func (n *log) Update(tc behavior.TickContext) behavior.Status {
	tc.Log(n.message)
	return behavior.Success
}
