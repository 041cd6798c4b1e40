package nodes

import (
	"errors"
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/condition"
)

// GoBTSpec is the tree attribute of a GoBT node. Exactly one field is set.
//
//	type: GoBT
//	tree:
//	  selector:
//	    - condition: "Alarmed"
//	    - set: {variable: Alarms, value: 0}
type GoBTSpec struct {
	Sequence  []GoBTSpec      `yaml:"sequence"`
	Selector  []GoBTSpec      `yaml:"selector"`
	Not       *GoBTSpec       `yaml:"not"`
	Condition string          `yaml:"condition"`
	Set       *GoBTAssignment `yaml:"set"`
}

// GoBTAssignment is a variable assignment leaf.
type GoBTAssignment struct {
	Variable string `yaml:"variable"`
	Value    any    `yaml:"value"`
}

// goBTTemplate is the compiled form of a GoBTSpec. It produces a fresh
// go-behaviortree node per tick, bound to that tick's context.
type goBTTemplate interface {
	node(tc behavior.TickContext) bt.Node
}

type goBTComposite struct {
	tick     bt.Tick
	children []goBTTemplate
}

func (c *goBTComposite) node(tc behavior.TickContext) bt.Node {
	children := make([]bt.Node, len(c.children))
	for i, child := range c.children {
		children[i] = child.node(tc)
	}
	return bt.New(c.tick, children...)
}

type goBTCondition struct {
	cond *condition.Condition
}

func (c *goBTCondition) node(tc behavior.TickContext) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		ok, err := c.cond.Evaluate(tc.Variables.Env())
		if err != nil {
			return bt.Failure, err
		}
		if ok {
			return bt.Success, nil
		}
		return bt.Failure, nil
	})
}

type goBTSet struct {
	name  string
	value any
}

func (s *goBTSet) node(tc behavior.TickContext) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if err := tc.Variables.Set(s.name, s.value); err != nil {
			return bt.Failure, err
		}
		return bt.Success, nil
	})
}

func compileGoBT(bc *loader.BuildContext, spec *GoBTSpec) (goBTTemplate, error) {
	var (
		set  int
		tmpl goBTTemplate
		err  error
	)
	composite := func(tick bt.Tick, specs []GoBTSpec) (goBTTemplate, error) {
		c := &goBTComposite{tick: tick, children: make([]goBTTemplate, len(specs))}
		for i := range specs {
			if c.children[i], err = compileGoBT(bc, &specs[i]); err != nil {
				return nil, err
			}
		}
		return c, nil
	}
	if spec.Sequence != nil {
		set++
		tmpl, err = composite(bt.Sequence, spec.Sequence)
	}
	if spec.Selector != nil {
		set++
		tmpl, err = composite(bt.Selector, spec.Selector)
	}
	if spec.Not != nil {
		set++
		var child goBTTemplate
		if child, err = compileGoBT(bc, spec.Not); err == nil {
			tmpl = &goBTComposite{tick: bt.Not(bt.Sequence), children: []goBTTemplate{child}}
		}
	}
	if spec.Condition != "" {
		set++
		var cond *condition.Condition
		if cond, err = bc.CompileCondition(spec.Condition); err == nil {
			tmpl = &goBTCondition{cond: cond}
		}
	}
	if spec.Set != nil {
		set++
		tmpl, err = compileGoBTSet(bc, spec.Set)
	}
	if err != nil {
		return nil, err
	}
	if set != 1 {
		return nil, errors.New("each element must set exactly one of sequence, selector, not, condition or set")
	}
	return tmpl, nil
}

func compileGoBTSet(bc *loader.BuildContext, a *GoBTAssignment) (goBTTemplate, error) {
	decl, ok := bc.Variables().Lookup(a.Variable)
	if !ok {
		return nil, fmt.Errorf("%w: %q", behavior.ErrUnknownVariable, a.Variable)
	}
	value, err := decl.Kind.Coerce(a.Value)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", a.Variable, err)
	}
	return &goBTSet{name: a.Variable, value: value}, nil
}

// goBT runs a stateless go-behaviortree subtree once per tick.
type goBT struct {
	tree goBTTemplate
}

func newGoBT(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	var spec GoBTSpec
	ok, err := def.Decode("tree", &spec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &loader.AttributeError{Attribute: "tree", Line: def.Line, Err: errors.New("required attribute missing")}
	}
	tree, err := compileGoBT(bc, &spec)
	if err != nil {
		return nil, &loader.AttributeError{Attribute: "tree", Line: def.AttributeLine("tree"), Err: err}
	}
	return bc.NewNode(def, &goBT{tree: tree}), nil
}

func (n *goBT) Update(tc behavior.TickContext) behavior.Status {
	status, err := n.tree.node(tc).Tick()
	if err != nil {
		tc.Logger().Warn("behavior tree go-behaviortree subtree failed", "error", err)
		return behavior.Failure
	}
	return status
}
