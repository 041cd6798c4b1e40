package nodes

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	bt "github.com/joeycumines/go-behaviortree"
	pabtpkg "github.com/joeycumines/go-pabt"
	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
)

// PlanActionSpec is one action of a Plan node.
//
//	type: Plan
//	goal:
//	  Alarmed: false
//	  Alarms: {match: "value < 3"}
//	actions:
//	  - name: Calm
//	    conditions: {Alarmed: true}
//	    effects: {Alarmed: false}
type PlanActionSpec struct {
	Name       string         `yaml:"name"`
	Conditions map[string]any `yaml:"conditions"`
	Effects    map[string]any `yaml:"effects"`
}

// planCondition is a condition over one variable. It implements
// pabtpkg.Condition.
type planCondition struct {
	key   string
	match func(value any) bool
}

var _ pabtpkg.Condition = (*planCondition)(nil)

func (c *planCondition) Key() any { return c.key }

func (c *planCondition) Match(value any) bool { return c.match(value) }

// planEffect implements pabtpkg.Effect.
type planEffect struct {
	key   string
	value any
}

var _ pabtpkg.Effect = (*planEffect)(nil)

func (e *planEffect) Key() any { return e.key }

func (e *planEffect) Value() any { return e.value }

type planActionTemplate struct {
	name       string
	conditions pabtpkg.IConditions
	effects    pabtpkg.Effects
}

// planAction is an action bound to one instance's variables. It implements
// pabtpkg.IAction.
type planAction struct {
	*planActionTemplate
	node bt.Node
}

var _ pabtpkg.IAction = (*planAction)(nil)

// Conditions returns no groups for an unconditioned action; the planner
// rejects an empty group.
func (a *planAction) Conditions() []pabtpkg.IConditions {
	if len(a.conditions) == 0 {
		return nil
	}
	return []pabtpkg.IConditions{a.conditions}
}

func (a *planAction) Effects() pabtpkg.Effects { return a.effects }

func (a *planAction) Node() bt.Node { return a.node }

// planState exposes an instance's variables to the planner. It implements
// pabtpkg.IState.
type planState struct {
	vars    *behavior.VariableCollection
	actions []pabtpkg.IAction
}

var _ pabtpkg.IState = (*planState)(nil)

func (s *planState) Variable(key any) (any, error) {
	name, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("unsupported key type: %T", key)
	}
	v, ok := s.vars.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", behavior.ErrUnknownVariable, name)
	}
	return v, nil
}

// Actions returns the actions with an effect satisfying failed.
func (s *planState) Actions(failed pabtpkg.Condition) ([]pabtpkg.IAction, error) {
	if failed == nil {
		return s.actions, nil
	}
	var relevant []pabtpkg.IAction
	for _, action := range s.actions {
		for _, effect := range action.Effects() {
			if effect.Key() == failed.Key() && failed.Match(effect.Value()) {
				relevant = append(relevant, action)
				break
			}
		}
	}
	return relevant, nil
}

type planData struct {
	node bt.Node
	err  error
}

// plan drives a go-pabt plan towards its goal. The plan is created per
// instance, the first time the node is ticked.
type plan struct {
	goal    pabtpkg.IConditions
	actions []*planActionTemplate
}

func newPlan(bc *loader.BuildContext, def *loader.NodeDefinition) (behavior.Node, error) {
	if err := bc.NoChildren(def); err != nil {
		return nil, err
	}
	var goal map[string]any
	ok, err := def.Decode("goal", &goal)
	if err != nil {
		return nil, err
	}
	if !ok || len(goal) == 0 {
		return nil, &loader.AttributeError{Attribute: "goal", Line: def.Line, Err: errors.New("requires at least one goal condition")}
	}
	p := new(plan)
	if p.goal, err = planConditions(bc, goal); err != nil {
		return nil, &loader.AttributeError{Attribute: "goal", Line: def.AttributeLine("goal"), Err: err}
	}

	var specs []PlanActionSpec
	if _, err := def.Decode("actions", &specs); err != nil {
		return nil, err
	}
	for i, spec := range specs {
		action, err := planActionFromSpec(bc, spec)
		if err != nil {
			return nil, &loader.AttributeError{Attribute: "actions", Line: def.AttributeLine("actions"), Err: fmt.Errorf("action %d: %w", i, err)}
		}
		p.actions = append(p.actions, action)
	}
	return bc.NewNode(def, p), nil
}

func planActionFromSpec(bc *loader.BuildContext, spec PlanActionSpec) (*planActionTemplate, error) {
	if spec.Name == "" {
		return nil, errors.New("missing name")
	}
	if len(spec.Effects) == 0 {
		return nil, fmt.Errorf("%s: requires at least one effect", spec.Name)
	}
	conditions, err := planConditions(bc, spec.Conditions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}
	a := &planActionTemplate{name: spec.Name, conditions: conditions}
	for _, key := range slices.Sorted(maps.Keys(spec.Effects)) {
		decl, ok := bc.Variables().Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %q", spec.Name, behavior.ErrUnknownVariable, key)
		}
		value, err := decl.Kind.Coerce(spec.Effects[key])
		if err != nil {
			return nil, fmt.Errorf("%s: effect %s: %w", spec.Name, key, err)
		}
		a.effects = append(a.effects, &planEffect{key: key, value: value})
	}
	return a, nil
}

// planConditions compiles a map of variable to either a value, matched by
// equality, or {match: expression} evaluated with the variable as value.
func planConditions(bc *loader.BuildContext, m map[string]any) (pabtpkg.IConditions, error) {
	conditions := pabtpkg.IConditions{}
	for _, key := range slices.Sorted(maps.Keys(m)) {
		decl, ok := bc.Variables().Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", behavior.ErrUnknownVariable, key)
		}
		if spec, ok := m[key].(map[string]any); ok {
			expression, _ := spec["match"].(string)
			if expression == "" || len(spec) != 1 {
				return nil, fmt.Errorf("%s: expected a value or {match: expression}", key)
			}
			matcher, err := bc.Conditions().CompileMatcher(expression, decl.Kind.Zero())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			conditions = append(conditions, &planCondition{key: key, match: matcher.Match})
			continue
		}
		want, err := decl.Kind.Coerce(m[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		conditions = append(conditions, &planCondition{key: key, match: func(v any) bool { return v == want }})
	}
	return conditions, nil
}

func (n *plan) NewRuntimeData() any { return new(planData) }

func (n *plan) OnInitialize(tc behavior.TickContext) {
	d := behavior.RuntimeDataOf[*planData](tc)
	state := &planState{vars: tc.Variables.Collection()}
	for _, tmpl := range n.actions {
		state.actions = append(state.actions, &planAction{
			planActionTemplate: tmpl,
			node:               applyEffects(state.vars, tmpl),
		})
	}
	p, err := pabtpkg.INew(state, []pabtpkg.IConditions{n.goal})
	if err != nil {
		d.err = err
		return
	}
	d.node = p.Node()
}

// applyEffects returns the go-behaviortree leaf executing an action.
func applyEffects(vars *behavior.VariableCollection, a *planActionTemplate) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		for _, effect := range a.effects {
			if err := vars.Set(effect.Key().(string), effect.Value()); err != nil {
				return bt.Failure, fmt.Errorf("action %s: %w", a.name, err)
			}
		}
		return bt.Success, nil
	})
}

func (n *plan) Update(tc behavior.TickContext) behavior.Status {
	d := behavior.RuntimeDataOf[*planData](tc)
	if d.err != nil {
		tc.Logger().Error("behavior tree plan could not be created", "error", d.err)
		return behavior.Failure
	}
	status, err := d.node.Tick()
	if err != nil {
		tc.Logger().Warn("behavior tree plan failed", "error", err)
		return behavior.Failure
	}
	return status
}
