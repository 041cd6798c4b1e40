package behavior

import (
	"fmt"
	"slices"
)

// MutationOp is the operation a signal applies to a variable.
type MutationOp int

const (
	OpSet MutationOp = iota + 1
	OpIncrement
	OpDecrement
	OpToggle
)

func (op MutationOp) String() string {
	switch op {
	case OpSet:
		return "set"
	case OpIncrement:
		return "increment"
	case OpDecrement:
		return "decrement"
	case OpToggle:
		return "toggle"
	default:
		return fmt.Sprintf("MutationOp(%d)", int(op))
	}
}

// ParseMutationOp parses an operation name. The empty string means set.
func ParseMutationOp(s string) (MutationOp, error) {
	switch s {
	case "", "set":
		return OpSet, nil
	case "increment", "inc":
		return OpIncrement, nil
	case "decrement", "dec":
		return OpDecrement, nil
	case "toggle":
		return OpToggle, nil
	default:
		return 0, fmt.Errorf("unknown signal operation %q", s)
	}
}

// VariableMutation is one change applied to a variable.
type VariableMutation struct {
	Variable string
	Op       MutationOp
	// Value is the assigned value for set, or the step for increment and
	// decrement (nil means 1). It is ignored for toggle.
	Value any
}

// SignalRule binds a mutation to a named signal.
type SignalRule struct {
	Signal   string
	Mutation VariableMutation
}

type boundMutation struct {
	VariableMutation
	kind VariableKind
}

// SignalHandler maps events to variable mutations.
type SignalHandler struct {
	rules map[EventID][]boundMutation
	names map[EventID]string
}

// NewSignalHandler validates rules against decls. Values are converted to
// the declared kind, so applying a rule cannot fail.
func NewSignalHandler(decls *VariableDeclarations, rules ...SignalRule) (*SignalHandler, error) {
	h := &SignalHandler{
		rules: make(map[EventID][]boundMutation),
		names: make(map[EventID]string),
	}
	for _, rule := range rules {
		if rule.Signal == "" {
			return nil, fmt.Errorf("signal rule for variable %q: empty signal", rule.Mutation.Variable)
		}
		m, err := bindMutation(decls, rule.Mutation)
		if err != nil {
			return nil, fmt.Errorf("signal %q: %w", rule.Signal, err)
		}
		id := HashEventName(rule.Signal)
		h.rules[id] = append(h.rules[id], m)
		h.names[id] = rule.Signal
	}
	return h, nil
}

func bindMutation(decls *VariableDeclarations, m VariableMutation) (boundMutation, error) {
	decl, ok := decls.Lookup(m.Variable)
	if !ok {
		return boundMutation{}, fmt.Errorf("%w: %q", ErrUnknownVariable, m.Variable)
	}
	b := boundMutation{VariableMutation: m, kind: decl.Kind}
	switch m.Op {
	case 0, OpSet:
		b.Op = OpSet
		v, err := decl.Kind.Coerce(m.Value)
		if err != nil {
			return boundMutation{}, fmt.Errorf("set %q: %w", m.Variable, err)
		}
		b.Value = v
	case OpIncrement, OpDecrement:
		if decl.Kind != KindInt && decl.Kind != KindFloat {
			return boundMutation{}, fmt.Errorf("%w: cannot %s %s variable %q", ErrTypeMismatch, m.Op, decl.Kind, m.Variable)
		}
		step := m.Value
		if step == nil {
			step = 1
		}
		v, err := decl.Kind.Coerce(step)
		if err != nil {
			return boundMutation{}, fmt.Errorf("%s %q: %w", m.Op, m.Variable, err)
		}
		b.Value = v
	case OpToggle:
		if decl.Kind != KindBool {
			return boundMutation{}, fmt.Errorf("%w: cannot toggle %s variable %q", ErrTypeMismatch, decl.Kind, m.Variable)
		}
	default:
		return boundMutation{}, fmt.Errorf("variable %q: invalid operation %s", m.Variable, m.Op)
	}
	return b, nil
}

// Handles reports whether any rule is bound to id.
func (h *SignalHandler) Handles(id EventID) bool {
	if h == nil {
		return false
	}
	_, ok := h.rules[id]
	return ok
}

// Signals returns the sorted names of the handled signals.
func (h *SignalHandler) Signals() []string {
	if h == nil {
		return nil
	}
	out := make([]string, 0, len(h.names))
	for _, name := range h.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Apply mutates vars according to the rules bound to id, returning the
// number of mutations applied.
func (h *SignalHandler) Apply(id EventID, vars *VariableCollection) int {
	if h == nil {
		return 0
	}
	rules := h.rules[id]
	for _, m := range rules {
		var v any
		switch m.Op {
		case OpSet:
			v = m.Value
		case OpIncrement, OpDecrement:
			v = step(m, vars)
		case OpToggle:
			v = !vars.Bool(m.Variable)
		}
		// values were validated at construction
		_ = vars.Set(m.Variable, v)
	}
	return len(rules)
}

func step(m boundMutation, vars *VariableCollection) any {
	if m.kind == KindInt {
		delta := m.Value.(int)
		if m.Op == OpDecrement {
			delta = -delta
		}
		return vars.Int(m.Variable) + delta
	}
	delta := m.Value.(float64)
	if m.Op == OpDecrement {
		delta = -delta
	}
	return vars.Float(m.Variable) + delta
}
