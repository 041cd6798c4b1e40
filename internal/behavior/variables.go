package behavior

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// VariableKind is the declared type of a variable.
type VariableKind int

const (
	KindBool VariableKind = iota + 1
	KindInt
	KindFloat
	KindString
)

func (k VariableKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "VariableKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseVariableKind parses the name of a kind, as written in definitions.
func ParseVariableKind(s string) (VariableKind, error) {
	switch s {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer":
		return KindInt, nil
	case "float", "number":
		return KindFloat, nil
	case "string":
		return KindString, nil
	default:
		return 0, fmt.Errorf("unknown variable type %q", s)
	}
}

// Zero returns the zero value of the kind.
func (k VariableKind) Zero() any {
	switch k {
	case KindBool:
		return false
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindString:
		return ""
	default:
		return nil
	}
}

// Coerce converts v to the canonical Go type of the kind (bool, int, float64
// or string). Lossless numeric conversions are accepted.
func (k VariableKind) Coerce(v any) (any, error) {
	switch k {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int8:
			return int(n), nil
		case int16:
			return int(n), nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		case uint:
			return int(n), nil
		case uint8:
			return int(n), nil
		case uint16:
			return int(n), nil
		case uint32:
			return int(n), nil
		case uint64:
			if n <= math.MaxInt {
				return int(n), nil
			}
		case float32:
			if float32(int(n)) == n {
				return int(n), nil
			}
		case float64:
			if float64(int(n)) == n {
				return int(n), nil
			}
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case uint64:
			return float64(n), nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		return nil, fmt.Errorf("%w: invalid kind %s", ErrTypeMismatch, k)
	}
	return nil, fmt.Errorf("%w: %v (%T) is not a %s", ErrTypeMismatch, v, v, k)
}

// VariableDeclaration is a named, typed variable with a default value.
type VariableDeclaration struct {
	Name    string
	Kind    VariableKind
	Default any
}

// VariableDeclarations is the ordered set of variables a template declares.
// It is frozen once its template is built.
type VariableDeclarations struct {
	order  []string
	byName map[string]VariableDeclaration
	frozen bool
}

// NewVariableDeclarations returns an empty, mutable set of declarations.
func NewVariableDeclarations() *VariableDeclarations {
	return &VariableDeclarations{byName: make(map[string]VariableDeclaration)}
}

// Declare adds a variable. A nil def uses the zero value of kind.
func (d *VariableDeclarations) Declare(name string, kind VariableKind, def any) error {
	if d.frozen {
		return fmt.Errorf("declare variable %q: declarations are frozen", name)
	}
	if name == "" {
		return fmt.Errorf("declare variable: empty name")
	}
	if _, ok := d.byName[name]; ok {
		return fmt.Errorf("declare variable %q: duplicate declaration", name)
	}
	if def == nil {
		def = kind.Zero()
	}
	v, err := kind.Coerce(def)
	if err != nil {
		return fmt.Errorf("declare variable %q: default: %w", name, err)
	}
	d.order = append(d.order, name)
	d.byName[name] = VariableDeclaration{Name: name, Kind: kind, Default: v}
	return nil
}

// Lookup returns the declaration for name.
func (d *VariableDeclarations) Lookup(name string) (VariableDeclaration, bool) {
	if d == nil {
		return VariableDeclaration{}, false
	}
	v, ok := d.byName[name]
	return v, ok
}

// Names returns the variable names in declaration order.
func (d *VariableDeclarations) Names() []string {
	if d == nil {
		return nil
	}
	return slices.Clone(d.order)
}

// Len returns the number of declared variables.
func (d *VariableDeclarations) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}

// Defaults returns a new map of every variable's default value, suitable as
// a type environment for compiling conditions.
func (d *VariableDeclarations) Defaults() map[string]any {
	out := make(map[string]any, d.Len())
	if d != nil {
		for name, decl := range d.byName {
			out[name] = decl.Default
		}
	}
	return out
}

func (d *VariableDeclarations) freeze() { d.frozen = true }

// VariableCollection is one instance's variable values, plus the set of
// variables changed since the last [VariableCollection.ResetChanged].
type VariableCollection struct {
	decls   *VariableDeclarations
	values  map[string]any
	changed map[string]struct{}
}

// NewVariableCollection seeds a collection from the declared defaults.
func NewVariableCollection(decls *VariableDeclarations) *VariableCollection {
	if decls == nil {
		decls = NewVariableDeclarations()
	}
	return &VariableCollection{
		decls:   decls,
		values:  decls.Defaults(),
		changed: make(map[string]struct{}),
	}
}

// Declarations returns the declarations backing the collection.
func (c *VariableCollection) Declarations() *VariableDeclarations { return c.decls }

// Get returns the current value of name.
func (c *VariableCollection) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Bool returns the value of a bool variable, or false.
func (c *VariableCollection) Bool(name string) bool {
	v, _ := c.values[name].(bool)
	return v
}

// Int returns the value of an int variable, or 0.
func (c *VariableCollection) Int(name string) int {
	v, _ := c.values[name].(int)
	return v
}

// Float returns the value of a float variable, or 0.
func (c *VariableCollection) Float(name string) float64 {
	v, _ := c.values[name].(float64)
	return v
}

// String returns the value of a string variable, or "".
func (c *VariableCollection) String(name string) string {
	v, _ := c.values[name].(string)
	return v
}

// Set assigns a declared variable, converting value to the declared kind.
// The variable is marked changed only if its value differs.
func (c *VariableCollection) Set(name string, value any) error {
	decl, ok := c.decls.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	v, err := decl.Kind.Coerce(value)
	if err != nil {
		return fmt.Errorf("set variable %q: %w", name, err)
	}
	if c.values[name] == v {
		return nil
	}
	c.values[name] = v
	c.changed[name] = struct{}{}
	return nil
}

// Changed reports whether name changed since the last reset.
func (c *VariableCollection) Changed(name string) bool {
	_, ok := c.changed[name]
	return ok
}

// AnyChanged reports whether any variable changed since the last reset.
func (c *VariableCollection) AnyChanged() bool { return len(c.changed) != 0 }

// ChangedNames returns the sorted names of changed variables.
func (c *VariableCollection) ChangedNames() []string {
	return slices.Sorted(maps.Keys(c.changed))
}

// ResetChanged starts a new change window.
func (c *VariableCollection) ResetChanged() {
	if len(c.changed) != 0 {
		c.changed = make(map[string]struct{})
	}
}

// Snapshot returns a copy of every value.
func (c *VariableCollection) Snapshot() map[string]any {
	return maps.Clone(c.values)
}

// Env returns the live values map, for evaluating conditions. Callers must
// not modify it.
func (c *VariableCollection) Env() map[string]any { return c.values }

// VariablesView is a [VariableCollection] paired with the changes observed
// when the view was built, i.e. the changes since the previous tick.
type VariablesView struct {
	*VariableCollection
	changed map[string]struct{}
}

// NewVariablesView captures the current change set of c. Calling
// [VariableCollection.ResetChanged] afterwards does not affect the view.
func NewVariablesView(c *VariableCollection) *VariablesView {
	v := &VariablesView{VariableCollection: c}
	if len(c.changed) != 0 {
		v.changed = c.changed
	}
	return v
}

// ChangedSinceLastTick reports whether any variable changed between the
// previous tick and this one.
func (v *VariablesView) ChangedSinceLastTick() bool { return len(v.changed) != 0 }

// WasChanged reports whether name changed between the previous tick and this
// one.
func (v *VariablesView) WasChanged(name string) bool {
	_, ok := v.changed[name]
	return ok
}

// Collection returns the underlying collection.
func (v *VariablesView) Collection() *VariableCollection { return v.VariableCollection }
