package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Definition is a parsed behavior tree document:
//
//	metaExtensions: [Perception]
//	variables:
//	  - {name: Alarmed, type: bool, default: false}
//	signalVariables:
//	  - {signal: OnAlarm, variable: Alarmed, op: set, value: true}
//	timestamps:
//	  - {name: AlarmTime, setOnEvent: OnAlarm, resetOnEvent: OnCalm}
//	root:
//	  type: Loop
//	  children:
//	    - type: Wait
//	      duration: 2s
type Definition struct {
	MetaExtensions  []string              `yaml:"metaExtensions"`
	Variables       []VariableDefinition  `yaml:"variables"`
	SignalVariables []SignalDefinition    `yaml:"signalVariables"`
	Timestamps      []TimestampDefinition `yaml:"timestamps"`
	Root            *NodeDefinition       `yaml:"root"`
}

// VariableDefinition declares a variable.
type VariableDefinition struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
	Line    int    `yaml:"-"`
}

func (v *VariableDefinition) UnmarshalYAML(value *yaml.Node) error {
	type plain VariableDefinition
	if err := value.Decode((*plain)(v)); err != nil {
		return err
	}
	v.Line = value.Line
	return nil
}

// SignalDefinition binds a variable mutation to a signal.
type SignalDefinition struct {
	Signal   string `yaml:"signal"`
	Variable string `yaml:"variable"`
	Op       string `yaml:"op"`
	Value    any    `yaml:"value"`
	Line     int    `yaml:"-"`
}

func (s *SignalDefinition) UnmarshalYAML(value *yaml.Node) error {
	type plain SignalDefinition
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

// TimestampDefinition declares a timestamp.
type TimestampDefinition struct {
	Name         string `yaml:"name"`
	SetOnEvent   string `yaml:"setOnEvent"`
	ResetOnEvent string `yaml:"resetOnEvent"`
	ExclusiveTo  string `yaml:"exclusiveTo"`
	Line         int    `yaml:"-"`
}

func (t *TimestampDefinition) UnmarshalYAML(value *yaml.Node) error {
	type plain TimestampDefinition
	if err := value.Decode((*plain)(t)); err != nil {
		return err
	}
	t.Line = value.Line
	return nil
}

// NodeDefinition is one node of the tree. Every key other than type and
// children is an attribute, interpreted by the node's constructor.
type NodeDefinition struct {
	Type     string
	Children []*NodeDefinition
	Line     int

	attrs map[string]*yaml.Node
	order []string
}

func (n *NodeDefinition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: node must be a mapping", value.Line)
	}
	n.Line = value.Line
	n.attrs = make(map[string]*yaml.Node, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "type":
			if err := val.Decode(&n.Type); err != nil {
				return err
			}
		case "children":
			if err := val.Decode(&n.Children); err != nil {
				return err
			}
		default:
			if _, ok := n.attrs[key.Value]; ok {
				return fmt.Errorf("line %d: duplicate attribute %q", key.Line, key.Value)
			}
			n.attrs[key.Value] = val
			n.order = append(n.order, key.Value)
		}
	}
	if n.Type == "" {
		return fmt.Errorf("line %d: node has no type", value.Line)
	}
	for i, child := range n.Children {
		if child == nil {
			return fmt.Errorf("line %d: child %d of %s is empty", value.Line, i, n.Type)
		}
	}
	return nil
}

// Parse decodes a definition document.
func Parse(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty definition")
		}
		return nil, err
	}
	if def.Root == nil {
		return nil, errors.New("definition has no root node")
	}
	return &def, nil
}

// Attributes returns the attribute names in definition order.
func (n *NodeDefinition) Attributes() []string {
	return append([]string(nil), n.order...)
}

// Has reports whether the attribute is present.
func (n *NodeDefinition) Has(name string) bool {
	_, ok := n.attrs[name]
	return ok
}

// AttributeLine returns the line of an attribute value, or the node line.
func (n *NodeDefinition) AttributeLine(name string) int {
	if v, ok := n.attrs[name]; ok {
		return v.Line
	}
	return n.Line
}

// Decode decodes a structured attribute into out. It reports false if the
// attribute is absent.
func (n *NodeDefinition) Decode(name string, out any) (bool, error) {
	v, ok := n.attrs[name]
	if !ok {
		return false, nil
	}
	if err := v.Decode(out); err != nil {
		return true, n.attrError(name, err)
	}
	return true, nil
}

func (n *NodeDefinition) attrError(name string, err error) error {
	return &AttributeError{Attribute: name, Line: n.AttributeLine(name), Err: err}
}

// AttributeError reports an invalid or missing attribute.
type AttributeError struct {
	Attribute string
	Line      int
	Err       error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %q: %v", e.Attribute, e.Err)
}

func (e *AttributeError) Unwrap() error { return e.Err }

var errMissing = errors.New("required attribute missing")

func (n *NodeDefinition) scalar(name string) (*yaml.Node, bool, error) {
	v, ok := n.attrs[name]
	if !ok {
		return nil, false, nil
	}
	if v.Kind != yaml.ScalarNode {
		return nil, true, n.attrError(name, errors.New("expected a scalar"))
	}
	return v, true, nil
}

// String returns a string attribute, or def if absent.
func (n *NodeDefinition) String(name, def string) (string, error) {
	v, ok, err := n.scalar(name)
	if !ok || err != nil {
		return def, err
	}
	return v.Value, nil
}

// RequiredString returns a non-empty string attribute.
func (n *NodeDefinition) RequiredString(name string) (string, error) {
	v, ok, err := n.scalar(name)
	if err != nil {
		return "", err
	}
	if !ok || v.Value == "" {
		return "", n.attrError(name, errMissing)
	}
	return v.Value, nil
}

// Int returns an integer attribute, or def if absent.
func (n *NodeDefinition) Int(name string, def int) (int, error) {
	v, ok, err := n.scalar(name)
	if !ok || err != nil {
		return def, err
	}
	i, err := strconv.Atoi(v.Value)
	if err != nil {
		return def, n.attrError(name, fmt.Errorf("expected an integer, got %q", v.Value))
	}
	return i, nil
}

// Float returns a numeric attribute, or def if absent.
func (n *NodeDefinition) Float(name string, def float64) (float64, error) {
	v, ok, err := n.scalar(name)
	if !ok || err != nil {
		return def, err
	}
	f, err := strconv.ParseFloat(v.Value, 64)
	if err != nil || math.IsNaN(f) {
		return def, n.attrError(name, fmt.Errorf("expected a number, got %q", v.Value))
	}
	return f, nil
}

// Bool returns a boolean attribute, or def if absent.
func (n *NodeDefinition) Bool(name string, def bool) (bool, error) {
	v, ok, err := n.scalar(name)
	if !ok || err != nil {
		return def, err
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		return def, n.attrError(name, fmt.Errorf("expected a boolean, got %q", v.Value))
	}
	return b, nil
}

// Duration returns a duration attribute, or def if absent. Values are Go
// durations ("1.5s", "200ms") or plain numbers of seconds.
func (n *NodeDefinition) Duration(name string, def time.Duration) (time.Duration, error) {
	v, ok, err := n.scalar(name)
	if !ok || err != nil {
		return def, err
	}
	d, err := ParseDuration(v.Value)
	if err != nil {
		return def, n.attrError(name, err)
	}
	return d, nil
}

// ParseDuration parses a Go duration or a non-negative number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Value returns a scalar attribute decoded to bool, int, float64 or string.
func (n *NodeDefinition) Value(name string) (any, bool, error) {
	v, ok, err := n.scalar(name)
	if !ok || err != nil {
		return nil, ok, err
	}
	var out any
	if err := v.Decode(&out); err != nil {
		return nil, true, n.attrError(name, err)
	}
	return out, true, nil
}
