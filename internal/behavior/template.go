package behavior

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TemplateSpec is the input to [NewTemplate].
type TemplateSpec struct {
	Name string
	// Source identifies where the definition came from, e.g. a path.
	Source     string
	Root       Node
	Variables  *VariableDeclarations
	Timestamps *TimestampCollection
	Signals    *SignalHandler
	Extensions []ExtensionBinding
	NodeCount  int
	BuiltAt    time.Time
}

// Template is an immutable compiled tree, shared by every [Instance] created
// from it.
type Template struct {
	name       string
	source     string
	root       Node
	variables  *VariableDeclarations
	timestamps *TimestampCollection
	signals    *SignalHandler
	extensions []ExtensionBinding
	nodeCount  int
	builtAt    time.Time
	refs       atomic.Int32
}

// NewTemplate validates spec and returns a template. The variable
// declarations are frozen.
func NewTemplate(spec TemplateSpec) (*Template, error) {
	if spec.Root == nil {
		return nil, &LoadError{Tree: spec.Name, Err: ErrNilRoot}
	}
	if spec.Variables == nil {
		spec.Variables = NewVariableDeclarations()
	}
	if spec.Timestamps == nil {
		spec.Timestamps, _ = NewTimestampCollection()
	}
	if spec.Signals == nil {
		var err error
		if spec.Signals, err = NewSignalHandler(spec.Variables); err != nil {
			return nil, &LoadError{Tree: spec.Name, Err: err}
		}
	}
	seen := make(map[string]struct{}, len(spec.Extensions))
	for _, ext := range spec.Extensions {
		if _, ok := seen[ext.Name]; ok {
			return nil, &LoadError{Tree: spec.Name, Err: fmt.Errorf("duplicate meta-extension %q", ext.Name)}
		}
		seen[ext.Name] = struct{}{}
	}
	if spec.BuiltAt.IsZero() {
		spec.BuiltAt = time.Now()
	}
	spec.Variables.freeze()
	return &Template{
		name:       spec.Name,
		source:     spec.Source,
		root:       spec.Root,
		variables:  spec.Variables,
		timestamps: spec.Timestamps,
		signals:    spec.Signals,
		extensions: append([]ExtensionBinding(nil), spec.Extensions...),
		nodeCount:  spec.NodeCount,
		builtAt:    spec.BuiltAt,
	}, nil
}

func (t *Template) Name() string                     { return t.name }
func (t *Template) Source() string                   { return t.source }
func (t *Template) Root() Node                       { return t.root }
func (t *Template) Variables() *VariableDeclarations { return t.variables }
func (t *Template) Signals() *SignalHandler          { return t.signals }
func (t *Template) NodeCount() int                   { return t.nodeCount }
func (t *Template) BuiltAt() time.Time               { return t.builtAt }

// Timestamps returns the unset defaults; instances work on clones.
func (t *Template) Timestamps() *TimestampCollection { return t.timestamps }

// Extensions returns the names of the meta-extensions the template uses.
func (t *Template) Extensions() []string {
	names := make([]string, len(t.extensions))
	for i, ext := range t.extensions {
		names[i] = ext.Name
	}
	return names
}

// Refs returns the number of live instances created from the template.
func (t *Template) Refs() int { return int(t.refs.Load()) }

func (t *Template) acquire() { t.refs.Add(1) }

func (t *Template) release() { t.refs.Add(-1) }
