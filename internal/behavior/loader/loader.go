// Package loader builds behavior tree templates from YAML definitions.
//
// A [Loader] locates definitions by name in a [Storage], parses them
// ([Parse]), and builds every node through the constructor registered for
// its type in a [Registry]. Nodes are allocated from a [behavior.NodeArena]
// owned by the loader, which is trimmed by [Loader.Cleanup].
package loader

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/condition"
)

// Loader implements [behavior.Loader].
type Loader struct {
	mu         sync.Mutex
	storage    *Storage
	registry   *Registry
	extensions *ExtensionRegistry
	conditions *condition.Compiler
	arena      *behavior.NodeArena
	logger     *slog.Logger
	now        func() time.Time
}

var _ behavior.Loader = (*Loader)(nil)

// Option configures a [Loader].
type Option func(*Loader)

// WithExtensions sets the meta-extension registry.
func WithExtensions(r *ExtensionRegistry) Option {
	return func(l *Loader) { l.extensions = r }
}

// WithConditionCompiler sets the condition compiler, shared across loaders.
func WithConditionCompiler(c *condition.Compiler) Option {
	return func(l *Loader) {
		if c != nil {
			l.conditions = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithArenaChunkSize sets the node arena chunk size.
func WithArenaChunkSize(n int) Option {
	return func(l *Loader) { l.arena = behavior.NewNodeArena(n) }
}

// WithClock sets the clock used for template build times.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a loader reading from storage and building nodes with
// registry.
func New(storage *Storage, registry *Registry, opts ...Option) *Loader {
	l := &Loader{
		storage:    storage,
		registry:   registry,
		extensions: NewExtensionRegistry(),
		conditions: condition.NewCompiler(condition.DefaultCacheSize),
		arena:      behavior.NewNodeArena(behavior.DefaultArenaChunkSize),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Storage returns the loader's storage.
func (l *Loader) Storage() *Storage { return l.storage }

// Registry returns the node registry.
func (l *Loader) Registry() *Registry { return l.registry }

// LoadTemplate reads and builds the named tree.
func (l *Loader) LoadTemplate(name string) (*behavior.Template, error) {
	if l.storage == nil {
		return nil, &behavior.LoadError{Tree: name, Err: behavior.ErrTreeNotFound}
	}
	data, source, err := l.storage.Read(name)
	if err != nil {
		return nil, &behavior.LoadError{Tree: name, Err: err}
	}
	return l.build(name, source, data)
}

// BuildTemplate builds a tree from an in-memory definition.
func (l *Loader) BuildTemplate(name string, definition []byte) (*behavior.Template, error) {
	return l.build(name, "", definition)
}

// Cleanup trims the node arena.
func (l *Loader) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := l.arena.Stats()
	l.arena.Cleanup()
	l.logger.Debug("behavior tree node arena cleaned up", "allocated", stats.Allocated, "chunks", stats.Chunks)
}

// ArenaStats reports node arena usage.
func (l *Loader) ArenaStats() behavior.ArenaStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.arena.Stats()
}

func (l *Loader) build(name, source string, data []byte) (*behavior.Template, error) {
	def, err := Parse(data)
	if err != nil {
		return nil, &behavior.LoadError{Tree: name, Err: fmt.Errorf("%w: %w", behavior.ErrInvalidDefinition, err)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bc := &BuildContext{tree: name, loader: l}

	extensions, err := l.bindExtensions(name, def.MetaExtensions)
	if err != nil {
		return nil, err
	}
	bc.extensions = def.MetaExtensions

	if bc.variables, err = buildVariables(name, def.Variables); err != nil {
		return nil, err
	}
	if bc.timestamps, err = buildTimestamps(name, def.Timestamps); err != nil {
		return nil, err
	}
	signals, err := buildSignals(name, bc.variables, def.SignalVariables)
	if err != nil {
		return nil, err
	}
	bc.signals = signals.Signals()

	root, err := bc.Build(def.Root)
	if err != nil {
		return nil, err
	}

	tmpl, err := behavior.NewTemplate(behavior.TemplateSpec{
		Name:       name,
		Source:     source,
		Root:       root,
		Variables:  bc.variables,
		Timestamps: bc.timestamps,
		Signals:    signals,
		Extensions: extensions,
		NodeCount:  bc.NodeCount(),
		BuiltAt:    l.now(),
	})
	if err != nil {
		return nil, err
	}
	l.logger.Debug("behavior tree built", "tree", name, "source", source, "nodes", tmpl.NodeCount())
	return tmpl, nil
}

func (l *Loader) bindExtensions(tree string, names []string) ([]behavior.ExtensionBinding, error) {
	bindings := make([]behavior.ExtensionBinding, 0, len(names))
	for _, name := range names {
		factory, ok := l.extensions.Lookup(name)
		if !ok {
			return nil, &behavior.LoadError{Tree: tree, Err: fmt.Errorf("%w: unknown meta-extension %q", behavior.ErrInvalidDefinition, name)}
		}
		bindings = append(bindings, behavior.ExtensionBinding{Name: name, Factory: factory})
	}
	return bindings, nil
}

func buildVariables(tree string, defs []VariableDefinition) (*behavior.VariableDeclarations, error) {
	decls := behavior.NewVariableDeclarations()
	for _, v := range defs {
		kind, err := behavior.ParseVariableKind(v.Type)
		if err == nil {
			err = decls.Declare(v.Name, kind, v.Default)
		}
		if err != nil {
			return nil, &behavior.LoadError{Tree: tree, Line: v.Line, Err: fmt.Errorf("%w: %w", behavior.ErrInvalidDefinition, err)}
		}
	}
	return decls, nil
}

func buildTimestamps(tree string, defs []TimestampDefinition) (*behavior.TimestampCollection, error) {
	decls := make([]behavior.TimestampDeclaration, len(defs))
	for i, d := range defs {
		decls[i] = behavior.TimestampDeclaration{
			Name:         d.Name,
			SetOnEvent:   d.SetOnEvent,
			ResetOnEvent: d.ResetOnEvent,
			ExclusiveTo:  d.ExclusiveTo,
		}
	}
	c, err := behavior.NewTimestampCollection(decls...)
	if err != nil {
		line := 0
		if len(defs) != 0 {
			line = defs[0].Line
		}
		return nil, &behavior.LoadError{Tree: tree, Line: line, Err: fmt.Errorf("%w: %w", behavior.ErrInvalidDefinition, err)}
	}
	return c, nil
}

func buildSignals(tree string, decls *behavior.VariableDeclarations, defs []SignalDefinition) (*behavior.SignalHandler, error) {
	rules := make([]behavior.SignalRule, 0, len(defs))
	for _, d := range defs {
		op, err := behavior.ParseMutationOp(d.Op)
		if err == nil {
			// validate each rule separately, to report its line
			_, err = behavior.NewSignalHandler(decls, behavior.SignalRule{
				Signal:   d.Signal,
				Mutation: behavior.VariableMutation{Variable: d.Variable, Op: op, Value: d.Value},
			})
		}
		if err != nil {
			return nil, &behavior.LoadError{Tree: tree, Line: d.Line, Err: fmt.Errorf("%w: %w", behavior.ErrInvalidDefinition, err)}
		}
		rules = append(rules, behavior.SignalRule{
			Signal:   d.Signal,
			Mutation: behavior.VariableMutation{Variable: d.Variable, Op: op, Value: d.Value},
		})
	}
	return behavior.NewSignalHandler(decls, rules...)
}
