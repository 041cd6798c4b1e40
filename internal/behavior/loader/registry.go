package loader

import (
	"maps"
	"slices"
	"sync"

	"github.com/joeycumines/mbt/internal/behavior"
)

// Constructor builds a node from its definition. Constructors build their
// children through bc and allocate their own node with [BuildContext.NewNode].
type Constructor func(bc *BuildContext, def *NodeDefinition) (behavior.Node, error)

// Registry maps node type names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a node type, replacing any existing constructor.
func (r *Registry) Register(typeName string, c Constructor) {
	if typeName == "" || c == nil {
		panic("loader: invalid node type registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[typeName] = c
}

// Lookup returns the constructor for a node type.
func (r *Registry) Lookup(typeName string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[typeName]
	return c, ok
}

// Types returns the sorted registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.constructors))
}

// ExtensionRegistry maps meta-extension names to factories of per-instance
// extension state.
type ExtensionRegistry struct {
	mu        sync.RWMutex
	factories map[string]behavior.ExtensionFactory
}

// NewExtensionRegistry returns an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{factories: make(map[string]behavior.ExtensionFactory)}
}

// Register adds a meta-extension. A nil factory yields nil state.
func (r *ExtensionRegistry) Register(name string, factory behavior.ExtensionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Lookup returns the factory for name.
func (r *ExtensionRegistry) Lookup(name string) (behavior.ExtensionFactory, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the sorted registered names.
func (r *ExtensionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}
