package behavior

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Loader builds templates from tree definitions. Implementations own the
// node registry and allocation arena.
type Loader interface {
	// LoadTemplate locates the named definition in storage and builds it.
	LoadTemplate(name string) (*Template, error)
	// BuildTemplate builds a template from an in-memory definition.
	BuildTemplate(name string, definition []byte) (*Template, error)
	// Cleanup reclaims node allocation resources. It is called once every
	// template has been released.
	Cleanup()
}

// Cache maps tree names to templates, loading each at most once.
type Cache struct {
	loader    Loader
	logger    *slog.Logger
	cfg       instanceConfig
	templates map[string]*Template
}

func newCache(loader Loader, cfg instanceConfig) *Cache {
	return &Cache{
		loader:    loader,
		logger:    cfg.logger,
		cfg:       cfg,
		templates: make(map[string]*Template),
	}
}

// GetOrLoad returns the cached template for name, loading it on a miss. A
// failed load caches nothing.
func (c *Cache) GetOrLoad(name string) (*Template, error) {
	if t, ok := c.templates[name]; ok {
		return t, nil
	}
	t, err := c.loader.LoadTemplate(name)
	if err != nil {
		return nil, fmt.Errorf("load behavior tree %q: %w", name, err)
	}
	if t == nil {
		return nil, fmt.Errorf("load behavior tree %q: %w", name, ErrNilRoot)
	}
	c.templates[name] = t
	c.logger.Debug("behavior tree template cached", "tree", name, "nodes", t.NodeCount())
	return t, nil
}

// CreateFromDefinition builds a one-off template from definition, bypassing
// the cache, and wraps it in a new unbound instance.
func (c *Cache) CreateFromDefinition(name string, definition []byte) (*Instance, error) {
	t, err := c.loader.BuildTemplate(name, definition)
	if err != nil {
		return nil, fmt.Errorf("build behavior tree %q: %w", name, err)
	}
	if t == nil {
		return nil, fmt.Errorf("build behavior tree %q: %w", name, ErrNilRoot)
	}
	return c.newInstance(t), nil
}

func (c *Cache) newInstance(t *Template) *Instance {
	return newInstance(t, c.cfg)
}

// Lookup returns the cached template for name without loading.
func (c *Cache) Lookup(name string) (*Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Invalidate drops name from the cache, reporting whether it was present.
// Instances keep their template.
func (c *Cache) Invalidate(name string) bool {
	_, ok := c.templates[name]
	delete(c.templates, name)
	return ok
}

func (c *Cache) put(name string, t *Template) {
	c.templates[name] = t
}

// Clear drops every entry. Templates still referenced by instances are
// reported, since clearing is only expected once every instance stopped.
func (c *Cache) Clear() {
	for name, t := range c.templates {
		if refs := t.Refs(); refs > 0 {
			c.logger.Warn("clearing behavior tree template still in use", "tree", name, "refs", refs)
		}
	}
	clear(c.templates)
}

// Names returns the sorted cached tree names.
func (c *Cache) Names() []string {
	return slices.Sorted(maps.Keys(c.templates))
}

// Len returns the number of cached templates.
func (c *Cache) Len() int { return len(c.templates) }
