package behavior

import (
	"maps"
	"slices"
	"sync"

	"github.com/dop251/goja"
)

// Blackboard is free-form per-instance scratch storage, read and written by
// nodes at runtime.
//
// The zero value is ready to use; the map is initialized on first write.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

func (b *Blackboard) init() {
	if b.data == nil {
		b.data = make(map[string]any)
	}
}

// Get returns the value for key, or nil.
func (b *Blackboard) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data[key]
}

// Lookup returns the value for key, and whether it was present.
func (b *Blackboard) Lookup(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// Set stores value under key.
func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.init()
	b.data[key] = value
}

// Has reports whether key is present.
func (b *Blackboard) Has(key string) bool {
	_, ok := b.Lookup(key)
	return ok
}

// Delete removes key.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// Keys returns the sorted keys.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.data) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(b.data))
}

// Clear removes every entry.
func (b *Blackboard) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.data)
}

// Len returns the number of entries.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Snapshot returns a shallow copy of the entries, or nil if empty. Mutable
// values (slices, maps, pointers) are shared with the blackboard.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.data) == 0 {
		return nil
	}
	return maps.Clone(b.data)
}

// ExposeToJS returns a JavaScript object bound to this blackboard:
//
//	blackboard.get("key")
//	blackboard.set("key", value)
//	blackboard.has("key")
//	blackboard.delete("key")
//	blackboard.keys()
//	blackboard.clear()
//	blackboard.len()
func (b *Blackboard) ExposeToJS(vm *goja.Runtime) goja.Value {
	obj := vm.NewObject()
	// Set cannot fail for plain identifiers on a fresh object.
	_ = obj.Set("get", b.Get)
	_ = obj.Set("set", b.Set)
	_ = obj.Set("has", b.Has)
	_ = obj.Set("delete", b.Delete)
	_ = obj.Set("keys", b.Keys)
	_ = obj.Set("clear", b.Clear)
	_ = obj.Set("len", b.Len)
	return obj
}
