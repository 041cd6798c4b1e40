package condition

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/expr-lang/expr/vm"
)

// DefaultCacheSize is the default maximum number of compiled programs kept.
const DefaultCacheSize = 1000

// ProgramCache is a bounded, thread-safe LRU cache of compiled programs,
// keyed by expression and type environment.
type ProgramCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int
	hits    int64
	misses  int64
}

type cacheEntry struct {
	key     string
	program *vm.Program
}

// NewProgramCache returns a cache holding at most maxSize programs. A
// non-positive size uses [DefaultCacheSize].
func NewProgramCache(maxSize int) *ProgramCache {
	if maxSize < 1 {
		maxSize = DefaultCacheSize
	}
	return &ProgramCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

// Get returns the program for key, marking it most recently used.
func (c *ProgramCache) Get(key string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.lru.MoveToFront(elem)
	return elem.Value.(*cacheEntry).program, true
}

// Put stores program under key, evicting the least recently used entries
// beyond capacity.
func (c *ProgramCache) Put(key string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).program = program
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, program: program})
	c.evict()
}

func (c *ProgramCache) evict() {
	for c.lru.Len() > c.maxSize {
		elem := c.lru.Back()
		delete(c.entries, elem.Value.(*cacheEntry).key)
		c.lru.Remove(elem)
	}
}

// Resize changes the capacity, evicting immediately if needed.
func (c *ProgramCache) Resize(maxSize int) {
	if maxSize < 1 {
		maxSize = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
	c.evict()
}

// Clear drops every entry. Statistics are kept.
func (c *ProgramCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.lru.Init()
}

// Len returns the number of cached programs.
func (c *ProgramCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CacheStats summarises cache usage.
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

// HitRatio returns hits / (hits + misses), or 0.
func (s CacheStats) HitRatio() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Stats returns the current statistics.
func (c *ProgramCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Size: c.lru.Len(), Hits: c.hits, Misses: c.misses}
}

func (c *ProgramCache) String() string {
	s := c.Stats()
	return fmt.Sprintf("ProgramCache{size=%d, hits=%d, misses=%d, hit_ratio=%.2f%%}",
		s.Size, s.Hits, s.Misses, s.HitRatio()*100)
}
