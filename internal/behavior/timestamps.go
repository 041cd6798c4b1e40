package behavior

import (
	"fmt"
	"slices"
	"time"
)

// TimestampDeclaration declares a named timestamp, set and reset by events.
type TimestampDeclaration struct {
	Name string
	// SetOnEvent names the event that records the current time.
	SetOnEvent string
	// ResetOnEvent names the event that invalidates the timestamp.
	ResetOnEvent string
	// ExclusiveTo names another timestamp; setting either resets the other.
	ExclusiveTo string
}

type timestamp struct {
	name      string
	setOn     EventID
	hasSetOn  bool
	resetOn   EventID
	hasReset  bool
	exclusive []int
	time      time.Time
	set       bool
	everSet   bool
}

// TimestampCollection is a set of named timestamps. Templates hold the
// unset defaults and every instance works on a [TimestampCollection.Clone].
type TimestampCollection struct {
	entries []timestamp
	index   map[string]int
}

// NewTimestampCollection validates decls and returns an unset collection.
func NewTimestampCollection(decls ...TimestampDeclaration) (*TimestampCollection, error) {
	c := &TimestampCollection{
		entries: make([]timestamp, len(decls)),
		index:   make(map[string]int, len(decls)),
	}
	for i, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("timestamp %d: empty name", i)
		}
		if _, ok := c.index[d.Name]; ok {
			return nil, fmt.Errorf("timestamp %q: duplicate declaration", d.Name)
		}
		c.index[d.Name] = i
		e := &c.entries[i]
		e.name = d.Name
		if d.SetOnEvent != "" {
			e.setOn, e.hasSetOn = HashEventName(d.SetOnEvent), true
		}
		if d.ResetOnEvent != "" {
			e.resetOn, e.hasReset = HashEventName(d.ResetOnEvent), true
		}
	}
	for i, d := range decls {
		if d.ExclusiveTo == "" {
			continue
		}
		j, ok := c.index[d.ExclusiveTo]
		if !ok {
			return nil, fmt.Errorf("timestamp %q: exclusive to unknown timestamp %q", d.Name, d.ExclusiveTo)
		}
		if i == j {
			return nil, fmt.Errorf("timestamp %q: exclusive to itself", d.Name)
		}
		if !slices.Contains(c.entries[i].exclusive, j) {
			c.entries[i].exclusive = append(c.entries[i].exclusive, j)
		}
		if !slices.Contains(c.entries[j].exclusive, i) {
			c.entries[j].exclusive = append(c.entries[j].exclusive, i)
		}
	}
	return c, nil
}

// Clone returns an independent copy.
func (c *TimestampCollection) Clone() *TimestampCollection {
	if c == nil {
		return &TimestampCollection{index: map[string]int{}}
	}
	// index and exclusive are never mutated after construction
	return &TimestampCollection{
		entries: slices.Clone(c.entries),
		index:   c.index,
	}
}

// HandleEvent sets every timestamp bound to id, resetting the timestamps
// exclusive to them, and resets every timestamp whose reset event is id.
// It reports whether any timestamp was touched.
func (c *TimestampCollection) HandleEvent(id EventID, now time.Time) bool {
	var touched bool
	for i := range c.entries {
		e := &c.entries[i]
		if e.hasReset && e.resetOn == id {
			e.set = false
			touched = true
		}
	}
	for i := range c.entries {
		if e := &c.entries[i]; e.hasSetOn && e.setOn == id {
			c.setIndex(i, now)
			touched = true
		}
	}
	return touched
}

func (c *TimestampCollection) setIndex(i int, now time.Time) {
	e := &c.entries[i]
	e.time = now
	e.set = true
	e.everSet = true
	for _, j := range e.exclusive {
		c.entries[j].set = false
	}
}

// Set records now against name.
func (c *TimestampCollection) Set(name string, now time.Time) bool {
	i, ok := c.index[name]
	if ok {
		c.setIndex(i, now)
	}
	return ok
}

// Reset invalidates name, keeping its history.
func (c *TimestampCollection) Reset(name string) bool {
	i, ok := c.index[name]
	if ok {
		c.entries[i].set = false
	}
	return ok
}

// Has reports whether name is declared.
func (c *TimestampCollection) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// IsSet reports whether name is currently set.
func (c *TimestampCollection) IsSet(name string) bool {
	i, ok := c.index[name]
	return ok && c.entries[i].set
}

// HasBeenSetAtLeastOnce reports whether name was ever set, even if it was
// reset since.
func (c *TimestampCollection) HasBeenSetAtLeastOnce(name string) bool {
	i, ok := c.index[name]
	return ok && c.entries[i].everSet
}

// Time returns the time name was set, if currently set.
func (c *TimestampCollection) Time(name string) (time.Time, bool) {
	i, ok := c.index[name]
	if !ok || !c.entries[i].set {
		return time.Time{}, false
	}
	return c.entries[i].time, true
}

// ElapsedSince returns the time elapsed since name was set, if currently set.
func (c *TimestampCollection) ElapsedSince(name string, now time.Time) (time.Duration, bool) {
	t, ok := c.Time(name)
	if !ok {
		return 0, false
	}
	return now.Sub(t), true
}

// Names returns the declared names in declaration order.
func (c *TimestampCollection) Names() []string {
	names := make([]string, len(c.entries))
	for i := range c.entries {
		names[i] = c.entries[i].name
	}
	return names
}

// TimestampState is a point-in-time view of one timestamp.
type TimestampState struct {
	Name    string    `json:"name"`
	Set     bool      `json:"set"`
	EverSet bool      `json:"everSet"`
	Time    time.Time `json:"time,omitzero"`
}

// Snapshot returns the state of every timestamp, in declaration order.
func (c *TimestampCollection) Snapshot() []TimestampState {
	out := make([]TimestampState, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		out[i] = TimestampState{Name: e.name, Set: e.set, EverSet: e.everSet}
		if e.set {
			out[i].Time = e.time
		}
	}
	return out
}
