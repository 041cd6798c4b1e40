package behavior

import (
	"maps"
	"slices"
	"strconv"
)

// EntityID identifies an agent. It is opaque to the runtime.
type EntityID uint32

func (e EntityID) String() string { return strconv.FormatUint(uint64(e), 10) }

// AgentState is what the runtime needs to know about an agent each frame.
type AgentState struct {
	Enabled bool
	Paused  bool
}

// Active reports whether the agent should be ticked.
func (s AgentState) Active() bool { return s.Enabled && !s.Paused }

// World answers per-frame queries about agents. Agent reports false if the
// agent no longer exists, in which case its tree is not ticked.
type World interface {
	Agent(entity EntityID) (AgentState, bool)
}

// AlwaysActive is a World where every entity exists and is enabled.
type AlwaysActive struct{}

func (AlwaysActive) Agent(EntityID) (AgentState, bool) {
	return AgentState{Enabled: true}, true
}

// StaticWorld is a map-backed World. It is not safe for concurrent use.
type StaticWorld struct {
	agents map[EntityID]AgentState
}

// NewStaticWorld returns a world containing the given entities, enabled.
func NewStaticWorld(entities ...EntityID) *StaticWorld {
	w := &StaticWorld{agents: make(map[EntityID]AgentState, len(entities))}
	for _, e := range entities {
		w.agents[e] = AgentState{Enabled: true}
	}
	return w
}

func (w *StaticWorld) Agent(entity EntityID) (AgentState, bool) {
	s, ok := w.agents[entity]
	return s, ok
}

// Set adds or updates an agent.
func (w *StaticWorld) Set(entity EntityID, state AgentState) {
	if w.agents == nil {
		w.agents = make(map[EntityID]AgentState)
	}
	w.agents[entity] = state
}

// SetPaused pauses or resumes an existing agent.
func (w *StaticWorld) SetPaused(entity EntityID, paused bool) {
	if s, ok := w.agents[entity]; ok {
		s.Paused = paused
		w.agents[entity] = s
	}
}

// SetEnabled enables or disables an existing agent.
func (w *StaticWorld) SetEnabled(entity EntityID, enabled bool) {
	if s, ok := w.agents[entity]; ok {
		s.Enabled = enabled
		w.agents[entity] = s
	}
}

// Remove deletes an agent.
func (w *StaticWorld) Remove(entity EntityID) {
	delete(w.agents, entity)
}

// Entities returns the sorted entity identifiers.
func (w *StaticWorld) Entities() []EntityID {
	return slices.Sorted(maps.Keys(w.agents))
}
