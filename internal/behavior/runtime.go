package behavior

import (
	"slices"
)

// runtimeStore holds the per-instance runtime data of active nodes.
type runtimeStore struct {
	data map[NodeID]any
}

func newRuntimeStore() *runtimeStore {
	return &runtimeStore{data: make(map[NodeID]any)}
}

func (s *runtimeStore) get(id NodeID) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.data[id]
	return v, ok
}

func (s *runtimeStore) put(id NodeID, v any) {
	s.data[id] = v
}

func (s *runtimeStore) remove(id NodeID) {
	delete(s.data, id)
}

func (s *runtimeStore) ids() []NodeID {
	ids := make([]NodeID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *runtimeStore) clear() {
	clear(s.data)
}
