package behavior

import (
	"fmt"
)

// NodeID identifies a node within its template. Identifiers are unique per
// template and key the per-instance runtime data.
type NodeID uint32

// NodeInfo describes a node for diagnostics.
type NodeInfo struct {
	ID   NodeID
	Type string
	// Line is the line of the node in its definition, or 0.
	Line int
}

func (x NodeInfo) String() string {
	if x.Line > 0 {
		return fmt.Sprintf("%s#%d (line %d)", x.Type, x.ID, x.Line)
	}
	return fmt.Sprintf("%s#%d", x.Type, x.ID)
}

// Node is an element of a behavior tree.
//
// Implementations are shared by every instance of a template and must keep
// per-instance state in the instance (see [NewNode] and [RuntimeDataOf]).
type Node interface {
	Info() NodeInfo
	// Tick advances the node by one frame.
	Tick(tc TickContext) Status
	// Terminate aborts any in-progress work. It is called on the root before
	// an instance is destroyed, and by parents abandoning a running child.
	Terminate(tc TickContext)
	// SendEvent lets an active node react to an event outside the tick.
	SendEvent(ec EventContext, ev Event)
}

type (
	// Behavior is the per-frame logic of a node built with [NewNode].
	Behavior interface {
		Update(tc TickContext) Status
	}

	// Initializer is implemented by behaviors needing setup on the first tick
	// after (re)activation.
	Initializer interface {
		OnInitialize(tc TickContext)
	}

	// Terminator is implemented by behaviors needing cleanup once they finish
	// or are terminated.
	Terminator interface {
		OnTerminate(tc TickContext)
	}

	// EventHandler is implemented by behaviors reacting to events while
	// active.
	EventHandler interface {
		HandleEvent(ec EventContext, ev Event)
	}

	// RuntimeDataFactory is implemented by behaviors that keep per-instance
	// state. The value returned is stored in the instance for as long as the
	// node is active.
	RuntimeDataFactory interface {
		NewRuntimeData() any
	}
)

// active is the runtime data stored for behaviors without a
// RuntimeDataFactory.
type active struct{}

type node struct {
	info        NodeInfo
	behavior    Behavior
	initializer Initializer
	terminator  Terminator
	handler     EventHandler
	factory     RuntimeDataFactory
}

var _ Node = (*node)(nil)

// NewNode wraps b with the standard node lifecycle.
func NewNode(info NodeInfo, b Behavior) Node {
	n := new(node)
	n.bind(info, b)
	return n
}

func (n *node) bind(info NodeInfo, b Behavior) {
	if b == nil {
		panic(fmt.Errorf("behavior: nil behavior for node %s", info))
	}
	n.info = info
	n.behavior = b
	n.initializer, _ = b.(Initializer)
	n.terminator, _ = b.(Terminator)
	n.handler, _ = b.(EventHandler)
	n.factory, _ = b.(RuntimeDataFactory)
}

func (n *node) Info() NodeInfo { return n.info }

func (n *node) Tick(tc TickContext) Status {
	tc.recorder().Push(n.info)

	data, ok := tc.runtime.get(n.info.ID)
	if !ok {
		if n.factory != nil {
			data = n.factory.NewRuntimeData()
		} else {
			data = active{}
		}
		tc.runtime.put(n.info.ID, data)
		tc.data = data
		if n.initializer != nil {
			n.initializer.OnInitialize(tc)
		}
	} else {
		tc.data = data
	}

	status := n.behavior.Update(tc)

	if status != Running {
		if n.terminator != nil {
			n.terminator.OnTerminate(tc)
		}
		tc.runtime.remove(n.info.ID)
	}

	tc.recorder().Pop(n.info, status)

	return status
}

func (n *node) Terminate(tc TickContext) {
	data, ok := tc.runtime.get(n.info.ID)
	if !ok {
		return
	}
	tc.data = data
	if n.terminator != nil {
		n.terminator.OnTerminate(tc)
	}
	tc.runtime.remove(n.info.ID)
}

func (n *node) SendEvent(ec EventContext, ev Event) {
	data, ok := ec.runtime.get(n.info.ID)
	if !ok || n.handler == nil {
		return
	}
	ec.data = data
	n.handler.HandleEvent(ec, ev)
}

// NodeArena allocates lifecycle-wrapped nodes in chunks. It is owned by the
// template-building subsystem; [NodeArena.Cleanup] drops its references to
// previously allocated chunks. It is not safe for concurrent use.
type NodeArena struct {
	free      []node
	chunkSize int
	chunks    int
	allocated int
}

// ArenaStats summarises arena usage.
type ArenaStats struct {
	Allocated int
	Chunks    int
	ChunkSize int
}

// DefaultArenaChunkSize is used by [NewNodeArena] for non-positive sizes.
const DefaultArenaChunkSize = 128

// NewNodeArena returns an arena allocating chunkSize nodes at a time.
func NewNodeArena(chunkSize int) *NodeArena {
	if chunkSize <= 0 {
		chunkSize = DefaultArenaChunkSize
	}
	return &NodeArena{chunkSize: chunkSize}
}

// New allocates a node wrapping b, like [NewNode].
func (a *NodeArena) New(info NodeInfo, b Behavior) Node {
	if len(a.free) == 0 {
		a.free = make([]node, a.chunkSize)
		a.chunks++
	}
	n := &a.free[0]
	a.free = a.free[1:]
	n.bind(info, b)
	a.allocated++
	return n
}

// Stats reports the arena usage since the last cleanup.
func (a *NodeArena) Stats() ArenaStats {
	return ArenaStats{Allocated: a.allocated, Chunks: a.chunks, ChunkSize: a.chunkSize}
}

// Cleanup releases the current chunk. Nodes already handed out remain valid
// for as long as their templates reference them.
func (a *NodeArena) Cleanup() {
	a.free = nil
	a.chunks = 0
	a.allocated = 0
}
