package behavior

// Recorder receives the execution of every node during a tick. Push is
// called before a node's logic runs and Pop with its resulting status.
type Recorder interface {
	Push(info NodeInfo)
	Pop(info NodeInfo, status Status)
}

type nopRecorder struct{}

func (nopRecorder) Push(NodeInfo)        {}
func (nopRecorder) Pop(NodeInfo, Status) {}

// TraceNode is one executed node in a [Trace].
type TraceNode struct {
	Info     NodeInfo     `json:"info"`
	Status   Status       `json:"status"`
	Children []*TraceNode `json:"children,omitempty"`
}

// TraceRecord is a completed node, in completion order.
type TraceRecord struct {
	Info   NodeInfo
	Status Status
}

// Trace is a Recorder building the tree of nodes executed during a tick.
type Trace struct {
	roots     []*TraceNode
	stack     []*TraceNode
	completed []TraceRecord
}

var _ Recorder = (*Trace)(nil)

// NewTrace returns an empty trace.
func NewTrace() *Trace { return new(Trace) }

func (t *Trace) Push(info NodeInfo) {
	n := &TraceNode{Info: info}
	if len(t.stack) == 0 {
		t.roots = append(t.roots, n)
	} else {
		parent := t.stack[len(t.stack)-1]
		parent.Children = append(parent.Children, n)
	}
	t.stack = append(t.stack, n)
}

func (t *Trace) Pop(info NodeInfo, status Status) {
	if len(t.stack) == 0 {
		return
	}
	n := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	n.Status = status
	t.completed = append(t.completed, TraceRecord{Info: info, Status: status})
}

// Roots returns the top-level executed nodes, normally just the tree root.
func (t *Trace) Roots() []*TraceNode { return t.roots }

// Executed returns the number of nodes executed.
func (t *Trace) Executed() int { return len(t.completed) }

// Completed returns every executed node in completion order.
func (t *Trace) Completed() []TraceRecord { return t.completed }

// LastCompleted returns up to n of the most recently completed nodes, most
// recent first.
func (t *Trace) LastCompleted(n int) []TraceRecord {
	if n > len(t.completed) {
		n = len(t.completed)
	}
	out := make([]TraceRecord, n)
	for i := range n {
		out[i] = t.completed[len(t.completed)-1-i]
	}
	return out
}

// Walk visits every node depth first.
func (t *Trace) Walk(fn func(depth int, n *TraceNode)) {
	var walk func(int, []*TraceNode)
	walk = func(depth int, nodes []*TraceNode) {
		for _, n := range nodes {
			fn(depth, n)
			walk(depth+1, n.Children)
		}
	}
	walk(0, t.roots)
}
