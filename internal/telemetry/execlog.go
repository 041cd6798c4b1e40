package telemetry

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joeycumines/mbt/internal/behavior"
)

// ExecutionRecord is one line of the execution log.
type ExecutionRecord struct {
	Time     time.Time         `json:"time"`
	Kind     string            `json:"kind"`
	Frame    uint64            `json:"frame,omitempty"`
	Entity   behavior.EntityID `json:"entity,omitempty"`
	Tree     string            `json:"tree,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Status   string            `json:"status,omitempty"`
	Event    string            `json:"event,omitempty"`
	Error    string            `json:"error,omitempty"`
	// Nodes lists the executed nodes in completion order, in debug mode.
	Nodes []string `json:"nodes,omitempty"`
	// Log holds execution log lines added during the tick.
	Log []string `json:"log,omitempty"`
}

// ExecutionLogger appends an [ExecutionRecord] per tick, lifecycle change
// and handled event to w, one JSON document per line. Write errors are
// logged once and further records are dropped.
type ExecutionLogger struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
	failed bool
	// TicksOnlyOnChange skips ticks whose status and log are unchanged.
	TicksOnlyOnChange bool
	last              map[behavior.EntityID]behavior.Status
}

var _ behavior.Observer = (*ExecutionLogger)(nil)

// NewExecutionLogger returns a logger writing to w, typically a
// [logging.RotatingFileWriter].
func NewExecutionLogger(w io.Writer, logger *slog.Logger) *ExecutionLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionLogger{
		enc:    json.NewEncoder(w),
		logger: logger,
		last:   make(map[behavior.EntityID]behavior.Status),
	}
}

func (l *ExecutionLogger) write(rec ExecutionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failed {
		return
	}
	if err := l.enc.Encode(rec); err != nil {
		l.failed = true
		l.logger.Error("behavior tree execution log disabled", "error", err)
	}
}

func (l *ExecutionLogger) ObserveTick(s behavior.TickSnapshot) {
	inst := s.Instance
	var lines []string
	for _, e := range inst.ExecutionLog().Entries() {
		if e.Frame == s.Frame {
			lines = append(lines, e.Message)
		}
	}

	if l.TicksOnlyOnChange && len(lines) == 0 {
		if prev, ok := l.last[s.Entity]; ok && prev == s.Status {
			return
		}
	}
	l.last[s.Entity] = s.Status

	rec := ExecutionRecord{
		Time:     s.Time,
		Kind:     "tick",
		Frame:    s.Frame,
		Entity:   s.Entity,
		Tree:     inst.Template().Name(),
		Instance: inst.ID(),
		Status:   behavior.StatusString(s.Status),
		Log:      lines,
	}
	if s.Trace != nil {
		for _, r := range s.Trace.Completed() {
			rec.Nodes = append(rec.Nodes, r.Info.String()+"="+behavior.StatusString(r.Status))
		}
	}
	l.write(rec)
}

func (l *ExecutionLogger) ObserveLifecycle(e behavior.LifecycleEvent) {
	rec := ExecutionRecord{
		Time:     e.Time,
		Kind:     e.Kind.String(),
		Entity:   e.Entity,
		Tree:     e.Tree,
		Instance: e.InstanceID,
	}
	if e.Kind == behavior.LifecycleRootTerminal {
		rec.Status = behavior.StatusString(e.Status)
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}
	if e.Kind == behavior.LifecycleStopped {
		delete(l.last, e.Entity)
	}
	l.write(rec)
}

func (l *ExecutionLogger) ObserveEvent(e behavior.EventSnapshot) {
	if e.Instance == nil {
		return
	}
	l.write(ExecutionRecord{
		Time:     e.Time,
		Kind:     "event",
		Entity:   e.Entity,
		Tree:     e.Instance.Template().Name(),
		Instance: e.Instance.ID(),
		Event:    e.Event.String(),
	})
}
