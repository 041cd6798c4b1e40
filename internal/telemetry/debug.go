package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InstanceSnapshot is a copy of an instance's state after its latest tick.
type InstanceSnapshot struct {
	Entity      behavior.EntityID         `json:"entity"`
	Tree        string                    `json:"tree"`
	Instance    string                    `json:"instance"`
	Frame       uint64                    `json:"frame"`
	Time        time.Time                 `json:"time"`
	Status      string                    `json:"status"`
	Ticks       uint64                    `json:"ticks"`
	Running     bool                      `json:"running"`
	Variables   map[string]any            `json:"variables"`
	Timestamps  []behavior.TimestampState `json:"timestamps,omitempty"`
	Blackboard  map[string]string         `json:"blackboard,omitempty"`
	ActiveNodes []behavior.NodeID         `json:"activeNodes"`
	Execution   []behavior.LogEntry       `json:"executionLog,omitempty"`
	Events      []behavior.LogEntry       `json:"eventLog,omitempty"`
	// Trace is the executed node tree of the latest tick, in debug mode.
	Trace []*behavior.TraceNode `json:"trace,omitempty"`
}

// EventRecord is a delivered event, newest last.
type EventRecord struct {
	Time      time.Time         `json:"time"`
	Entity    behavior.EntityID `json:"entity"`
	Event     string            `json:"event"`
	Dropped   bool              `json:"dropped,omitempty"`
	Mutations int               `json:"mutations,omitempty"`
}

// DebugChannel keeps the latest snapshot of every entity and serves them
// over HTTP:
//
//	GET /instances             all snapshots, by entity
//	GET /instances/{entity}    one snapshot
//	GET /events                recent events
//	GET /logs?n=100            recent log records, if a buffer is attached
//	GET /metrics               prometheus metrics, if a gatherer is attached
type DebugChannel struct {
	mu        sync.RWMutex
	snapshots map[behavior.EntityID]*InstanceSnapshot
	events    []EventRecord
	maxEvents int

	gatherer prometheus.Gatherer
	logs     *logging.BufferHandler
	logger   *slog.Logger
}

var _ behavior.Observer = (*DebugChannel)(nil)

// DebugOption configures a [DebugChannel].
type DebugOption func(*DebugChannel)

// WithGatherer serves gatherer at /metrics.
func WithGatherer(gatherer prometheus.Gatherer) DebugOption {
	return func(d *DebugChannel) { d.gatherer = gatherer }
}

// WithLogBuffer serves the records retained by h at /logs.
func WithLogBuffer(h *logging.BufferHandler) DebugOption {
	return func(d *DebugChannel) { d.logs = h }
}

// WithDebugLogger sets the logger for the HTTP server.
func WithDebugLogger(logger *slog.Logger) DebugOption {
	return func(d *DebugChannel) { d.logger = logger }
}

// WithMaxEvents bounds the retained event records. The default is 256.
func WithMaxEvents(n int) DebugOption {
	return func(d *DebugChannel) { d.maxEvents = n }
}

// NewDebugChannel returns an empty channel.
func NewDebugChannel(opts ...DebugOption) *DebugChannel {
	d := &DebugChannel{
		snapshots: make(map[behavior.EntityID]*InstanceSnapshot),
		maxEvents: 256,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DebugChannel) ObserveTick(s behavior.TickSnapshot) {
	snap := snapshotInstance(s.Instance)
	snap.Frame = s.Frame
	snap.Time = s.Time
	snap.Status = behavior.StatusString(s.Status)
	snap.Running = true
	if s.Trace != nil {
		// trace nodes are not modified after the tick
		snap.Trace = s.Trace.Roots()
	}
	d.mu.Lock()
	d.snapshots[s.Entity] = snap
	d.mu.Unlock()
}

func (d *DebugChannel) ObserveLifecycle(e behavior.LifecycleEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e.Kind {
	case behavior.LifecycleStarted:
		d.snapshots[e.Entity] = &InstanceSnapshot{
			Entity:   e.Entity,
			Tree:     e.Tree,
			Instance: e.InstanceID,
			Time:     e.Time,
			Status:   behavior.StatusString(behavior.Invalid),
			Running:  true,
		}
	case behavior.LifecycleStopped:
		// keep the final state for inspection
		if snap, ok := d.snapshots[e.Entity]; ok && snap.Instance == e.InstanceID {
			c := *snap
			c.Running = false
			c.ActiveNodes = nil
			d.snapshots[e.Entity] = &c
		}
	}
}

func (d *DebugChannel) ObserveEvent(e behavior.EventSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, EventRecord{
		Time:      e.Time,
		Entity:    e.Entity,
		Event:     e.Event.String(),
		Dropped:   e.Instance == nil,
		Mutations: e.Mutations,
	})
	if over := len(d.events) - d.maxEvents; over > 0 {
		d.events = slices.Delete(d.events, 0, over)
	}
}

func snapshotInstance(inst *behavior.Instance) *InstanceSnapshot {
	snap := &InstanceSnapshot{
		Entity:      inst.Entity(),
		Tree:        inst.Template().Name(),
		Instance:    inst.ID(),
		Ticks:       inst.Ticks(),
		Variables:   inst.Variables().Snapshot(),
		Timestamps:  inst.Timestamps().Snapshot(),
		ActiveNodes: inst.ActiveNodes(),
		Execution:   inst.ExecutionLog().Entries(),
		Events:      inst.EventLog().Entries(),
	}
	if bb := inst.Blackboard().Snapshot(); len(bb) != 0 {
		snap.Blackboard = make(map[string]string, len(bb))
		for k, v := range bb {
			snap.Blackboard[k] = fmt.Sprint(v)
		}
	}
	return snap
}

// Snapshot returns the latest snapshot of entity.
func (d *DebugChannel) Snapshot(entity behavior.EntityID) (InstanceSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap, ok := d.snapshots[entity]
	if !ok {
		return InstanceSnapshot{}, false
	}
	return *snap, true
}

// Snapshots returns every snapshot, sorted by entity.
func (d *DebugChannel) Snapshots() []InstanceSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]InstanceSnapshot, 0, len(d.snapshots))
	for _, entity := range slices.Sorted(maps.Keys(d.snapshots)) {
		out = append(out, *d.snapshots[entity])
	}
	return out
}

// Events returns the retained event records, oldest first.
func (d *DebugChannel) Events() []EventRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.events)
}

// Handler returns the HTTP routes.
func (d *DebugChannel) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/instances", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Snapshots())
	})
	r.Get("/instances/{entity}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.ParseUint(chi.URLParam(r, "entity"), 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid entity"})
			return
		}
		snap, ok := d.Snapshot(behavior.EntityID(n))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": behavior.ErrNoInstance.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Events())
	})
	if d.logs != nil {
		r.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
			n, _ := strconv.Atoi(r.URL.Query().Get("n"))
			if q := r.URL.Query().Get("q"); q != "" {
				writeJSON(w, http.StatusOK, d.logs.Search(q))
				return
			}
			writeJSON(w, http.StatusOK, d.logs.Entries(n))
		})
	}
	if d.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Serve serves [DebugChannel.Handler] on ln until ctx is done.
func (d *DebugChannel) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	d.logger.Info("behavior tree debug channel listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
