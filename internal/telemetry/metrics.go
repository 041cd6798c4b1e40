package telemetry

import (
	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mbt"

// Metrics records runtime counters in prometheus collectors.
type Metrics struct {
	ticks         *prometheus.CounterVec
	rootTerminal  *prometheus.CounterVec
	instances     prometheus.Gauge
	started       *prometheus.CounterVec
	loadFailures  *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	events        *prometheus.CounterVec
	mutations     prometheus.Counter
	nodesExecuted prometheus.Histogram
}

var _ behavior.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Instance ticks by tree and root status.",
		}, []string{"tree", "status"}),
		rootTerminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "root_terminal_total",
			Help:      "Roots that finished instead of running forever.",
		}, []string{"tree", "status"}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Live behavior tree instances.",
		}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_started_total",
			Help:      "Instances started by tree.",
		}, []string{"tree"}),
		loadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_failures_total",
			Help:      "Trees that failed to load.",
		}, []string{"tree"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Successful tree reloads.",
		}, []string{"tree"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events by result: handled or dropped.",
		}, []string{"result"}),
		mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_mutations_total",
			Help:      "Variable mutations applied by signals.",
		}),
		nodesExecuted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_nodes_executed",
			Help:      "Nodes executed per tick, recorded in debug mode.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{
		m.ticks, m.rootTerminal, m.instances, m.started, m.loadFailures,
		m.reloads, m.events, m.mutations, m.nodesExecuted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveTick(s behavior.TickSnapshot) {
	m.ticks.WithLabelValues(s.Instance.Template().Name(), behavior.StatusString(s.Status)).Inc()
	if s.Trace != nil {
		m.nodesExecuted.Observe(float64(s.Trace.Executed()))
	}
}

func (m *Metrics) ObserveLifecycle(e behavior.LifecycleEvent) {
	switch e.Kind {
	case behavior.LifecycleStarted:
		m.instances.Inc()
		m.started.WithLabelValues(e.Tree).Inc()
	case behavior.LifecycleStopped:
		m.instances.Dec()
	case behavior.LifecycleLoadFailed:
		m.loadFailures.WithLabelValues(e.Tree).Inc()
	case behavior.LifecycleRootTerminal:
		m.rootTerminal.WithLabelValues(e.Tree, behavior.StatusString(e.Status)).Inc()
	case behavior.LifecycleReloaded:
		m.reloads.WithLabelValues(e.Tree).Inc()
	}
}

func (m *Metrics) ObserveEvent(e behavior.EventSnapshot) {
	if e.Instance == nil {
		m.events.WithLabelValues("dropped").Inc()
		return
	}
	m.events.WithLabelValues("handled").Inc()
	m.mutations.Add(float64(e.Mutations))
}
