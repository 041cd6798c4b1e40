package command

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/config"
	"github.com/joeycumines/mbt/internal/logging"
	"github.com/joeycumines/mbt/internal/telemetry"
	"github.com/joeycumines/mbt/internal/watch"
)

// defaultFrameRate applies when the configured frame rate is not positive.
const defaultFrameRate = 30

// RunCommand simulates agents running a behavior tree.
type RunCommand struct {
	*BaseCommand
	config *config.Config

	log          logFlags
	paths        stringsFlag
	events       stringsFlag
	tree         string
	entities     int
	frames       int
	fast         bool
	debug        bool
	listen       string
	metrics      bool
	executionLog string
	watch        bool
	rootTerminal string
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Simulate agents running a behavior tree",
			"run -tree <name> [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.tree, "tree", "", "Behavior tree to run (required)")
	fs.IntVar(&c.entities, "entities", 1, "Number of simulated agents, numbered from 1")
	fs.IntVar(&c.frames, "frames", 0, "Number of frames to run, 0 runs until interrupted")
	fs.BoolVar(&c.fast, "fast", false, "Run frames back to back on a simulated clock")
	fs.Var(&c.events, "event", "Send an event, as frame:entity:name, repeatable")
	fs.Var(&c.paths, "path", "Tree search root, repeatable (default from config)")
	fs.BoolVar(&c.debug, "debug", false, "Record tick traces and event logs (default from config)")
	fs.StringVar(&c.listen, "listen", "", "Serve the debug channel on this address (default from config)")
	fs.BoolVar(&c.metrics, "metrics", false, "Collect prometheus metrics (default from config)")
	fs.StringVar(&c.executionLog, "execution-log", "", "Write tick records to this file (default from config)")
	fs.BoolVar(&c.watch, "watch", false, "Reload trees when their files change (default from config)")
	fs.StringVar(&c.rootTerminal, "root-terminal", "", "Action when a root finishes: stop, restart (default from config)")
	c.log.setup(fs)
}

// Execute runs the simulation, then prints the state of every agent.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	if c.tree == "" {
		return errors.New("missing required flag: -tree")
	}
	if c.entities <= 0 {
		return fmt.Errorf("invalid -entities: %d", c.entities)
	}
	if c.frames < 0 {
		return fmt.Errorf("invalid -frames: %d", c.frames)
	}
	cfg := c.config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	events, err := parseEvents(c.events, c.entities)
	if err != nil {
		return err
	}
	policy, err := behavior.ParseRootTerminalPolicy(cmp.Or(c.rootTerminal, cfg.Runtime.RootTerminal))
	if err != nil {
		return err
	}
	schema := config.DefaultSchema()
	listen := cmp.Or(c.listen, cfg.Debug.Listen)
	executionLog := cmp.Or(c.executionLog, cfg.Debug.ExecutionLog)

	var buffer *logging.BufferHandler
	if listen != "" {
		buffer = logging.NewBufferHandler(schema.ResolveInt(cfg, "log.buffer-size"))
	}
	logger, closer, err := c.log.newLogger(cfg, stderr, buffer)
	if err != nil {
		return err
	}
	defer closer.Close()

	interval := cfg.Runtime.FrameInterval()
	if interval <= 0 {
		interval = time.Second / defaultFrameRate
	}
	clock := &frameClock{simulated: c.fast, now: time.Now()}
	paths := searchPaths(cfg, c.paths)

	entities := make([]behavior.EntityID, c.entities)
	for i := range entities {
		entities[i] = behavior.EntityID(i + 1)
	}
	world := behavior.NewStaticWorld(entities...)

	opts := []behavior.Option{
		behavior.WithLogger(logger),
		behavior.WithWorld(world),
		behavior.WithClock(clock.Now),
		behavior.WithDebug(c.debug || cfg.Debug.Enabled),
		behavior.WithRootTerminalPolicy(policy),
		behavior.WithEventLogSize(cfg.Runtime.EventLogSize),
		behavior.WithExecutionLogSize(cfg.Runtime.ExecutionLogSize),
	}

	var gatherer prometheus.Gatherer
	if c.metrics || cfg.Debug.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err := telemetry.NewMetrics(reg)
		if err != nil {
			return err
		}
		opts = append(opts, behavior.WithObserver(metrics))
		gatherer = reg
	}

	if executionLog != "" {
		w, err := logging.NewRotatingFileWriter(executionLog,
			schema.ResolveInt(cfg, "log.max-size-mb"), schema.ResolveInt(cfg, "log.max-files"))
		if err != nil {
			return fmt.Errorf("failed to open execution log %s: %w", executionLog, err)
		}
		defer w.Close()
		opts = append(opts, behavior.WithObserver(telemetry.NewExecutionLogger(w, logger)))
	}

	var (
		channel *telemetry.DebugChannel
		ln      net.Listener
	)
	if listen != "" {
		debugOpts := []telemetry.DebugOption{
			telemetry.WithLogBuffer(buffer),
			telemetry.WithDebugLogger(logger),
		}
		if gatherer != nil {
			debugOpts = append(debugOpts, telemetry.WithGatherer(gatherer))
		}
		channel = telemetry.NewDebugChannel(debugOpts...)
		opts = append(opts, behavior.WithObserver(channel))
		if ln, err = net.Listen("tcp", listen); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", listen, err)
		}
	}

	var watcher *watch.Watcher
	if c.watch || cfg.Runtime.Watch {
		if watcher, err = watch.New(paths, watch.WithLogger(logger)); err != nil {
			if ln != nil {
				_ = ln.Close()
			}
			return err
		}
	}

	sim := &simulation{
		manager:  behavior.NewManager(newTreeLoader(cfg, paths, logger, loader.WithClock(clock.Now)), opts...),
		clock:    clock,
		logger:   logger,
		tree:     c.tree,
		entities: entities,
		frames:   uint64(c.frames),
		interval: interval,
		paced:    !c.fast,
		events:   events,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if channel != nil {
		g.Go(func() error { return channel.Serve(gctx, ln) })
	}
	if watcher != nil {
		sim.changes = watcher.Changes()
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return sim.run(gctx)
	})
	err = g.Wait()
	sim.report(stdout)
	return err
}

// scheduledEvent is an event sent before the given frame's update.
type scheduledEvent struct {
	frame  uint64
	entity behavior.EntityID
	name   string
}

// parseEvents parses frame:entity:name values, sorted by frame.
func parseEvents(values []string, entities int) ([]scheduledEvent, error) {
	events := make([]scheduledEvent, 0, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, ":", 3)
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("invalid -event %q: expected frame:entity:name", v)
		}
		frame, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil || frame == 0 {
			return nil, fmt.Errorf("invalid -event %q: frame must be a positive integer", v)
		}
		entity, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil || entity == 0 || entity > uint64(entities) {
			return nil, fmt.Errorf("invalid -event %q: entity must be between 1 and %d", v, entities)
		}
		events = append(events, scheduledEvent{frame: frame, entity: behavior.EntityID(entity), name: parts[2]})
	}
	slices.SortStableFunc(events, func(a, b scheduledEvent) int {
		return cmp.Compare(a.frame, b.frame)
	})
	return events, nil
}

// frameClock is the wall clock, or a simulated clock advanced one frame
// interval per update.
type frameClock struct {
	simulated bool
	now       time.Time
}

func (c *frameClock) Now() time.Time {
	if !c.simulated {
		return time.Now()
	}
	return c.now
}

func (c *frameClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// simulation drives a manager from a single goroutine.
type simulation struct {
	manager  *behavior.Manager
	clock    *frameClock
	logger   *slog.Logger
	tree     string
	entities []behavior.EntityID
	frames   uint64
	interval time.Duration
	paced    bool
	events   []scheduledEvent
	changes  <-chan string
}

// run starts every agent and updates until the frame limit, cancellation or
// no tree is left running.
func (s *simulation) run(ctx context.Context) error {
	for _, entity := range s.entities {
		if err := s.manager.Start(entity, s.tree); err != nil {
			return err
		}
	}

	var ticker *time.Ticker
	if s.paced {
		ticker = time.NewTicker(s.interval)
		defer ticker.Stop()
	}

	var next int
	for s.frames == 0 || s.manager.Frame() < s.frames {
		if ctx.Err() != nil {
			return nil
		}
		s.reload()

		frame := s.manager.Frame() + 1
		for ; next < len(s.events) && s.events[next].frame <= frame; next++ {
			ev := s.events[next]
			s.manager.HandleEvent(ev.entity, behavior.NewEvent(ev.name))
		}
		s.manager.Update()
		s.clock.advance(s.interval)

		if s.manager.Len() == 0 {
			s.logger.Warn("no behavior trees running, stopping", "frame", s.manager.Frame())
			return nil
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
	return nil
}

// reload applies pending tree changes. Only trees already loaded are
// rebuilt; failures are logged by the manager.
func (s *simulation) reload() {
	for {
		select {
		case name, ok := <-s.changes:
			if !ok {
				s.changes = nil
				return
			}
			if _, loaded := s.manager.Cache().Lookup(name); !loaded {
				continue
			}
			_ = s.manager.Reload(name)
		default:
			return
		}
	}
}

// report prints the state of every agent.
func (s *simulation) report(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Ran %d frames.\n", s.manager.Frame())
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ENTITY\tTREE\tSTATUS\tTICKS")
	for _, entity := range s.entities {
		inst, ok := s.manager.Instance(entity)
		if !ok {
			_, _ = fmt.Fprintf(tw, "%d\t-\tstopped\t-\n", entity)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", entity, inst.Template().Name(),
			behavior.StatusString(inst.LastStatus()), inst.Ticks())
	}
	_ = tw.Flush()
}
