package behavior

import (
	"fmt"
	"log/slog"
	"time"
)

// RootTerminalPolicy decides what happens to an entity whose root node
// reports a terminal status.
type RootTerminalPolicy int

const (
	// StopOnTerminal stops the entity after the update pass.
	StopOnTerminal RootTerminalPolicy = iota
	// RestartOnTerminal stops the entity after the update pass, then starts
	// a new instance of the same template.
	RestartOnTerminal
)

func (p RootTerminalPolicy) String() string {
	switch p {
	case StopOnTerminal:
		return "stop"
	case RestartOnTerminal:
		return "restart"
	default:
		return fmt.Sprintf("RootTerminalPolicy(%d)", int(p))
	}
}

// ParseRootTerminalPolicy parses "stop" or "restart".
func ParseRootTerminalPolicy(s string) (RootTerminalPolicy, error) {
	switch s {
	case "", "stop":
		return StopOnTerminal, nil
	case "restart":
		return RestartOnTerminal, nil
	default:
		return 0, fmt.Errorf("unknown root terminal policy %q", s)
	}
}

// Default instance log capacities.
const (
	DefaultEventLogSize     = 32
	DefaultExecutionLogSize = 64
)

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger, slog.Default() by default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithWorld sets the agent state source, [AlwaysActive] by default.
func WithWorld(world World) Option {
	return func(m *Manager) {
		if world != nil {
			m.world = world
		}
	}
}

// WithClock sets the time source, time.Now by default.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithObserver adds an observer. It may be used more than once.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// WithDebug enables execution tracing, instance event logs and dropped
// event diagnostics.
func WithDebug(enabled bool) Option {
	return func(m *Manager) { m.debug = enabled }
}

// WithRootTerminalPolicy sets the root terminal policy, [StopOnTerminal] by
// default.
func WithRootTerminalPolicy(policy RootTerminalPolicy) Option {
	return func(m *Manager) { m.policy = policy }
}

// WithEventLogSize sets the capacity of each instance's event log.
func WithEventLogSize(n int) Option {
	return func(m *Manager) { m.eventLogSize = n }
}

// WithExecutionLogSize sets the capacity of each instance's execution log.
func WithExecutionLogSize(n int) Option {
	return func(m *Manager) { m.executionLogSize = n }
}
