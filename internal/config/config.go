package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is a parsed configuration file.
type Config struct {
	// Global options, e.g. log.level.
	Global map[string]string
	// Sections holds the raw options of every [section], last value wins.
	Sections map[string]map[string]string
	// Runtime is the typed [runtime] section.
	Runtime RuntimeConfig
	// Debug is the typed [debug] section.
	Debug DebugConfig
	// Warnings lists problems that did not prevent loading.
	Warnings []string
}

// RuntimeConfig controls the behavior tree runtime.
type RuntimeConfig struct {
	// SearchPaths are the tree search roots, in lookup order. Each
	// search-path line appends; a line may hold a path list.
	SearchPaths      []string
	FrameRate        int
	RootTerminal     string
	EventLogSize     int
	ExecutionLogSize int
	ExprCacheSize    int
	Watch            bool
}

// FrameInterval returns the time between frames.
func (r RuntimeConfig) FrameInterval() time.Duration {
	if r.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(r.FrameRate)
}

// DebugConfig controls debug recording and the remote debug channel.
type DebugConfig struct {
	Enabled bool
	// Listen is the debug channel address; empty disables it.
	Listen  string
	Metrics bool
	// ExecutionLog is the tick log file path; empty disables it.
	ExecutionLog string
}

// Default search roots, relative to the working directory.
var DefaultSearchPaths = []string{"behavior_trees", "libs/ai/behavior_trees"}

// NewConfig returns an empty configuration with default sections.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Sections: make(map[string]map[string]string),
		Runtime: RuntimeConfig{
			FrameRate:        30,
			RootTerminal:     "stop",
			EventLogSize:     32,
			ExecutionLogSize: 64,
			ExprCacheSize:    1000,
		},
	}
}

// SearchPaths returns the configured search roots, or the defaults.
func (c *Config) SearchPaths() []string {
	if len(c.Runtime.SearchPaths) == 0 {
		return append([]string(nil), DefaultSearchPaths...)
	}
	return append([]string(nil), c.Runtime.SearchPaths...)
}

// Load reads the configuration from [GetConfigPath].
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads the configuration at path. A missing file yields the
// defaults. Symlinks are rejected.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return LoadFromReader(file)
}

// LoadFromReader parses the dnsmasq-style format: one "optionName value"
// per line, "[section]" headers and "#" comments.
//
//	log.level debug
//
//	[runtime]
//	search-path behavior_trees
//	frame-rate 60
//
//	[debug]
//	enabled true
//	listen 127.0.0.1:6061
func LoadFromReader(r io.Reader) (*Config, error) {
	config := NewConfig()
	scanner := bufio.NewScanner(r)

	var section string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(strings.Trim(line, "[]"))
			if config.Sections[section] == nil {
				config.Sections[section] = make(map[string]string)
			}
			continue
		}

		name, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)

		var err error
		switch section {
		case "":
			config.Global[name] = value
		case "runtime":
			config.Sections[section][name] = value
			err = parseRuntimeOption(&config.Runtime, name, value)
		case "debug":
			config.Sections[section][name] = value
			err = parseDebugOption(&config.Debug, name, value)
		default:
			config.Sections[section][name] = value
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s option %q: %w", lineNo, section, name, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(config, DefaultSchema()) {
		config.addWarning("%s", issue)
	}
	return config, nil
}

func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[Config] " + msg)
}

// parseRuntimeOption applies one [runtime] option. Unknown options are left
// to schema validation.
func parseRuntimeOption(rc *RuntimeConfig, name, value string) error {
	var err error
	switch name {
	case "search-path":
		for _, p := range filepath.SplitList(value) {
			if p = strings.TrimSpace(p); p != "" {
				rc.SearchPaths = append(rc.SearchPaths, p)
			}
		}
	case "frame-rate":
		rc.FrameRate, err = parsePositive(value)
	case "root-terminal":
		switch strings.ToLower(value) {
		case "stop", "restart":
			rc.RootTerminal = strings.ToLower(value)
		default:
			err = fmt.Errorf("expected stop or restart, got %q", value)
		}
	case "event-log-size":
		rc.EventLogSize, err = parseNonNegative(value)
	case "execution-log-size":
		rc.ExecutionLogSize, err = parseNonNegative(value)
	case "expr-cache-size":
		rc.ExprCacheSize, err = parsePositive(value)
	case "watch":
		rc.Watch, err = parseBool(value)
	}
	return err
}

// parseDebugOption applies one [debug] option.
func parseDebugOption(dc *DebugConfig, name, value string) error {
	var err error
	switch name {
	case "enabled":
		dc.Enabled, err = parseBool(value)
	case "listen":
		dc.Listen = value
	case "metrics":
		dc.Metrics, err = parseBool(value)
	case "execution-log":
		dc.ExecutionLog = value
	}
	return err
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1: %d", n)
	}
	return n, nil
}

func parseNonNegative(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("cannot be negative: %d", n)
	}
	return n, nil
}

// parseBool accepts true, false, 1, 0, yes, no, on and off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, ok := c.Global[name]
	return value, ok
}

// GetSectionOption returns an option of section, falling back to the
// global option of the same name.
func (c *Config) GetSectionOption(section, name string) (string, bool) {
	if opts, ok := c.Sections[section]; ok {
		if value, ok := opts[name]; ok {
			return value, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global option.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// HasWarnings reports whether loading produced warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}
