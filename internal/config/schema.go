package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// OptionType is the expected type of an option value.
type OptionType string

const (
	TypeString   OptionType = "string"
	TypeBool     OptionType = "bool"
	TypeInt      OptionType = "int"
	TypeDuration OptionType = "duration"
	// TypePathList is a list of paths joined by the OS list separator.
	TypePathList OptionType = "path-list"
)

// ConfigOption declares one option.
type ConfigOption struct {
	// Key is the option name as written in the file.
	Key         string
	Type        OptionType
	Default     string
	Description string
	// Section is "" for global options.
	Section string
	// EnvVar, if set, overrides the file value.
	EnvVar string
}

// ConfigSchema declares the known options, for validation, documentation
// and environment overrides.
type ConfigSchema struct {
	options   []*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema returns an empty schema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{bySection: make(map[string]map[string]*ConfigOption)}
}

// Register adds opt, replacing an option with the same section and key.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// RegisterAll adds every option.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the option for key in section ("" for global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.bySection[section][key]
}

// SectionOptions returns the options of section, in registration order.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns the sorted non-global section names.
func (s *ConfigSchema) Sections() []string {
	var out []string
	for sec := range s.bySection {
		if sec != "" {
			out = append(out, sec)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve returns the effective value of a global key: the environment
// variable, then the file value, then the default.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup("", key)
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	if v, ok := c.GetGlobalOption(key); ok {
		return v
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ResolveInt is [ConfigSchema.Resolve] parsed as an integer, or 0.
func (s *ConfigSchema) ResolveInt(c *Config, key string) int {
	n, _ := strconv.Atoi(s.Resolve(c, key))
	return n
}

// ValidateConfig reports unknown options and type mismatches, sorted.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Sections {
		if _, ok := s.bySection[section]; !ok {
			issues = append(issues, fmt.Sprintf("unknown section: [%s]", section))
			continue
		}
		for key, value := range opts {
			opt := s.Lookup(section, key)
			if opt == nil {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	slices.Sort(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, TypePathList, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp renders every option, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	if globals := s.SectionOptions(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}
	for _, sec := range s.Sections() {
		_, _ = fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range s.SectionOptions(sec) {
			writeOptionHelp(&b, o)
		}
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	_, _ = fmt.Fprintf(b, "  %-24s %s", o.Key, o.Description)
	var parts []string
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, "type: "+string(o.Type))
	}
	if o.Default != "" {
		parts = append(parts, "default: "+o.Default)
	}
	if o.EnvVar != "" {
		parts = append(parts, "env: "+o.EnvVar)
	}
	if len(parts) > 0 {
		_, _ = fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteByte('\n')
}

// DefaultSchema returns the schema of every option mbt understands.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "MBT_LOG_LEVEL"},
		{Key: "log.format", Type: TypeString, Default: "text", Description: "Console log format: text, json", EnvVar: "MBT_LOG_FORMAT"},
		{Key: "log.file", Type: TypeString, Description: "Log file path (JSON output)", EnvVar: "MBT_LOG_FILE"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},
		{Key: "log.buffer-size", Type: TypeInt, Default: "1000", Description: "In-memory log buffer size served by the debug channel"},

		{Section: "runtime", Key: "search-path", Type: TypePathList, Default: strings.Join(DefaultSearchPaths, string(filepath.ListSeparator)), Description: "Tree search root, repeatable, in lookup order"},
		{Section: "runtime", Key: "frame-rate", Type: TypeInt, Default: "30", Description: "Frames per second"},
		{Section: "runtime", Key: "root-terminal", Type: TypeString, Default: "stop", Description: "Action when a root finishes: stop, restart"},
		{Section: "runtime", Key: "event-log-size", Type: TypeInt, Default: "32", Description: "Per-instance event log entries in debug mode"},
		{Section: "runtime", Key: "execution-log-size", Type: TypeInt, Default: "64", Description: "Per-instance execution log entries"},
		{Section: "runtime", Key: "expr-cache-size", Type: TypeInt, Default: "1000", Description: "Compiled condition cache entries"},
		{Section: "runtime", Key: "watch", Type: TypeBool, Default: "false", Description: "Reload trees when their files change"},

		{Section: "debug", Key: "enabled", Type: TypeBool, Default: "false", Description: "Record tick traces and event logs"},
		{Section: "debug", Key: "listen", Type: TypeString, Description: "Remote debug channel address"},
		{Section: "debug", Key: "metrics", Type: TypeBool, Default: "false", Description: "Collect prometheus metrics"},
		{Section: "debug", Key: "execution-log", Type: TypeString, Description: "Tick execution log file (JSON lines)"},
	})
	return s
}
