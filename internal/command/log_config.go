package command

import (
	"flag"
	"io"
	"log/slog"

	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/behavior/nodes"
	"github.com/joeycumines/mbt/internal/condition"
	"github.com/joeycumines/mbt/internal/config"
	"github.com/joeycumines/mbt/internal/logging"
)

// logFlags holds the logging flags shared by tree commands.
type logFlags struct {
	level  string
	format string
	file   string
}

func (f *logFlags) setup(fs *flag.FlagSet) {
	fs.StringVar(&f.level, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	fs.StringVar(&f.format, "log-format", "", "Console log format: text, json (default from config)")
	fs.StringVar(&f.file, "log-file", "", "Also write JSON logs to this file (default from config)")
}

// resolve returns the logging options. Flag values take precedence over the
// configuration, which falls back to the schema defaults.
func (f *logFlags) resolve(cfg *config.Config, buffer *logging.BufferHandler) logging.Options {
	schema := config.DefaultSchema()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	pick := func(flagValue, key string) string {
		if flagValue != "" {
			return flagValue
		}
		return schema.Resolve(cfg, key)
	}
	opts := logging.Options{
		Level:     pick(f.level, "log.level"),
		Format:    pick(f.format, "log.format"),
		File:      pick(f.file, "log.file"),
		MaxSizeMB: schema.ResolveInt(cfg, "log.max-size-mb"),
		MaxFiles:  schema.ResolveInt(cfg, "log.max-files"),
		Buffer:    buffer,
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxFiles < 0 {
		opts.MaxFiles = 5
	}
	return opts
}

// newLogger builds the command logger on stderr. The caller must close the
// returned closer.
func (f *logFlags) newLogger(cfg *config.Config, stderr io.Writer, buffer *logging.BufferHandler) (*slog.Logger, io.Closer, error) {
	return logging.New(stderr, f.resolve(cfg, buffer))
}

// searchPaths returns the override paths if any, else the configured ones.
func searchPaths(cfg *config.Config, override []string) []string {
	if len(override) != 0 {
		return override
	}
	if cfg == nil {
		return config.NewConfig().SearchPaths()
	}
	return cfg.SearchPaths()
}

// newTreeLoader returns a loader over the search paths with the full node
// catalog.
func newTreeLoader(cfg *config.Config, paths []string, logger *slog.Logger, opts ...loader.Option) *loader.Loader {
	cacheSize := condition.DefaultCacheSize
	if cfg != nil && cfg.Runtime.ExprCacheSize > 0 {
		cacheSize = cfg.Runtime.ExprCacheSize
	}
	opts = append([]loader.Option{
		loader.WithLogger(logger),
		loader.WithConditionCompiler(condition.NewCompiler(cacheSize)),
	}, opts...)
	return loader.New(loader.DirStorage(paths...), nodes.NewRegistry(), opts...)
}
