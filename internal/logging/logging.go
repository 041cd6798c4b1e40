// Package logging builds the slog loggers used by the mbt CLI.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Options configure [New].
type Options struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string
	// Format is text or json. Empty means text.
	Format string
	// File, if set, receives JSON records through a [RotatingFileWriter]
	// in addition to the console output.
	File      string
	MaxSizeMB int
	MaxFiles  int
	// Buffer, if non-nil, retains recent records for inspection.
	Buffer *BufferHandler
}

// ParseLevel parses a level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// New returns a logger writing to console per opts. The returned closer
// releases the log file, if any, and is never nil.
func New(console io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	switch strings.ToLower(opts.Format) {
	case "text", "":
		handlers = append(handlers, slog.NewTextHandler(console, handlerOpts))
	case "json":
		handlers = append(handlers, slog.NewJSONHandler(console, handlerOpts))
	default:
		return nil, nil, fmt.Errorf("invalid log format: %s", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		maxSizeMB := opts.MaxSizeMB
		if maxSizeMB <= 0 {
			maxSizeMB = 10
		}
		w, err := NewRotatingFileWriter(opts.File, maxSizeMB, opts.MaxFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
		closer = w
	}
	if opts.Buffer != nil {
		handlers = append(handlers, opts.Buffer.withLevel(level))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(multiHandler(handlers)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// multiHandler fans records out to every enabled handler.
type multiHandler []slog.Handler

func (h multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, x := range h {
		if x.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, x := range h {
		if x.Enabled(ctx, r.Level) {
			errs = append(errs, x.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(h))
	for i, x := range h {
		out[i] = x.WithAttrs(attrs)
	}
	return out
}

func (h multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(h))
	for i, x := range h {
		out[i] = x.WithGroup(name)
	}
	return out
}
