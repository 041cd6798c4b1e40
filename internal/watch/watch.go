// Package watch reports changes to behavior tree definition files.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joeycumines/mbt/internal/behavior/loader"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches the tree search roots and emits the name of every tree
// whose file was created or written, in the form accepted by
// [loader.Storage.Read].
type Watcher struct {
	watcher  *fsnotify.Watcher
	roots    []string
	changes  chan string
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a [Watcher].
type Option func(*Watcher)

// WithDebounce sets the quiet period before changes are emitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// New watches every directory under roots. Roots that do not exist are
// skipped.
func New(roots []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		changes:  make(chan string, 64),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		if err := w.addTree(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Debug("behavior tree search root missing, not watched", "root", root)
				continue
			}
			_ = fw.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}
	return w, nil
}

// Changes returns the channel of changed tree names. It is closed when
// [Watcher.Run] returns.
func (w *Watcher) Changes() <-chan string { return w.changes }

// Roots returns the watched roots.
func (w *Watcher) Roots() []string { return slices.Clone(w.roots) }

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if name, ok := w.handle(event); ok {
				pending[name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("behavior tree watcher error", "error", err)

		case <-timer.C:
			for _, name := range slices.Sorted(maps.Keys(pending)) {
				select {
				case w.changes <- name:
				default:
					w.logger.Warn("behavior tree change dropped: channel full", "tree", name)
				}
			}
			clear(pending)
		}
	}
}

// handle returns the tree name affected by event, if any.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return "", false
		}
	}
	return w.treeName(event.Name)
}

// treeName maps a file path to a tree name relative to its root.
func (w *Watcher) treeName(path string) (string, bool) {
	ext := filepath.Ext(path)
	if !slices.Contains(loader.Extensions, ext) {
		return "", false
	}
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return strings.TrimSuffix(filepath.ToSlash(rel), ext), true
	}
	return "", false
}
