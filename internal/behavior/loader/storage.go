package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/joeycumines/mbt/internal/behavior"
)

// Extensions tried, in order, when locating a tree.
var Extensions = []string{".yaml", ".yml"}

// DefaultSearchPaths are the search roots used when none are configured.
var DefaultSearchPaths = []string{"behavior_trees", "libs/ai/behavior_trees"}

// Root is one search root.
type Root struct {
	// Name describes the root in sources and logs, e.g. its directory.
	Name string
	FS   fs.FS
}

// Storage locates tree definitions by name under ordered search roots.
type Storage struct {
	roots []Root
}

// NewStorage searches roots in order.
func NewStorage(roots ...Root) *Storage {
	return &Storage{roots: slices.Clone(roots)}
}

// DirStorage searches the given directories in order.
func DirStorage(dirs ...string) *Storage {
	roots := make([]Root, len(dirs))
	for i, dir := range dirs {
		roots[i] = Root{Name: dir, FS: os.DirFS(dir)}
	}
	return NewStorage(roots...)
}

// Roots returns the search roots.
func (s *Storage) Roots() []Root { return slices.Clone(s.roots) }

// Read returns the definition of the named tree and its source, trying every
// root then every extension. Names may contain slashes, and a trailing
// definition extension is ignored.
func (s *Storage) Read(name string) ([]byte, string, error) {
	if ext := path.Ext(name); slices.Contains(Extensions, ext) {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." || !fs.ValidPath(name) {
		return nil, "", fmt.Errorf("%w: invalid tree name %q", behavior.ErrTreeNotFound, name)
	}
	for _, root := range s.roots {
		for _, ext := range Extensions {
			file := name + ext
			data, err := fs.ReadFile(root.FS, file)
			if err == nil {
				return data, path.Join(root.Name, file), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", fmt.Errorf("read %s: %w", path.Join(root.Name, file), err)
			}
		}
	}
	return nil, "", fmt.Errorf("%w: %q in %s", behavior.ErrTreeNotFound, name, s.describe())
}

func (s *Storage) describe() string {
	names := make([]string, len(s.roots))
	for i, root := range s.roots {
		names[i] = root.Name
	}
	if len(names) == 0 {
		return "no search roots"
	}
	return strings.Join(names, ", ")
}

// List returns the sorted names of every tree found under any root. Roots
// that do not exist are skipped.
func (s *Storage) List() ([]string, error) {
	seen := make(map[string]struct{})
	for _, root := range s.roots {
		err := fs.WalkDir(root.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == "." && errors.Is(err, fs.ErrNotExist) {
					return fs.SkipAll
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := path.Ext(p)
			if slices.Contains(Extensions, ext) {
				seen[strings.TrimSuffix(p, ext)] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", root.Name, err)
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
