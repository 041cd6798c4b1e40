package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/mbt/internal/config"
)

// setup points the config at a new file and returns its path and a tree
// directory.
func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	t.Setenv(config.EnvConfigPath, path)
	trees := filepath.Join(dir, "trees")
	require.NoError(t, os.Mkdir(trees, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(trees, "Idle.yaml"), []byte("root:\n  type: Halt\n"), 0o644))
	return path, trees
}

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(t.Context(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun(t *testing.T) {
	setup(t)

	for _, args := range [][]string{nil, {"-h"}, {"--help"}, {"help"}} {
		stdout, _, err := runArgs(t, args...)
		require.NoError(t, err)
		require.Contains(t, stdout, "Usage: mbt <command>")
	}

	stdout, _, err := runArgs(t, "version")
	require.NoError(t, err)
	require.Equal(t, "mbt version "+version+"\n", stdout)

	_, stderr, err := runArgs(t, "nonexistent")
	require.Error(t, err)
	require.Contains(t, stderr, "Unknown command: nonexistent")

	_, stderr, err = runArgs(t, "run", "-h")
	require.NoError(t, err)
	require.Contains(t, stderr, "Usage: mbt run -tree <name> [options]")

	_, _, err = runArgs(t, "run", "-bogus")
	require.Error(t, err)
}

func TestRun_Config(t *testing.T) {
	path, trees := setup(t)
	require.NoError(t, os.WriteFile(path, []byte("colour blue\n\n[runtime]\nsearch-path "+trees+"\n"), 0o644))

	stdout, stderr, err := runArgs(t, "trees")
	require.NoError(t, err)
	require.Equal(t, "Idle\n", stdout)
	require.Contains(t, stderr, `Warning: config `+path+`: unknown global option: "colour"`)

	stdout, _, err = runArgs(t, "run", "-tree", "Idle", "-frames", "2", "-fast")
	require.NoError(t, err)
	require.Contains(t, stdout, "Ran 2 frames.")

	_, _, err = runArgs(t, "config", "log.level", "debug")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "log.level debug\n")
}

func TestRun_InvalidConfig(t *testing.T) {
	path, _ := setup(t)
	require.NoError(t, os.WriteFile(path, []byte("[runtime]\nframe-rate fast\n"), 0o644))
	_, _, err := runArgs(t, "version")
	require.ErrorContains(t, err, "line 2: invalid runtime option")
}
