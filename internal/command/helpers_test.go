package command

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const guardTree = `
variables:
  - {name: Alarmed, type: bool}
signalVariables:
  - {signal: OnAlarm, variable: Alarmed, value: true}
root:
  type: Sequence
  children:
    - {type: Log, message: on duty}
    - {type: Halt}
`

const quitterTree = `
root:
  type: Fail
`

// execute parses args with cmd's flags and runs it.
func execute(t *testing.T, cmd Command, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t.Context(), t, cmd, args...)
}

func executeContext(ctx context.Context, t *testing.T, cmd Command, args ...string) (string, string, error) {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	require.NoError(t, fs.Parse(args))
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(ctx, fs.Args(), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// writeTrees writes files, keyed by slash-separated path, to a new
// directory.
func writeTrees(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
	return dir
}
