package command

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type testCommand struct {
	*BaseCommand
}

func (c *testCommand) Execute(context.Context, []string, io.Writer, io.Writer) error { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(&testCommand{NewBaseCommand("zeta", "Last", "zeta")})
	r.Register(&testCommand{NewBaseCommand("alpha", "First", "alpha [x]")})

	cmd, err := r.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "alpha", cmd.Name())
	require.Equal(t, "First", cmd.Description())
	require.Equal(t, "alpha [x]", cmd.Usage())

	_, err = r.Get("missing")
	require.EqualError(t, err, "command not found: missing")

	require.Equal(t, []string{"alpha", "zeta"}, r.List())

	r.Register(&testCommand{NewBaseCommand("alpha", "Replaced", "alpha")})
	cmd, err = r.Get("alpha")
	require.NoError(t, err)
	require.Equal(t, "Replaced", cmd.Description())
	require.Len(t, r.List(), 2)
}

func TestStringsFlag(t *testing.T) {
	t.Parallel()
	var f stringsFlag
	require.NoError(t, f.Set("a"))
	require.NoError(t, f.Set("b"))
	require.Equal(t, stringsFlag{"a", "b"}, f)
	require.Equal(t, "[a b]", f.String())
}
