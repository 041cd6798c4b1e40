package telemetry

import (
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/behavior/nodes"
	"github.com/joeycumines/mbt/internal/testutil"
)

var trees = fstest.MapFS{
	"Guard.yaml": {Data: []byte(`
variables:
  - {name: Alarmed, type: bool}
signalVariables:
  - {signal: OnAlarm, variable: Alarmed, value: true}
root:
  type: Sequence
  children:
    - {type: Log, message: on duty}
    - {type: Halt}
`)},
	"Quitter.yaml": {Data: []byte(`
root:
  type: Fail
`)},
}

func discardLogger() *slog.Logger { return testutil.DiscardLogger() }

func newManager(t *testing.T, opts ...behavior.Option) *behavior.Manager {
	t.Helper()
	l := loader.New(loader.NewStorage(loader.Root{Name: "test", FS: trees}), nodes.NewRegistry(), loader.WithLogger(discardLogger()))
	opts = append([]behavior.Option{
		behavior.WithLogger(discardLogger()),
		behavior.WithClock(testutil.NewClock(testutil.Epoch).Now),
	}, opts...)
	return behavior.NewManager(l, opts...)
}
