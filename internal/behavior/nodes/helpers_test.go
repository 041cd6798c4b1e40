package nodes

import (
	"fmt"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/behavior/loader"
	"github.com/joeycumines/mbt/internal/testutil"
	"github.com/stretchr/testify/require"
)

const entity behavior.EntityID = 1

type statusObserver struct {
	behavior.NopObserver
	statuses []behavior.Status
}

func (o *statusObserver) ObserveTick(s behavior.TickSnapshot) {
	o.statuses = append(o.statuses, s.Status)
}

// harness runs one tree for one entity on a fake clock.
type harness struct {
	t    *testing.T
	now  time.Time
	obs  *statusObserver
	m    *behavior.Manager
	inst *behavior.Instance
}

func newLoader(trees map[string]string) *loader.Loader {
	fsys := fstest.MapFS{}
	for name, def := range trees {
		fsys[name+".yaml"] = &fstest.MapFile{Data: []byte(def)}
	}
	return loader.New(loader.NewStorage(loader.Root{Name: "test", FS: fsys}), NewRegistry(), loader.WithLogger(testutil.DiscardLogger()))
}

func newHarness(t *testing.T, def string) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		now: testutil.Epoch,
		obs: new(statusObserver),
	}
	h.m = behavior.NewManager(newLoader(map[string]string{"Test": def}),
		behavior.WithLogger(testutil.DiscardLogger()),
		behavior.WithClock(func() time.Time { return h.now }),
		behavior.WithObserver(h.obs),
	)
	require.NoError(t, h.m.Start(entity, "Test"))
	var ok bool
	h.inst, ok = h.m.Instance(entity)
	require.True(t, ok)
	return h
}

// step advances the clock by d, runs one frame and returns the root status.
func (h *harness) step(d time.Duration) behavior.Status {
	h.t.Helper()
	h.now = h.now.Add(d)
	n := len(h.obs.statuses)
	h.m.Update()
	require.Len(h.t, h.obs.statuses, n+1, "tree was not ticked")
	return h.obs.statuses[n]
}

func (h *harness) event(name string) {
	h.m.HandleEvent(entity, behavior.NewEvent(name))
}

func (h *harness) get(name string) any {
	h.t.Helper()
	v, ok := h.inst.Variables().Get(name)
	require.True(h.t, ok, name)
	return v
}

// logs returns the execution log messages, without line suffixes.
func (h *harness) logs() []string {
	var out []string
	for _, e := range h.inst.ExecutionLog().Entries() {
		msg, _, _ := strings.Cut(e.Message, " (")
		out = append(out, msg)
	}
	return out
}

func sprintf(format string, args ...any) string { return fmt.Sprintf(format, args...) }

// escapeYAML escapes s for a single-quoted YAML scalar.
func escapeYAML(s string) string { return strings.ReplaceAll(s, "'", "''") }
