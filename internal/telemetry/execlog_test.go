package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, data []byte) []ExecutionRecord {
	t.Helper()
	var out []ExecutionRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var rec ExecutionRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestExecutionLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	el := NewExecutionLogger(&buf, discardLogger())

	m := newManager(t, behavior.WithObserver(el), behavior.WithDebug(true))
	require.NoError(t, m.Start(1, "Guard"))
	m.Update()
	m.HandleEvent(1, behavior.NewEvent("OnAlarm"))
	m.Update()
	m.Stop(1)

	recs := decodeRecords(t, buf.Bytes())
	kinds := make([]string, len(recs))
	for i, r := range recs {
		kinds[i] = r.Kind
	}
	require.Equal(t, []string{"started", "tick", "event", "tick", "stopped"}, kinds)

	first := recs[1]
	require.Equal(t, uint64(1), first.Frame)
	require.Equal(t, behavior.EntityID(1), first.Entity)
	require.Equal(t, "Guard", first.Tree)
	require.Equal(t, "running", first.Status)
	require.Len(t, first.Log, 1)
	require.Contains(t, first.Log[0], "on duty")
	require.NotEmpty(t, first.Nodes)

	require.Empty(t, recs[3].Log, "log lines are reported in the frame they were written")
	require.Equal(t, "OnAlarm", recs[2].Event)
	require.Equal(t, recs[1].Instance, recs[4].Instance)
}

func TestExecutionLogger_TicksOnlyOnChange(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	el := NewExecutionLogger(&buf, discardLogger())
	el.TicksOnlyOnChange = true

	m := newManager(t, behavior.WithObserver(el))
	require.NoError(t, m.Start(1, "Guard"))
	for range 5 {
		m.Update()
	}

	var ticks int
	for _, r := range decodeRecords(t, buf.Bytes()) {
		if r.Kind == "tick" {
			ticks++
		}
	}
	require.Equal(t, 1, ticks)
}

func TestExecutionLogger_LoadFailure(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	m := newManager(t, behavior.WithObserver(NewExecutionLogger(&buf, discardLogger())))
	require.Error(t, m.Start(4, "Missing"))

	recs := decodeRecords(t, buf.Bytes())
	require.Len(t, recs, 1)
	require.Equal(t, "load_failed", recs[0].Kind)
	require.Equal(t, "Missing", recs[0].Tree)
	require.Contains(t, recs[0].Error, "not found")
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errors.New("disk full")
}

func TestExecutionLogger_StopsAfterWriteError(t *testing.T) {
	t.Parallel()
	w := new(failingWriter)
	m := newManager(t, behavior.WithObserver(NewExecutionLogger(w, discardLogger())))
	require.NoError(t, m.Start(1, "Guard"))
	m.Update()
	m.Update()
	require.Equal(t, 1, w.writes)
}
