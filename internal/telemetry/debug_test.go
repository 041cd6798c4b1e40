package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joeycumines/mbt/internal/behavior"
	"github.com/joeycumines/mbt/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func getJSON(t *testing.T, url string, want int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, want, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func TestDebugChannel(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	buffer := logging.NewBufferHandler(16)
	slog.New(buffer).Info("hello from the runtime", "entity", 1)

	d := NewDebugChannel(WithGatherer(reg), WithLogBuffer(buffer), WithMaxEvents(2))
	m := newManager(t, behavior.WithObserver(behavior.Observers{metrics, d}), behavior.WithDebug(true))
	require.NoError(t, m.Start(1, "Guard"))
	require.NoError(t, m.Start(2, "Quitter"))
	m.Update()
	m.HandleEvent(1, behavior.NewEvent("OnAlarm"))
	m.HandleEvent(1, behavior.NewEvent("OnAlarm"))
	m.HandleEvent(7, behavior.NewEvent("Ping"))
	m.Update()

	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	var all []InstanceSnapshot
	getJSON(t, srv.URL+"/instances", http.StatusOK, &all)
	require.Len(t, all, 2)
	require.Equal(t, behavior.EntityID(1), all[0].Entity)
	require.True(t, all[0].Running)
	require.False(t, all[1].Running, "stopped instances keep their final snapshot")
	require.Equal(t, "failure", all[1].Status)

	var guard InstanceSnapshot
	getJSON(t, srv.URL+"/instances/1", http.StatusOK, &guard)
	require.Equal(t, "Guard", guard.Tree)
	require.Equal(t, uint64(2), guard.Frame)
	require.Equal(t, uint64(2), guard.Ticks)
	require.Equal(t, "running", guard.Status)
	require.Equal(t, true, guard.Variables["Alarmed"])
	require.NotEmpty(t, guard.ActiveNodes)
	require.Len(t, guard.Execution, 1)
	require.Len(t, guard.Events, 2)
	require.Len(t, guard.Trace, 1)
	require.Equal(t, "Sequence", guard.Trace[0].Info.Type)

	getJSON(t, srv.URL+"/instances/9", http.StatusNotFound, nil)
	getJSON(t, srv.URL+"/instances/guard", http.StatusBadRequest, nil)

	var events []EventRecord
	getJSON(t, srv.URL+"/events", http.StatusOK, &events)
	require.Len(t, events, 2)
	require.Equal(t, "OnAlarm", events[0].Event)
	require.Equal(t, 1, events[0].Mutations)
	require.True(t, events[1].Dropped)

	var logs []logging.Entry
	getJSON(t, srv.URL+"/logs?n=5", http.StatusOK, &logs)
	require.Len(t, logs, 1)
	getJSON(t, srv.URL+"/logs?q=runtime", http.StatusOK, &logs)
	require.Len(t, logs, 1)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), `mbt_ticks_total{status="running",tree="Guard"} 2`)
}

func TestDebugChannel_OptionalRoutes(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(NewDebugChannel().Handler())
	defer srv.Close()
	for _, path := range []string{"/logs", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	var all []InstanceSnapshot
	getJSON(t, srv.URL+"/instances", http.StatusOK, &all)
	require.Empty(t, all)
}

func TestDebugChannel_Serve(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDebugChannel(WithDebugLogger(discardLogger()))
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/events"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
}
