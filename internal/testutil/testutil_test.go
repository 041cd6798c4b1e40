package testutil

import (
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClock(t *testing.T) {
	t.Parallel()
	c := NewClock(Epoch)
	require.Equal(t, Epoch, c.Now())
	c.Advance(1500 * time.Millisecond)
	require.Equal(t, Epoch.Add(1500*time.Millisecond), c.Now())
	c.Set(Epoch)
	require.Equal(t, Epoch, c.Now())
}

func TestBufferLogger(t *testing.T) {
	t.Parallel()
	logger, buf := BufferLogger(slog.LevelInfo)
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() { logger.Info("tick", "entity", 1) })
	}
	logger.Debug("hidden")
	wg.Wait()
	out := buf.String()
	require.Equal(t, 8, strings.Count(out, "\n"))
	require.Equal(t, 8, strings.Count(out, "msg=tick entity=1"))
	require.NotContains(t, out, "hidden")
}

func TestDiscardLogger(t *testing.T) {
	t.Parallel()
	logger := DiscardLogger()
	logger.Error("dropped")
	require.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
