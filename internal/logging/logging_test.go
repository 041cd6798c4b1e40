package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.ErrorContains(t, err, "invalid log level")
}

func TestNew_Text(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, closer, err := New(&buf, Options{Level: "warn"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "entity", 7)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown entity=7")
}

func TestNew_JSONWithFileAndBuffer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "mbt.log")
	buffer := NewBufferHandler(4)

	logger, closer, err := New(&buf, Options{Format: "json", File: path, Buffer: buffer})
	require.NoError(t, err)
	logger.With("tree", "Patrol").Info("started", "entity", 1)
	logger.Debug("filtered")
	require.NoError(t, closer.Close())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "started", rec["msg"])
	require.Equal(t, "Patrol", rec["tree"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "\n"))
	require.Contains(t, string(data), `"msg":"started"`)

	entries := buffer.Entries(0)
	require.Len(t, entries, 1)
	require.Equal(t, "started", entries[0].Message)
	require.Equal(t, map[string]string{"tree": "Patrol", "entity": "1"}, entries[0].Attrs)
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()
	_, _, err := New(&bytes.Buffer{}, Options{Format: "xml"})
	require.ErrorContains(t, err, "invalid log format")
	_, _, err = New(&bytes.Buffer{}, Options{Level: "chatty"})
	require.ErrorContains(t, err, "invalid log level")
}

func TestBufferHandler(t *testing.T) {
	t.Parallel()
	h := NewBufferHandler(3)
	logger := slog.New(h).WithGroup("node")
	for _, msg := range []string{"one", "two", "three", "four"} {
		logger.Info(msg, "line", 12)
	}

	entries := h.Entries(0)
	require.Len(t, entries, 3)
	require.Equal(t, "two", entries[0].Message)
	require.Equal(t, "four", entries[2].Message)
	require.Equal(t, "12", entries[2].Attrs["node.line"])
	require.Len(t, h.Entries(1), 1)
	require.Equal(t, "four", h.Entries(1)[0].Message)

	require.Len(t, h.Search("THREE"), 1)
	require.Len(t, h.Search("node.line"), 3)

	h.Clear()
	require.Empty(t, h.Entries(0))
}
