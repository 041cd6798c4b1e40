package command

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/mbt/internal/config"
	"github.com/joeycumines/mbt/internal/logging"
)

func TestLogFlags_Resolve(t *testing.T) {
	t.Parallel()
	cfg := loadConfig(t, "log.level warn\nlog.format json\nlog.max-size-mb 3\nlog.max-files 0\n")
	buffer := logging.NewBufferHandler(10)

	t.Run("config", func(t *testing.T) {
		t.Parallel()
		var f logFlags
		opts := f.resolve(cfg, buffer)
		require.Equal(t, "warn", opts.Level)
		require.Equal(t, "json", opts.Format)
		require.Empty(t, opts.File)
		require.Equal(t, 3, opts.MaxSizeMB)
		require.Equal(t, 0, opts.MaxFiles)
		require.Same(t, buffer, opts.Buffer)
	})

	t.Run("flags win", func(t *testing.T) {
		t.Parallel()
		f := logFlags{level: "debug", format: "text", file: "mbt.log"}
		opts := f.resolve(cfg, nil)
		require.Equal(t, "debug", opts.Level)
		require.Equal(t, "text", opts.Format)
		require.Equal(t, "mbt.log", opts.File)
		require.Nil(t, opts.Buffer)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		var f logFlags
		opts := f.resolve(nil, nil)
		require.Equal(t, 10, opts.MaxSizeMB)
		require.Equal(t, 5, opts.MaxFiles)
	})
}

func TestLogFlags_NewLogger(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "mbt.log")
	f := logFlags{level: "info", format: "text", file: file}
	var stderr bytes.Buffer
	logger, closer, err := f.newLogger(config.NewConfig(), &stderr, nil)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "tree", "Guard")
	require.NoError(t, closer.Close())
	require.Contains(t, stderr.String(), "msg=shown tree=Guard")
	require.NotContains(t, stderr.String(), "hidden")

	f.level = "loud"
	_, _, err = f.newLogger(config.NewConfig(), &stderr, nil)
	require.EqualError(t, err, "invalid log level: loud")
}

func TestSearchPaths(t *testing.T) {
	t.Parallel()
	require.Equal(t, config.DefaultSearchPaths, searchPaths(nil, nil))
	cfg := loadConfig(t, "[runtime]\nsearch-path trees\nsearch-path shared\n")
	require.Equal(t, []string{"trees", "shared"}, searchPaths(cfg, nil))
	require.Equal(t, []string{"override"}, searchPaths(cfg, []string{"override"}))
}
