package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchema_Resolve(t *testing.T) {
	s := DefaultSchema()
	cfg := NewConfig()

	require.Equal(t, "info", s.Resolve(cfg, "log.level"))
	require.Equal(t, 10, s.ResolveInt(cfg, "log.max-size-mb"))
	require.Empty(t, s.Resolve(cfg, "no.such.key"))

	cfg.SetGlobalOption("log.level", "warn")
	require.Equal(t, "warn", s.Resolve(cfg, "log.level"))

	t.Setenv("MBT_LOG_LEVEL", "error")
	require.Equal(t, "error", s.Resolve(cfg, "log.level"))
}

func TestSchema_Lookup(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()
	require.NotNil(t, s.Lookup("runtime", "frame-rate"))
	require.Nil(t, s.Lookup("", "frame-rate"))
	require.Equal(t, []string{"debug", "runtime"}, s.Sections())
	require.Len(t, s.SectionOptions("debug"), 4)
}

func TestSchema_FormatHelp(t *testing.T) {
	t.Parallel()
	help := DefaultSchema().FormatHelp()
	require.True(t, strings.HasPrefix(help, "Global Options:\n"))
	require.Contains(t, help, "\n[debug] Options:\n")
	require.Contains(t, help, "\n[runtime] Options:\n")
	require.Contains(t, help, "env: MBT_LOG_LEVEL")
	require.Contains(t, help, "type: int, default: 30")
}

func TestValidateType(t *testing.T) {
	t.Parallel()
	require.NoError(t, validateType(TypeBool, "off"))
	require.NoError(t, validateType(TypeDuration, "1m30s"))
	require.NoError(t, validateType(TypePathList, "a:b"))
	require.Error(t, validateType(TypeInt, "1.5"))
	require.Error(t, validateType(TypeDuration, "soon"))
	require.Error(t, validateType("matrix", "x"))
}
