package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "info", c.Log.Level)
	require.Equal(t, "text", c.Log.Format)
	require.Empty(t, c.Log.File.Filename)
	require.Equal(t, 100, c.Log.File.MaxSize)
	require.Equal(t, "EN10MB", c.Compile.LinkType)
	require.Equal(t, uint32(65535), c.Compile.SnapLength)
	require.True(t, c.Compile.Optimize)
	require.Equal(t, "0.0.0.0", c.Compile.Netmask)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcapkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
  file:
    filename: /tmp/pcapkit.log
    compress: true
compile:
  linktype: LINUX_SLL
  snaplen: 96
  optimize: false
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", c.Log.Level)
	require.Equal(t, "json", c.Log.Format)
	require.Equal(t, "/tmp/pcapkit.log", c.Log.File.Filename)
	require.True(t, c.Log.File.Compress)
	// unset keys keep their defaults
	require.Equal(t, 3, c.Log.File.MaxBackups)
	require.Equal(t, "LINUX_SLL", c.Compile.LinkType)
	require.Equal(t, uint32(96), c.Compile.SnapLength)
	require.False(t, c.Compile.Optimize)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PCAPKIT_LOG_LEVEL", "trace")
	t.Setenv("PCAPKIT_COMPILE_LINKTYPE", "RAW")
	t.Setenv("PCAPKIT_COMPILE_SNAPLEN", "128")

	path := filepath.Join(t.TempDir(), "pcapkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compile:\n  linktype: NULL\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "trace", c.Log.Level)
	require.Equal(t, "RAW", c.Compile.LinkType)
	require.Equal(t, uint32(128), c.Compile.SnapLength)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("PCAPKIT_LOG_FORMAT", "xml")
	_, err = Load("")
	require.ErrorContains(t, err, "unsupported log format")
}
