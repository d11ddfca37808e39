package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/packetcap/pcapkit/internal/config"
)

func TestConfigureText(t *testing.T) {
	l := log.New()
	var out bytes.Buffer
	closer, err := Configure(l, &out, config.LogConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	defer closer.Close()

	l.WithField("expression", "tcp").Debug("compiling filter")
	require.Contains(t, out.String(), "compiling filter")
	require.Contains(t, out.String(), "expression=tcp")
	require.Contains(t, out.String(), "TestConfigureText()")
	require.Contains(t, out.String(), "logging_test.go:")

	out.Reset()
	l.Trace("hidden")
	require.Empty(t, out.String())
}

func TestConfigureJSON(t *testing.T) {
	l := log.New()
	var out bytes.Buffer
	closer, err := Configure(l, &out, config.LogConfig{Level: "info", Format: "JSON"})
	require.NoError(t, err)
	defer closer.Close()

	l.WithField("written", 2).Info("replay finished")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	require.Equal(t, "replay finished", entry["msg"])
	require.Equal(t, "info", entry["level"])
	require.Equal(t, float64(2), entry["written"])
	// callers are only reported at debug and below
	require.NotContains(t, entry, "func")
}

func TestConfigureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcapkit.log")
	l := log.New()
	var out bytes.Buffer
	closer, err := Configure(l, &out, config.LogConfig{
		Level:  "warn",
		Format: "text",
		File:   config.FileConfig{Filename: path, MaxSize: 1},
	})
	require.NoError(t, err)
	l.Warn("unable to release filter program")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "unable to release filter program")
	require.Contains(t, out.String(), "unable to release filter program")
}

func TestConfigureErrors(t *testing.T) {
	_, err := Configure(log.New(), &bytes.Buffer{}, config.LogConfig{Level: "loud", Format: "text"})
	require.ErrorContains(t, err, "invalid log level")
	_, err = Configure(log.New(), &bytes.Buffer{}, config.LogConfig{Level: "info", Format: "xml"})
	require.ErrorContains(t, err, "unsupported log format")
}
