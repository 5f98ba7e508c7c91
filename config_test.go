package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "forest.yaml")
	require.NoError(t, os.WriteFile(file, []byte("events:\n  buffer: 3\nlog:\n  level: debug\n"), 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Events.Buffer)
	require.Equal(t, "debug", cfg.Log.Level)

	opts, err := cfg.Options()
	require.NoError(t, err)
	e := NewEngine(nil, NewRegistry(), opts...)
	require.Equal(t, 3, cap(e.Subscribe().Events()))
}

func TestLoadConfigDefaults(t *testing.T) {
	file := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBadLogLevel(t *testing.T) {
	_, err := LogConfig{Level: "loud"}.NewLogger()
	require.Error(t, err)
}
