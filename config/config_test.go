package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: echo\naddress: 127.0.0.1:9000\nnum_event_loop: 4\n"), 0o644))

	opts, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, "echo", opts.Name)
	require.Equal(t, "127.0.0.1:9000", opts.Address)
	require.Equal(t, 4, opts.NumEventLoop)
	require.True(t, opts.TCPNoDelay)
}

func TestLoadEnvMissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "nonexistent.env")))
}

func TestLoadEnvPopulatesProcessEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REACTOR_POLLER=poll\n"), 0o644))

	require.NoError(t, LoadEnv(path))
	defer os.Unsetenv("REACTOR_POLLER")
	require.Equal(t, "poll", os.Getenv("REACTOR_POLLER"))
}
