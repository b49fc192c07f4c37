package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFlags(t *testing.T) {
	t.Parallel()
	config, err := loadConfig(&flags{
		Listen:        "127.0.0.1:8080",
		Upstream:      "127.0.0.1:80",
		SendProxy:     true,
		MetricsListen: "127.0.0.1:9100",
		Verbose:       true,
	})
	require.NoError(t, err)
	require.Equal(t, "debug", config.LogLevel)
	require.Equal(t, "127.0.0.1:9100", config.Metrics.Listen)

	options, err := config.Options()
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.Equal(t, "cli", options[0].Name)
	require.True(t, options[0].SendProxy)
	require.False(t, options[0].AcceptProxy)
}

func TestLoadConfigMergesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "warning"

[[relay]]
name = "file"
listen = "127.0.0.1:1"
upstream = "127.0.0.1:2"
`), 0o600))
	config, err := loadConfig(&flags{
		ConfigFile: path,
		Listen:     "127.0.0.1:3",
		Upstream:   "127.0.0.1:4",
	})
	require.NoError(t, err)
	require.Equal(t, "warning", config.LogLevel)
	options, err := config.Options()
	require.NoError(t, err)
	require.Len(t, options, 2)
	require.Equal(t, "file", options[0].Name)
	require.Equal(t, "cli", options[1].Name)
}

func TestLoadConfigWithoutRelays(t *testing.T) {
	t.Parallel()
	config, err := loadConfig(new(flags))
	require.NoError(t, err)
	_, err = config.Options()
	require.ErrorContains(t, err, "no relay configured")
}
