package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cadenza-audio/cadenza/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "localhost", cfg.MPD.Host)
	require.Equal(t, 6600, cfg.MPD.Port)
	require.Equal(t, 262144, cfg.MPD.BinaryLimit)
	require.Equal(t, []string{"cover", "folder", "front"}, cfg.Covers.Names)
	require.Equal(t, 31, cfg.Covers.KeepDays)
	require.Equal(t, 200, cfg.LastPlayed.KeepCount)
}

func TestFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadenza.toml")
	content := `
workdir = "/tmp/cadenza-test"
loglevel = "debug"

[http]
port = 9090
pin = "1234"

[mpd]
host = "music.local"
password = "secret"

[covers]
names = ["albumart"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.HTTP.Port)
	require.Equal(t, "1234", cfg.HTTP.Pin)
	require.Equal(t, "music.local", cfg.MPD.Host)
	require.Equal(t, "secret", cfg.MPD.Password)
	require.Equal(t, []string{"albumart"}, cfg.Covers.Names)
	// Untouched keys keep their defaults.
	require.Equal(t, 6600, cfg.MPD.Port)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.HTTP.Port)
}

func TestBrokenFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http\nport="), 0o644))
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestEnsureWorkdir(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Workdir = t.TempDir()
	require.NoError(t, cfg.EnsureWorkdir())

	for _, sub := range []string{
		"state/default",
		"cache/covercache",
		"cache/webradiodb",
		"pics/thumbs",
		"pics/playlists",
		"webradios",
		"smartpls",
	} {
		_, err := os.Stat(filepath.Join(cfg.Workdir, sub))
		require.NoError(t, err, sub)
	}
}

func TestMPDAddr(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "localhost:6600", cfg.MPDAddr())
}
