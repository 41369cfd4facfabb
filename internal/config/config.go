// Package config loads the daemon configuration from an optional TOML file
// layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full daemon configuration.
type Config struct {
	HTTP struct {
		Host string `koanf:"host"`
		Port int    `koanf:"port"`
		// Pin enables the shared-PIN session scheme when non-empty.
		Pin string `koanf:"pin"`
	} `koanf:"http"`

	MPD struct {
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		Password string `koanf:"password"`
		// BinaryLimit is sent after connect to raise the albumart chunk size.
		BinaryLimit int `koanf:"binarylimit"`
	} `koanf:"mpd"`

	// Workdir holds all persisted state (state/, cache/, pics/, webradios/,
	// smartpls/).
	Workdir string `koanf:"workdir"`
	// MusicDirectory enables filesystem cover lookups beside media files.
	MusicDirectory string `koanf:"music_directory"`

	LogLevel string `koanf:"loglevel"`

	Covers struct {
		// Names are tried in order inside the song's directory.
		Names []string `koanf:"names"`
		// ThumbNames are tried first for thumbnail requests.
		ThumbNames []string `koanf:"thumb_names"`
		KeepDays   int      `koanf:"keep_days"`
	} `koanf:"covers"`

	LastPlayed struct {
		KeepCount int `koanf:"keep_count"`
	} `koanf:"last_played"`

	WebradioDB struct {
		URL string `koanf:"url"`
	} `koanf:"webradiodb"`
}

var defaults = map[string]any{
	"http.host":              "0.0.0.0",
	"http.port":              8080,
	"mpd.host":               "localhost",
	"mpd.port":               6600,
	"mpd.binarylimit":        262144,
	"workdir":                "/var/lib/cadenza",
	"loglevel":               "info",
	"covers.names":           []string{"cover", "folder", "front"},
	"covers.thumb_names":     []string{"cover-sm", "folder-sm"},
	"covers.keep_days":       31,
	"last_played.keep_count": 200,
	"webradiodb.url":         "https://jcorporation.github.io/webradiodb/db/index/webradiodb-combined.min.json",
}

// Load reads the configuration. path may be empty or point to a missing file;
// defaults apply either way.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// EnsureWorkdir creates the workdir skeleton.
func (c *Config) EnsureWorkdir() error {
	for _, sub := range []string{
		"state",
		filepath.Join("state", "default"),
		filepath.Join("cache", "covercache"),
		filepath.Join("cache", "webradiodb"),
		filepath.Join("pics", "thumbs"),
		filepath.Join("pics", "playlists"),
		"webradios",
		"smartpls",
	} {
		if err := os.MkdirAll(filepath.Join(c.Workdir, sub), 0o755); err != nil {
			return fmt.Errorf("create workdir %s: %w", sub, err)
		}
	}
	return nil
}

// MPDAddr returns the host:port dial string.
func (c *Config) MPDAddr() string {
	return fmt.Sprintf("%s:%d", c.MPD.Host, c.MPD.Port)
}
