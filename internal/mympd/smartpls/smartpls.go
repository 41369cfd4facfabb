// Package smartpls regenerates rule-defined playlists. Rules live as JSON
// files under workdir/smartpls/<name>; regeneration replaces the stored
// playlist's contents.
package smartpls

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// Rule kinds.
const (
	TypeSearch  = "search"
	TypeNewest  = "newest"
	TypeSticker = "sticker"
)

// Rule defines one smart playlist.
type Rule struct {
	Type string `json:"type"`
	// Expression is an MPD filter, used by search rules.
	Expression string `json:"expression,omitempty"`
	// TimerangeDays bounds newest rules to songs modified that recently.
	TimerangeDays int `json:"timerange,omitempty"`
	// Sticker names the counter ranked by sticker rules.
	Sticker string `json:"sticker,omitempty"`
	// MaxEntries caps sticker rules.
	MaxEntries int `json:"maxentries,omitempty"`
}

// Dir resolves the rule directory.
func Dir(workdir string) string {
	return filepath.Join(workdir, "smartpls")
}

// List returns the names of all defined smart playlists.
func List(workdir string) ([]string, error) {
	entries, err := os.ReadDir(Dir(workdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read smartpls dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Load reads the rule for name.
func Load(workdir, name string) (*Rule, error) {
	data, err := os.ReadFile(filepath.Join(Dir(workdir), name))
	if err != nil {
		return nil, fmt.Errorf("read smartpls rule %s: %w", name, err)
	}
	rule := &Rule{}
	if err := json.Unmarshal(data, rule); err != nil {
		return nil, fmt.Errorf("parse smartpls rule %s: %w", name, err)
	}
	return rule, nil
}

// Save writes the rule atomically.
func Save(workdir, name string, rule *Rule) error {
	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal smartpls rule %s: %w", name, err)
	}
	if err := os.MkdirAll(Dir(workdir), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(Dir(workdir), name), data, 0o644)
}

// Update regenerates the stored playlist for name from its rule.
func Update(client *mpd.Client, workdir, name string) error {
	rule, err := Load(workdir, name)
	if err != nil {
		return err
	}

	// Drop the old playlist; a missing one is fine.
	if err := client.PlaylistRemove(name); err != nil {
		if _, ok := err.(mpd.Error); !ok {
			return fmt.Errorf("remove playlist %s: %w", name, err)
		}
	}

	switch rule.Type {
	case TypeSearch:
		if rule.Expression == "" {
			return fmt.Errorf("smartpls %s: empty search expression", name)
		}
		if err := client.Command("searchaddpl %s %s", name, rule.Expression).OK(); err != nil {
			return fmt.Errorf("smartpls %s search: %w", name, err)
		}
	case TypeNewest:
		days := rule.TimerangeDays
		if days <= 0 {
			days = 14
		}
		since := time.Now().AddDate(0, 0, -days).Unix()
		expr := fmt.Sprintf("(modified-since '%d')", since)
		if err := client.Command("searchaddpl %s %s", name, expr).OK(); err != nil {
			return fmt.Errorf("smartpls %s newest: %w", name, err)
		}
	case TypeSticker:
		if err := updateSticker(client, name, rule); err != nil {
			return err
		}
	default:
		return fmt.Errorf("smartpls %s: unknown rule type %q", name, rule.Type)
	}

	log.Info().Str("playlist", name).Str("type", rule.Type).Msg("Smart playlist updated")
	return nil
}

// updateSticker ranks songs by a numeric sticker value and stores the top N.
func updateSticker(client *mpd.Client, name string, rule *Rule) error {
	sticker := rule.Sticker
	if sticker == "" {
		sticker = "playCount"
	}
	files, stks, err := client.StickerFind("", sticker)
	if err != nil {
		return fmt.Errorf("smartpls %s sticker find: %w", name, err)
	}
	type ranked struct {
		uri   string
		value int
	}
	entries := make([]ranked, 0, len(files))
	for i, uri := range files {
		n, err := strconv.Atoi(stks[i].Value)
		if err != nil {
			continue
		}
		entries = append(entries, ranked{uri: uri, value: n})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].value == entries[j].value {
			return entries[i].uri < entries[j].uri
		}
		return entries[i].value > entries[j].value
	})
	max := rule.MaxEntries
	if max <= 0 {
		max = 200
	}
	if len(entries) > max {
		entries = entries[:max]
	}
	for _, e := range entries {
		if err := client.PlaylistAdd(name, e.uri); err != nil {
			return fmt.Errorf("smartpls %s add %s: %w", name, e.uri, err)
		}
	}
	return nil
}

// UpdateAll regenerates every defined smart playlist and returns the count
// updated. Individual failures are logged and do not stop the walk.
func UpdateAll(client *mpd.Client, workdir string) (int, error) {
	names, err := List(workdir)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, name := range names {
		if err := Update(client, workdir, name); err != nil {
			log.Error().Err(err).Str("playlist", name).Msg("Smart playlist update failed")
			continue
		}
		updated++
	}
	return updated, nil
}
