// Package jukebox keeps the play queue filled: when the queue length drops
// to or below the configured target, random songs or whole albums are added.
package jukebox

import (
	"fmt"
	"math/rand"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/mympd/mpdclient"
)

// Mode selects the refill strategy.
type Mode string

const (
	ModeOff   Mode = "off"
	ModeSong  Mode = "song"
	ModeAlbum Mode = "album"
)

// ParseMode maps a state-file value to a Mode, defaulting to off.
func ParseMode(v string) Mode {
	switch Mode(v) {
	case ModeSong, ModeAlbum:
		return Mode(v)
	}
	return ModeOff
}

// Refill adds songs until the queue holds at least target entries. exclude
// lists recently played uris to avoid immediate repeats.
func Refill(client *mpd.Client, cache *albumcache.Cache, exclude map[string]struct{},
	mode Mode, target, queueLen int) (int, error) {
	missing := target - queueLen
	if missing <= 0 || mode == ModeOff {
		return 0, nil
	}
	switch mode {
	case ModeSong:
		return refillSongs(client, exclude, missing)
	case ModeAlbum:
		return refillAlbum(client, cache)
	}
	return 0, nil
}

// refillSongs samples random files from the whole database.
func refillSongs(client *mpd.Client, exclude map[string]struct{}, count int) (int, error) {
	files, err := client.GetFiles()
	if err != nil {
		return 0, fmt.Errorf("list database files: %w", err)
	}
	candidates := files[:0]
	for _, f := range files {
		if _, skip := exclude[f]; !skip {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if count > len(candidates) {
		count = len(candidates)
	}
	cmd := client.BeginCommandList()
	for _, uri := range candidates[:count] {
		cmd.Add(uri)
	}
	if err := cmd.End(); err != nil {
		return 0, fmt.Errorf("enqueue jukebox songs: %w", err)
	}
	log.Debug().Int("added", count).Msg("Jukebox added songs")
	return count, nil
}

// refillAlbum picks one random album from the cache and enqueues it whole.
func refillAlbum(client *mpd.Client, cache *albumcache.Cache) (int, error) {
	if cache.Len() == 0 {
		return 0, nil
	}
	albums := cache.List(0, 0)
	album := albums[rand.Intn(len(albums))]
	expr := fmt.Sprintf("((Album == '%s') AND (AlbumArtist == '%s'))",
		mpdclient.EscapeFilter(album.Name), mpdclient.EscapeFilter(album.Artist))
	if err := client.Command("findadd %s", expr).OK(); err != nil {
		return 0, fmt.Errorf("enqueue jukebox album: %w", err)
	}
	log.Debug().Str("album", album.Name).Msg("Jukebox added album")
	return int(album.SongCount), nil
}
