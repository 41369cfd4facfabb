// Package lastplayed keeps the recently played song list: an in-memory ring
// owned by the idle loop, flushed to an append-only log under
// state/last_played and compacted to the configured keep count.
package lastplayed

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

// flushThreshold: the ring is flushed once more than this many entries are
// pending.
const flushThreshold = 9

// ringCap bounds the in-memory ring.
const ringCap = 20

// Entry is one played song.
type Entry struct {
	URI      string    `json:"uri"`
	PlayedAt time.Time `json:"lastPlayed"`
}

// Store owns the ring and the on-disk log. It is used only from the idle
// loop; no locking.
type Store struct {
	path      string
	keepCount int
	ring      []Entry
	// appends since the last compaction
	appended int
}

// New creates a store persisting under workdir/state/last_played.
func New(workdir string, keepCount int) *Store {
	if keepCount <= 0 {
		keepCount = 200
	}
	return &Store{
		path:      filepath.Join(workdir, "state", "last_played"),
		keepCount: keepCount,
	}
}

// Add records a played song in the ring and flushes when the pending count
// crosses the threshold.
func (s *Store) Add(uri string, playedAt time.Time) {
	s.ring = append(s.ring, Entry{URI: uri, PlayedAt: playedAt})
	if len(s.ring) > ringCap {
		s.ring = s.ring[len(s.ring)-ringCap:]
	}
	if len(s.ring) > flushThreshold {
		s.Flush()
	}
}

// Flush appends the pending ring entries to the log and compacts the file
// when it has grown past the keep count.
func (s *Store) Flush() {
	if len(s.ring) == 0 {
		return
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error().Err(err).Str("file", s.path).Msg("Cannot open last_played for append")
		return
	}
	w := bufio.NewWriter(f)
	for _, e := range s.ring {
		fmt.Fprintf(w, "%d::%s\n", e.PlayedAt.Unix(), e.URI)
	}
	if err := w.Flush(); err != nil {
		log.Error().Err(err).Msg("Cannot append to last_played")
	}
	f.Close()
	s.appended += len(s.ring)
	s.ring = s.ring[:0]

	if s.appended >= s.keepCount {
		s.compact()
	}
}

// compact rewrites the log keeping only the newest keepCount entries.
// Readers always see either the old or the new file.
func (s *Store) compact() {
	entries := s.readFile()
	if len(entries) > s.keepCount {
		entries = entries[len(entries)-s.keepCount:]
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%d::%s\n", e.PlayedAt.Unix(), e.URI)
	}
	if err := renameio.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		log.Error().Err(err).Msg("Cannot compact last_played")
		return
	}
	s.appended = 0
	log.Debug().Int("kept", len(entries)).Msg("Compacted last_played")
}

// readFile loads the log oldest-first, skipping corrupt lines.
func (s *Store) readFile() []Entry {
	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Cannot read last_played")
		}
		return nil
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		ts, uri, ok := strings.Cut(line, "::")
		if !ok || uri == "" {
			log.Warn().Str("line", line).Msg("Skipping corrupt last_played line")
			continue
		}
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			log.Warn().Str("line", line).Msg("Skipping corrupt last_played line")
			continue
		}
		entries = append(entries, Entry{URI: uri, PlayedAt: time.Unix(sec, 0)})
	}
	return entries
}

// List returns up to limit entries, newest first, merging the unflushed ring
// with the on-disk log.
func (s *Store) List(offset, limit int) []Entry {
	all := s.readFile()
	all = append(all, s.ring...)
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// RecentURIs returns the newest n played uris as a set; the jukebox uses it
// to avoid immediate repeats.
func (s *Store) RecentURIs(n int) map[string]struct{} {
	entries := s.List(0, n)
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.URI] = struct{}{}
	}
	return set
}
