// Package albumcache maintains the radix-keyed index of albums aggregated
// from the MPD library. A cache is built into a detached structure and
// swapped in atomically; readers observe either the old or the new tree,
// never a partial one.
package albumcache

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	radix "github.com/armon/go-radix"
	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
)

// keySep joins the album part and the artist part of a cache key.
const keySep = "::"

var lower = cases.Lower(language.Und)

// ErrNoKey marks songs that cannot be indexed: no album tag, or neither an
// album artist nor an artist tag.
var ErrNoKey = errors.New("song has no usable album key")

// Album is the aggregate record for one album.
type Album struct {
	// URI is the file of the first song seen for this album.
	URI string
	// Name and Artist keep the display casing of the first song seen.
	Name         string
	Artist       string
	Tags         map[string][]string
	LastModified time.Time
	Discs        uint
	SongCount    uint
	DurationSec  uint64
	DurationMS   uint64
}

// Key derives the cache key for a song: lowercase(album) + "::" +
// lowercase(album artist, falling back to artist). Songs lacking the album
// tag or both artist tags yield ErrNoKey.
func Key(song mpd.Attrs) (string, error) {
	album := song["Album"]
	if album == "" {
		return "", ErrNoKey
	}
	artist := song["AlbumArtist"]
	if artist == "" {
		artist = song["Artist"]
	}
	if artist == "" {
		return "", ErrNoKey
	}
	return lower.String(album) + keySep + lower.String(artist), nil
}

// Cache is an immutable album index.
type Cache struct {
	tree    *radix.Tree
	BuiltAt time.Time
}

// Lookup returns the album for key, or nil.
func (c *Cache) Lookup(key string) *Album {
	if c == nil {
		return nil
	}
	if v, ok := c.tree.Get(key); ok {
		return v.(*Album)
	}
	return nil
}

// Len returns the number of indexed albums.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.tree.Len()
}

// Each walks the cache in key order until fn returns false.
func (c *Cache) Each(fn func(key string, a *Album) bool) {
	if c == nil {
		return
	}
	c.tree.Walk(func(k string, v any) bool {
		return !fn(k, v.(*Album))
	})
}

// Builder aggregates a song stream into a detached cache.
type Builder struct {
	tree    *radix.Tree
	wanted  []string
	skipped int
}

// NewBuilder starts a build that indexes the given multi-value tags.
func NewBuilder(wanted tags.Set) *Builder {
	return &Builder{tree: radix.New(), wanted: wanted}
}

// Add indexes one song. Songs without a usable key are counted and skipped.
func (b *Builder) Add(song mpd.Attrs) {
	key, err := Key(song)
	if err != nil {
		b.skipped++
		log.Warn().Str("uri", song["file"]).Msg("Song has no album key, skipped")
		return
	}

	durSec, durMS := songDuration(song)
	disc := songDisc(song)
	lm := songLastModified(song)

	var album *Album
	if v, ok := b.tree.Get(key); ok {
		album = v.(*Album)
		album.SongCount++
		album.DurationSec += durSec
		album.DurationMS += durMS
		if lm.After(album.LastModified) {
			album.LastModified = lm
		}
		if disc > album.Discs {
			album.Discs = disc
		}
	} else {
		artist := song["AlbumArtist"]
		if artist == "" {
			artist = song["Artist"]
		}
		album = &Album{
			URI:          song["file"],
			Name:         song["Album"],
			Artist:       artist,
			Tags:         make(map[string][]string),
			LastModified: lm,
			Discs:        disc,
			SongCount:    1,
			DurationSec:  durSec,
			DurationMS:   durMS,
		}
		b.tree.Insert(key, album)
	}

	for _, name := range b.wanted {
		if !tags.IsMultiValue(name) {
			continue
		}
		for _, v := range tags.Values(name, song[name]) {
			appendUnique(album, name, v)
		}
	}
}

// appendUnique adds v to the album's value list for name unless already
// present. Per-album lists are small, so the linear scan is fine.
func appendUnique(a *Album, name, v string) {
	for _, have := range a.Tags[name] {
		if have == v {
			return
		}
	}
	a.Tags[name] = append(a.Tags[name], v)
}

// Finish seals the build and returns the cache.
func (b *Builder) Finish() *Cache {
	if b.skipped > 0 {
		log.Info().Int("skipped", b.skipped).Msg("Songs without album key skipped during cache build")
	}
	return &Cache{tree: b.tree, BuiltAt: time.Now()}
}

// Holder publishes the live cache. Writers swap whole caches; readers never
// lock.
type Holder struct {
	p atomic.Pointer[Cache]
}

// Load returns the current cache, possibly nil before the first build.
func (h *Holder) Load() *Cache { return h.p.Load() }

// Swap publishes c and returns the previous cache.
func (h *Holder) Swap(c *Cache) *Cache { return h.p.Swap(c) }

// List returns up to limit albums starting at offset, ordered by key, with a
// secondary stable order by URI for duplicate sort values.
func (c *Cache) List(offset, limit int) []*Album {
	if c == nil {
		return nil
	}
	all := make([]*Album, 0, c.tree.Len())
	keys := make(map[*Album]string, c.tree.Len())
	c.tree.Walk(func(k string, v any) bool {
		a := v.(*Album)
		all = append(all, a)
		keys[a] = k
		return false
	})
	sort.SliceStable(all, func(i, j int) bool {
		if keys[all[i]] == keys[all[j]] {
			return all[i].URI < all[j].URI
		}
		return keys[all[i]] < keys[all[j]]
	})
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func songDuration(song mpd.Attrs) (uint64, uint64) {
	if d, err := strconv.ParseFloat(song["duration"], 64); err == nil && d > 0 {
		ms := uint64(d * 1000)
		return ms / 1000, ms
	}
	if t, err := strconv.ParseUint(song["Time"], 10, 64); err == nil {
		return t, t * 1000
	}
	return 0, 0
}

func songDisc(song mpd.Attrs) uint {
	// Disc may come as "1" or "1/2".
	v := song["Disc"]
	if i := strings.IndexByte(v, '/'); i >= 0 {
		v = v[:i]
	}
	if d, err := strconv.ParseUint(v, 10, 32); err == nil {
		return uint(d)
	}
	return 0
}

func songLastModified(song mpd.Attrs) time.Time {
	if lm, err := time.Parse(time.RFC3339, song["Last-Modified"]); err == nil {
		return lm
	}
	return time.Time{}
}
