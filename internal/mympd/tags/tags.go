// Package tags implements the tag taxonomy: which tags carry multiple
// values, how values are rendered for display and JSON, and how sort tags
// fall back to their base tag.
package tags

import (
	"path"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
)

// multiValue lists the tags that may carry more than one value per song or
// album. Everything else stores a single value.
var multiValue = map[string]bool{
	"Artist":                    true,
	"ArtistSort":                true,
	"AlbumArtist":               true,
	"AlbumArtistSort":           true,
	"Genre":                     true,
	"Composer":                  true,
	"ComposerSort":              true,
	"Performer":                 true,
	"Conductor":                 true,
	"Ensemble":                  true,
	"MusicBrainzArtistId":       true,
	"MusicBrainzAlbumArtistId":  true,
}

// sortVariant maps base tags to their sort tag.
var sortVariant = map[string]string{
	"Artist":      "ArtistSort",
	"AlbumArtist": "AlbumArtistSort",
	"Album":       "AlbumSort",
	"Composer":    "ComposerSort",
	"Title":       "TitleSort",
}

// musicBrainzPacked names the tags where MPD packs multiple ids into one
// value separated by semicolons.
var musicBrainzPacked = map[string]bool{
	"MusicBrainzArtistId":      true,
	"MusicBrainzAlbumArtistId": true,
}

// mpdSortAttr maps API sort names that are not tag types to the attribute
// name MPD expects in a sort clause.
var mpdSortAttr = map[string]string{
	"LastModified": "Last-Modified",
	"Filename":     "file",
}

// IsMultiValue reports whether name is a multi-value tag.
func IsMultiValue(name string) bool { return multiValue[name] }

// Set is the set of tag types currently enabled on the MPD connection.
type Set []string

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	for _, t := range s {
		if t == name {
			return true
		}
	}
	return false
}

// SortTag returns the attribute to sort by for the API name: the *Sort
// variant when it is enabled, the MPD attribute for non-tag sort names like
// LastModified, and the name itself otherwise.
func SortTag(name string, enabled Set) string {
	if v, ok := sortVariant[name]; ok && enabled.Contains(v) {
		return v
	}
	if attr, ok := mpdSortAttr[name]; ok {
		return attr
	}
	return name
}

// Values normalizes a raw tag value into its value list, splitting packed
// MusicBrainz ids on semicolons and trimming the parts.
func Values(name, raw string) []string {
	if raw == "" {
		return nil
	}
	if musicBrainzPacked[name] {
		parts := strings.Split(raw, ";")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{raw}
}

// Scalar renders values for human display, joining multiple values with
// ", ". Empty value lists render as "-".
func Scalar(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

// JSONValue renders a tag for a JSON document: multi-value tags become an
// array, single-value tags a string. Empty sets render as "-" / ["-"].
func JSONValue(name string, values []string) any {
	if IsMultiValue(name) {
		if len(values) == 0 {
			return []string{"-"}
		}
		return values
	}
	if len(values) == 0 {
		return "-"
	}
	return values[0]
}

// DisplayTitle returns the song title for display, falling back to the Name
// tag and then to the basename of the uri.
func DisplayTitle(song mpd.Attrs) string {
	if t := song["Title"]; t != "" {
		return t
	}
	if n := song["Name"]; n != "" {
		return n
	}
	return path.Base(song["file"])
}
