package tags_test

import (
	"reflect"
	"testing"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
)

func TestSortTag(t *testing.T) {
	enabled := tags.Set{"Artist", "ArtistSort", "Album"}

	t.Run("uses sort variant when enabled", func(t *testing.T) {
		if got := tags.SortTag("Artist", enabled); got != "ArtistSort" {
			t.Errorf("SortTag(Artist) = %q", got)
		}
	})

	t.Run("falls back when variant disabled", func(t *testing.T) {
		if got := tags.SortTag("Album", enabled); got != "Album" {
			t.Errorf("SortTag(Album) = %q", got)
		}
	})

	t.Run("passes unknown tags through", func(t *testing.T) {
		if got := tags.SortTag("Genre", enabled); got != "Genre" {
			t.Errorf("SortTag(Genre) = %q", got)
		}
	})

	t.Run("maps non-tag sort names to MPD attributes", func(t *testing.T) {
		if got := tags.SortTag("LastModified", enabled); got != "Last-Modified" {
			t.Errorf("SortTag(LastModified) = %q", got)
		}
		if got := tags.SortTag("Filename", enabled); got != "file" {
			t.Errorf("SortTag(Filename) = %q", got)
		}
	})
}

func TestValues(t *testing.T) {
	t.Run("splits packed musicbrainz ids", func(t *testing.T) {
		got := tags.Values("MusicBrainzArtistId", "aaa; bbb ;ccc")
		want := []string{"aaa", "bbb", "ccc"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Values = %v, want %v", got, want)
		}
	})

	t.Run("keeps ordinary values whole", func(t *testing.T) {
		got := tags.Values("Artist", "Simon; Garfunkel")
		if !reflect.DeepEqual(got, []string{"Simon; Garfunkel"}) {
			t.Errorf("Values = %v", got)
		}
	})

	t.Run("empty raw yields nil", func(t *testing.T) {
		if got := tags.Values("Artist", ""); got != nil {
			t.Errorf("Values = %v", got)
		}
	})
}

func TestScalar(t *testing.T) {
	if got := tags.Scalar([]string{"a", "b"}); got != "a, b" {
		t.Errorf("Scalar = %q", got)
	}
	if got := tags.Scalar(nil); got != "-" {
		t.Errorf("Scalar(nil) = %q", got)
	}
}

func TestJSONValue(t *testing.T) {
	t.Run("multi-value becomes array", func(t *testing.T) {
		got := tags.JSONValue("Genre", []string{"Jazz", "Funk"})
		if !reflect.DeepEqual(got, []string{"Jazz", "Funk"}) {
			t.Errorf("JSONValue = %v", got)
		}
	})

	t.Run("empty multi-value becomes dash array", func(t *testing.T) {
		got := tags.JSONValue("Genre", nil)
		if !reflect.DeepEqual(got, []string{"-"}) {
			t.Errorf("JSONValue = %v", got)
		}
	})

	t.Run("single-value becomes string", func(t *testing.T) {
		if got := tags.JSONValue("Album", []string{"Aja"}); got != "Aja" {
			t.Errorf("JSONValue = %v", got)
		}
	})

	t.Run("empty single-value becomes dash", func(t *testing.T) {
		if got := tags.JSONValue("Album", nil); got != "-" {
			t.Errorf("JSONValue = %v", got)
		}
	})
}

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		name string
		song mpd.Attrs
		want string
	}{
		{"title wins", mpd.Attrs{"Title": "Peg", "Name": "stream", "file": "a/b.flac"}, "Peg"},
		{"name as fallback", mpd.Attrs{"Name": "Radio X", "file": "http://x/y"}, "Radio X"},
		{"basename as last resort", mpd.Attrs{"file": "music/album/03 - Peg.flac"}, "03 - Peg.flac"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := tags.DisplayTitle(c.song); got != c.want {
				t.Errorf("DisplayTitle = %q, want %q", got, c.want)
			}
		})
	}
}
