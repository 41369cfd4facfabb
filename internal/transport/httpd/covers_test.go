package httpd

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/cadenza-audio/cadenza/internal/artwork"
	"github.com/cadenza-audio/cadenza/internal/mympd/albumcache"
	"github.com/cadenza-audio/cadenza/internal/mympd/tags"
)

var testPNG = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAlbumArtRedirectsThroughCoverProxy(t *testing.T) {
	s := newTestServer(t, "")
	streamURI := "http://radio.example/stream"
	safe := "http___radio.example_stream"
	dir := filepath.Join(s.cfg.Workdir, "webradios")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	m3u := "#EXTIMG:https://cdn.example/logo.png\n" + streamURI + "\n"
	if err := os.WriteFile(filepath.Join(dir, safe+".m3u"), []byte(m3u), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(s.routes(), "/albumart?uri="+url.QueryEscape(streamURI))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	want := "/proxy-covercache?uri=" + url.QueryEscape("https://cdn.example/logo.png")
	if loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func TestAlbumArtByID(t *testing.T) {
	s := newTestServer(t, "")
	h := s.routes()

	t.Run("unknown album gets the placeholder", func(t *testing.T) {
		rec := get(h, "/albumart/"+url.PathEscape("no such::album"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
	})

	t.Run("known album resolves through its first song", func(t *testing.T) {
		musicDir := t.TempDir()
		s.resolver.MusicDir = musicDir
		albumDir := filepath.Join(musicDir, "a", "b")
		os.MkdirAll(albumDir, 0o755)
		os.WriteFile(filepath.Join(albumDir, "cover.png"), testPNG, 0o644)

		b := albumcache.NewBuilder(tags.Set{"Album", "AlbumArtist"})
		b.Add(mpd.Attrs{"file": "a/b/01.flac", "Album": "Aja", "AlbumArtist": "Steely Dan"})
		s.holder.Swap(b.Finish())
		key, err := albumcache.Key(mpd.Attrs{"Album": "Aja", "AlbumArtist": "Steely Dan"})
		if err != nil {
			t.Fatal(err)
		}

		rec := get(h, "/albumart/"+url.PathEscape(key))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("Content-Type = %q", ct)
		}
	})
}

func TestPlaylistArtParams(t *testing.T) {
	s := newTestServer(t, "")
	h := s.routes()

	t.Run("missing playlist", func(t *testing.T) {
		if rec := get(h, "/playlistart?type=playlist"); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("bad type", func(t *testing.T) {
		if rec := get(h, "/playlistart?playlist=mix&type=weird"); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("serves the user image", func(t *testing.T) {
		dir := filepath.Join(s.cfg.Workdir, "pics", "playlists")
		os.MkdirAll(dir, 0o755)
		os.WriteFile(filepath.Join(dir, "mix.png"), testPNG, 0o644)

		for _, typ := range []string{"playlist", "smartpls"} {
			rec := get(h, "/playlistart?playlist=mix&type="+typ)
			if rec.Code != http.StatusOK {
				t.Errorf("type %s: status = %d", typ, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
				t.Errorf("type %s: Content-Type = %q", typ, ct)
			}
		}
	})
}

func TestProxyCoverCache(t *testing.T) {
	t.Run("rejects bad targets", func(t *testing.T) {
		s := newTestServer(t, "")
		h := s.routes()
		for _, target := range []string{
			"/proxy-covercache",
			"/proxy-covercache?uri=" + url.QueryEscape("file:///etc/passwd"),
			"/proxy-covercache?uri=" + url.QueryEscape("ftp://x/y.png"),
			"/proxy-covercache?uri=notaurl",
		} {
			if rec := get(h, target); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d", target, rec.Code)
			}
		}
	})

	t.Run("fetches once and then serves from the cache", func(t *testing.T) {
		hits := 0
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			w.Write(testPNG)
		}))
		defer upstream.Close()

		s := newTestServer(t, "")
		h := s.routes()
		target := "/proxy-covercache?uri=" + url.QueryEscape(upstream.URL+"/logo.png")

		for i := 0; i < 2; i++ {
			rec := get(h, target)
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: status = %d", i, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
				t.Errorf("request %d: Content-Type = %q", i, ct)
			}
		}
		if hits != 1 {
			t.Errorf("upstream hits = %d, want 1", hits)
		}
	})

	t.Run("upstream failure yields bad gateway", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer upstream.Close()

		s := newTestServer(t, "")
		rec := get(s.routes(), "/proxy-covercache?uri="+url.QueryEscape(upstream.URL+"/x.png"))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("cached entry needs no upstream", func(t *testing.T) {
		s := newTestServer(t, "")
		remote := "https://cdn.example/cached.png"
		if artwork.StoreCover(s.cfg.Workdir, remote, 0, testPNG) == "" {
			t.Fatal("StoreCover failed")
		}
		rec := get(s.routes(), "/proxy-covercache?uri="+url.QueryEscape(remote))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "image/") {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}
	})
}
