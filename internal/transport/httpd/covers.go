package httpd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cadenza-audio/cadenza/internal/artwork"
	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
	"github.com/cadenza-audio/cadenza/internal/mympd/idle"
	"github.com/cadenza-audio/cadenza/internal/webradio"
)

// albumArtTimeout bounds the wait for the idle loop's MPD albumart fetch.
const albumArtTimeout = 10 * time.Second

// maxProxyImageSize bounds remote cover downloads.
const maxProxyImageSize = 5 * 1024 * 1024

// handleAlbumArt serves cover images through the resolution cascade. When the
// cascade defers to MPD the request crosses into the idle loop and the
// handler waits for the bytes.
func (s *Server) handleAlbumArt(thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uri")
		if uri == "" {
			http.Error(w, "missing uri", http.StatusBadRequest)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		s.serveResolved(w, r, uri, offset, thumbnail)
	}
}

// handleAlbumArtByID serves the cover of an album from the album cache by its
// album id, resolving through the first song of the album.
func (s *Server) handleAlbumArtByID(w http.ResponseWriter, r *http.Request) {
	albumID, err := url.PathUnescape(chi.URLParam(r, "albumId"))
	if err != nil || albumID == "" {
		http.Error(w, "bad album id", http.StatusBadRequest)
		return
	}
	album := s.holder.Load().Lookup(albumID)
	if album == nil {
		coverRequests.WithLabelValues("placeholder").Inc()
		ph := artwork.Placeholder()
		serveImageBytes(w, ph.Data, ph.MimeType)
		return
	}
	s.serveResolved(w, r, album.URI, 0, false)
}

// serveResolved runs the cascade for uri and writes the outcome.
func (s *Server) serveResolved(w http.ResponseWriter, r *http.Request, uri string, offset int, thumbnail bool) {
	res := s.resolver.Resolve(uri, offset, thumbnail, true)
	switch {
	case res.RedirectURL != "":
		// Remote images go through the cover-cache proxy, never straight to
		// the client.
		coverRequests.WithLabelValues("redirect").Inc()
		http.Redirect(w, r, "/proxy-covercache?uri="+url.QueryEscape(res.RedirectURL), http.StatusFound)
	case res.FilePath != "":
		coverRequests.WithLabelValues("file").Inc()
		serveImageFile(w, r, res.FilePath, res.MimeType)
	case res.Async:
		s.serveMPDAlbumArt(w, uri, offset)
	case res.Placeholder:
		coverRequests.WithLabelValues("placeholder").Inc()
		serveImageBytes(w, res.Data, res.MimeType)
	default:
		coverRequests.WithLabelValues("embedded").Inc()
		serveImageBytes(w, res.Data, res.MimeType)
	}
}

// serveMPDAlbumArt fetches the image over the idle loop's MPD connection and
// caches it for later requests.
func (s *Server) serveMPDAlbumArt(w http.ResponseWriter, uri string, offset int) {
	params, _ := json.Marshal(map[string]string{"uri": uri})
	reply := make(chan idle.AlbumArtReply, 1)
	s.api.Push(&jsonrpc.Request{
		ConnID:    jsonrpc.ConnInternal,
		Method:    "INTERNAL_ALBUMART",
		Cmd:       jsonrpc.CmdInternalAlbumArt,
		Partition: "default",
		Params:    params,
		Extra:     reply,
	}, 0)

	select {
	case res, ok := <-reply:
		if !ok || res.Err != nil || len(res.Data) == 0 {
			coverRequests.WithLabelValues("placeholder").Inc()
			ph := artwork.Placeholder()
			serveImageBytes(w, ph.Data, ph.MimeType)
			return
		}
		artwork.StoreCover(s.cfg.Workdir, uri, offset, res.Data)
		coverRequests.WithLabelValues("mpd").Inc()
		serveImageBytes(w, res.Data, artwork.DetectMimeType(res.Data))
	case <-time.After(albumArtTimeout):
		log.Warn().Str("uri", uri).Msg("MPD albumart timed out")
		coverRequests.WithLabelValues("timeout").Inc()
		ph := artwork.Placeholder()
		serveImageBytes(w, ph.Data, ph.MimeType)
	}
}

// handlePlaylistArt serves user-supplied playlist images from pics/playlists.
// The type parameter distinguishes plain from smart playlists.
func (s *Server) handlePlaylistArt(w http.ResponseWriter, r *http.Request) {
	plist := r.URL.Query().Get("playlist")
	if plist == "" {
		http.Error(w, "missing playlist", http.StatusBadRequest)
		return
	}
	switch r.URL.Query().Get("type") {
	case "playlist", "smartpls":
	default:
		http.Error(w, "bad playlist type", http.StatusBadRequest)
		return
	}
	dir := filepath.Join(s.cfg.Workdir, "pics", "playlists")
	if path, mime := artwork.LookupPic(dir, webradio.SanitizeName(plist)); path != "" {
		coverRequests.WithLabelValues("file").Inc()
		serveImageFile(w, r, path, mime)
		return
	}
	coverRequests.WithLabelValues("placeholder").Inc()
	ph := artwork.Placeholder()
	serveImageBytes(w, ph.Data, ph.MimeType)
}

// handleProxyCoverCache fetches a remote cover image on the client's behalf,
// caching it in the cover cache. Only http and https targets are allowed.
func (s *Server) handleProxyCoverCache(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("uri")
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, "bad uri", http.StatusBadRequest)
		return
	}

	if path, mime := artwork.CachedCover(s.cfg.Workdir, target, 0, s.cfg.Covers.KeepDays); path != "" {
		coverRequests.WithLabelValues("proxy-cached").Inc()
		serveImageFile(w, r, path, mime)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		http.Error(w, "bad uri", http.StatusBadRequest)
		return
	}
	resp, err := s.proxyClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("uri", target).Msg("Cover proxy fetch failed")
		http.Error(w, "fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		http.Error(w, "fetch failed", http.StatusBadGateway)
		return
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyImageSize))
	if err != nil || len(data) == 0 {
		http.Error(w, "fetch failed", http.StatusBadGateway)
		return
	}

	artwork.StoreCover(s.cfg.Workdir, target, 0, data)
	coverRequests.WithLabelValues("proxy").Inc()
	serveImageBytes(w, data, artwork.DetectMimeType(data))
}

func serveImageFile(w http.ResponseWriter, r *http.Request, path, mime string) {
	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	w.Header().Set("Cache-Control", "max-age=604800")
	http.ServeFile(w, r, path)
}

func serveImageBytes(w http.ResponseWriter, data []byte, mime string) {
	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	w.Header().Set("Cache-Control", "max-age=604800")
	w.Write(data)
}
